package commands

import (
	"fmt"
	"sort"
	"strings"

	"monolith/internal/seed"

	"github.com/spf13/cobra"
)

var (
	// Seed flags
	seedPreset string
	seedUsers  int
	seedPosts  int
	seedClean  bool
	seedDryRun bool
	seedFast   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the database with demo data",
	Long: `Populate the database with users, connections, posts, stories and messages.

Examples:
  admin seed --preset demo            # Apply a named preset
  admin seed --users 40 --posts 300   # Custom size
  admin seed --clean=false --preset small`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, db, err := connect(applySchema)
		if err != nil {
			return err
		}
		s := seed.NewSeeder(db, seed.Options{
			SkipBcrypt: seedFast,
			DryRun:     seedDryRun,
			StoryTTL:   cfg.StoryTTL(),
		})

		if seedClean {
			if err := s.ClearAll(); err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
		}

		if seedPreset != "" {
			cmd.Printf("Applying preset: %s (ignoring size flags)\n", seedPreset)
			if err := s.ApplyPreset(seedPreset); err != nil {
				return fmt.Errorf("preset seeding failed: %w", err)
			}
		} else {
			cmd.Printf("Target: %d users, %d posts, clean=%v\n", seedUsers, seedPosts, seedClean)
			users, err := s.SeedSocialMesh(seedUsers)
			if err != nil {
				return fmt.Errorf("user seeding failed: %w", err)
			}
			if _, err := s.SeedEngagement(users, seedPosts); err != nil {
				return fmt.Errorf("engagement seeding failed: %w", err)
			}
			if err := s.SeedStories(users, 1); err != nil {
				return fmt.Errorf("story seeding failed: %w", err)
			}
			if err := s.SeedMessages(users, 4); err != nil {
				return fmt.Errorf("message seeding failed: %w", err)
			}
		}

		cmd.Println("✨ All done! Your database is now populated with test data.")
		cmd.Printf("📧 All test users have the password: %s\n", seed.DemoPassword)
		return nil
	},
}

func presetNames() string {
	names := make([]string, 0, len(seed.Presets))
	for name := range seed.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func init() {
	seedCmd.Flags().StringVar(&seedPreset, "preset", "", "Seed preset to apply ("+presetNames()+")")
	seedCmd.Flags().IntVar(&seedUsers, "users", 50, "Number of users to create")
	seedCmd.Flags().IntVar(&seedPosts, "posts", 200, "Number of posts to create")
	seedCmd.Flags().BoolVar(&seedClean, "clean", true, "Clean database before seeding")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Build entities without writing them")
	seedCmd.Flags().BoolVar(&seedFast, "skip-bcrypt", false, "Store the demo password unhashed")
	rootCmd.AddCommand(seedCmd)
}
