package commands

import (
	"time"

	"monolith/internal/repository"

	"github.com/spf13/cobra"
)

var sweepStoriesCmd = &cobra.Command{
	Use:   "sweep-stories",
	Short: "Delete every expired story",
	Long: `Delete stories whose expiry has passed. The server removes each story
through its delayed expiry job; this sweep catches stories whose job was
lost, for example when Redis was flushed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := connect(applySchema)
		if err != nil {
			return err
		}
		deleted, err := repository.NewStoryRepository(db).DeleteExpired(contextOf(cmd), time.Now())
		if err != nil {
			return err
		}
		cmd.Printf("deleted %d expired stories\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepStoriesCmd)
}
