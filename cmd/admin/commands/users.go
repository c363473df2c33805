package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"monolith/internal/models"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <user_id>",
	Short: "Promote a user to admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, args[0], true)
	},
}

var demoteCmd = &cobra.Command{
	Use:   "demote <user_id>",
	Short: "Demote a user from admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, args[0], false)
	},
}

var listAdminsCmd = &cobra.Command{
	Use:   "list-admins",
	Short: "List all admins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := connect(applySchema)
		if err != nil {
			return err
		}
		return listAdmins(db, cmd.OutOrStdout())
	},
}

func withUser(cmd *cobra.Command, rawID string, admin bool) error {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid user id %q", rawID)
	}
	_, db, err := connect(applySchema)
	if err != nil {
		return err
	}
	return setAdmin(db, cmd.OutOrStdout(), uint(id), admin)
}

// setAdmin flips the admin role of one user.
func setAdmin(db *gorm.DB, out io.Writer, userID uint, admin bool) error {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user with ID %d not found", userID)
		}
		return fmt.Errorf("database error: %w", err)
	}

	if user.IsAdmin == admin {
		state := "an admin"
		if !admin {
			state = "not an admin"
		}
		_, _ = fmt.Fprintf(out, "User %s (ID: %d) is already %s\n", user.UserName, user.ID, state)
		return nil
	}

	if err := db.Model(&user).Update("is_admin", admin).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	verb := "promoted %s (ID: %d) to admin"
	if !admin {
		verb = "demoted %s (ID: %d) from admin"
	}
	_, _ = fmt.Fprintf(out, "✅ Successfully "+verb+"\n", user.UserName, user.ID)
	return nil
}

func listAdmins(db *gorm.DB, out io.Writer) error {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Order("id").Find(&admins).Error; err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}
	if len(admins) == 0 {
		_, _ = fmt.Fprintln(out, "No admins found in the system")
		return nil
	}
	_, _ = fmt.Fprintf(out, "Admins (%d):\n", len(admins))
	for _, a := range admins {
		_, _ = fmt.Fprintf(out, "  %d\t%s\t%s\n", a.ID, a.UserName, a.Email)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(promoteCmd, demoteCmd, listAdminsCmd)
}
