// Package bootstrap establishes the runtime dependencies shared by the
// server and the admin tooling.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"monolith/internal/cache"
	"monolith/internal/config"
	"monolith/internal/database"
	"monolith/internal/models"
	"monolith/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedPreset names a seed preset applied when the users table is empty.
	SeedPreset string
}

// InitRuntime connects to DB and Redis and prepares development data.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := Prepare(cfg, db, opts); err != nil {
		return nil, nil, err
	}
	return db, r, nil
}

// Prepare ensures the development root admin and applies the seed preset
// to an empty database.
func Prepare(cfg *config.Config, db *gorm.DB, opts Options) error {
	if err := ensureDevRootAdmin(cfg, db); err != nil {
		return fmt.Errorf("failed to bootstrap development root admin: %w", err)
	}

	preset := strings.TrimSpace(opts.SeedPreset)
	if preset == "" {
		return nil
	}
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	// The root admin alone does not count as seeded data.
	if count > 1 {
		log.Printf("skipping seed preset %q: database already has %d users", preset, count)
		return nil
	}
	if err := seed.NewSeeder(db, seed.Options{StoryTTL: cfg.StoryTTL()}).ApplyPreset(preset); err != nil {
		return fmt.Errorf("failed to apply seed preset %q: %w", preset, err)
	}
	return nil
}

func ensureDevRootAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	userName := strings.TrimSpace(cfg.DevRootUsername)
	if userName == "" {
		userName = "monolith_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@monolith.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return fmt.Errorf("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.First(&root, 1).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				ID:       1,
				FullName: "Root Admin",
				UserName: userName,
				Email:    email,
				Password: string(hashedPassword),
				Bio:      models.DefaultBio,
				IsAdmin:  true,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
		case findErr != nil:
			return findErr
		default:
			updates := map[string]any{"is_admin": true}
			if cfg.DevRootForceCredentials {
				updates["user_name"] = userName
				updates["email"] = email
				updates["password"] = string(hashedPassword)
			}
			if err := tx.Model(&models.User{}).Where("id = ?", 1).Updates(updates).Error; err != nil {
				return err
			}
		}

		// Explicit ID insertion leaves the postgres sequence behind.
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(`
				SELECT setval(
					pg_get_serial_sequence('users', 'id'),
					GREATEST((SELECT COALESCE(MAX(id), 1) FROM users), 1),
					true
				)
			`).Error; err != nil {
				return fmt.Errorf("failed to reset users sequence: %w", err)
			}
		}

		return nil
	}); err != nil {
		return err
	}

	log.Printf("development root admin bootstrap ensured for user ID 1 (%s)", email)
	return nil
}
