package bootstrap

import (
	"testing"

	"monolith/internal/config"
	"monolith/internal/models"
	"monolith/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootUsername:  "root",
		DevRootEmail:     "Root@Example.com",
		DevRootPassword:  "s3cret-pass",
		StoryTTLHours:    24,
	}
}

func TestEnsureDevRootAdmin_CreatesRoot(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	require.NoError(t, ensureDevRootAdmin(devConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, 1).Error)
	assert.Equal(t, "root", root.UserName)
	assert.Equal(t, "root@example.com", root.Email)
	assert.True(t, root.IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("s3cret-pass")))
}

func TestEnsureDevRootAdmin_PromotesExistingUser(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	existing := testutil.CreateUser(t, db, "first")
	require.Equal(t, uint(1), existing.ID)

	require.NoError(t, ensureDevRootAdmin(devConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, 1).Error)
	assert.True(t, root.IsAdmin)
	assert.Equal(t, "first", root.UserName, "credentials are kept unless forced")

	cfg := devConfig()
	cfg.DevRootForceCredentials = true
	require.NoError(t, ensureDevRootAdmin(cfg, db))
	require.NoError(t, db.First(&root, 1).Error)
	assert.Equal(t, "root", root.UserName)
}

func TestEnsureDevRootAdmin_Skipped(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"production", func(c *config.Config) { c.Env = "production" }},
		{"disabled", func(c *config.Config) { c.DevBootstrapRoot = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewSQLiteDB(t)
			cfg := devConfig()
			tt.mutate(cfg)
			require.NoError(t, ensureDevRootAdmin(cfg, db))

			var count int64
			require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestEnsureDevRootAdmin_RequiresPassword(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	cfg := devConfig()
	cfg.DevRootPassword = ""
	assert.Error(t, ensureDevRootAdmin(cfg, db))
}

func TestPrepare_SeedsEmptyDatabaseOnce(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	cfg := devConfig()
	cfg.DevBootstrapRoot = false

	require.NoError(t, Prepare(cfg, db, Options{SeedPreset: "small"}))
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(8), users)

	require.NoError(t, Prepare(cfg, db, Options{SeedPreset: "small"}))
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(8), users)

	assert.Error(t, Prepare(cfg, testutil.NewSQLiteDB(t), Options{SeedPreset: "galactic"}))
}
