package database

import (
	"testing"

	modelspkg "monolith/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesEphemeralAndGraphTables(t *testing.T) {
	var haveStory, haveConnection bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Story:
			haveStory = true
		case *modelspkg.Connection:
			haveConnection = true
		}
	}
	assert.True(t, haveStory, "PersistentModels should include Story")
	assert.True(t, haveConnection, "PersistentModels should include Connection")
}

func TestPersistentModels_AutoMigrateOnSQLite(t *testing.T) {
	db := newSQLite(t)
	require.NoError(t, db.AutoMigrate(PersistentModels()...))

	for _, table := range []string{"users", "follows", "connections", "posts", "likes", "comments", "stories", "messages"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&modelspkg.Connection{}, "idx_connection_pair"))
}
