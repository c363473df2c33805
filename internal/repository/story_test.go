package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"monolith/internal/models"
	"monolith/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryRepository_ActiveAndExpired(t *testing.T) {
	db := setupSQLite(t)
	repo := NewStoryRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a")
	now := time.Now()

	live := &models.Story{UserID: a.ID, Content: "live", MediaType: models.StoryMediaText, ExpiresAt: now.Add(time.Hour)}
	stale := &models.Story{UserID: a.ID, Content: "stale", MediaType: models.StoryMediaText, ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, stale))
	assert.NotNil(t, live.ViewCount)
	assert.Equal(t, a.ID, live.User.ID, "create loads the owner")
	assert.Equal(t, "a", live.User.UserName)

	stories, err := repo.ListActive(ctx, []uint{a.ID}, now)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, live.ID, stories[0].ID)
	assert.Equal(t, "a", stories[0].User.UserName)

	removed, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	existed, err := repo.Delete(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = repo.Delete(ctx, live.ID)
	require.NoError(t, err)
	assert.False(t, existed, "second delete is a no-op")
}

func TestStoryRepository_AddViewer(t *testing.T) {
	db := setupSQLite(t)
	repo := NewStoryRepository(db)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	story := &models.Story{UserID: a.ID, MediaType: models.StoryMediaImage, MediaURL: "https://cdn/s.webp", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, story))

	added, err := repo.AddViewer(ctx, story.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddViewer(ctx, story.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := repo.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, got.ViewCount)

	_, err = repo.AddViewer(ctx, 999, b.ID)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
