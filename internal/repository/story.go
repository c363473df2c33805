package repository

import (
	"context"
	"errors"
	"time"

	"monolith/internal/models"
	"monolith/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoryRepository defines persistence operations for stories.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id uint) (*models.Story, error)
	// Delete removes a story and reports whether it existed.
	Delete(ctx context.Context, id uint) (bool, error)
	// ListActive returns unexpired stories by authorIDs, newest first.
	ListActive(ctx context.Context, authorIDs []uint, now time.Time) ([]models.Story, error)
	// DeleteExpired removes every story whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// AddViewer records viewerID once and reports whether it was newly added.
	AddViewer(ctx context.Context, id, viewerID uint) (bool, error)
}

type storyRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *gorm.DB) StoryRepository {
	return &storyRepository{db: db, log: observability.NewRepoLogger("stories")}
}

func (r *storyRepository) Create(ctx context.Context, story *models.Story) error {
	if story.ViewCount == nil {
		story.ViewCount = []uint{}
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(story).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "story_id", story.ID, "expires_at", story.ExpiresAt)

	// The response carries the owner the same way listed stories do.
	if err := r.db.WithContext(ctx).First(&story.User, story.UserID).Error; err != nil {
		r.log.LogError(ctx, err, "load owner")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *storyRepository) GetByID(ctx context.Context, id uint) (*models.Story, error) {
	var story models.Story
	if err := r.db.WithContext(ctx).Preload("User").First(&story, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Story", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &story, nil
}

func (r *storyRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Story{}, id)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, "story_id", id)
	}
	return res.RowsAffected > 0, nil
}

func (r *storyRepository) ListActive(ctx context.Context, authorIDs []uint, now time.Time) ([]models.Story, error) {
	if len(authorIDs) == 0 {
		return []models.Story{}, nil
	}
	var stories []models.Story
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("user_id IN ? AND expires_at > ?", authorIDs, now).
		Order("created_at DESC").
		Order("id DESC").
		Find(&stories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return stories, nil
}

func (r *storyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Story{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete_expired")
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *storyRepository) AddViewer(ctx context.Context, id, viewerID uint) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story models.Story
		if err := lockForUpdate(tx).First(&story, id).Error; err != nil {
			return err
		}
		if story.HasViewer(viewerID) {
			return nil
		}
		added = true
		story.ViewCount = append(story.ViewCount, viewerID)
		return tx.Model(&story).Select("view_count").Updates(&models.Story{ViewCount: story.ViewCount}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, models.NewNotFoundError("Story", id)
		}
		return false, models.NewInternalError(err)
	}
	return added, nil
}
