package repository

import (
	"context"

	"monolith/internal/models"
	"monolith/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines persistence operations for follow edges.
type FollowRepository interface {
	// Toggle removes the edge if present, otherwise creates it. It reports
	// whether the follower follows the target afterwards.
	Toggle(ctx context.Context, followerID, followedID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error)
	Followers(ctx context.Context, userID uint) ([]models.User, error)
	Following(ctx context.Context, userID uint) ([]models.User, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
}

type followRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db, log: observability.NewRepoLogger("follows")}
}

func (r *followRepository) Toggle(ctx context.Context, followerID, followedID uint) (bool, error) {
	defer observability.TrackQuery("toggle", "follows")()

	following := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followed_id = ?", followerID, followedID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		following = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: followerID, FollowedID: followedID}).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "toggle")
		return false, models.NewInternalError(err)
	}

	if following {
		r.log.LogCreate(ctx, "follower_id", followerID, "followed_id", followedID)
	} else {
		r.log.LogDelete(ctx, "follower_id", followerID, "followed_id", followedID)
	}
	return following, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN follows f ON f.follower_id = users.id").
		Where("f.followed_id = ?", userID).
		Order("f.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) Following(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN follows f ON f.followed_id = users.id").
		Where("f.follower_id = ?", userID).
		Order("f.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("followed_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *followRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
