package repository

import (
	"context"
	"errors"

	"monolith/internal/cache"
	"monolith/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	Exists(ctx context.Context, id uint) (bool, error)
	IsUserNameTaken(ctx context.Context, userName string, excludeID uint) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	var user models.User
	if err := readDB(r.db).WithContext(ctx).Where("user_name = ?", userName).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) IsUserNameTaken(ctx context.Context, userName string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("user_name = ?", userName)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// profileColumns are the fields a profile edit may write. Credentials and
// flags are changed through their own paths, and the cached copy of a user
// carries no password hash.
var profileColumns = []string{"user_name", "full_name", "bio", "location", "profile_picture", "cover_photo"}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).
		Model(&models.User{ID: user.ID}).
		Select(profileColumns).
		Updates(user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewFieldValidationError("user_name", "This username is already in use. Please choose another one.")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// Search matches query case-insensitively against user name, email, full
// name and location, annotating each hit with its follower count.
func (r *userRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := likePattern(query)

	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Select("users.*, (SELECT COUNT(*) FROM follows WHERE follows.followed_id = users.id) AS followers_count").
		Where("users.id <> ?", excludeID).
		Where(
			"(LOWER(users.user_name) LIKE ? ESCAPE '\\' OR LOWER(users.email) LIKE ? ESCAPE '\\' OR LOWER(users.full_name) LIKE ? ESCAPE '\\' OR LOWER(users.location) LIKE ? ESCAPE '\\')",
			pattern, pattern, pattern, pattern,
		).
		Order("users.id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
