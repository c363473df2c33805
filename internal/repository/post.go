package repository

import (
	"context"
	"errors"

	"monolith/internal/models"
	"monolith/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	// ListByAuthors returns posts by any of authorIDs, newest first.
	ListByAuthors(ctx context.Context, authorIDs []uint, viewerID uint) ([]*models.Post, error)
	// ToggleLike flips userID's like on postID and returns the new state and count.
	ToggleLike(ctx context.Context, userID, postID uint) (liked bool, count int64, err error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "post_id", post.ID, "user_id", post.UserID)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	if err := r.applyPostDetails(readDB(r.db).WithContext(ctx), viewerID).
		Preload("User").
		First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	posts := []*models.Post{&post}
	if err := r.attachLikers(ctx, posts); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint, viewerID uint) ([]*models.Post, error) {
	if len(authorIDs) == 0 {
		return []*models.Post{}, nil
	}
	defer observability.TrackQuery("list_by_authors", "posts")()

	var posts []*models.Post
	if err := r.applyPostDetails(readDB(r.db).WithContext(ctx), viewerID).
		Preload("User").
		Where("posts.user_id IN ?", authorIDs).
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachLikers(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// applyPostDetails adds subqueries to fetch like count and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked_by_me", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked_by_me")
}

// attachLikers fills Likes with the ids of users who liked each post.
func (r *postRepository) attachLikers(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		p.Likes = []uint{}
	}

	var likes []models.Like
	if err := readDB(r.db).WithContext(ctx).
		Select("post_id", "user_id").
		Where("post_id IN ?", ids).
		Order("id ASC").
		Find(&likes).Error; err != nil {
		return models.NewInternalError(err)
	}

	byPost := make(map[uint][]uint, len(posts))
	for _, l := range likes {
		byPost[l.PostID] = append(byPost[l.PostID], l.UserID)
	}
	for _, p := range posts {
		if likers, ok := byPost[p.ID]; ok {
			p.Likes = likers
		}
	}
	return nil
}

func (r *postRepository) ToggleLike(ctx context.Context, userID, postID uint) (bool, int64, error) {
	var (
		liked bool
		count int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := lockForUpdate(tx).Select("id").First(&post, postID).Error; err != nil {
			return err
		}

		// Hard delete; a zero row count means there was nothing to unlike.
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			liked = true
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.Like{UserID: userID, PostID: postID}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, models.NewNotFoundError("Post", postID)
		}
		r.log.LogError(ctx, err, "toggle_like")
		return false, 0, models.NewInternalError(err)
	}
	return liked, count, nil
}
