package repository

import (
	"context"

	"monolith/internal/models"
	"monolith/internal/observability"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	// Thread returns every message between a and b in either direction, newest first.
	Thread(ctx context.Context, a, b uint) ([]models.Message, error)
	// MarkSeen flags all unseen messages from fromID to toID as seen.
	MarkSeen(ctx context.Context, fromID, toID uint) (int64, error)
	UnreadCounts(ctx context.Context, userID uint) ([]models.UnreadCount, error)
	// LatestPerCounterpart returns the newest message exchanged with each
	// counterpart of userID, newest first, capped at limit.
	LatestPerCounterpart(ctx context.Context, userID uint, limit int) ([]models.Message, error)
}

type messageRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, log: observability.NewRepoLogger("messages")}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "message_id", msg.ID, "to_user_id", msg.ToUserID)
	return nil
}

func (r *messageRepository) Thread(ctx context.Context, a, b uint) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Order("id DESC").
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *messageRepository) MarkSeen(ctx context.Context, fromID, toID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("from_user_id = ? AND to_user_id = ? AND seen = ?", fromID, toID, false).
		Update("seen", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) UnreadCounts(ctx context.Context, userID uint) ([]models.UnreadCount, error) {
	counts := []models.UnreadCount{}
	if err := readDB(r.db).WithContext(ctx).Model(&models.Message{}).
		Select("from_user_id, COUNT(*) AS count").
		Where("to_user_id = ? AND seen = ?", userID, false).
		Group("from_user_id").
		Order("from_user_id ASC").
		Scan(&counts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

func (r *messageRepository) LatestPerCounterpart(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 5
	}
	var ids []uint
	if err := readDB(r.db).WithContext(ctx).Raw(
		`SELECT MAX(id) FROM messages
		 WHERE from_user_id = ? OR to_user_id = ?
		 GROUP BY CASE WHEN from_user_id = ? THEN to_user_id ELSE from_user_id END`,
		userID, userID, userID,
	).Scan(&ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(ids) == 0 {
		return []models.Message{}, nil
	}

	var msgs []models.Message
	if err := readDB(r.db).WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}
