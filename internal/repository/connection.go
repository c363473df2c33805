package repository

import (
	"context"
	"errors"

	"monolith/internal/models"
	"monolith/internal/observability"

	"gorm.io/gorm"
)

// ErrConnectionExists is returned by Create when a row already exists for the pair.
var ErrConnectionExists = errors.New("connection already exists for pair")

// ConnectionRepository defines the interface for connection request data operations.
type ConnectionRepository interface {
	// InTx runs fn against a repository bound to a single transaction.
	InTx(ctx context.Context, fn func(ConnectionRepository) error) error
	// GetBetween returns the row for the unordered pair, or nil if none exists.
	// Inside InTx on postgres the row is locked for update.
	GetBetween(ctx context.Context, userA, userB uint) (*models.Connection, error)
	Create(ctx context.Context, conn *models.Connection) error
	// AcceptPending flips a pending from->to request to accepted and reports
	// whether a row matched.
	AcceptPending(ctx context.Context, fromID, toID uint) (bool, error)
	// DeletePending removes a pending from->to request and reports whether a row matched.
	DeletePending(ctx context.Context, fromID, toID uint) (bool, error)
	AcceptedPeerIDs(ctx context.Context, userID uint) ([]uint, error)
	AcceptedPeers(ctx context.Context, userID uint) ([]models.User, error)
	// PendingSent lists users userID has a pending request to.
	PendingSent(ctx context.Context, userID uint) ([]models.User, error)
	// PendingIncoming lists users with a pending request to userID.
	PendingIncoming(ctx context.Context, userID uint) ([]models.User, error)
}

// connectionRepository implements ConnectionRepository
type connectionRepository struct {
	db   *gorm.DB
	inTx bool
	log  *observability.RepoLogger
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db, log: observability.NewRepoLogger("connections")}
}

func (r *connectionRepository) InTx(ctx context.Context, fn func(ConnectionRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&connectionRepository{db: tx, inTx: true, log: r.log})
	})
}

func (r *connectionRepository) GetBetween(ctx context.Context, userA, userB uint) (*models.Connection, error) {
	low, high := models.OrderedPair(userA, userB)

	q := r.db.WithContext(ctx)
	if r.inTx {
		q = lockForUpdate(q)
	}

	var conn models.Connection
	if err := q.Where("user_low = ? AND user_high = ?", low, high).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conn, nil
}

func (r *connectionRepository) Create(ctx context.Context, conn *models.Connection) error {
	// A savepoint keeps the surrounding postgres transaction usable when the
	// unique pair index rejects a concurrent duplicate.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(conn).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrConnectionExists
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, "from_user_id", conn.FromUserID, "to_user_id", conn.ToUserID)
	return nil
}

func (r *connectionRepository) AcceptPending(ctx context.Context, fromID, toID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromID, toID, models.ConnectionStatusPending).
		Update("status", models.ConnectionStatusAccepted)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogUpdate(ctx, "from_user_id", fromID, "to_user_id", toID, "status", "accepted")
	}
	return res.RowsAffected > 0, nil
}

func (r *connectionRepository) DeletePending(ctx context.Context, fromID, toID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromID, toID, models.ConnectionStatusPending).
		Delete(&models.Connection{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, "from_user_id", fromID, "to_user_id", toID)
	}
	return res.RowsAffected > 0, nil
}

func (r *connectionRepository) AcceptedPeerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var conns []models.Connection
	if err := readDB(r.db).WithContext(ctx).
		Select("from_user_id", "to_user_id").
		Where("status = ? AND (from_user_id = ? OR to_user_id = ?)", models.ConnectionStatusAccepted, userID, userID).
		Find(&conns).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uint, 0, len(conns))
	for _, c := range conns {
		if c.FromUserID == userID {
			ids = append(ids, c.ToUserID)
		} else {
			ids = append(ids, c.FromUserID)
		}
	}
	return ids, nil
}

func (r *connectionRepository) AcceptedPeers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	// Find all accepted connections for the user and get the other user in each pair
	if err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN connections c ON (users.id = c.from_user_id OR users.id = c.to_user_id)").
		Where("c.status = ? AND (c.from_user_id = ? OR c.to_user_id = ?) AND users.id <> ?",
			models.ConnectionStatusAccepted, userID, userID, userID).
		Order("c.updated_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *connectionRepository) PendingSent(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN connections c ON c.to_user_id = users.id").
		Where("c.from_user_id = ? AND c.status = ?", userID, models.ConnectionStatusPending).
		Order("c.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *connectionRepository) PendingIncoming(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN connections c ON c.from_user_id = users.id").
		Where("c.to_user_id = ? AND c.status = ?", userID, models.ConnectionStatusPending).
		Order("c.created_at DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
