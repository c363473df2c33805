package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"monolith/internal/jobs"
	"monolith/internal/mailer"
	"monolith/internal/models"
	"monolith/internal/notifications"
	"monolith/internal/observability"
	"monolith/internal/repository"
)

// ConnectionAction names what a toggle did.
type ConnectionAction string

const (
	ActionSent            ConnectionAction = "sent"
	ActionCancelled       ConnectionAction = "cancelled"
	ActionPendingIncoming ConnectionAction = "pending_incoming"
	ActionConnected       ConnectionAction = "connected"
)

// ToggleResult is the outcome of a connection toggle. Success is false when
// the request was refused without a change.
type ToggleResult struct {
	Success    bool             `json:"success"`
	Action     ConnectionAction `json:"action"`
	Message    string           `json:"message"`
	TargetUser *models.User     `json:"target_user,omitempty"`
}

// ConnectionsOverview lists every relationship of a user.
type ConnectionsOverview struct {
	Connections         []models.User `json:"connections"`
	Followers           []models.User `json:"followers"`
	Following           []models.User `json:"following"`
	PendingConnections  []models.User `json:"pendingConnections"`
	IncomingConnections []models.User `json:"incomingConnections"`
}

// ConnectionEmailPayload is the body of a connection request email job.
type ConnectionEmailPayload struct {
	FromUserID uint `json:"from_user_id"`
	ToUserID   uint `json:"to_user_id"`
}

// ConnectionService drives the connection request lifecycle.
type ConnectionService struct {
	connectionRepo repository.ConnectionRepository
	userRepo       repository.UserRepository
	followRepo     repository.FollowRepository
	queue          jobs.Queue
	events         EventPublisher
	mail           mailer.Mailer
	frontendURL    string
	now            func() time.Time
}

// NewConnectionService returns a new ConnectionService. queue, events and
// mail may be nil, in which case the side effect is skipped.
func NewConnectionService(
	connectionRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	queue jobs.Queue,
	events EventPublisher,
	mail mailer.Mailer,
	frontendURL string,
) *ConnectionService {
	return &ConnectionService{
		connectionRepo: connectionRepo,
		userRepo:       userRepo,
		followRepo:     followRepo,
		queue:          queue,
		events:         events,
		mail:           mail,
		frontendURL:    frontendURL,
		now:            time.Now,
	}
}

// Toggle sends a request to targetID, or cancels the one userID already sent.
func (s *ConnectionService) Toggle(ctx context.Context, userID, targetID uint) (*ToggleResult, error) {
	if userID == targetID {
		return nil, models.NewBadRequestError("You can't connect with yourself.")
	}
	exists, err := s.userRepo.Exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundMessage("User not found.")
	}

	var (
		res     *ToggleResult
		created bool
	)
	err = s.connectionRepo.InTx(ctx, func(repo repository.ConnectionRepository) error {
		existing, err := repo.GetBetween(ctx, userID, targetID)
		if err != nil {
			return err
		}

		if existing == nil {
			conn := &models.Connection{
				FromUserID: userID,
				ToUserID:   targetID,
				Status:     models.ConnectionStatusPending,
			}
			err := repo.Create(ctx, conn)
			if err == nil {
				created = true
				res = &ToggleResult{Success: true, Action: ActionSent, Message: "Connection request sent."}
				return nil
			}
			if !errors.Is(err, repository.ErrConnectionExists) {
				return err
			}
			// A concurrent request won the insert; report what it left behind.
			existing, err = repo.GetBetween(ctx, userID, targetID)
			if err != nil {
				return err
			}
			if existing == nil {
				return models.NewConflictError("Connection changed concurrently, please retry.")
			}
			res = existingStateResult(existing, userID)
			return nil
		}

		if existing.Status == models.ConnectionStatusPending && existing.FromUserID == userID {
			if _, err := repo.DeletePending(ctx, userID, targetID); err != nil {
				return err
			}
			res = &ToggleResult{Success: true, Action: ActionCancelled, Message: "Connection request cancelled."}
			return nil
		}
		res = existingStateResult(existing, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Action == ActionSent {
		target, err := s.userRepo.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		res.TargetUser = target
		if created {
			s.afterRequestSent(ctx, userID, targetID)
		}
	}
	return res, nil
}

// existingStateResult describes a row the caller found but did not create.
func existingStateResult(conn *models.Connection, viewerID uint) *ToggleResult {
	switch conn.StateFor(viewerID) {
	case models.ConnectionStateConnected:
		return &ToggleResult{Action: ActionConnected, Message: "You are already connected."}
	case models.ConnectionStatePendingReceived:
		return &ToggleResult{Action: ActionPendingIncoming, Message: "You already have a pending connection request from this user."}
	default:
		// Our own request already exists; nothing new was sent.
		return &ToggleResult{Success: true, Action: ActionSent, Message: "Connection request sent."}
	}
}

func (s *ConnectionService) afterRequestSent(ctx context.Context, fromID, toID uint) {
	if s.queue != nil {
		job, err := jobs.NewJob(jobs.TypeConnectionRequestEmail, "", ConnectionEmailPayload{FromUserID: fromID, ToUserID: toID}, s.now())
		if err == nil {
			err = s.queue.Enqueue(ctx, job)
		}
		if err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to enqueue connection request email",
				slog.Uint64("from_user_id", uint64(fromID)),
				slog.Uint64("to_user_id", uint64(toID)),
				slog.String("error", err.Error()),
			)
		}
	}
	s.emit(ctx, toID, notifications.EventConnectionRequested, fromID)
}

// Accept accepts the pending request requesterID sent to userID.
func (s *ConnectionService) Accept(ctx context.Context, userID, requesterID uint) (*models.User, error) {
	ok, err := s.connectionRepo.AcceptPending(ctx, requesterID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundMessage("Connection request not found or already handled.")
	}

	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, requesterID, notifications.EventConnectionAccepted, userID)
	return requester, nil
}

// Decline removes the pending request requesterID sent to userID.
func (s *ConnectionService) Decline(ctx context.Context, userID, requesterID uint) error {
	ok, err := s.connectionRepo.DeletePending(ctx, requesterID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundMessage("Connection request not found or already handled.")
	}
	return nil
}

// List returns every relationship list of userID.
func (s *ConnectionService) List(ctx context.Context, userID uint) (*ConnectionsOverview, error) {
	out := &ConnectionsOverview{}
	var err error
	if out.Connections, err = s.connectionRepo.AcceptedPeers(ctx, userID); err != nil {
		return nil, err
	}
	if out.Followers, err = s.followRepo.Followers(ctx, userID); err != nil {
		return nil, err
	}
	if out.Following, err = s.followRepo.Following(ctx, userID); err != nil {
		return nil, err
	}
	if out.PendingConnections, err = s.connectionRepo.PendingSent(ctx, userID); err != nil {
		return nil, err
	}
	if out.IncomingConnections, err = s.connectionRepo.PendingIncoming(ctx, userID); err != nil {
		return nil, err
	}
	out.Connections = nonNilUsers(out.Connections)
	out.Followers = nonNilUsers(out.Followers)
	out.Following = nonNilUsers(out.Following)
	out.PendingConnections = nonNilUsers(out.PendingConnections)
	out.IncomingConnections = nonNilUsers(out.IncomingConnections)
	return out, nil
}

// Status reports the pair's state from userID's side.
func (s *ConnectionService) Status(ctx context.Context, userID, targetID uint) (models.ConnectionState, error) {
	if userID == targetID {
		return models.ConnectionStateNone, nil
	}
	conn, err := s.connectionRepo.GetBetween(ctx, userID, targetID)
	if err != nil {
		return "", err
	}
	return conn.StateFor(userID), nil
}

// HandleRequestEmail is the job handler that mails the recipient of a request.
func (s *ConnectionService) HandleRequestEmail(ctx context.Context, job jobs.Job) error {
	var p ConnectionEmailPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode connection email payload: %w", err)
	}
	if s.mail == nil {
		return nil
	}

	users, err := s.userRepo.GetByIDs(ctx, []uint{p.FromUserID, p.ToUserID})
	if err != nil {
		return err
	}
	var from, to *models.User
	for i := range users {
		switch users[i].ID {
		case p.FromUserID:
			from = &users[i]
		case p.ToUserID:
			to = &users[i]
		}
	}
	if from == nil || to == nil {
		// One side deleted their account since the request.
		return nil
	}

	// Skip the mail when the request was cancelled or handled in the meantime.
	conn, err := s.connectionRepo.GetBetween(ctx, p.FromUserID, p.ToUserID)
	if err != nil {
		return err
	}
	if conn.StateFor(p.FromUserID) != models.ConnectionStatePendingSent {
		return nil
	}

	return s.mail.Send(ctx, mailer.ConnectionRequest(to.Email, from.FullName, from.UserName, s.frontendURL))
}

func (s *ConnectionService) emit(ctx context.Context, toID uint, eventType string, fromID uint) {
	if s.events == nil {
		return
	}
	from, err := s.userRepo.GetByID(ctx, fromID)
	if err != nil {
		return
	}
	if err := s.events.Emit(ctx, toID, eventType, map[string]any{"user": from}); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("type", eventType),
			slog.Uint64("user_id", uint64(toID)),
			slog.String("error", err.Error()),
		)
	}
}
