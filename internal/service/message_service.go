package service

import (
	"context"
	"log/slog"
	"strings"

	"monolith/internal/models"
	"monolith/internal/notifications"
	"monolith/internal/observability"
	"monolith/internal/repository"
	"monolith/internal/validation"
)

// RecentConversationLimit caps the recent conversations list.
const RecentConversationLimit = 5

// SendMessageInput is the body of POST /api/messages/send.
type SendMessageInput struct {
	ToUserID uint   `json:"to_user_id" validate:"required"`
	Text     string `json:"text"`
	MediaURL string `json:"media_url"`
}

// MessageService handles direct messages.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	events      EventPublisher
}

// NewMessageService returns a new MessageService. events may be nil.
func NewMessageService(messageRepo repository.MessageRepository, userRepo repository.UserRepository, events EventPublisher) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		events:      events,
	}
}

// Send stores a message from fromID and pushes it to the recipient.
func (s *MessageService) Send(ctx context.Context, fromID uint, in SendMessageInput) (*models.Message, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.MediaURL = strings.TrimSpace(in.MediaURL)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.Exists(ctx, in.ToUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewFieldValidationError("to_user_id", "The selected to user id is invalid.")
	}
	if in.Text == "" && in.MediaURL == "" {
		return nil, models.NewFieldValidationError("text", "The text field is required when media url is not present.")
	}

	msg := &models.Message{
		FromUserID:  fromID,
		ToUserID:    in.ToUserID,
		Text:        in.Text,
		MediaURL:    in.MediaURL,
		MessageType: models.MessageTypeText,
		Seen:        false,
	}
	if in.MediaURL != "" {
		msg.MessageType = models.MessageTypeImage
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.Emit(ctx, in.ToUserID, notifications.EventMessageCreated, msg); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to publish message event",
				slog.Uint64("message_id", uint64(msg.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return msg, nil
}

// Thread returns the conversation between userID and peerID, newest first,
// and marks the peer's messages to userID as seen.
func (s *MessageService) Thread(ctx context.Context, userID, peerID uint) ([]models.Message, error) {
	if peerID == 0 {
		return nil, models.NewFieldValidationError("to_user_id", "The to user id field is required.")
	}
	msgs, err := s.messageRepo.Thread(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.messageRepo.MarkSeen(ctx, peerID, userID); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Unread returns unseen message counts addressed to userID, per sender.
func (s *MessageService) Unread(ctx context.Context, userID uint) ([]models.UnreadCount, error) {
	counts, err := s.messageRepo.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []models.UnreadCount{}
	}
	return counts, nil
}

// Recent returns the latest message with each of userID's most recent
// counterparts, newest first.
func (s *MessageService) Recent(ctx context.Context, userID uint) ([]models.Conversation, error) {
	latest, err := s.messageRepo.LatestPerCounterpart(ctx, userID, RecentConversationLimit)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return []models.Conversation{}, nil
	}

	peerIDs := make([]uint, 0, len(latest))
	for _, m := range latest {
		peerIDs = append(peerIDs, counterpart(m, userID))
	}
	users, err := s.userRepo.GetByIDs(ctx, peerIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	counts, err := s.messageRepo.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread := make(map[uint]int64, len(counts))
	for _, c := range counts {
		unread[c.FromUserID] = c.Count
	}

	out := make([]models.Conversation, 0, len(latest))
	for _, m := range latest {
		peer := counterpart(m, userID)
		u, ok := byID[peer]
		if !ok {
			continue
		}
		out = append(out, models.Conversation{User: u, LastMessage: m, UnreadCount: unread[peer]})
	}
	return out, nil
}

func counterpart(m models.Message, userID uint) uint {
	if m.FromUserID == userID {
		return m.ToUserID
	}
	return m.FromUserID
}
