package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monolith/internal/jobs"
	"monolith/internal/models"
	"monolith/internal/observability"
	"monolith/internal/repository"
	"monolith/internal/validation"
)

// DefaultStoryTTL is how long a story stays visible when no TTL is configured.
const DefaultStoryTTL = 24 * time.Hour

// CreateStoryInput is the body of POST /api/stories/add. Media and MediaURL
// are aliases; Media wins when both are set.
type CreateStoryInput struct {
	Content         string                `json:"content"`
	MediaType       models.StoryMediaType `json:"media_type" validate:"required,oneof=text image video"`
	BackgroundColor string                `json:"background_color" validate:"max=32"`
	Media           string                `json:"media" validate:"omitempty,url"`
	MediaURL        string                `json:"media_url" validate:"omitempty,url"`
}

// StoryExpirePayload is the body of a story expiry job.
type StoryExpirePayload struct {
	StoryID uint `json:"story_id"`
}

// StoryKey is the job key of a story's expiry, so rescheduling replaces it.
func StoryKey(id uint) string {
	return fmt.Sprintf("story:%d", id)
}

// StoryService manages ephemeral stories.
type StoryService struct {
	storyRepo repository.StoryRepository
	audience  *Audience
	queue     jobs.Queue
	ttl       time.Duration
	now       func() time.Time
}

// NewStoryService returns a new StoryService. A non-positive ttl falls back
// to DefaultStoryTTL.
func NewStoryService(storyRepo repository.StoryRepository, audience *Audience, queue jobs.Queue, ttl time.Duration) *StoryService {
	if ttl <= 0 {
		ttl = DefaultStoryTTL
	}
	return &StoryService{
		storyRepo: storyRepo,
		audience:  audience,
		queue:     queue,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Create stores a story for userID and schedules its removal.
func (s *StoryService) Create(ctx context.Context, userID uint, in CreateStoryInput) (*models.Story, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	media := in.Media
	if media == "" {
		media = in.MediaURL
	}

	now := s.now().UTC()
	story := &models.Story{
		UserID:          userID,
		Content:         in.Content,
		MediaURL:        media,
		MediaType:       in.MediaType,
		BackgroundColor: in.BackgroundColor,
		ViewCount:       []uint{},
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if err := s.storyRepo.Create(ctx, story); err != nil {
		return nil, err
	}
	s.scheduleExpiry(ctx, story)
	return story, nil
}

func (s *StoryService) scheduleExpiry(ctx context.Context, story *models.Story) {
	if s.queue == nil {
		return
	}
	job, err := jobs.NewJob(jobs.TypeStoryExpire, StoryKey(story.ID), StoryExpirePayload{StoryID: story.ID}, story.ExpiresAt)
	if err == nil {
		err = s.queue.Enqueue(ctx, job)
	}
	if err != nil {
		// The sweeper still removes the story once it is past expiry.
		observability.GlobalLogger.WarnContext(ctx, "failed to schedule story expiry",
			slog.Uint64("story_id", uint64(story.ID)),
			slog.String("error", err.Error()),
		)
	}
}

// List returns unexpired stories from the viewer, their connections and the
// users they follow, newest first.
func (s *StoryService) List(ctx context.Context, viewerID uint) ([]models.Story, error) {
	authors, err := s.audience.VisibleAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.storyRepo.ListActive(ctx, authors, s.now())
}

// View records viewerID as having seen the story. Owners are never counted.
func (s *StoryService) View(ctx context.Context, viewerID, storyID uint) (*models.Story, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if !story.ExpiresAt.After(s.now()) {
		return nil, models.NewNotFoundMessage("Story not found.")
	}
	if story.UserID == viewerID || story.HasViewer(viewerID) {
		return story, nil
	}

	added, err := s.storyRepo.AddViewer(ctx, storyID, viewerID)
	if err != nil {
		return nil, err
	}
	if added {
		story.ViewCount = append(story.ViewCount, viewerID)
	}
	return story, nil
}

// Expire deletes a story. Deleting a story that is already gone is not an error.
func (s *StoryService) Expire(ctx context.Context, storyID uint) (bool, error) {
	deleted, err := s.storyRepo.Delete(ctx, storyID)
	if err != nil {
		return false, err
	}
	if deleted {
		observability.StoriesExpired.WithLabelValues("job").Inc()
	}
	return deleted, nil
}

// HandleExpire is the job handler for jobs.TypeStoryExpire.
func (s *StoryService) HandleExpire(ctx context.Context, job jobs.Job) error {
	var p StoryExpirePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return fmt.Errorf("decode story expire payload: %w", err)
	}
	_, err := s.Expire(ctx, p.StoryID)
	return err
}

// Sweep deletes every story past expiry at now. It matches jobs.SweepFunc.
func (s *StoryService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return s.storyRepo.DeleteExpired(ctx, now)
}
