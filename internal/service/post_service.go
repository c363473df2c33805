package service

import (
	"context"
	"strings"

	"monolith/internal/models"
	"monolith/internal/repository"
	"monolith/internal/validation"
)

// CreatePostInput is the body of POST /api/posts.
type CreatePostInput struct {
	Content   string          `json:"content"`
	PostType  models.PostType `json:"post_type" validate:"required,oneof=text image text_with_image"`
	ImageURLs []string        `json:"image_urls" validate:"omitempty,dive,url"`
}

// LikeResult is the outcome of a like toggle.
type LikeResult struct {
	IsLiked    bool   `json:"isLiked"`
	LikesCount int64  `json:"likes_count"`
	Message    string `json:"message"`
}

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	audience *Audience
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, audience *Audience) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		audience: audience,
	}
}

// Create publishes a post for userID.
func (s *PostService) Create(ctx context.Context, userID uint, in CreatePostInput) (*models.Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	needsText := in.PostType == models.PostTypeText || in.PostType == models.PostTypeTextWithImage
	needsImages := in.PostType == models.PostTypeImage || in.PostType == models.PostTypeTextWithImage
	fields := map[string][]string{}
	if needsText && in.Content == "" {
		fields["content"] = []string{"The content field is required."}
	}
	if needsImages && len(in.ImageURLs) == 0 {
		fields["image_urls"] = []string{"The image urls field is required."}
	}
	if len(fields) > 0 {
		return nil, models.NewFieldsValidationError(fields)
	}

	urls := in.ImageURLs
	if urls == nil {
		urls = []string{}
	}
	post := &models.Post{
		UserID:    userID,
		Content:   in.Content,
		PostType:  in.PostType,
		ImageURLs: urls,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, userID)
}

// Feed returns posts from the viewer, the users they follow and their
// connections, newest first.
func (s *PostService) Feed(ctx context.Context, viewerID uint) ([]*models.Post, error) {
	authors, err := s.audience.VisibleAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return s.postRepo.ListByAuthors(ctx, authors, viewerID)
}

// ByAuthor returns authorID's posts annotated for viewerID.
func (s *PostService) ByAuthor(ctx context.Context, viewerID, authorID uint) ([]*models.Post, error) {
	if authorID != viewerID {
		exists, err := s.userRepo.Exists(ctx, authorID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.NewNotFoundMessage("User not found.")
		}
	}
	return s.postRepo.ListByAuthors(ctx, []uint{authorID}, viewerID)
}

// ToggleLike likes postID for userID, or removes an existing like.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	liked, count, err := s.postRepo.ToggleLike(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	res := &LikeResult{IsLiked: liked, LikesCount: count, Message: "Post unliked"}
	if liked {
		res.Message = "Post liked"
	}
	return res, nil
}
