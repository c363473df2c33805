package service

import (
	"context"
	"strings"

	"monolith/internal/models"
	"monolith/internal/repository"
	"monolith/internal/validation"
)

// CreateCommentInput is the body of POST /api/comments/:post/add.
type CreateCommentInput struct {
	Content string `json:"content" validate:"required,max=500"`
}

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

func (s *CommentService) Create(ctx context.Context, userID, postID uint, in CreateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: in.Content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) List(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) Count(ctx context.Context, postID uint) (int64, error) {
	return s.commentRepo.CountByPost(ctx, postID)
}

// Delete removes a comment. Only its author or the owner of the post may do so.
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		post, err := s.postRepo.GetByID(ctx, comment.PostID, 0)
		if err != nil {
			return err
		}
		if post.UserID != userID {
			return models.NewForbiddenError("Unauthorized to delete this comment.")
		}
	}
	return s.commentRepo.Delete(ctx, commentID)
}
