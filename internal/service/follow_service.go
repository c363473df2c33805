package service

import (
	"context"

	"monolith/internal/models"
	"monolith/internal/repository"
)

// FollowResult is the outcome of a follow toggle.
type FollowResult struct {
	Following      bool   `json:"following"`
	FollowingCount int64  `json:"following_count"`
	Message        string `json:"message"`
}

// FollowService manages one-directional follow edges.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

// NewFollowService returns a new FollowService.
func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository) *FollowService {
	return &FollowService{followRepo: followRepo, userRepo: userRepo}
}

// Toggle follows targetID if userID does not follow them yet, otherwise unfollows.
func (s *FollowService) Toggle(ctx context.Context, userID, targetID uint) (*FollowResult, error) {
	exists, err := s.userRepo.Exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundMessage("User not found.")
	}
	if userID == targetID {
		return nil, models.NewBadRequestError("You cannot follow yourself.")
	}

	following, err := s.followRepo.Toggle(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	count, err := s.followRepo.CountFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &FollowResult{Following: following, FollowingCount: count, Message: "You unfollowed this user."}
	if following {
		res.Message = "Now you are following this user."
	}
	return res, nil
}
