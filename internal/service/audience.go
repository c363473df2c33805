package service

import (
	"context"

	"monolith/internal/repository"
)

// EventPublisher pushes realtime events to a user.
type EventPublisher interface {
	Emit(ctx context.Context, userID uint, eventType string, payload any) error
}

// Audience resolves which authors a viewer can see content from.
type Audience struct {
	followRepo     repository.FollowRepository
	connectionRepo repository.ConnectionRepository
}

// NewAudience returns a new Audience.
func NewAudience(followRepo repository.FollowRepository, connectionRepo repository.ConnectionRepository) *Audience {
	return &Audience{followRepo: followRepo, connectionRepo: connectionRepo}
}

// VisibleAuthors returns viewerID plus everyone they follow or are connected
// with, without duplicates. The viewer is always first.
func (a *Audience) VisibleAuthors(ctx context.Context, viewerID uint) ([]uint, error) {
	following, err := a.followRepo.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	peers, err := a.connectionRepo.AcceptedPeerIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	seen := map[uint]struct{}{viewerID: {}}
	ids := []uint{viewerID}
	for _, group := range [][]uint{following, peers} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
