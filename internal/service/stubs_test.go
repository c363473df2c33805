package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"monolith/internal/models"
	"monolith/internal/repository"

	"github.com/stretchr/testify/require"
)

type userRepoStub struct {
	getByIDFn         func(context.Context, uint) (*models.User, error)
	getByIDsFn        func(context.Context, []uint) ([]models.User, error)
	getByEmailFn      func(context.Context, string) (*models.User, error)
	getByUserNameFn   func(context.Context, string) (*models.User, error)
	existsFn          func(context.Context, uint) (bool, error)
	isUserNameTakenFn func(context.Context, string, uint) (bool, error)
	createFn          func(context.Context, *models.User) error
	updateFn          func(context.Context, *models.User) error
	setAdminFn        func(context.Context, uint, bool) error
	searchFn          func(context.Context, string, uint, int) ([]models.User, error)
	listAdminsFn      func(context.Context) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	return s.getByUserNameFn(ctx, userName)
}
func (s *userRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *userRepoStub) IsUserNameTaken(ctx context.Context, userName string, excludeID uint) (bool, error) {
	return s.isUserNameTakenFn(ctx, userName, excludeID)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return s.setAdminFn(ctx, id, admin)
}
func (s *userRepoStub) Search(ctx context.Context, q string, excludeID uint, limit int) ([]models.User, error) {
	return s.searchFn(ctx, q, excludeID, limit)
}
func (s *userRepoStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.listAdminsFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
		getByIDsFn: func(_ context.Context, ids []uint) ([]models.User, error) {
			out := make([]models.User, 0, len(ids))
			for _, id := range ids {
				out = append(out, models.User{ID: id})
			}
			return out, nil
		},
		getByEmailFn:      func(context.Context, string) (*models.User, error) { return nil, nil },
		getByUserNameFn:   func(context.Context, string) (*models.User, error) { return nil, nil },
		existsFn:          func(context.Context, uint) (bool, error) { return true, nil },
		isUserNameTakenFn: func(context.Context, string, uint) (bool, error) { return false, nil },
		createFn:          func(context.Context, *models.User) error { return nil },
		updateFn:          func(context.Context, *models.User) error { return nil },
		setAdminFn:        func(context.Context, uint, bool) error { return nil },
		searchFn:          func(context.Context, string, uint, int) ([]models.User, error) { return nil, nil },
		listAdminsFn:      func(context.Context) ([]models.User, error) { return nil, nil },
	}
}

type followRepoStub struct {
	toggleFn         func(context.Context, uint, uint) (bool, error)
	isFollowingFn    func(context.Context, uint, uint) (bool, error)
	followersFn      func(context.Context, uint) ([]models.User, error)
	followingFn      func(context.Context, uint) ([]models.User, error)
	followingIDsFn   func(context.Context, uint) ([]uint, error)
	countFollowingFn func(context.Context, uint) (int64, error)
}

func (s *followRepoStub) Toggle(ctx context.Context, followerID, followedID uint) (bool, error) {
	return s.toggleFn(ctx, followerID, followedID)
}
func (s *followRepoStub) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	return s.isFollowingFn(ctx, followerID, followedID)
}
func (s *followRepoStub) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followersFn(ctx, userID)
}
func (s *followRepoStub) Following(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followingFn(ctx, userID)
}
func (s *followRepoStub) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.followingIDsFn(ctx, userID)
}
func (s *followRepoStub) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	return s.countFollowingFn(ctx, userID)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		toggleFn:         func(context.Context, uint, uint) (bool, error) { return true, nil },
		isFollowingFn:    func(context.Context, uint, uint) (bool, error) { return false, nil },
		followersFn:      func(context.Context, uint) ([]models.User, error) { return nil, nil },
		followingFn:      func(context.Context, uint) ([]models.User, error) { return nil, nil },
		followingIDsFn:   func(context.Context, uint) ([]uint, error) { return nil, nil },
		countFollowingFn: func(context.Context, uint) (int64, error) { return 0, nil },
	}
}

// connectionRepoStub keeps rows in memory so the state machine can be driven
// end to end. Individual methods can still be overridden.
type connectionRepoStub struct {
	mu     sync.Mutex
	rows   map[[2]uint]*models.Connection
	nextID uint

	createFn     func(context.Context, *models.Connection) error
	getBetweenFn func(context.Context, uint, uint) (*models.Connection, error)
}

func newConnectionRepoStub() *connectionRepoStub {
	return &connectionRepoStub{rows: map[[2]uint]*models.Connection{}}
}

func (s *connectionRepoStub) InTx(_ context.Context, fn func(repository.ConnectionRepository) error) error {
	return fn(s)
}

func (s *connectionRepoStub) GetBetween(ctx context.Context, a, b uint) (*models.Connection, error) {
	if s.getBetweenFn != nil {
		return s.getBetweenFn(ctx, a, b)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	low, high := models.OrderedPair(a, b)
	if c, ok := s.rows[[2]uint{low, high}]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (s *connectionRepoStub) Create(ctx context.Context, conn *models.Connection) error {
	if s.createFn != nil {
		return s.createFn(ctx, conn)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	low, high := models.OrderedPair(conn.FromUserID, conn.ToUserID)
	key := [2]uint{low, high}
	if _, ok := s.rows[key]; ok {
		return repository.ErrConnectionExists
	}
	s.nextID++
	conn.ID = s.nextID
	conn.UserLow, conn.UserHigh = low, high
	cp := *conn
	s.rows[key] = &cp
	return nil
}

func (s *connectionRepoStub) find(from, to uint) ([2]uint, *models.Connection) {
	low, high := models.OrderedPair(from, to)
	key := [2]uint{low, high}
	c, ok := s.rows[key]
	if !ok || c.FromUserID != from || c.ToUserID != to || c.Status != models.ConnectionStatusPending {
		return key, nil
	}
	return key, c
}

func (s *connectionRepoStub) AcceptPending(_ context.Context, from, to uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c := s.find(from, to)
	if c == nil {
		return false, nil
	}
	c.Status = models.ConnectionStatusAccepted
	return true, nil
}

func (s *connectionRepoStub) DeletePending(_ context.Context, from, to uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, c := s.find(from, to)
	if c == nil {
		return false, nil
	}
	delete(s.rows, key)
	return true, nil
}

func (s *connectionRepoStub) AcceptedPeerIDs(_ context.Context, userID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for _, c := range s.rows {
		if c.Status != models.ConnectionStatusAccepted {
			continue
		}
		switch userID {
		case c.FromUserID:
			ids = append(ids, c.ToUserID)
		case c.ToUserID:
			ids = append(ids, c.FromUserID)
		}
	}
	return ids, nil
}

func (s *connectionRepoStub) AcceptedPeers(ctx context.Context, userID uint) ([]models.User, error) {
	ids, _ := s.AcceptedPeerIDs(ctx, userID)
	return usersFor(ids), nil
}

func (s *connectionRepoStub) PendingSent(_ context.Context, userID uint) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for _, c := range s.rows {
		if c.Status == models.ConnectionStatusPending && c.FromUserID == userID {
			ids = append(ids, c.ToUserID)
		}
	}
	return usersFor(ids), nil
}

func (s *connectionRepoStub) PendingIncoming(_ context.Context, userID uint) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for _, c := range s.rows {
		if c.Status == models.ConnectionStatusPending && c.ToUserID == userID {
			ids = append(ids, c.FromUserID)
		}
	}
	return usersFor(ids), nil
}

func (s *connectionRepoStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func usersFor(ids []uint) []models.User {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.User{ID: id})
	}
	return out
}

type postRepoStub struct {
	createFn        func(context.Context, *models.Post) error
	getByIDFn       func(context.Context, uint, uint) (*models.Post, error)
	listByAuthorsFn func(context.Context, []uint, uint) ([]*models.Post, error)
	toggleLikeFn    func(context.Context, uint, uint) (bool, int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) ListByAuthors(ctx context.Context, authorIDs []uint, viewerID uint) ([]*models.Post, error) {
	return s.listByAuthorsFn(ctx, authorIDs, viewerID)
}
func (s *postRepoStub) ToggleLike(ctx context.Context, userID, postID uint) (bool, int64, error) {
	return s.toggleLikeFn(ctx, userID, postID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		listByAuthorsFn: func(context.Context, []uint, uint) ([]*models.Post, error) { return nil, nil },
		toggleLikeFn:    func(context.Context, uint, uint) (bool, int64, error) { return true, 1, nil },
	}
}

type commentRepoStub struct {
	createFn      func(context.Context, *models.Comment) error
	getByIDFn     func(context.Context, uint) (*models.Comment, error)
	listByPostFn  func(context.Context, uint) ([]*models.Comment, error)
	countByPostFn func(context.Context, uint) (int64, error)
	deleteFn      func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) CountByPost(ctx context.Context, postID uint) (int64, error) {
	return s.countByPostFn(ctx, postID)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:      func(context.Context, *models.Comment) error { return nil },
		getByIDFn:     func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByPostFn:  func(context.Context, uint) ([]*models.Comment, error) { return nil, nil },
		countByPostFn: func(context.Context, uint) (int64, error) { return 0, nil },
		deleteFn:      func(context.Context, uint) error { return nil },
	}
}

type storyRepoStub struct {
	createFn        func(context.Context, *models.Story) error
	getByIDFn       func(context.Context, uint) (*models.Story, error)
	deleteFn        func(context.Context, uint) (bool, error)
	listActiveFn    func(context.Context, []uint, time.Time) ([]models.Story, error)
	deleteExpiredFn func(context.Context, time.Time) (int64, error)
	addViewerFn     func(context.Context, uint, uint) (bool, error)
}

func (s *storyRepoStub) Create(ctx context.Context, story *models.Story) error {
	return s.createFn(ctx, story)
}
func (s *storyRepoStub) GetByID(ctx context.Context, id uint) (*models.Story, error) {
	return s.getByIDFn(ctx, id)
}
func (s *storyRepoStub) Delete(ctx context.Context, id uint) (bool, error) {
	return s.deleteFn(ctx, id)
}
func (s *storyRepoStub) ListActive(ctx context.Context, authorIDs []uint, now time.Time) ([]models.Story, error) {
	return s.listActiveFn(ctx, authorIDs, now)
}
func (s *storyRepoStub) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteExpiredFn(ctx, now)
}
func (s *storyRepoStub) AddViewer(ctx context.Context, id, viewerID uint) (bool, error) {
	return s.addViewerFn(ctx, id, viewerID)
}

func noopStoryRepo() *storyRepoStub {
	return &storyRepoStub{
		createFn: func(_ context.Context, st *models.Story) error {
			st.ID = 7
			return nil
		},
		getByIDFn:       func(_ context.Context, id uint) (*models.Story, error) { return &models.Story{ID: id}, nil },
		deleteFn:        func(context.Context, uint) (bool, error) { return true, nil },
		listActiveFn:    func(context.Context, []uint, time.Time) ([]models.Story, error) { return nil, nil },
		deleteExpiredFn: func(context.Context, time.Time) (int64, error) { return 0, nil },
		addViewerFn:     func(context.Context, uint, uint) (bool, error) { return true, nil },
	}
}

type messageRepoStub struct {
	createFn               func(context.Context, *models.Message) error
	threadFn               func(context.Context, uint, uint) ([]models.Message, error)
	markSeenFn             func(context.Context, uint, uint) (int64, error)
	unreadCountsFn         func(context.Context, uint) ([]models.UnreadCount, error)
	latestPerCounterpartFn func(context.Context, uint, int) ([]models.Message, error)
}

func (s *messageRepoStub) Create(ctx context.Context, msg *models.Message) error {
	return s.createFn(ctx, msg)
}
func (s *messageRepoStub) Thread(ctx context.Context, a, b uint) ([]models.Message, error) {
	return s.threadFn(ctx, a, b)
}
func (s *messageRepoStub) MarkSeen(ctx context.Context, fromID, toID uint) (int64, error) {
	return s.markSeenFn(ctx, fromID, toID)
}
func (s *messageRepoStub) UnreadCounts(ctx context.Context, userID uint) ([]models.UnreadCount, error) {
	return s.unreadCountsFn(ctx, userID)
}
func (s *messageRepoStub) LatestPerCounterpart(ctx context.Context, userID uint, limit int) ([]models.Message, error) {
	return s.latestPerCounterpartFn(ctx, userID, limit)
}

func noopMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		createFn: func(_ context.Context, m *models.Message) error {
			m.ID = 1
			return nil
		},
		threadFn:               func(context.Context, uint, uint) ([]models.Message, error) { return nil, nil },
		markSeenFn:             func(context.Context, uint, uint) (int64, error) { return 0, nil },
		unreadCountsFn:         func(context.Context, uint) ([]models.UnreadCount, error) { return nil, nil },
		latestPerCounterpartFn: func(context.Context, uint, int) ([]models.Message, error) { return nil, nil },
	}
}

type emittedEvent struct {
	UserID  uint
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []emittedEvent
	err    error
}

func (p *recordingPublisher) Emit(_ context.Context, userID uint, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, emittedEvent{UserID: userID, Type: eventType, Payload: payload})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	requireAppError(t, err, models.CodeValidation)
}
