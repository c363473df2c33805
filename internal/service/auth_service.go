package service

import (
	"context"
	"strings"
	"time"

	"monolith/internal/cache"
	"monolith/internal/middleware"
	"monolith/internal/models"
	"monolith/internal/repository"
	"monolith/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// RegisterInput is the body of POST /api/register.
type RegisterInput struct {
	FullName             string `json:"full_name" validate:"required,max=255"`
	UserName             string `json:"user_name" validate:"required,max=50,username"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,password"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
	ProfilePicture       string `json:"profile_picture" validate:"omitempty,url"`
}

// LoginInput is the body of POST /api/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is an authenticated user with their signed token.
type Session struct {
	User   *models.User
	Token  string
	Claims *middleware.SessionClaims
}

// AuthService handles registration, login and logout.
type AuthService struct {
	userRepo   repository.UserRepository
	jwtSecret  string
	sessionTTL time.Duration
}

// NewAuthService returns a new AuthService.
func NewAuthService(userRepo repository.UserRepository, jwtSecret string, sessionTTL time.Duration) *AuthService {
	return &AuthService{userRepo: userRepo, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

// Register creates an account and opens a session for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.UserName = strings.TrimSpace(in.UserName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	taken, err := s.userRepo.IsUserNameTaken(ctx, in.UserName, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, models.NewFieldValidationError("user_name", "This username is already in use. Please pick another one.")
	}
	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewFieldValidationError("email", "The email has already been taken.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		FullName:       in.FullName,
		UserName:       in.UserName,
		Email:          in.Email,
		Password:       string(hashed),
		Bio:            models.DefaultBio,
		ProfilePicture: in.ProfilePicture,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login verifies credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, models.NewFieldValidationError("email", "The provided credentials are incorrect.")
	}
	return s.issue(user)
}

// Logout revokes the session token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.SessionClaims) error {
	if claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return cache.Revoke(ctx, claims.JTI, ttl)
}

// Me returns the session user.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *AuthService) issue(user *models.User) (*Session, error) {
	token, claims, err := middleware.IssueToken(s.jwtSecret, user.ID, s.sessionTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{User: user, Token: token, Claims: claims}, nil
}
