package service

import (
	"context"
	"strings"

	"monolith/internal/models"
	"monolith/internal/repository"
	"monolith/internal/validation"
)

// DiscoverLimit caps discovery results.
const DiscoverLimit = 20

// UpdateProfileInput carries the optional fields of a profile edit. A nil
// field is left unchanged. File parts win over URL strings.
type UpdateProfileInput struct {
	UserName       *string `json:"user_name" validate:"omitempty,max=50,username"`
	FullName       *string `json:"full_name" validate:"omitempty,max=255"`
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	Location       *string `json:"location" validate:"omitempty,max=255"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,url"`
	CoverPhoto     *string `json:"cover_photo" validate:"omitempty,url"`

	ProfilePictureFile *UploadInput `json:"-"`
	CoverPhotoFile     *UploadInput `json:"-"`
}

// ProfileWithPosts is a user together with their posts.
type ProfileWithPosts struct {
	Profile *models.User   `json:"profile"`
	Posts   []*models.Post `json:"posts"`
}

// UserService provides profile and discovery logic.
type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	postRepo   repository.PostRepository
	media      *MediaService
}

// NewUserService returns a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	postRepo repository.PostRepository,
	media *MediaService,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		postRepo:   postRepo,
		media:      media,
	}
}

// GetProfile returns a user with their followers and following lists.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withFollowLists(ctx, user)
}

// ProfileWithPosts returns profileID's account and posts as seen by viewerID.
func (s *UserService) ProfileWithPosts(ctx context.Context, viewerID, profileID uint) (*ProfileWithPosts, error) {
	if profileID == 0 {
		profileID = viewerID
	}
	exists, err := s.userRepo.Exists(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundMessage("Profile not found")
	}
	user, err := s.userRepo.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByAuthors(ctx, []uint{profileID}, viewerID)
	if err != nil {
		return nil, err
	}
	return &ProfileWithPosts{Profile: user, Posts: posts}, nil
}

// UpdateProfile applies in to userID's account and returns the refreshed profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.Profile, error) {
	trim(in.UserName)
	trim(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.UserName != nil && *in.UserName != "" && *in.UserName != user.UserName {
		taken, err := s.userRepo.IsUserNameTaken(ctx, *in.UserName, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.NewFieldValidationError("user_name", "This username is already in use. Please choose another one.")
		}
		user.UserName = *in.UserName
	}
	if in.FullName != nil && *in.FullName != "" {
		user.FullName = *in.FullName
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if in.Location != nil {
		user.Location = *in.Location
	}
	if in.ProfilePicture != nil {
		user.ProfilePicture = *in.ProfilePicture
	}
	if in.CoverPhoto != nil {
		user.CoverPhoto = *in.CoverPhoto
	}

	if in.ProfilePictureFile != nil {
		url, err := s.media.Store(ctx, userID, MediaAvatar, "profile_picture", *in.ProfilePictureFile)
		if err != nil {
			return nil, err
		}
		user.ProfilePicture = url
	}
	if in.CoverPhotoFile != nil {
		url, err := s.media.Store(ctx, userID, MediaCover, "cover_photo", *in.CoverPhotoFile)
		if err != nil {
			return nil, err
		}
		user.CoverPhoto = url
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.withFollowLists(ctx, user)
}

// Discover searches other users by name, handle, email or location.
func (s *UserService) Discover(ctx context.Context, viewerID uint, input string) ([]models.User, error) {
	input = strings.TrimSpace(input)
	if len(input) > 255 {
		return nil, models.NewFieldValidationError("input", "The input field must not be greater than 255 characters.")
	}
	return s.userRepo.Search(ctx, input, viewerID, DiscoverLimit)
}

func (s *UserService) withFollowLists(ctx context.Context, user *models.User) (*models.Profile, error) {
	followers, err := s.followRepo.Followers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	following, err := s.followRepo.Following(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{User: *user, Followers: nonNilUsers(followers), Following: nonNilUsers(following)}, nil
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func nonNilUsers(users []models.User) []models.User {
	if users == nil {
		return []models.User{}
	}
	return users
}
