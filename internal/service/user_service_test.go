package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"monolith/internal/config"
	"monolith/internal/models"
	"monolith/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	t.Parallel()

	t.Run("username too long", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(noopUserRepo(), noopFollowRepo(), noopPostRepo(), nil)
		_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{
			UserName: strPtr(strings.Repeat("x", 51)),
		})
		assertValidationError(t, err)
	})

	t.Run("bio too long", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(noopUserRepo(), noopFollowRepo(), noopPostRepo(), nil)
		_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{
			Bio: strPtr(strings.Repeat("x", 501)),
		})
		assertValidationError(t, err)
	})

	t.Run("cover photo must be a url", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(noopUserRepo(), noopFollowRepo(), noopPostRepo(), nil)
		_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{
			CoverPhoto: strPtr("not a url"),
		})
		assertValidationError(t, err)
	})
}

func TestUserService_UpdateProfile_UserNameTaken(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, UserName: "old"}, nil
	}
	users.isUserNameTakenFn = func(_ context.Context, name string, exclude uint) (bool, error) {
		assert.Equal(t, uint(1), exclude)
		return name == "taken", nil
	}
	svc := NewUserService(users, noopFollowRepo(), noopPostRepo(), nil)

	_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{UserName: strPtr("taken")})
	appErr := requireAppError(t, err, models.CodeValidation)
	assert.Equal(t, []string{"This username is already in use. Please choose another one."}, appErr.Fields["user_name"])
}

func TestUserService_UpdateProfile_PartialUpdate(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, UserName: "old", FullName: "Old Name", Bio: "my bio"}, nil
	}
	var saved *models.User
	users.updateFn = func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	}
	follows := noopFollowRepo()
	follows.followersFn = func(context.Context, uint) ([]models.User, error) {
		return []models.User{{ID: 9}}, nil
	}
	svc := NewUserService(users, follows, noopPostRepo(), nil)

	profile, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{
		UserName: strPtr(" newname "),
		Location: strPtr("Lisbon"),
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "newname", saved.UserName)
	assert.Equal(t, "Old Name", saved.FullName, "full name should be unchanged when not provided")
	assert.Equal(t, "my bio", saved.Bio)
	assert.Equal(t, "Lisbon", saved.Location)
	assert.Equal(t, []models.User{{ID: 9}}, profile.Followers)
	assert.Equal(t, []models.User{}, profile.Following)
}

func TestUserService_UpdateProfile_StoresUploadedAvatar(t *testing.T) {
	dir := t.TempDir()
	media := NewMediaService(&config.Config{MediaDir: dir, MediaBaseURL: "/media", ImageMaxUploadSizeMB: 1})
	users := noopUserRepo()
	var saved *models.User
	users.updateFn = func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	}
	svc := NewUserService(users, noopFollowRepo(), noopPostRepo(), media)

	_, err := svc.UpdateProfile(context.Background(), 1, UpdateProfileInput{
		ProfilePicture:     strPtr("https://example.com/ignored.png"),
		ProfilePictureFile: &UploadInput{Filename: "me.png", ContentType: "image/png", Content: testutil.TinyPNG(t, 900, 600)},
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.True(t, strings.HasPrefix(saved.ProfilePicture, "/media/avatar/"), saved.ProfilePicture)

	rel := strings.TrimPrefix(saved.ProfilePicture, "/media/")
	_, statErr := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	assert.NoError(t, statErr)
}

func TestUserService_ProfileWithPosts(t *testing.T) {
	users := noopUserRepo()
	users.existsFn = func(_ context.Context, id uint) (bool, error) { return id == 1, nil }
	posts := noopPostRepo()
	posts.listByAuthorsFn = func(_ context.Context, ids []uint, viewer uint) ([]*models.Post, error) {
		return []*models.Post{{ID: 3, UserID: ids[0]}}, nil
	}
	svc := NewUserService(users, noopFollowRepo(), posts, nil)

	out, err := svc.ProfileWithPosts(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint(1), out.Profile.ID)
	require.Len(t, out.Posts, 1)

	_, err = svc.ProfileWithPosts(context.Background(), 1, 2)
	appErr := requireAppError(t, err, models.CodeNotFound)
	assert.Equal(t, "Profile not found", appErr.Message)
}

func TestUserService_Discover(t *testing.T) {
	users := noopUserRepo()
	users.searchFn = func(_ context.Context, q string, exclude uint, limit int) ([]models.User, error) {
		assert.Equal(t, "ann", q)
		assert.Equal(t, uint(4), exclude)
		assert.Equal(t, DiscoverLimit, limit)
		return []models.User{{ID: 1, FollowersCount: 3}}, nil
	}
	svc := NewUserService(users, noopFollowRepo(), noopPostRepo(), nil)

	got, err := svc.Discover(context.Background(), 4, "  ann ")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got[0].FollowersCount)
}

func TestFollowService_Toggle(t *testing.T) {
	follows := noopFollowRepo()
	following := false
	follows.toggleFn = func(context.Context, uint, uint) (bool, error) {
		following = !following
		return following, nil
	}
	follows.countFollowingFn = func(context.Context, uint) (int64, error) {
		if following {
			return 1, nil
		}
		return 0, nil
	}
	svc := NewFollowService(follows, noopUserRepo())
	ctx := context.Background()

	res, err := svc.Toggle(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, &FollowResult{Following: true, FollowingCount: 1, Message: "Now you are following this user."}, res)

	res, err = svc.Toggle(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, &FollowResult{Following: false, FollowingCount: 0, Message: "You unfollowed this user."}, res)
}

func TestFollowService_Rejections(t *testing.T) {
	users := noopUserRepo()
	svc := NewFollowService(noopFollowRepo(), users)

	_, err := svc.Toggle(context.Background(), 1, 1)
	appErr := requireAppError(t, err, models.CodeBadRequest)
	assert.Equal(t, "You cannot follow yourself.", appErr.Message)

	users.existsFn = func(context.Context, uint) (bool, error) { return false, nil }
	_, err = svc.Toggle(context.Background(), 1, 2)
	appErr = requireAppError(t, err, models.CodeNotFound)
	assert.Equal(t, "User not found.", appErr.Message)
}

func TestMediaService_RejectsNonImages(t *testing.T) {
	media := NewMediaService(&config.Config{MediaDir: t.TempDir(), ImageMaxUploadSizeMB: 1})

	_, err := media.Store(context.Background(), 1, MediaCover, "cover_photo", UploadInput{Content: []byte("plain text")})
	appErr := requireAppError(t, err, models.CodeValidation)
	assert.Equal(t, []string{"The cover photo field must be an image."}, appErr.Fields["cover_photo"])

	big := make([]byte, 2*1024*1024)
	_, err = media.Store(context.Background(), 1, MediaCover, "cover_photo", UploadInput{Content: big})
	requireAppError(t, err, models.CodeValidation)
}

func TestMediaService_ScalesIntoBox(t *testing.T) {
	dir := t.TempDir()
	media := NewMediaService(&config.Config{MediaDir: dir, MediaBaseURL: "/media/", ImageMaxUploadSizeMB: 5})

	url1, err := media.Store(context.Background(), 7, MediaCover, "cover_photo", UploadInput{Content: testutil.TinyPNG(t, 3200, 900)})
	require.NoError(t, err)
	url2, err := media.Store(context.Background(), 7, MediaCover, "cover_photo", UploadInput{Content: testutil.TinyPNG(t, 3200, 900)})
	require.NoError(t, err)
	assert.Equal(t, url1, url2, "identical uploads map to one file")
	assert.True(t, strings.HasPrefix(url1, "/media/cover/"))
	assert.True(t, strings.HasSuffix(url1, ".webp"))
}
