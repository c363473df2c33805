package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"monolith/internal/models"
	"monolith/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserProfile handles GET /api/user/profile
// @Summary Profile with posts
// @Description Returns a profile and its posts; defaults to the current user
// @Tags users
// @Produce json
// @Param profile_id query int false "Profile user ID"
// @Success 200 {object} object{success=bool,profile=models.User,posts=[]models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/profile [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profileID := c.QueryInt("profile_id", 0)
	if profileID < 0 {
		profileID = 0
	}

	out, err := s.userService.ProfileWithPosts(c.UserContext(), currentUserID(c), uint(profileID))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"profile": out.Profile,
		"posts":   out.Posts,
	})
}

// GetSelectedUser handles GET /api/users/:id
// @Summary Get a user with follow lists
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,user=models.Profile}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id} [get]
func (s *Server) GetSelectedUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.userService.GetProfile(c.UserContext(), id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    profile,
	})
}

// UpdateProfile handles POST /api/user/update. It accepts JSON or a multipart
// form whose profile_picture and cover_photo may be file parts.
// @Summary Update current user's profile
// @Tags users
// @Accept json,mpfd
// @Produce json
// @Param request body service.UpdateProfileInput false "Profile fields"
// @Success 200 {object} object{success=bool,user=models.Profile,message=string}
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/update [post]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var in service.UpdateProfileInput
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewBadRequestError("Invalid multipart form"))
		}
		in, err = profileInputFromForm(form)
		if err != nil {
			return mapServiceError(c, err)
		}
	} else if len(c.Body()) > 0 {
		if err := parseBody(c, &in); err != nil {
			return nil
		}
	}

	profile, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    profile,
		"message": "Profile updated successfully",
	})
}

// UpdateProfilePicture handles PUT /api/user/profile-picture
// @Summary Set profile picture URL
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{profile_picture=string} true "Picture URL"
// @Success 200 {object} object{success=bool,user=models.Profile}
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user/profile-picture [put]
func (s *Server) UpdateProfilePicture(c *fiber.Ctx) error {
	var req struct {
		ProfilePicture string `json:"profile_picture"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if strings.TrimSpace(req.ProfilePicture) == "" {
		return mapServiceError(c, models.NewFieldValidationError("profile_picture",
			"The profile picture field is required."))
	}

	profile, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c),
		service.UpdateProfileInput{ProfilePicture: &req.ProfilePicture})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    profile,
	})
}

// DiscoverUsers handles POST /api/discover-users
// @Summary Search users
// @Description Case-insensitive match on user name, email, full name and location
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{input=string} false "Search input"
// @Success 200 {object} object{success=bool,users=[]models.User}
// @Security BearerAuth
// @Router /discover-users [post]
func (s *Server) DiscoverUsers(c *fiber.Ctx) error {
	var req struct {
		Input string `json:"input" form:"input"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	users, err := s.userService.Discover(c.UserContext(), currentUserID(c), req.Input)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
	})
}

// ToggleFollow handles POST /api/toggle-follow
// @Summary Follow or unfollow a user
// @Tags users
// @Accept json
// @Produce json
// @Param request body object{id=int} true "Target user"
// @Success 200 {object} object{success=bool,following=bool,following_count=int,message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /toggle-follow [post]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	targetID, err := parseBodyID(c)
	if err != nil {
		return nil
	}

	res, err := s.followService.Toggle(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":         true,
		"following":       res.Following,
		"following_count": res.FollowingCount,
		"message":         res.Message,
	})
}

// profileInputFromForm maps multipart values and file parts onto the
// profile edit input. Absent keys stay nil.
func profileInputFromForm(form *multipart.Form) (service.UpdateProfileInput, error) {
	var in service.UpdateProfileInput
	value := func(key string) *string {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	in.UserName = value("user_name")
	in.FullName = value("full_name")
	in.Bio = value("bio")
	in.Location = value("location")
	in.ProfilePicture = value("profile_picture")
	in.CoverPhoto = value("cover_photo")

	var err error
	if in.ProfilePictureFile, err = uploadFromForm(form, "profile_picture"); err != nil {
		return in, err
	}
	if in.CoverPhotoFile, err = uploadFromForm(form, "cover_photo"); err != nil {
		return in, err
	}
	return in, nil
}

func uploadFromForm(form *multipart.Form, key string) (*service.UploadInput, error) {
	files := form.File[key]
	if len(files) == 0 {
		return nil, nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewFieldValidationError(key, "The "+strings.ReplaceAll(key, "_", " ")+" failed to upload.")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("read upload %s: %w", key, err))
	}
	return &service.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}
