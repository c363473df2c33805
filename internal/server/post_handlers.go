package server

import (
	"monolith/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description text needs content, image needs image_urls, text_with_image needs both
// @Tags posts
// @Accept json
// @Produce json
// @Param request body service.CreatePostInput true "Post data"
// @Success 200 {object} object{success=bool,message=string,post=models.Post}
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post created successfully",
		"post":    post,
	})
}

// GetFeedPosts handles GET /api/posts/feed-posts
// @Summary Feed
// @Description Posts by the viewer, their followees and accepted connections, newest first
// @Tags posts
// @Produce json
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Security BearerAuth
// @Router /posts/feed-posts [get]
func (s *Server) GetFeedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Feed(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"posts":   posts,
	})
}

// GetMyPosts handles GET /api/my-posts
// @Summary Current user's posts
// @Tags posts
// @Produce json
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Security BearerAuth
// @Router /my-posts [get]
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID := currentUserID(c)
	return s.respondWithAuthorPosts(c, userID, userID)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary A user's posts
// @Tags posts
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,posts=[]models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.respondWithAuthorPosts(c, currentUserID(c), authorID)
}

func (s *Server) respondWithAuthorPosts(c *fiber.Ctx, viewerID, authorID uint) error {
	posts, err := s.postService.ByAuthor(c.UserContext(), viewerID, authorID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"posts":   posts,
	})
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,isLiked=bool,likes_count=int,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"isLiked":     res.IsLiked,
		"likes_count": res.LikesCount,
		"message":     res.Message,
	})
}
