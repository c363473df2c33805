package server

import (
	"monolith/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/comments/:postId/comments
// @Summary List comments on a post
// @Tags comments
// @Produce json
// @Param postId path int true "Post ID"
// @Success 200 {object} object{success=bool,comments=[]models.Comment}
// @Security BearerAuth
// @Router /comments/{postId}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.List(c.UserContext(), postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"comments": comments,
	})
}

// CountComments handles GET /api/comments/:postId/count
// @Summary Count comments on a post
// @Tags comments
// @Produce json
// @Param postId path int true "Post ID"
// @Success 200 {object} object{success=bool,count=int}
// @Security BearerAuth
// @Router /comments/{postId}/count [get]
func (s *Server) CountComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}

	count, err := s.commentService.Count(c.UserContext(), postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "count": count})
}

// AddComment handles POST /api/comments/:postId/add
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param request body service.CreateCommentInput true "Comment"
// @Success 200 {object} object{success=bool,comment=models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{postId}/add [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return nil
	}
	var req service.CreateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.Create(c.UserContext(), currentUserID(c), postID, req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"comment": comment,
	})
}

// DeleteComment handles DELETE /api/comments/:id/delete
// @Summary Delete a comment
// @Description Allowed for the comment author and the post owner
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /comments/{id}/delete [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentService.Delete(c.UserContext(), currentUserID(c), commentID); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Comment deleted successfully.",
	})
}
