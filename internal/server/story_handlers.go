package server

import (
	"monolith/internal/featureflags"
	"monolith/internal/models"
	"monolith/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetStories handles GET /api/stories
// @Summary Active stories
// @Description Unexpired stories from the viewer, accepted connections and followees, newest first
// @Tags stories
// @Produce json
// @Success 200 {object} object{success=bool,stories=[]models.Story}
// @Security BearerAuth
// @Router /stories [get]
func (s *Server) GetStories(c *fiber.Ctx) error {
	stories, err := s.storyService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"stories": stories,
	})
}

// AddStory handles POST /api/stories/add
// @Summary Post a story
// @Description Stories are removed once STORY_TTL_HOURS have passed
// @Tags stories
// @Accept json
// @Produce json
// @Param request body service.CreateStoryInput true "Story"
// @Success 200 {object} object{success=bool,message=string,story=models.Story}
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /stories/add [post]
func (s *Server) AddStory(c *fiber.Ctx) error {
	if !s.featureFlags.EnabledOr(featureflags.Stories, currentUserID(c), true) {
		return mapServiceError(c, models.NewForbiddenError("Story uploads are currently disabled."))
	}

	var req service.CreateStoryInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	story, err := s.storyService.Create(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Story added successfully",
		"story":   story,
	})
}

// ViewStory handles POST /api/stories/:id/view
// @Summary Record a story view
// @Tags stories
// @Produce json
// @Param id path int true "Story ID"
// @Success 200 {object} object{success=bool,story=models.Story}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /stories/{id}/view [post]
func (s *Server) ViewStory(c *fiber.Ctx) error {
	storyID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	story, err := s.storyService.View(c.UserContext(), currentUserID(c), storyID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"story":   story,
	})
}
