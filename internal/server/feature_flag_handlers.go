package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the configured flags and their state for the caller.
// @Summary Feature flags
// @Tags admin
// @Produce json
// @Success 200 {object} object{success=bool,raw=map[string]string,evaluated=map[string]bool}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID := currentUserID(c)
	return c.JSON(fiber.Map{
		"success":   true,
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}
