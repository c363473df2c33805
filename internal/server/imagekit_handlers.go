package server

import (
	"errors"

	"monolith/internal/imagekit"
	"monolith/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ImageKitAuth handles GET /api/imagekit-auth
// @Summary ImageKit upload signature
// @Description Returns the token, expire and signature a client needs for a direct upload
// @Tags media
// @Produce json
// @Success 200 {object} imagekit.AuthParams
// @Failure 503 {object} models.ErrorResponse
// @Router /imagekit-auth [get]
func (s *Server) ImageKitAuth(c *fiber.Ctx) error {
	params, err := s.imagekit.Sign(imagekit.DefaultExpiry)
	if errors.Is(err, imagekit.ErrNotConfigured) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Success: false,
			Message: "Image uploads are not configured.",
		})
	}
	if err != nil {
		return mapServiceError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(params)
}
