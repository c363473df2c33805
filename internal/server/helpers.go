// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"errors"
	"strings"
	"unicode"

	"monolith/internal/middleware"
	"monolith/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// idBody is the {"id": n} body shared by the follow and connection endpoints.
type idBody struct {
	ID uint `json:"id" form:"id"`
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "postId" -> "Invalid post ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewBadRequestError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBodyID reads {"id": n} from the request body. A missing or zero id
// writes a 422 on the id field.
func parseBodyID(c *fiber.Ctx) (uint, error) {
	var body idBody
	if err := c.BodyParser(&body); err != nil || body.ID == 0 {
		_ = models.RespondWithError(c, fiber.StatusUnprocessableEntity,
			models.NewFieldValidationError("id", "The id field is required."))
		return 0, errResponseWritten
	}
	return body.ID, nil
}

// parseBody decodes the request body into dst, writing a 400 on malformed input.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewBadRequestError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// mapServiceError writes err as a JSON envelope with the status its code maps to.
// Errors that are not AppErrors are reported as internal.
func mapServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}
	if appErr.Code == models.CodeInternal {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err.Error(),
		)
	}
	return models.RespondWithError(c, models.StatusFor(appErr.Code), appErr)
}

// currentUserID returns the id set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := middleware.UserID(c)
	return id
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}
