package server

import (
	"time"

	"monolith/internal/middleware"
	"monolith/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Register handles POST /api/register
// @Summary User registration
// @Description Create an account and open a cookie session for it
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration request"
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 422 {object} models.ErrorResponse
// @Router /register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	sess, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	s.setSessionCookie(c, sess)
	return c.JSON(fiber.Map{
		"success": true,
		"user":    sess.User,
	})
}

// Login handles POST /api/login
// @Summary User login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login request"
// @Success 200 {object} object{success=bool,user=models.User,token=string}
// @Failure 422 {object} models.ErrorResponse
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	sess, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	s.setSessionCookie(c, sess)
	return c.JSON(fiber.Map{
		"success": true,
		"user":    sess.User,
		"token":   sess.Token,
	})
}

// Logout handles POST /api/logout
// @Summary Logout
// @Description Revoke the current token and clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Router /logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	// A missing or already invalid token still logs out: the cookie is cleared either way.
	if claims, err := s.authenticate(c); err == nil {
		if err := s.authService.Logout(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "token revocation failed", "error", err.Error())
		}
	}

	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

// CurrentUser handles GET /api/user
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /user [get]
func (s *Server) CurrentUser(c *fiber.Ctx) error {
	user, err := s.authService.Me(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// CSRFCookie handles GET /sanctum/csrf-cookie. The CSRF middleware sets the
// XSRF-TOKEN cookie on safe requests, so the handler only acknowledges.
// @Summary Issue CSRF cookie
// @Tags auth
// @Success 204
// @Router /sanctum/csrf-cookie [get]
func (s *Server) CSRFCookie(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) setSessionCookie(c *fiber.Ctx, sess *service.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.Claims.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
