package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetConnections handles GET /api/connections
// @Summary Relationship lists
// @Description Connections, followers, following, outgoing and incoming pending requests
// @Tags connections
// @Produce json
// @Success 200 {object} service.ConnectionsOverview
// @Security BearerAuth
// @Router /connections [get]
func (s *Server) GetConnections(c *fiber.Ctx) error {
	out, err := s.connectionService.List(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":             true,
		"connections":         out.Connections,
		"followers":           out.Followers,
		"following":           out.Following,
		"pendingConnections":  out.PendingConnections,
		"incomingConnections": out.IncomingConnections,
	})
}

// GetConnectionStatus handles GET /api/connections/status/:id
// @Summary Relationship state with a user
// @Tags connections
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} object{success=bool,status=string}
// @Security BearerAuth
// @Router /connections/status/{id} [get]
func (s *Server) GetConnectionStatus(c *fiber.Ctx) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	state, err := s.connectionService.Status(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "status": state})
}

// ToggleConnection handles POST /api/connections/toggle. A request that
// cannot change anything (already connected, incoming pending) answers 200
// with success false and the reason in action.
// @Summary Send or cancel a connection request
// @Tags connections
// @Accept json
// @Produce json
// @Param request body object{id=int} true "Target user"
// @Success 200 {object} service.ToggleResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /connections/toggle [post]
func (s *Server) ToggleConnection(c *fiber.Ctx) error {
	targetID, err := parseBodyID(c)
	if err != nil {
		return nil
	}

	res, err := s.connectionService.Toggle(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(res)
}

// AcceptConnection handles POST /api/connections/accept
// @Summary Accept an incoming request
// @Tags connections
// @Accept json
// @Produce json
// @Param request body object{id=int} true "Requester user"
// @Success 200 {object} object{success=bool,message=string,connection=models.User}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /connections/accept [post]
func (s *Server) AcceptConnection(c *fiber.Ctx) error {
	requesterID, err := parseBodyID(c)
	if err != nil {
		return nil
	}

	requester, err := s.connectionService.Accept(c.UserContext(), currentUserID(c), requesterID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "Connection accepted.",
		"connection": requester,
	})
}

// DeclineConnection handles POST /api/connections/decline
// @Summary Decline an incoming request
// @Tags connections
// @Accept json
// @Produce json
// @Param request body object{id=int} true "Requester user"
// @Success 200 {object} object{success=bool,message=string,declined_user_id=int}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /connections/decline [post]
func (s *Server) DeclineConnection(c *fiber.Ctx) error {
	requesterID, err := parseBodyID(c)
	if err != nil {
		return nil
	}

	if err := s.connectionService.Decline(c.UserContext(), currentUserID(c), requesterID); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":          true,
		"message":          "Connection request declined.",
		"declined_user_id": requesterID,
	})
}
