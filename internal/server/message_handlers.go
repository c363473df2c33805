package server

import (
	"monolith/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SendMessage handles POST /api/messages/send
// @Summary Send a direct message
// @Description Needs text or media_url; media_url makes it an image message
// @Tags messages
// @Accept json
// @Produce json
// @Param request body service.SendMessageInput true "Message"
// @Success 200 {object} object{success=bool,message=models.Message}
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages/send [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req service.SendMessageInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.messageService.Send(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": msg,
	})
}

// GetChatMessages handles POST /api/messages/get-messages. Opening a thread
// marks the peer's messages as seen.
// @Summary Conversation with a user
// @Tags messages
// @Accept json
// @Produce json
// @Param request body object{to_user_id=int} true "Peer"
// @Success 200 {object} object{success=bool,messages=[]models.Message}
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages/get-messages [post]
func (s *Server) GetChatMessages(c *fiber.Ctx) error {
	var req struct {
		ToUserID uint `json:"to_user_id" form:"to_user_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	messages, err := s.messageService.Thread(c.UserContext(), currentUserID(c), req.ToUserID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"messages": messages,
	})
}

// GetUnreadMessages handles GET /api/messages/unread-messages
// @Summary Unread counts per sender
// @Tags messages
// @Produce json
// @Success 200 {object} object{success=bool,unread=[]models.UnreadCount}
// @Security BearerAuth
// @Router /messages/unread-messages [get]
func (s *Server) GetUnreadMessages(c *fiber.Ctx) error {
	unread, err := s.messageService.Unread(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"unread":  unread,
	})
}

// GetRecentMessages handles GET /api/messages/recent-messages
// @Summary Latest conversations
// @Tags messages
// @Produce json
// @Success 200 {object} object{success=bool,conversations=[]models.Conversation}
// @Security BearerAuth
// @Router /messages/recent-messages [get]
func (s *Server) GetRecentMessages(c *fiber.Ctx) error {
	conversations, err := s.messageService.Recent(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"conversations": conversations,
	})
}
