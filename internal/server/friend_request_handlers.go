package server

import (
	"fmt"

	"friendpush/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SendFriendRequestInput is the body of POST /api/friend-requests/send.
// FromID is optional; when present it must be the authenticated user.
type SendFriendRequestInput struct {
	FromID *uint `json:"fromId,omitempty"`
	ToID   uint  `json:"toId"`
}

const sendFailureMessage = "Failed to process friend request"

// SendFriendRequest handles POST /api/friend-requests/send
// @Summary Send a friend request
// @Description Records a pending friend request from the authenticated user and notifies the recipient.
// @Tags friend-requests
// @Accept json
// @Produce plain
// @Param request body SendFriendRequestInput true "Recipient"
// @Success 200 {string} string "Friend request sent successfully. Request ID: 1"
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 500 {string} string "Failed to process friend request"
// @Security BearerAuth
// @Router /friend-requests/send [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req SendFriendRequestInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.ToID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("toId is required"))
	}
	if req.FromID != nil && *req.FromID != userID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("fromId must match the authenticated user"))
	}

	fr, err := s.friendRequests.SendFriendRequest(c.UserContext(), userID, req.ToID)
	if err != nil {
		if code := models.ErrorCode(err); code == "" || code == models.CodeInternal {
			return c.Status(fiber.StatusInternalServerError).SendString(sendFailureMessage)
		}
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).
		SendString(fmt.Sprintf("Friend request sent successfully. Request ID: %d", fr.ID))
}

// ListFriendRequests handles GET /api/friend-requests
// @Summary List friend requests the current user sent or received
// @Tags friend-requests
// @Produce json
// @Success 200 {array} models.FriendRequest
// @Security BearerAuth
// @Router /friend-requests [get]
func (s *Server) ListFriendRequests(c *fiber.Ctx) error {
	requests, err := s.friendRequests.ListFriendRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// ListIncomingFriendRequests handles GET /api/friend-requests/incoming
// @Summary List requests addressed to the current user
// @Tags friend-requests
// @Produce json
// @Param status query string false "PENDING, ACCEPTED or REJECTED"
// @Success 200 {array} models.FriendRequest
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /friend-requests/incoming [get]
func (s *Server) ListIncomingFriendRequests(c *fiber.Ctx) error {
	status := models.FriendRequestStatus(c.Query("status"))
	requests, err := s.friendRequests.ListIncoming(c.UserContext(), currentUserID(c), status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// GetFriendRequest handles GET /api/friend-requests/:id
// @Summary Get a friend request
// @Tags friend-requests
// @Produce json
// @Param id path int true "Friend request ID"
// @Success 200 {object} models.FriendRequest
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /friend-requests/{id} [get]
func (s *Server) GetFriendRequest(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	fr, err := s.friendRequests.GetFriendRequest(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fr)
}
