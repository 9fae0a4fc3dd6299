package server

import (
	"friendpush/internal/models"

	"github.com/gofiber/fiber/v2"
)

// DeviceTokenInput is the body of PUT /api/users/:username/fcm-token.
type DeviceTokenInput struct {
	FCMToken string `json:"fcmToken"`
}

// UpdateDeviceToken handles PUT /api/users/:username/fcm-token
// @Summary Register a push device token
// @Description Replaces the user's device token. Only the user themself may call it.
// @Tags users
// @Accept json
// @Param username path string true "Username"
// @Param request body DeviceTokenInput true "Token"
// @Success 200
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{username}/fcm-token [put]
func (s *Server) UpdateDeviceToken(c *fiber.Ctx) error {
	var req DeviceTokenInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if _, err := s.userService.RegisterDeviceToken(c.UserContext(), currentUserID(c), c.Params("username"), req.FCMToken); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// ClearDeviceToken handles DELETE /api/users/:username/fcm-token
// @Summary Remove the push device token
// @Tags users
// @Param username path string true "Username"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/{username}/fcm-token [delete]
func (s *Server) ClearDeviceToken(c *fiber.Ctx) error {
	if _, err := s.userService.ClearDeviceToken(c.UserContext(), currentUserID(c), c.Params("username")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFeatureFlags returns configured feature flags and their state for the current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
