package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"motionify/portal-api/models"
	"motionify/portal-api/utils"
)

// ListNotifications returns a user's notifications, newest first. Pass
// unread=true to fetch only unread ones.
func (h *ApplicationHandler) ListNotifications(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid user ID format")
	}

	query := h.DB.From("notifications").
		Select("*", "", false).
		Eq("user_id", userID.String())
	if c.Query("unread") == "true" {
		query = query.Eq("read", "false")
	}

	var notifications []models.AppNotification
	_, err = query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&notifications)
	if err != nil {
		h.Logger.Errorf("Error fetching notifications for user %s: %v", userID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not fetch notifications")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, notifications)
}

// MarkNotificationRead marks a single notification as read.
func (h *ApplicationHandler) MarkNotificationRead(c *fiber.Ctx) error {
	notificationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid notification ID format")
	}

	var updated []models.AppNotification
	_, err = h.DB.From("notifications").
		Update(map[string]interface{}{"read": true}, "representation", "exact").
		Eq("id", notificationID.String()).
		ExecuteTo(&updated)
	if err != nil {
		h.Logger.Errorf("Error marking notification %s as read: %v", notificationID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update notification")
	}
	if len(updated) == 0 {
		return utils.RespondWithError(c, fiber.StatusNotFound, "Notification not found")
	}

	return utils.RespondWithJSON(c, fiber.StatusOK, updated[0])
}

// MarkAllNotificationsRead marks every unread notification of a user as read.
func (h *ApplicationHandler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid user ID format")
	}

	_, count, err := h.DB.From("notifications").
		Update(map[string]interface{}{"read": true}, "", "exact").
		Eq("user_id", userID.String()).
		Eq("read", "false").
		Execute()
	if err != nil {
		h.Logger.Errorf("Error marking notifications read for user %s: %v", userID, err)
		return utils.RespondWithError(c, fiber.StatusInternalServerError, "Could not update notifications")
	}

	h.Logger.Debugf("Marked %d notifications read for user %s", count, userID)
	return utils.RespondWithJSON(c, fiber.StatusOK, fiber.Map{"marked_read": count})
}
