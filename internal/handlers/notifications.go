package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/models"
	"healthreach-server/internal/notifications"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

// NotificationHandler handles the caller's notifications and device tokens.
type NotificationHandler struct {
	Service  *notifications.Service
	Store    store.DocumentStore
	Recorder activity.Recorder
}

func NewNotificationHandler(svc *notifications.Service, s store.DocumentStore, recorder activity.Recorder) *NotificationHandler {
	return &NotificationHandler{Service: svc, Store: s, Recorder: recorder}
}

func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	unread, _, err := queryBool(c, "unread")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	list, err := h.Service.List(c.Request.Context(), me.UserID, unread)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Notifications fetched successfully", list)
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	count, err := h.Service.UnreadCount(c.Request.Context(), me.UserID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Unread count fetched successfully", gin.H{"count": count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.Service.MarkRead(c.Request.Context(), me.UserID, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Notification marked as read", n)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	changed, err := h.Service.MarkAllRead(c.Request.Context(), me.UserID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "All notifications marked as read", gin.H{"updated": changed})
}

func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), me.UserID, c.Param("id")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Notification deleted successfully", nil)
}

// BroadcastRequest addresses a notification to explicit users or to
// everyone with a role.
type BroadcastRequest struct {
	UserIDs []string `json:"user_ids"`
	Role    string   `json:"role" binding:"omitempty,oneof=admin health_worker patient"`
	Title   string   `json:"title" binding:"required,max=255"`
	Message string   `json:"message" binding:"required,max=2000"`
	Type    string   `json:"type" binding:"omitempty,oneof=appointment service admin general"`
}

// Broadcast sends one notification to each recipient (admin).
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req BroadcastRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if len(req.UserIDs) == 0 && req.Role == "" {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"user_ids": "user_ids or role is required"}))
		return
	}
	ctx := c.Request.Context()

	recipients := req.UserIDs
	if req.Role != "" {
		docs, err := h.Store.List(ctx, store.CollectionUsers, store.Query{}.Where("role", req.Role).Where("is_active", true))
		if err != nil {
			utils.RespondError(c, apperr.Persistence("Failed to load recipients", err))
			return
		}
		for _, doc := range docs {
			recipients = append(recipients, doc.ID())
		}
	}

	kind := models.NotificationType(req.Type)
	if kind == "" {
		kind = models.NotificationAdmin
	}
	sent := h.Service.Broadcast(ctx, recipients, req.Title, req.Message, kind)

	record(c, h.Recorder, me.UserID, activity.ActionNotificationBroadcast,
		fmt.Sprintf("Broadcast %q to %d users", req.Title, sent),
		map[string]interface{}{"recipients": sent, "role": req.Role})
	utils.Created(c, "Notification sent", gin.H{"recipients": sent})
}

// DeviceTokenRequest registers or removes a push token.
type DeviceTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

func (h *NotificationHandler) RegisterDeviceToken(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req DeviceTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	dt, err := h.Service.RegisterToken(c.Request.Context(), me.UserID, req.Token, req.Platform)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Device token registered", dt)
}

func (h *NotificationHandler) UnregisterDeviceToken(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req DeviceTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.Service.UnregisterToken(c.Request.Context(), me.UserID, req.Token); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Device token removed", nil)
}
