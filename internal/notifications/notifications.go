// Package notifications stores in-app notifications and fans them out to
// the recipient's devices.
package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"healthreach-server/internal/apperr"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
	"healthreach-server/internal/push"
	"healthreach-server/internal/store"
)

// Service manages notifications and device tokens.
type Service struct {
	store  store.DocumentStore
	sender push.Sender
	log    *logger.Logger
	now    func() time.Time
}

func NewService(s store.DocumentStore, sender push.Sender, log *logger.Logger) *Service {
	return &Service{store: s, sender: sender, log: log, now: time.Now}
}

// Notify stores one notification for userID and pushes it to every device
// the user has registered. Push failures are logged, not returned.
func (s *Service) Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, data map[string]string) (*models.Notification, error) {
	if userID == "" {
		return nil, apperr.Validation("notification recipient is required", nil)
	}
	if !kind.Valid() {
		kind = models.NotificationGeneral
	}

	stamp := models.Timestamp(s.now())
	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    kind,
		Data:    data,
	}
	n.CreatedAt = stamp
	n.UpdatedAt = stamp

	id, err := s.store.Create(ctx, store.CollectionNotifications, n.Fields(), "")
	if err != nil {
		return nil, apperr.Persistence("failed to create notification", err)
	}
	n.ID = id

	if err := s.deliver(ctx, n); err != nil {
		s.log.WithComponent("notifications").
			WithError(err).
			WithField("user_id", userID).
			WithField("notification_id", id).
			Warn("push delivery failed")
	}
	return n, nil
}

func (s *Service) deliver(ctx context.Context, n *models.Notification) error {
	docs, err := s.store.List(ctx, store.CollectionDeviceTokens, store.Query{}.Where("user_id", n.UserID))
	if err != nil {
		return apperr.NotificationDelivery("failed to load device tokens", err)
	}
	tokens := make([]string, 0, len(docs))
	ids := make(map[string]string, len(docs))
	for _, doc := range docs {
		token, _ := doc["token"].(string)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
		ids[token] = doc.ID()
	}
	if len(tokens) == 0 {
		return nil
	}

	data := map[string]string{
		"notification_id": n.ID,
		"type":            string(n.Type),
	}
	for k, v := range n.Data {
		data[k] = v
	}

	result, err := s.sender.Send(ctx, tokens, push.Message{Title: n.Title, Body: n.Message, Data: data})
	if err != nil {
		return apperr.NotificationDelivery("push send failed", err)
	}

	for _, token := range result.InvalidTokens {
		id, ok := ids[token]
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, store.CollectionDeviceTokens, id); err != nil {
			s.log.WithComponent("notifications").
				WithError(err).
				WithField("device_token_id", id).
				Warn("failed to prune unregistered device token")
		}
	}
	if result.FailureCount > 0 {
		s.log.WithComponent("notifications").
			WithField("user_id", n.UserID).
			WithField("success", result.SuccessCount).
			WithField("failure", result.FailureCount).
			Info("push partially delivered")
	}
	return nil
}

// Broadcast notifies each user once and returns how many notifications
// were stored.
func (s *Service) Broadcast(ctx context.Context, userIDs []string, title, message string, kind models.NotificationType) int {
	seen := make(map[string]struct{}, len(userIDs))
	sent := 0
	for _, id := range userIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.Notify(ctx, id, title, message, kind, nil); err != nil {
			s.log.WithComponent("notifications").
				WithError(err).
				WithField("user_id", id).
				Warn("broadcast notification not stored")
			continue
		}
		sent++
	}
	return sent
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	q := store.Query{OrderBy: "created_at", Desc: true}.Where("user_id", userID)
	if unreadOnly {
		q = q.Where("is_read", false)
	}
	docs, err := s.store.List(ctx, store.CollectionNotifications, q)
	if err != nil {
		return nil, apperr.Persistence("failed to load notifications", err)
	}

	out := make([]*models.Notification, 0, len(docs))
	for _, doc := range docs {
		var n models.Notification
		if err := models.Decode(doc, &n); err != nil {
			continue
		}
		out = append(out, &n)
	}
	return out, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	unread, err := s.List(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// owned loads a notification and checks it belongs to userID.
func (s *Service) owned(ctx context.Context, userID, id string) (*models.Notification, error) {
	doc, err := s.store.Get(ctx, store.CollectionNotifications, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Notification not found")
	}
	if err != nil {
		return nil, apperr.Persistence("failed to load notification", err)
	}
	var n models.Notification
	if err := models.Decode(doc, &n); err != nil {
		return nil, apperr.Internal("malformed notification", err)
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("You can only access your own notifications")
	}
	return &n, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	n.IsRead = true
	n.UpdatedAt = models.Timestamp(s.now())
	err = s.store.Update(ctx, store.CollectionNotifications, id, store.Document{
		"is_read":    true,
		"updated_at": n.UpdatedAt,
	})
	if err != nil {
		return nil, apperr.Persistence("failed to update notification", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user and returns the
// number changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	unread, err := s.List(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	stamp := models.Timestamp(s.now())
	for i, n := range unread {
		err := s.store.Update(ctx, store.CollectionNotifications, n.ID, store.Document{
			"is_read":    true,
			"updated_at": stamp,
		})
		if err != nil {
			return i, apperr.Persistence("failed to update notifications", err)
		}
	}
	return len(unread), nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, store.CollectionNotifications, id); err != nil {
		return apperr.Persistence("failed to delete notification", err)
	}
	return nil
}

// RegisterToken upserts a device token by its value. A token already held
// by another user moves to userID.
func (s *Service) RegisterToken(ctx context.Context, userID, token, platform string) (*models.DeviceToken, error) {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	problems := map[string]string{}
	if token == "" {
		problems["token"] = "token is required"
	}
	switch platform {
	case models.PlatformIOS, models.PlatformAndroid, models.PlatformWeb:
	default:
		problems["platform"] = "platform must be one of ios, android, web"
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("Validation failed", problems)
	}

	stamp := models.Timestamp(s.now())
	existing, err := s.store.FindOne(ctx, store.CollectionDeviceTokens, "token", token)
	switch {
	case err == nil:
		var dt models.DeviceToken
		if err := models.Decode(existing, &dt); err != nil {
			return nil, apperr.Internal("malformed device token", err)
		}
		dt.UserID = userID
		dt.Platform = platform
		dt.UpdatedAt = stamp
		err := s.store.Update(ctx, store.CollectionDeviceTokens, dt.ID, store.Document{
			"user_id":    userID,
			"platform":   platform,
			"updated_at": stamp,
		})
		if err != nil {
			return nil, apperr.Persistence("failed to update device token", err)
		}
		return &dt, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Persistence("failed to look up device token", err)
	}

	dt := &models.DeviceToken{UserID: userID, Token: token, Platform: platform}
	dt.CreatedAt = stamp
	dt.UpdatedAt = stamp
	id, err := s.store.Create(ctx, store.CollectionDeviceTokens, dt.Fields(), "")
	if err != nil {
		return nil, apperr.Persistence("failed to register device token", err)
	}
	dt.ID = id
	return dt, nil
}

// UnregisterToken removes one of the caller's tokens.
func (s *Service) UnregisterToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("Validation failed", map[string]string{"token": "token is required"})
	}
	doc, err := s.store.FindOne(ctx, store.CollectionDeviceTokens, "token", token)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Device token not found")
	}
	if err != nil {
		return apperr.Persistence("failed to look up device token", err)
	}
	if owner, _ := doc["user_id"].(string); owner != userID {
		return apperr.NotFound("Device token not found")
	}
	if err := s.store.Delete(ctx, store.CollectionDeviceTokens, doc.ID()); err != nil {
		return apperr.Persistence("failed to remove device token", err)
	}
	return nil
}
