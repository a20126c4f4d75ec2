// Package activity records the append-only activity log.
package activity

import (
	"context"
	"time"

	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
)

// Action tags
const (
	ActionUserRegistered           = "user_registered"
	ActionUserLogin                = "user_login"
	ActionUserLogout               = "user_logout"
	ActionProfileUpdated           = "profile_updated"
	ActionUserUpdated              = "user_updated"
	ActionUserDeleted              = "user_deleted"
	ActionHealthCenterCreated      = "health_center_created"
	ActionHealthCenterUpdated      = "health_center_updated"
	ActionHealthCenterDeleted      = "health_center_deleted"
	ActionServiceCreated           = "service_created"
	ActionServiceUpdated           = "service_updated"
	ActionServiceDeleted           = "service_deleted"
	ActionAppointmentCreated       = "appointment_created"
	ActionAppointmentUpdated       = "appointment_updated"
	ActionAppointmentStatusUpdated = "appointment_status_updated"
	ActionAppointmentDeleted       = "appointment_deleted"
	ActionNotificationBroadcast    = "notification_broadcast"
)

// Entry is one activity to record.
type Entry struct {
	UserID      string
	Action      string
	Description string
	IPAddress   string
	UserAgent   string
	Metadata    map[string]interface{}
}

// Recorder appends activity entries. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Sink receives a copy of every stored entry.
type Sink interface {
	Publish(ctx context.Context, entry *models.ActivityLog) error
	Close() error
}

// StoreRecorder writes entries to the logs collection and forwards them to
// an optional sink.
type StoreRecorder struct {
	store   store.DocumentStore
	sink    Sink
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewStoreRecorder creates a recorder. sink may be nil.
func NewStoreRecorder(s store.DocumentStore, sink Sink, log *logger.Logger, timeout time.Duration) *StoreRecorder {
	return &StoreRecorder{store: s, sink: sink, log: log, timeout: timeout, now: time.Now}
}

// Record stores the entry under its own deadline, detached from the
// request's cancellation.
func (r *StoreRecorder) Record(ctx context.Context, entry Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	record := &models.ActivityLog{
		UserID:      entry.UserID,
		Action:      entry.Action,
		Description: entry.Description,
		IPAddress:   entry.IPAddress,
		UserAgent:   entry.UserAgent,
		Metadata:    entry.Metadata,
		CreatedAt:   models.Timestamp(r.now()),
	}
	record.ID = models.NewID()

	if _, err := r.store.Create(ctx, store.CollectionLogs, record.Fields(), record.ID); err != nil {
		r.log.WithComponent("activity").
			WithError(err).
			WithField("action", entry.Action).
			WithField("user_id", entry.UserID).
			Warn("failed to write activity log")
	}

	if r.sink == nil {
		return
	}
	if err := r.sink.Publish(ctx, record); err != nil {
		r.log.WithComponent("activity").
			WithError(err).
			WithField("action", entry.Action).
			Warn("failed to publish activity event")
	}
}
