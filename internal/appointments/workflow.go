// Package appointments implements booking and the appointment status
// workflow.
package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
	"healthreach-server/internal/resolve"
	"healthreach-server/internal/store"
)

// Notifier creates a notification for one user and pushes it.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, data map[string]string) (*models.Notification, error)
}

// Meta describes the request an operation came from.
type Meta struct {
	IPAddress string
	UserAgent string
}

// CreateRequest is the body of a booking.
type CreateRequest struct {
	HealthCenterID string `json:"health_center_id" binding:"required"`
	ServiceID      string `json:"service_id" binding:"required"`
	Date           string `json:"date" binding:"required"`
	Time           string `json:"time" binding:"required"`
	Remarks        string `json:"remarks" binding:"omitempty,max=1000"`
}

// UpdateRequest is a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Status   *string `json:"status"`
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Remarks  *string `json:"remarks" binding:"omitempty,max=1000"`
	Note     *string `json:"note" binding:"omitempty,max=1000"`
	Override bool    `json:"override"`
}

func (r UpdateRequest) empty() bool {
	return r.Status == nil && r.Date == nil && r.Time == nil && r.Remarks == nil && r.Note == nil
}

// ListFilter narrows the appointment list. Empty fields do not filter.
type ListFilter struct {
	Status         string
	HealthCenterID string
	Date           string
}

// Workflow owns every appointment write.
type Workflow struct {
	store    store.DocumentStore
	notifier Notifier
	recorder activity.Recorder
	policy   Policy
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
}

func NewWorkflow(s store.DocumentStore, notifier Notifier, recorder activity.Recorder, policy Policy, log *logger.Logger) *Workflow {
	return &Workflow{
		store:    s,
		notifier: notifier,
		recorder: recorder,
		policy:   policy,
		log:      log,
		now:      time.Now,
		loc:      time.Local,
	}
}

func (w *Workflow) today() string {
	return w.now().In(w.loc).Format(models.DateLayout)
}

func validateDate(field, value string, problems map[string]string) (time.Time, bool) {
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		problems[field] = "date must be formatted YYYY-MM-DD"
		return time.Time{}, false
	}
	return d, true
}

func validateClock(field, value string, problems map[string]string) bool {
	if _, err := time.Parse(models.TimeLayout, value); err != nil {
		problems[field] = "time must be formatted HH:MM"
		return false
	}
	return true
}

func (w *Workflow) load(ctx context.Context, id string) (store.Document, *models.Appointment, error) {
	doc, err := w.store.Get(ctx, store.CollectionAppointments, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.NotFound("Appointment not found")
	}
	if err != nil {
		return nil, nil, apperr.Persistence("failed to load appointment", err)
	}
	appt, err := models.DecodeAppointment(doc)
	if err != nil {
		return nil, nil, apperr.Internal("malformed appointment", err)
	}
	return doc, appt, nil
}

// Update applies a caller-authorized change to one appointment. A status
// change notifies the patient; every successful update is recorded.
func (w *Workflow) Update(ctx context.Context, caller *identity.Identity, id string, req UpdateRequest, meta Meta) (*resolve.AppointmentView, error) {
	if req.empty() {
		return nil, apperr.Validation("No fields to update", nil)
	}

	problems := map[string]string{}
	var status models.AppointmentStatus
	if req.Status != nil {
		parsed, ok := models.ParseStatus(*req.Status)
		if !ok {
			problems["status"] = "status must be one of pending, confirmed, completed, cancelled"
		}
		status = parsed
	}
	if req.Date != nil {
		if _, ok := validateDate("date", *req.Date, problems); ok && *req.Date < w.today() {
			problems["date"] = "date must not be in the past"
		}
	}
	if req.Time != nil {
		validateClock("time", *req.Time, problems)
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("Validation failed", problems)
	}

	doc, appt, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Role == models.RolePatient:
		if req.Status != nil {
			return nil, apperr.Forbidden("Patients cannot change appointment status")
		}
		if req.Note != nil {
			return nil, apperr.Forbidden("Patients cannot add staff notes")
		}
		if appt.PatientID != caller.UserID {
			return nil, apperr.Forbidden("You can only modify your own appointments")
		}
		if appt.Status != models.StatusPending {
			return nil, apperr.Forbidden("Only pending appointments can be rescheduled")
		}
	case caller.Role.Privileged():
		if req.Status != nil {
			if err := w.policy.Check(appt.Status, status, req.Override); err != nil {
				return nil, err
			}
		}
	default:
		return nil, apperr.Forbidden("Insufficient permissions")
	}

	if req.Date != nil || req.Time != nil {
		if err := w.checkSchedule(ctx, appt, req); err != nil {
			return nil, err
		}
	}

	previous := appt.Status
	changes := store.Document{}
	if req.Date != nil {
		changes["date"] = *req.Date
	}
	if req.Time != nil {
		changes["time"] = *req.Time
	}
	if req.Remarks != nil {
		changes["remarks"] = *req.Remarks
	}
	if req.Note != nil {
		changes["notes"] = *req.Note
	}
	statusChanged := req.Status != nil && status != previous
	if statusChanged {
		changes["status"] = string(status)
	}
	changes["updated_at"] = models.Timestamp(w.now())

	if err := w.store.Update(ctx, store.CollectionAppointments, id, changes); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Appointment not found")
		}
		return nil, apperr.Persistence("failed to update appointment", err)
	}

	for k, v := range changes {
		doc[k] = v
	}
	resolver := resolve.NewResolver(w.store)
	view, err := resolver.View(ctx, doc)
	if err != nil {
		return nil, apperr.Internal("malformed appointment", err)
	}

	if statusChanged {
		if !Allowed(previous, status) {
			w.log.WithComponent("appointments").
				WithField("appointment_id", id).
				WithField("from", previous).
				WithField("to", status).
				WithField("user_id", caller.UserID).
				Info("off-graph status transition applied")
		}
		w.notifyStatus(ctx, view, req.Note)
	}

	action := activity.ActionAppointmentUpdated
	description := fmt.Sprintf("Updated appointment %s", id)
	metadata := map[string]interface{}{"appointment_id": id}
	if statusChanged {
		action = activity.ActionAppointmentStatusUpdated
		description = fmt.Sprintf("Changed appointment %s status from %s to %s", id, previous, status)
		metadata["old_status"] = string(previous)
		metadata["new_status"] = string(status)
		metadata["override"] = req.Override && !Allowed(previous, status)
	}
	w.recorder.Record(ctx, activity.Entry{
		UserID:      caller.UserID,
		Action:      action,
		Description: description,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Metadata:    metadata,
	})

	return view, nil
}

// checkSchedule rejects a reschedule that falls outside the service's
// weekly schedule. A deleted service has no schedule to check against.
func (w *Workflow) checkSchedule(ctx context.Context, appt *models.Appointment, req UpdateRequest) error {
	moved := *appt
	if req.Date != nil {
		moved.Date = *req.Date
	}
	if req.Time != nil {
		moved.Time = *req.Time
	}
	at, err := moved.ScheduledAt(w.loc)
	if err != nil {
		return apperr.Validation("Validation failed", map[string]string{"date": "appointment has no valid date and time"})
	}
	if appt.ServiceID == "" {
		return nil
	}

	doc, err := w.store.Get(ctx, store.CollectionServices, appt.ServiceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Persistence("failed to load service", err)
	}
	var service models.Service
	if err := models.Decode(doc, &service); err != nil {
		return apperr.Internal("malformed service", err)
	}
	if !service.Available(at, moved.Time) {
		return apperr.Validation("Validation failed", map[string]string{"time": "the service is not available at this time"})
	}
	return nil
}

func (w *Workflow) notifyStatus(ctx context.Context, view *resolve.AppointmentView, note *string) {
	if view.PatientID == "" {
		w.log.WithComponent("appointments").
			WithField("appointment_id", view.ID).
			Warn("appointment has no patient, status notification skipped")
		return
	}

	message := fmt.Sprintf("Your appointment for %s on %s at %s has been %s.",
		view.ServiceName, view.Date, view.Time, view.Status.Describe())
	if note != nil && strings.TrimSpace(*note) != "" {
		message += " Note: " + strings.TrimSpace(*note)
	}

	_, err := w.notifier.Notify(ctx, view.PatientID, "Appointment Update", message, models.NotificationAppointment, map[string]string{
		"appointment_id": view.ID,
		"status":         string(view.Status),
	})
	if err != nil {
		w.log.WithComponent("appointments").
			WithError(err).
			WithField("appointment_id", view.ID).
			Warn("failed to notify patient of status change")
	}
}

// Create books an appointment for the calling patient.
func (w *Workflow) Create(ctx context.Context, caller *identity.Identity, req CreateRequest, meta Meta) (*resolve.AppointmentView, error) {
	if caller.Role != models.RolePatient {
		return nil, apperr.Forbidden("Only patients can book appointments")
	}

	problems := map[string]string{}
	date, dateOK := validateDate("date", req.Date, problems)
	if dateOK && req.Date < w.today() {
		problems["date"] = "date must not be in the past"
	}
	validateClock("time", req.Time, problems)
	if len(problems) > 0 {
		return nil, apperr.Validation("Validation failed", problems)
	}

	resolver := resolve.NewResolver(w.store)

	centerDoc, err := w.store.Get(ctx, store.CollectionHealthCenters, req.HealthCenterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Health center not found")
	}
	if err != nil {
		return nil, apperr.Persistence("failed to load health center", err)
	}
	var center models.HealthCenter
	if err := models.Decode(centerDoc, &center); err != nil {
		return nil, apperr.Internal("malformed health center", err)
	}
	resolver.Prime(store.CollectionHealthCenters, centerDoc)

	serviceDoc, err := w.store.Get(ctx, store.CollectionServices, req.ServiceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Service not found")
	}
	if err != nil {
		return nil, apperr.Persistence("failed to load service", err)
	}
	var service models.Service
	if err := models.Decode(serviceDoc, &service); err != nil {
		return nil, apperr.Internal("malformed service", err)
	}
	resolver.Prime(store.CollectionServices, serviceDoc)

	if !center.IsActive {
		problems["health_center_id"] = "health center is not accepting appointments"
	}
	if !service.IsActive {
		problems["service_id"] = "service is not available"
	} else if service.HealthCenterID != req.HealthCenterID {
		problems["service_id"] = "service is not offered by this health center"
	} else if !service.Available(date, req.Time) {
		problems["time"] = "the service is not available at this time"
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("Validation failed", problems)
	}

	stamp := models.Timestamp(w.now())
	appt := &models.Appointment{
		PatientID:      caller.UserID,
		HealthCenterID: req.HealthCenterID,
		ServiceID:      req.ServiceID,
		Date:           req.Date,
		Time:           req.Time,
		Status:         models.StatusPending,
		Remarks:        strings.TrimSpace(req.Remarks),
	}
	appt.CreatedAt = stamp
	appt.UpdatedAt = stamp

	id, err := w.store.Create(ctx, store.CollectionAppointments, appt.Fields(), "")
	if err != nil {
		return nil, apperr.Persistence("failed to create appointment", err)
	}
	appt.ID = id

	w.recorder.Record(ctx, activity.Entry{
		UserID:      caller.UserID,
		Action:      activity.ActionAppointmentCreated,
		Description: fmt.Sprintf("Booked %s at %s on %s %s", service.Name, center.Name, appt.Date, appt.Time),
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Metadata: map[string]interface{}{
			"appointment_id":   id,
			"service_id":       req.ServiceID,
			"health_center_id": req.HealthCenterID,
		},
	})

	doc := store.Document(appt.Fields())
	doc["id"] = id
	return resolver.View(ctx, doc)
}

// Get returns one appointment to its patient or to staff.
func (w *Workflow) Get(ctx context.Context, caller *identity.Identity, id string) (*resolve.AppointmentView, error) {
	doc, appt, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Role.Privileged() && appt.PatientID != caller.UserID {
		return nil, apperr.Forbidden("You can only view your own appointments")
	}
	return resolve.NewResolver(w.store).View(ctx, doc)
}

// List returns the patient's own appointments, or every appointment for
// staff, ordered by date then time.
func (w *Workflow) List(ctx context.Context, caller *identity.Identity, filter ListFilter) ([]*resolve.AppointmentView, error) {
	q := store.Query{}
	if filter.Status != "" {
		status, ok := models.ParseStatus(filter.Status)
		if !ok {
			return nil, apperr.Validation("Validation failed", map[string]string{"status": "unknown status"})
		}
		q = q.Where("status", string(status))
	}
	if filter.HealthCenterID != "" {
		q = q.Where("health_center_id", filter.HealthCenterID)
	}
	if filter.Date != "" {
		q = q.Where("date", filter.Date)
	}

	var docs []store.Document
	if caller.Role.Privileged() {
		all, err := w.store.List(ctx, store.CollectionAppointments, q)
		if err != nil {
			return nil, apperr.Persistence("failed to load appointments", err)
		}
		docs = all
	} else {
		seen := map[string]bool{}
		// Early clients stored the patient under user_id.
		for _, key := range []string{"patient_id", "user_id"} {
			own, err := w.store.List(ctx, store.CollectionAppointments, q.Where(key, caller.UserID))
			if err != nil {
				return nil, apperr.Persistence("failed to load appointments", err)
			}
			for _, doc := range own {
				if !seen[doc.ID()] {
					seen[doc.ID()] = true
					docs = append(docs, doc)
				}
			}
		}
	}

	views := resolve.NewResolver(w.store).Views(ctx, docs)
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Date != views[j].Date {
			return views[i].Date < views[j].Date
		}
		return views[i].Time < views[j].Time
	})
	return views, nil
}

// Delete removes an appointment. Admin only.
func (w *Workflow) Delete(ctx context.Context, caller *identity.Identity, id string, meta Meta) error {
	if caller.Role != models.RoleAdmin {
		return apperr.Forbidden("Only administrators can delete appointments")
	}
	if _, _, err := w.load(ctx, id); err != nil {
		return err
	}
	if err := w.store.Delete(ctx, store.CollectionAppointments, id); err != nil {
		return apperr.Persistence("failed to delete appointment", err)
	}
	w.recorder.Record(ctx, activity.Entry{
		UserID:      caller.UserID,
		Action:      activity.ActionAppointmentDeleted,
		Description: fmt.Sprintf("Deleted appointment %s", id),
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Metadata:    map[string]interface{}{"appointment_id": id},
	})
	return nil
}
