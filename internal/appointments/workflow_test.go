package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
	"healthreach-server/internal/notifications"
	"healthreach-server/internal/push"
	"healthreach-server/internal/resolve"
	"healthreach-server/internal/store"
)

var (
	patient      = &identity.Identity{UserID: "P1", Role: models.RolePatient}
	otherPatient = &identity.Identity{UserID: "P2", Role: models.RolePatient}
	worker       = &identity.Identity{UserID: "HW1", Role: models.RoleHealthWorker}
	admin        = &identity.Identity{UserID: "AD1", Role: models.RoleAdmin}
)

func strPtr(s string) *string { return &s }

type failingSender struct{}

func (failingSender) Send(ctx context.Context, tokens []string, msg push.Message) (*push.Result, error) {
	return nil, errors.New("fcm unavailable")
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, entry activity.Entry) {
	m.Called(entry)
}

type fixture struct {
	store    store.DocumentStore
	mem      *store.MemoryStore
	workflow *Workflow
}

func newFixture(t *testing.T, s store.DocumentStore, sender push.Sender, policy Policy) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	if s == nil {
		s = mem
	}
	log := logger.Discard()
	notifier := notifications.NewService(s, sender, log)
	recorder := activity.NewStoreRecorder(s, nil, log, time.Second)
	w := NewWorkflow(s, notifier, recorder, policy, log)
	w.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	w.loc = time.UTC

	ctx := context.Background()
	_, err := s.Create(ctx, store.CollectionHealthCenters, store.Document{"name": "Poblacion Health Center", "address": "Main St", "is_active": true}, "H1")
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CollectionServices, store.Document{
		"health_center_id": "H1", "name": "Prenatal Checkup", "price": 0.0, "duration": int64(30), "is_active": true,
		"schedule": []interface{}{
			map[string]interface{}{"day": "monday", "start_time": "08:00", "end_time": "12:00"},
		},
	}, "S1")
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CollectionAppointments, store.Document{
		"patient_id": "P1", "health_center_id": "H1", "service_id": "S1",
		"date": "2025-03-17", "time": "09:00", "status": "pending", "remarks": "",
		"created_at": "2025-03-01T00:00:00Z", "updated_at": "2025-03-01T00:00:00Z",
	}, "A1")
	require.NoError(t, err)

	return &fixture{store: s, mem: mem, workflow: w}
}

func (f *fixture) count(t *testing.T, collection string) int {
	t.Helper()
	docs, err := f.store.List(context.Background(), collection, store.Query{})
	require.NoError(t, err)
	return len(docs)
}

func (f *fixture) status(t *testing.T, id string) string {
	t.Helper()
	doc, err := f.store.Get(context.Background(), store.CollectionAppointments, id)
	require.NoError(t, err)
	return doc["status"].(string)
}

func TestWorkerConfirmsPendingAppointment(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	view, err := f.workflow.Update(ctx, worker, "A1", UpdateRequest{Status: strPtr("confirmed")}, Meta{IPAddress: "10.0.0.5"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, view.Status)
	assert.Equal(t, "Prenatal Checkup", view.ServiceName)
	assert.Equal(t, "confirmed", f.status(t, "A1"))

	notes, err := f.store.List(ctx, store.CollectionNotifications, store.Query{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "P1", notes[0]["user_id"])
	assert.Equal(t, "appointment", notes[0]["type"])
	assert.Contains(t, notes[0]["message"], "Prenatal Checkup")
	assert.Contains(t, notes[0]["message"], "confirmed")

	logs, err := f.store.List(ctx, store.CollectionLogs, store.Query{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, activity.ActionAppointmentStatusUpdated, logs[0]["action"])
	assert.Equal(t, "10.0.0.5", logs[0]["ip_address"])
}

func TestPatientCannotChangeStatus(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)

	_, err := f.workflow.Update(context.Background(), patient, "A1", UpdateRequest{Status: strPtr("cancelled")}, Meta{})
	require.Error(t, err)
	assert.Equal(t, 403, apperr.HTTPStatus(err))
	assert.Equal(t, "pending", f.status(t, "A1"))
	assert.Zero(t, f.count(t, store.CollectionNotifications))
	assert.Zero(t, f.count(t, store.CollectionLogs))
}

func TestPatientReschedulesPendingAppointment(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	_, err := f.workflow.Update(ctx, patient, "A1", UpdateRequest{
		Date:    strPtr("2025-03-24"),
		Time:    strPtr("10:30"),
		Remarks: strPtr("Morning works better"),
	}, Meta{})
	require.NoError(t, err)

	doc, err := f.store.Get(ctx, store.CollectionAppointments, "A1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-24", doc["date"])
	assert.Equal(t, "10:30", doc["time"])
	assert.Equal(t, "Morning works better", doc["remarks"])
	assert.Equal(t, "pending", doc["status"])
	assert.Equal(t, "2025-03-10T09:00:00Z", doc["updated_at"])
	assert.Equal(t, "2025-03-01T00:00:00Z", doc["created_at"])
	assert.Zero(t, f.count(t, store.CollectionNotifications))

	logs, err := f.store.List(ctx, store.CollectionLogs, store.Query{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, activity.ActionAppointmentUpdated, logs[0]["action"])
}

func TestPatientRescheduleRules(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	_, err := f.workflow.Update(ctx, otherPatient, "A1", UpdateRequest{Time: strPtr("10:00")}, Meta{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.workflow.Update(ctx, patient, "A1", UpdateRequest{Note: strPtr("hi")}, Meta{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.workflow.Update(ctx, worker, "A1", UpdateRequest{Status: strPtr("confirmed")}, Meta{})
	require.NoError(t, err)

	_, err = f.workflow.Update(ctx, patient, "A1", UpdateRequest{Time: strPtr("10:00")}, Meta{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestRescheduleMustFitServiceSchedule(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	tests := []struct {
		name string
		req  UpdateRequest
	}{
		{"sunday night", UpdateRequest{Date: strPtr("2025-03-23"), Time: strPtr("23:00")}},
		{"monday after hours", UpdateRequest{Time: strPtr("12:00")}},
		{"tuesday same time", UpdateRequest{Date: strPtr("2025-03-18")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.Update(ctx, patient, "A1", tt.req, Meta{})
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Fields, "time")
		})
	}

	doc, err := f.store.Get(ctx, store.CollectionAppointments, "A1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-17", doc["date"])
	assert.Equal(t, "09:00", doc["time"])

	require.NoError(t, f.store.Delete(ctx, store.CollectionServices, "S1"))
	_, err = f.workflow.Update(ctx, worker, "A1", UpdateRequest{Date: strPtr("2025-03-23")}, Meta{})
	assert.NoError(t, err)
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   UpdateRequest
		field string
	}{
		{"empty", UpdateRequest{}, ""},
		{"unknown status", UpdateRequest{Status: strPtr("archived")}, "status"},
		{"bad date", UpdateRequest{Date: strPtr("17/03/2025")}, "date"},
		{"past date", UpdateRequest{Date: strPtr("2025-03-09")}, "date"},
		{"bad time", UpdateRequest{Time: strPtr("9am")}, "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.Update(ctx, worker, "A1", tt.req, Meta{})
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			if tt.field != "" {
				assert.Contains(t, appErr.Fields, tt.field)
			}
		})
	}
	assert.Equal(t, "pending", f.status(t, "A1"))
}

func TestUpdateMissingAppointment(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)

	_, err := f.workflow.Update(context.Background(), worker, "nope", UpdateRequest{Status: strPtr("confirmed")}, Meta{})
	assert.Equal(t, 404, apperr.HTTPStatus(err))
}

func TestPushFailureDoesNotFailUpdate(t *testing.T) {
	f := newFixture(t, nil, failingSender{}, PolicyOverride)
	ctx := context.Background()
	_, err := f.store.Create(ctx, store.CollectionDeviceTokens, store.Document{"user_id": "P1", "token": "tok", "platform": "android"}, "")
	require.NoError(t, err)

	view, err := f.workflow.Update(ctx, admin, "A1", UpdateRequest{Status: strPtr("cancelled")}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, view.Status)
	assert.Equal(t, 1, f.count(t, store.CollectionNotifications))
	assert.Equal(t, 1, f.count(t, store.CollectionLogs))
}

type failingUpdateStore struct {
	*store.MemoryStore
}

func (failingUpdateStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	return errors.New("deadline exceeded")
}

func TestPersistenceFailureAppliesNothing(t *testing.T) {
	s := failingUpdateStore{MemoryStore: store.NewMemoryStore()}
	f := newFixture(t, s, push.NewLogSender(logger.Discard()), PolicyOverride)

	_, err := f.workflow.Update(context.Background(), worker, "A1", UpdateRequest{Status: strPtr("confirmed")}, Meta{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPersistence))
	assert.Equal(t, 500, apperr.HTTPStatus(err))
	assert.Equal(t, "pending", f.status(t, "A1"))
	assert.Zero(t, f.count(t, store.CollectionNotifications))
	assert.Zero(t, f.count(t, store.CollectionLogs))
}

func TestSameStatusDoesNotNotify(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyStrict)
	ctx := context.Background()

	_, err := f.workflow.Update(ctx, worker, "A1", UpdateRequest{Status: strPtr("pending"), Remarks: strPtr("walk-in")}, Meta{})
	require.NoError(t, err)
	assert.Zero(t, f.count(t, store.CollectionNotifications))

	logs, err := f.store.List(ctx, store.CollectionLogs, store.Query{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, activity.ActionAppointmentUpdated, logs[0]["action"])
}

func TestOffGraphTransitionPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("override policy requires flag", func(t *testing.T) {
		f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
		_, err := f.workflow.Update(ctx, worker, "A1", UpdateRequest{Status: strPtr("completed")}, Meta{})
		assert.Equal(t, 422, apperr.HTTPStatus(err))
		assert.Equal(t, "pending", f.status(t, "A1"))

		_, err = f.workflow.Update(ctx, worker, "A1", UpdateRequest{Status: strPtr("completed"), Override: true}, Meta{})
		require.NoError(t, err)
		assert.Equal(t, "completed", f.status(t, "A1"))
	})

	t.Run("strict policy ignores flag", func(t *testing.T) {
		f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyStrict)
		_, err := f.workflow.Update(ctx, admin, "A1", UpdateRequest{Status: strPtr("completed"), Override: true}, Meta{})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("permissive policy accepts anything", func(t *testing.T) {
		f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyPermissive)
		_, err := f.workflow.Update(ctx, admin, "A1", UpdateRequest{Status: strPtr("completed")}, Meta{})
		require.NoError(t, err)
		_, err = f.workflow.Update(ctx, admin, "A1", UpdateRequest{Status: strPtr("pending")}, Meta{})
		require.NoError(t, err)
		assert.Equal(t, "pending", f.status(t, "A1"))
	})
}

func TestStatusNotificationIncludesNote(t *testing.T) {
	mem := store.NewMemoryStore()
	notifier := &mockNotifier{}
	recorder := &mockRecorder{}
	w := NewWorkflow(mem, notifier, recorder, PolicyOverride, logger.Discard())
	w.loc = time.UTC
	ctx := context.Background()

	_, err := mem.Create(ctx, store.CollectionAppointments, store.Document{
		"user_id": "P7", "service_id": "S404", "date": "2099-01-05", "time": "14:00", "status": "confirmed",
	}, "A9")
	require.NoError(t, err)

	notifier.On("Notify", "P7", "Appointment Update",
		"Your appointment for N/A on 2099-01-05 at 14:00 has been marked as completed. Note: Bring records",
		models.NotificationAppointment).Return(nil, errors.New("store down")).Once()
	recorder.On("Record", mock.MatchedBy(func(e activity.Entry) bool {
		return e.Action == activity.ActionAppointmentStatusUpdated && e.Metadata["new_status"] == "completed"
	})).Once()

	_, err = w.Update(ctx, worker, "A9", UpdateRequest{Status: strPtr("completed"), Note: strPtr(" Bring records ")}, Meta{})
	require.NoError(t, err)
	notifier.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, data map[string]string) (*models.Notification, error) {
	args := m.Called(userID, title, message, kind)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	view, err := f.workflow.Create(ctx, patient, CreateRequest{
		HealthCenterID: "H1", ServiceID: "S1", Date: "2025-03-17", Time: "10:00", Remarks: " first visit ",
	}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.Equal(t, "P1", view.PatientID)
	assert.Equal(t, "first visit", view.Remarks)
	assert.Equal(t, "Poblacion Health Center", view.HealthCenterName)
	require.NotNil(t, view.ServiceDuration)
	assert.Equal(t, 30, *view.ServiceDuration)

	logs, err := f.store.List(ctx, store.CollectionLogs, store.Query{}.Where("action", activity.ActionAppointmentCreated))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestCreateAppointmentRejections(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()
	_, err := f.store.Create(ctx, store.CollectionHealthCenters, store.Document{"name": "Closed", "is_active": false}, "H2")
	require.NoError(t, err)
	_, err = f.store.Create(ctx, store.CollectionServices, store.Document{"health_center_id": "H2", "name": "X", "is_active": true}, "S2")
	require.NoError(t, err)

	base := CreateRequest{HealthCenterID: "H1", ServiceID: "S1", Date: "2025-03-17", Time: "10:00"}

	tests := []struct {
		name   string
		mutate func(r *CreateRequest)
		kind   apperr.Kind
		field  string
	}{
		{"past date", func(r *CreateRequest) { r.Date = "2025-03-03" }, apperr.KindValidation, "date"},
		{"outside schedule", func(r *CreateRequest) { r.Time = "13:00" }, apperr.KindValidation, "time"},
		{"wrong weekday", func(r *CreateRequest) { r.Date = "2025-03-18" }, apperr.KindValidation, "time"},
		{"service of another center", func(r *CreateRequest) { r.ServiceID = "S2" }, apperr.KindValidation, "service_id"},
		{"inactive center", func(r *CreateRequest) { r.HealthCenterID = "H2"; r.ServiceID = "S2" }, apperr.KindValidation, "health_center_id"},
		{"missing service", func(r *CreateRequest) { r.ServiceID = "S404" }, apperr.KindNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.workflow.Create(ctx, patient, req, Meta{})
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.kind, appErr.Kind)
			if tt.field != "" {
				assert.Contains(t, appErr.Fields, tt.field)
			}
		})
	}

	_, err = f.workflow.Create(ctx, worker, base, Meta{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()
	_, err := f.store.Create(ctx, store.CollectionAppointments, store.Document{
		"user_id": "P1", "service_id": "S1", "health_center_id": "H1", "date": "2025-03-12", "time": "08:30", "status": "confirmed",
	}, "A-legacy")
	require.NoError(t, err)
	_, err = f.store.Create(ctx, store.CollectionAppointments, store.Document{
		"patient_id": "P2", "service_id": "S9", "health_center_id": "H1", "date": "2025-03-12", "time": "08:00", "status": "pending",
	}, "A2")
	require.NoError(t, err)

	own, err := f.workflow.List(ctx, patient, ListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "A-legacy", own[0].ID)
	assert.Equal(t, "A1", own[1].ID)

	all, err := f.workflow.List(ctx, worker, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A2", all[0].ID)
	assert.Equal(t, resolve.NotAvailable, all[0].ServiceName)
	assert.Nil(t, all[0].ServicePrice)

	pending, err := f.workflow.List(ctx, admin, ListFilter{Status: "PENDING"})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.workflow.List(ctx, admin, ListFilter{Status: "lost"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetAndDelete(t *testing.T) {
	f := newFixture(t, nil, push.NewLogSender(logger.Discard()), PolicyOverride)
	ctx := context.Background()

	_, err := f.workflow.Get(ctx, otherPatient, "A1")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	view, err := f.workflow.Get(ctx, patient, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Prenatal Checkup", view.ServiceName)

	assert.True(t, apperr.Is(f.workflow.Delete(ctx, worker, "A1", Meta{}), apperr.KindForbidden))
	require.NoError(t, f.workflow.Delete(ctx, admin, "A1", Meta{}))
	assert.True(t, apperr.Is(f.workflow.Delete(ctx, admin, "A1", Meta{}), apperr.KindNotFound))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyOverride, p)

	p, err = ParsePolicy(" Strict ")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("yolo")
	assert.Error(t, err)
}

func TestAllowedGraph(t *testing.T) {
	assert.True(t, Allowed(models.StatusPending, models.StatusConfirmed))
	assert.True(t, Allowed(models.StatusPending, models.StatusCancelled))
	assert.True(t, Allowed(models.StatusConfirmed, models.StatusCompleted))
	assert.True(t, Allowed(models.StatusConfirmed, models.StatusCancelled))
	assert.False(t, Allowed(models.StatusCompleted, models.StatusPending))
	assert.False(t, Allowed(models.StatusCancelled, models.StatusConfirmed))
	assert.False(t, Allowed(models.StatusPending, models.StatusCompleted))
}
