package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Publish(ctx context.Context, entry *models.ActivityLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *mockSink) Close() error {
	return nil
}

type failingStore struct {
	store.DocumentStore
}

func (failingStore) Create(ctx context.Context, collection string, fields store.Document, id string) (string, error) {
	return "", errors.New("store unavailable")
}

func TestRecordWritesLogDocument(t *testing.T) {
	mem := store.NewMemoryStore()
	sink := &mockSink{}
	sink.On("Publish", mock.MatchedBy(func(e *models.ActivityLog) bool {
		return e.Action == ActionAppointmentStatusUpdated && e.ID != ""
	})).Return(nil).Once()

	r := NewStoreRecorder(mem, sink, logger.Discard(), time.Second)
	r.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, Entry{
		UserID:      "HW1",
		Action:      ActionAppointmentStatusUpdated,
		Description: "Appointment A1 confirmed",
		IPAddress:   "10.0.0.1",
		Metadata:    map[string]interface{}{"appointment_id": "A1"},
	})

	docs, err := mem.List(context.Background(), store.CollectionLogs, store.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	published := sink.Calls[0].Arguments.Get(0).(*models.ActivityLog)
	assert.Equal(t, published.ID, docs[0].ID())
	assert.Equal(t, "HW1", docs[0]["user_id"])
	assert.Equal(t, "2025-05-01T12:00:00Z", docs[0]["created_at"])
	assert.Equal(t, "A1", docs[0]["metadata"].(map[string]interface{})["appointment_id"])
	sink.AssertExpectations(t)
}

func TestRecordSwallowsFailures(t *testing.T) {
	sink := &mockSink{}
	sink.On("Publish", mock.MatchedBy(func(e *models.ActivityLog) bool {
		return e.ID != ""
	})).Return(errors.New("broker down")).Once()

	r := NewStoreRecorder(failingStore{}, sink, logger.Discard(), time.Second)

	assert.NotPanics(t, func() {
		r.Record(context.Background(), Entry{UserID: "U1", Action: ActionUserLogin})
	})
	sink.AssertExpectations(t)
}
