package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthreach-server/internal/store"
)

func fetchFrom(docs map[string]map[string]interface{}) FetchFunc {
	return func(ctx context.Context, collection, id string) (map[string]interface{}, bool) {
		doc, ok := docs[collection+"/"+id]
		return doc, ok
	}
}

func TestServiceResolutionPrefersEmbedded(t *testing.T) {
	ctx := context.Background()
	appt := map[string]interface{}{
		"service_id": "S1",
		"service":    map[string]interface{}{"name": "Prenatal checkup", "price": int64(150), "duration": "30"},
	}
	fetch := fetchFrom(map[string]map[string]interface{}{
		"services/S1": {"name": "Renamed", "price": 999.0},
	})

	assert.Equal(t, "Prenatal checkup", ResolveServiceName(ctx, appt, fetch))
	require.NotNil(t, ResolveServicePrice(ctx, appt, fetch))
	assert.Equal(t, 150.0, *ResolveServicePrice(ctx, appt, fetch))
	require.NotNil(t, ResolveServiceDuration(ctx, appt, fetch))
	assert.Equal(t, 30, *ResolveServiceDuration(ctx, appt, fetch))
}

func TestServiceResolutionFetchesWhenEmbeddedNull(t *testing.T) {
	ctx := context.Background()
	appt := map[string]interface{}{"service_id": "S1", "service": nil}
	fetch := fetchFrom(map[string]map[string]interface{}{
		"services/S1": {"name": "Vaccination", "price": 0.0, "duration": int64(15)},
	})

	assert.Equal(t, "Vaccination", ResolveServiceName(ctx, appt, fetch))
	require.NotNil(t, ResolveServicePrice(ctx, appt, fetch))
	assert.Equal(t, 0.0, *ResolveServicePrice(ctx, appt, fetch))
	assert.Equal(t, 15, *ResolveServiceDuration(ctx, appt, fetch))
}

func TestServiceResolutionDeletedService(t *testing.T) {
	ctx := context.Background()
	appt := map[string]interface{}{"id": "A2", "service_id": "S9", "service": nil}
	fetch := fetchFrom(nil)

	assert.Equal(t, NotAvailable, ResolveServiceName(ctx, appt, fetch))
	assert.Nil(t, ResolveServicePrice(ctx, appt, fetch))
	assert.Nil(t, ResolveServiceDuration(ctx, appt, fetch))
}

func TestPatientNameSkipsPlaceholder(t *testing.T) {
	ctx := context.Background()
	fetch := fetchFrom(map[string]map[string]interface{}{
		"users/P1": {"first_name": "Maria", "last_name": "Santos"},
		"users/P2": {"name": "Legacy Patient"},
	})

	placeholder := map[string]interface{}{"patient_id": "P1", "user": map[string]interface{}{"name": "Unknown User"}}
	assert.Equal(t, "Maria Santos", ResolvePatientName(ctx, placeholder, fetch))

	legacyKey := map[string]interface{}{"user_id": "P2"}
	assert.Equal(t, "Legacy Patient", ResolvePatientName(ctx, legacyKey, fetch))

	embedded := map[string]interface{}{"patient_id": "P1", "user": map[string]interface{}{"first_name": "Jo", "last_name": "Reyes"}}
	assert.Equal(t, "Jo Reyes", ResolvePatientName(ctx, embedded, fetch))

	missing := map[string]interface{}{"patient_id": "P404", "user": nil}
	assert.Equal(t, NotAvailable, ResolvePatientName(ctx, missing, fetch))
}

func TestHelpersNeverPanic(t *testing.T) {
	ctx := context.Background()
	weird := map[string]interface{}{
		"service":          "not a map",
		"user":             42,
		"health_center":    []interface{}{"x"},
		"service_id":       7,
		"health_center_id": nil,
	}

	assert.NotPanics(t, func() {
		assert.Equal(t, NotAvailable, ResolveServiceName(ctx, weird, nil))
		assert.Equal(t, NotAvailable, ResolvePatientName(ctx, weird, nil))
		assert.Equal(t, NotAvailable, ResolveHealthCenterName(ctx, weird, nil))
		assert.Nil(t, ResolveServicePrice(ctx, nil, nil))
	})
}

type countingStore struct {
	*store.MemoryStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, collection, id)
}

func TestResolverCachesLookups(t *testing.T) {
	ctx := context.Background()
	mem := &countingStore{MemoryStore: store.NewMemoryStore()}
	_, err := mem.Create(ctx, store.CollectionServices, store.Document{"name": "Checkup", "price": 100.0}, "S1")
	require.NoError(t, err)
	_, err = mem.Create(ctx, store.CollectionHealthCenters, store.Document{"name": "Barangay Health Center"}, "H1")
	require.NoError(t, err)

	r := NewResolver(mem)
	docs := []store.Document{
		{"id": "A1", "service_id": "S1", "health_center_id": "H1", "patient_id": "P1", "status": "pending"},
		{"id": "A2", "service_id": "S1", "health_center_id": "H1", "patient_id": "P1", "status": "confirmed"},
	}

	views := r.Views(ctx, docs)
	require.Len(t, views, 2)
	assert.Equal(t, "Checkup", views[1].ServiceName)
	assert.Equal(t, "Barangay Health Center", views[0].HealthCenterName)
	assert.Equal(t, NotAvailable, views[0].PatientName)
	// services/S1, health_centers/H1 and the missing users/P1, once each.
	assert.Equal(t, 3, mem.gets)
}

type brokenStore struct {
	store.DocumentStore
}

func (brokenStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	return nil, errors.New("timeout")
}

func TestResolverTreatsErrorsAsMissing(t *testing.T) {
	r := NewResolver(brokenStore{})
	view, err := r.View(context.Background(), store.Document{"id": "A1", "service_id": "S1"})
	require.NoError(t, err)
	assert.Equal(t, NotAvailable, view.ServiceName)
	assert.Nil(t, view.ServicePrice)
}
