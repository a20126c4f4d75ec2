package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Create(ctx, CollectionAppointments, Document{"id": "ignored", "status": "pending"}, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", id)

	doc, err := s.Get(ctx, CollectionAppointments, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", doc.ID())
	assert.Equal(t, "pending", doc["status"])

	require.NoError(t, s.Update(ctx, CollectionAppointments, "A1", Document{"status": "confirmed"}))
	doc, err = s.Get(ctx, CollectionAppointments, "A1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", doc["status"])

	assert.ErrorIs(t, s.Update(ctx, CollectionAppointments, "nope", Document{"x": 1}), ErrNotFound)

	require.NoError(t, s.Delete(ctx, CollectionAppointments, "A1"))
	_, err = s.Get(ctx, CollectionAppointments, "A1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGeneratesIDs(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.Create(context.Background(), CollectionLogs, Document{"action": "x"}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, CollectionServices, Document{"schedule": []interface{}{map[string]interface{}{"day": "monday"}}}, "S1")
	require.NoError(t, err)

	doc, err := s.Get(ctx, CollectionServices, "S1")
	require.NoError(t, err)
	doc["schedule"].([]interface{})[0].(map[string]interface{})["day"] = "sunday"

	again, err := s.Get(ctx, CollectionServices, "S1")
	require.NoError(t, err)
	assert.Equal(t, "monday", again["schedule"].([]interface{})[0].(map[string]interface{})["day"])
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for id, fields := range map[string]Document{
		"n1": {"user_id": "U1", "is_read": false, "created_at": "2025-01-01T00:00:00Z"},
		"n2": {"user_id": "U1", "is_read": true, "created_at": "2025-01-03T00:00:00Z"},
		"n3": {"user_id": "U1", "is_read": false, "created_at": "2025-01-02T00:00:00Z"},
		"n4": {"user_id": "U2", "is_read": false, "created_at": "2025-01-04T00:00:00Z"},
	} {
		_, err := s.Create(ctx, CollectionNotifications, fields, id)
		require.NoError(t, err)
	}

	docs, err := s.List(ctx, CollectionNotifications, Query{OrderBy: "created_at", Desc: true}.Where("user_id", "U1"))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"n2", "n3", "n1"}, []string{docs[0].ID(), docs[1].ID(), docs[2].ID()})

	docs, err = s.List(ctx, CollectionNotifications, Query{Limit: 1}.Where("user_id", "U1").Where("is_read", false))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "n1", docs[0].ID())

	doc, err := s.FindOne(ctx, CollectionNotifications, "user_id", "U2")
	require.NoError(t, err)
	assert.Equal(t, "n4", doc.ID())

	_, err = s.FindOne(ctx, CollectionNotifications, "user_id", "U9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEqualValuesNumeric(t *testing.T) {
	assert.True(t, equalValues(int64(30), 30))
	assert.True(t, equalValues(30.0, 30))
	assert.False(t, equalValues("30", nil))
	assert.True(t, equalValues(nil, nil))
}
