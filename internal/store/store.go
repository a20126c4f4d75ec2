// Package store is the document-store collaborator: schemaless documents
// grouped in collections, addressed by string id, with no referential
// integrity between them.
package store

import (
	"context"
	"errors"
)

// Collection names
const (
	CollectionUsers         = "users"
	CollectionHealthCenters = "health_centers"
	CollectionServices      = "services"
	CollectionAppointments  = "appointments"
	CollectionNotifications = "notifications"
	CollectionDeviceTokens  = "device_tokens"
	CollectionLogs          = "logs"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Document is a raw stored document. Reads always include the document id
// under the "id" key; writes ignore it.
type Document map[string]interface{}

// ID returns the document id.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value interface{}
}

// Query describes a List call. Zero values mean no filter, natural order
// and no limit.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// DocumentStore is implemented by every storage driver.
type DocumentStore interface {
	// Get returns ErrNotFound when the document is absent.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create writes a new document. An empty id asks the store to
	// generate one. The id is returned.
	Create(ctx context.Context, collection string, fields Document, id string) (string, error)
	// Update merges fields into the document in one write. It returns
	// ErrNotFound when the document is absent.
	Update(ctx context.Context, collection, id string, fields Document) error
	Delete(ctx context.Context, collection, id string) error
	// FindOne returns the first document whose field equals value.
	FindOne(ctx context.Context, collection, field string, value interface{}) (Document, error)
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	Close() error
}

func withoutID(fields Document) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}
