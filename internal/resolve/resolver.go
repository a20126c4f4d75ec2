package resolve

import (
	"context"
	"sync"

	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
)

// AppointmentView is an appointment with its references resolved for
// display.
type AppointmentView struct {
	*models.Appointment
	ServiceName      string   `json:"service_name"`
	ServicePrice     *float64 `json:"service_price"`
	ServiceDuration  *int     `json:"service_duration"`
	PatientName      string   `json:"patient_name"`
	HealthCenterName string   `json:"health_center_name"`
}

type cacheEntry struct {
	doc map[string]interface{}
	ok  bool
}

// Resolver is a read-through cache over the document store. Create one per
// request so listing fifty appointments of the same service fetches the
// service once, and so nothing stale outlives the request.
type Resolver struct {
	store store.DocumentStore

	mu    sync.Mutex
	cache map[string]cacheEntry
}

func NewResolver(s store.DocumentStore) *Resolver {
	return &Resolver{store: s, cache: make(map[string]cacheEntry)}
}

// Fetch satisfies FetchFunc. Misses and read errors are cached as absent.
func (r *Resolver) Fetch(ctx context.Context, collection, id string) (map[string]interface{}, bool) {
	key := collection + "/" + id

	r.mu.Lock()
	entry, hit := r.cache[key]
	r.mu.Unlock()
	if hit {
		return entry.doc, entry.ok
	}

	doc, err := r.store.Get(ctx, collection, id)
	entry = cacheEntry{doc: doc, ok: err == nil}

	r.mu.Lock()
	r.cache[key] = entry
	r.mu.Unlock()
	return entry.doc, entry.ok
}

// Prime seeds the cache with a document already in hand.
func (r *Resolver) Prime(collection string, doc store.Document) {
	r.mu.Lock()
	r.cache[collection+"/"+doc.ID()] = cacheEntry{doc: doc, ok: true}
	r.mu.Unlock()
}

// View decodes an appointment document and resolves its references.
func (r *Resolver) View(ctx context.Context, doc store.Document) (*AppointmentView, error) {
	appt, err := models.DecodeAppointment(doc)
	if err != nil {
		return nil, err
	}
	raw := map[string]interface{}(doc)
	return &AppointmentView{
		Appointment:      appt,
		ServiceName:      ResolveServiceName(ctx, raw, r.Fetch),
		ServicePrice:     ResolveServicePrice(ctx, raw, r.Fetch),
		ServiceDuration:  ResolveServiceDuration(ctx, raw, r.Fetch),
		PatientName:      ResolvePatientName(ctx, raw, r.Fetch),
		HealthCenterName: ResolveHealthCenterName(ctx, raw, r.Fetch),
	}, nil
}

// Views resolves a list of appointment documents, skipping documents that
// cannot be decoded.
func (r *Resolver) Views(ctx context.Context, docs []store.Document) []*AppointmentView {
	views := make([]*AppointmentView, 0, len(docs))
	for _, doc := range docs {
		view, err := r.View(ctx, doc)
		if err != nil {
			continue
		}
		views = append(views, view)
	}
	return views
}
