// Package resolve turns appointment documents with missing, stale or
// differently shaped embedded data into displayable values. Every function
// here is total: it never panics and always returns something a view can
// render.
package resolve

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"healthreach-server/internal/store"
)

// NotAvailable is shown when a name cannot be resolved.
const NotAvailable = "N/A"

// unknownUser is a placeholder older clients embedded instead of a real
// patient name.
const unknownUser = "Unknown User"

// FetchFunc loads a referenced document by collection and id. It reports
// false when the document does not exist or cannot be read.
type FetchFunc func(ctx context.Context, collection, id string) (map[string]interface{}, bool)

// ResolveServiceName returns the service name for an appointment.
func ResolveServiceName(ctx context.Context, appt map[string]interface{}, fetch FetchFunc) string {
	if name := nonEmptyString(subMap(appt, "service")["name"]); name != "" {
		return name
	}
	if svc, ok := fetchRef(ctx, appt, fetch, store.CollectionServices, "service_id"); ok {
		if name := nonEmptyString(svc["name"]); name != "" {
			return name
		}
	}
	return NotAvailable
}

// ResolveServicePrice returns the service price, or nil when unknown.
func ResolveServicePrice(ctx context.Context, appt map[string]interface{}, fetch FetchFunc) *float64 {
	if price, ok := toFloat(subMap(appt, "service")["price"]); ok {
		return &price
	}
	if svc, ok := fetchRef(ctx, appt, fetch, store.CollectionServices, "service_id"); ok {
		if price, ok := toFloat(svc["price"]); ok {
			return &price
		}
	}
	return nil
}

// ResolveServiceDuration returns the service duration in minutes, or nil
// when unknown.
func ResolveServiceDuration(ctx context.Context, appt map[string]interface{}, fetch FetchFunc) *int {
	if d, ok := toFloat(subMap(appt, "service")["duration"]); ok {
		minutes := int(d)
		return &minutes
	}
	if svc, ok := fetchRef(ctx, appt, fetch, store.CollectionServices, "service_id"); ok {
		if d, ok := toFloat(svc["duration"]); ok {
			minutes := int(d)
			return &minutes
		}
	}
	return nil
}

// ResolvePatientName returns the patient's display name.
func ResolvePatientName(ctx context.Context, appt map[string]interface{}, fetch FetchFunc) string {
	for _, key := range []string{"user", "patient"} {
		if name := personName(subMap(appt, key)); name != "" {
			return name
		}
	}
	if user, ok := fetchRef(ctx, appt, fetch, store.CollectionUsers, "patient_id", "user_id"); ok {
		if name := personName(user); name != "" {
			return name
		}
	}
	return NotAvailable
}

// ResolveHealthCenterName returns the health center name.
func ResolveHealthCenterName(ctx context.Context, appt map[string]interface{}, fetch FetchFunc) string {
	if name := nonEmptyString(subMap(appt, "health_center")["name"]); name != "" {
		return name
	}
	if hc, ok := fetchRef(ctx, appt, fetch, store.CollectionHealthCenters, "health_center_id"); ok {
		if name := nonEmptyString(hc["name"]); name != "" {
			return name
		}
	}
	return NotAvailable
}

func personName(m map[string]interface{}) string {
	if m == nil {
		return ""
	}
	candidates := []string{
		strings.TrimSpace(nonEmptyString(m["first_name"]) + " " + nonEmptyString(m["last_name"])),
		nonEmptyString(m["name"]),
		nonEmptyString(m["display_name"]),
	}
	for _, c := range candidates {
		if c != "" && !strings.EqualFold(c, unknownUser) {
			return c
		}
	}
	return ""
}

func fetchRef(ctx context.Context, appt map[string]interface{}, fetch FetchFunc, collection string, keys ...string) (map[string]interface{}, bool) {
	if fetch == nil {
		return nil, false
	}
	for _, key := range keys {
		if id := nonEmptyString(appt[key]); id != "" {
			if doc, ok := fetch(ctx, collection, id); ok && doc != nil {
				return doc, true
			}
		}
	}
	return nil, false
}

func subMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	sub, _ := m[key].(map[string]interface{})
	return sub
}

func nonEmptyString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
