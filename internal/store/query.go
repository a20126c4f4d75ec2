package store

import (
	"fmt"
	"sort"
)

// The memory and SQL drivers evaluate queries in process.

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !equalValues(doc[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
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
	}
	return 0, false
}

func lessValues(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af < bf
		}
	}
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func applyQuery(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if matches(doc, q.Filters) {
			out = append(out, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Desc {
				return lessValues(out[j][q.OrderBy], out[i][q.OrderBy])
			}
			return lessValues(out[i][q.OrderBy], out[j][q.OrderBy])
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
