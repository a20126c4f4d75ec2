package appointments

import (
	"fmt"
	"strings"

	"healthreach-server/internal/apperr"
	"healthreach-server/internal/models"
)

// Policy decides what happens to status changes outside the standard graph.
type Policy string

const (
	// PolicyOverride accepts off-graph changes only when the request says
	// override.
	PolicyOverride Policy = "override"
	// PolicyStrict rejects every off-graph change.
	PolicyStrict Policy = "strict"
	// PolicyPermissive accepts any change.
	PolicyPermissive Policy = "permissive"
)

// ParsePolicy reads APPOINTMENT_TRANSITION_POLICY. Empty means override.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyOverride, nil
	case PolicyOverride, PolicyStrict, PolicyPermissive:
		return p, nil
	default:
		return "", fmt.Errorf("unknown appointment transition policy %q", s)
	}
}

var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
}

// Allowed reports whether from→to is an edge of the standard graph.
func Allowed(from, to models.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check validates a status change. Keeping the current status is always
// accepted.
func (p Policy) Check(from, to models.AppointmentStatus, override bool) error {
	if from == to || Allowed(from, to) {
		return nil
	}
	switch p {
	case PolicyPermissive:
		return nil
	case PolicyOverride:
		if override {
			return nil
		}
		return apperr.Validation("Invalid status transition", map[string]string{
			"status": fmt.Sprintf("cannot change status from %s to %s without override", from, to),
		})
	default:
		return apperr.Validation("Invalid status transition", map[string]string{
			"status": fmt.Sprintf("cannot change status from %s to %s", from, to),
		})
	}
}
