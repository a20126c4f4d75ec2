package models

import "strings"

// Role enum
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleHealthWorker Role = "health_worker"
	RolePatient      Role = "patient"
)

// ParseRole normalises a role string. Unknown values return false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleHealthWorker, "healthworker", "health-worker":
		return RoleHealthWorker, true
	case RolePatient:
		return RolePatient, true
	}
	return "", false
}

// Privileged reports whether the role may change appointment status.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleHealthWorker
}

// User is the profile document stored under users/{uid}. The document id is
// the Firebase Auth uid.
type User struct {
	BaseModel      `mapstructure:",squash"`
	Email          string `mapstructure:"email" json:"email"`
	FirstName      string `mapstructure:"first_name" json:"first_name"`
	LastName       string `mapstructure:"last_name" json:"last_name"`
	Name           string `mapstructure:"name" json:"name,omitempty"`
	Phone          string `mapstructure:"phone" json:"phone,omitempty"`
	Address        string `mapstructure:"address" json:"address,omitempty"`
	Role           Role   `mapstructure:"role" json:"role"`
	HealthCenterID string `mapstructure:"health_center_id" json:"health_center_id,omitempty"`
	PhotoURL       string `mapstructure:"photo_url" json:"photo_url,omitempty"`
	IsActive       bool   `mapstructure:"is_active" json:"is_active"`
}

// DisplayName prefers first/last name and falls back to the legacy name field.
func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return strings.TrimSpace(u.Name)
}

// Fields returns the document representation of the user.
func (u *User) Fields() map[string]interface{} {
	return map[string]interface{}{
		"email":            u.Email,
		"first_name":       u.FirstName,
		"last_name":        u.LastName,
		"name":             u.DisplayName(),
		"phone":            u.Phone,
		"address":          u.Address,
		"role":             string(u.Role),
		"health_center_id": u.HealthCenterID,
		"photo_url":        u.PhotoURL,
		"is_active":        u.IsActive,
		"created_at":       u.CreatedAt,
		"updated_at":       u.UpdatedAt,
	}
}
