package models

// NotificationType classifies an in-app notification
type NotificationType string

const (
	NotificationAppointment NotificationType = "appointment"
	NotificationService     NotificationType = "service"
	NotificationAdmin       NotificationType = "admin"
	NotificationGeneral     NotificationType = "general"
)

// Valid reports whether t is one of the known types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationAppointment, NotificationService, NotificationAdmin, NotificationGeneral:
		return true
	}
	return false
}

// Notification is an in-app message addressed to one user.
type Notification struct {
	BaseModel `mapstructure:",squash"`
	UserID    string            `mapstructure:"user_id" json:"user_id"`
	Title     string            `mapstructure:"title" json:"title"`
	Message   string            `mapstructure:"message" json:"message"`
	Type      NotificationType  `mapstructure:"type" json:"type"`
	IsRead    bool              `mapstructure:"is_read" json:"is_read"`
	Data      map[string]string `mapstructure:"data" json:"data,omitempty"`
}

// Fields returns the document representation of the notification.
func (n *Notification) Fields() map[string]interface{} {
	data := make(map[string]interface{}, len(n.Data))
	for k, v := range n.Data {
		data[k] = v
	}
	return map[string]interface{}{
		"user_id":    n.UserID,
		"title":      n.Title,
		"message":    n.Message,
		"type":       string(n.Type),
		"is_read":    n.IsRead,
		"data":       data,
		"created_at": n.CreatedAt,
		"updated_at": n.UpdatedAt,
	}
}

// Device platforms accepted for push tokens
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// DeviceToken is one registered push endpoint of a user.
type DeviceToken struct {
	BaseModel `mapstructure:",squash"`
	UserID    string `mapstructure:"user_id" json:"user_id"`
	Token     string `mapstructure:"token" json:"-"`
	Platform  string `mapstructure:"platform" json:"platform"`
}

// Fields returns the document representation of the device token.
func (d *DeviceToken) Fields() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    d.UserID,
		"token":      d.Token,
		"platform":   d.Platform,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}
}
