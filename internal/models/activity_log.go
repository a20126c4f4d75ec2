package models

// ActivityLog is an append-only record of something a user did.
type ActivityLog struct {
	ID          string                 `mapstructure:"id" json:"id"`
	UserID      string                 `mapstructure:"user_id" json:"user_id"`
	Action      string                 `mapstructure:"action" json:"action"`
	Description string                 `mapstructure:"description" json:"description"`
	IPAddress   string                 `mapstructure:"ip_address" json:"ip_address,omitempty"`
	UserAgent   string                 `mapstructure:"user_agent" json:"user_agent,omitempty"`
	Metadata    map[string]interface{} `mapstructure:"metadata" json:"metadata,omitempty"`
	CreatedAt   string                 `mapstructure:"created_at" json:"created_at"`
}

// Fields returns the document representation of the entry.
func (l *ActivityLog) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"user_id":     l.UserID,
		"action":      l.Action,
		"description": l.Description,
		"ip_address":  l.IPAddress,
		"user_agent":  l.UserAgent,
		"created_at":  l.CreatedAt,
	}
	if len(l.Metadata) > 0 {
		fields["metadata"] = l.Metadata
	}
	return fields
}
