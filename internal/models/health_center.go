package models

// HealthCenter is a clinic or facility that offers services.
type HealthCenter struct {
	BaseModel   `mapstructure:",squash"`
	Name        string `mapstructure:"name" json:"name"`
	Address     string `mapstructure:"address" json:"address"`
	Phone       string `mapstructure:"phone" json:"phone,omitempty"`
	Email       string `mapstructure:"email" json:"email,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty"`
	IsActive    bool   `mapstructure:"is_active" json:"is_active"`
}

// Fields returns the document representation of the health center.
func (h *HealthCenter) Fields() map[string]interface{} {
	return map[string]interface{}{
		"name":        h.Name,
		"address":     h.Address,
		"phone":       h.Phone,
		"email":       h.Email,
		"description": h.Description,
		"is_active":   h.IsActive,
		"created_at":  h.CreatedAt,
		"updated_at":  h.UpdatedAt,
	}
}
