package models

import (
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Layouts for the date and time fields of an appointment.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseStatus normalises a status string. Unknown values return false.
func ParseStatus(s string) (AppointmentStatus, bool) {
	status := AppointmentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return status, true
	}
	return "", false
}

// Describe returns the past-tense wording used in notifications.
func (s AppointmentStatus) Describe() string {
	switch s {
	case StatusPending:
		return "set back to pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCompleted:
		return "marked as completed"
	case StatusCancelled:
		return "cancelled"
	}
	return "updated"
}

// Appointment is a patient's booking of a service at a health center.
type Appointment struct {
	BaseModel      `mapstructure:",squash"`
	PatientID      string            `mapstructure:"patient_id" json:"patient_id"`
	HealthCenterID string            `mapstructure:"health_center_id" json:"health_center_id"`
	ServiceID      string            `mapstructure:"service_id" json:"service_id"`
	Date           string            `mapstructure:"date" json:"date"`
	Time           string            `mapstructure:"time" json:"time"`
	Status         AppointmentStatus `mapstructure:"status" json:"status"`
	Remarks        string            `mapstructure:"remarks" json:"remarks"`
	Notes          string            `mapstructure:"notes" json:"notes,omitempty"`
}

// DecodeAppointment decodes a raw document. Documents written by early
// clients keep the patient under user_id; that value is used when
// patient_id is absent.
func DecodeAppointment(doc map[string]interface{}) (*Appointment, error) {
	var appt Appointment
	if err := Decode(doc, &appt); err != nil {
		return nil, err
	}
	if appt.PatientID == "" {
		if legacy, ok := doc["user_id"].(string); ok {
			appt.PatientID = legacy
		}
	}
	if appt.Status == "" {
		appt.Status = StatusPending
	}
	return &appt, nil
}

// Fields returns the document representation of the appointment.
func (a *Appointment) Fields() map[string]interface{} {
	return map[string]interface{}{
		"patient_id":       a.PatientID,
		"health_center_id": a.HealthCenterID,
		"service_id":       a.ServiceID,
		"date":             a.Date,
		"time":             a.Time,
		"status":           string(a.Status),
		"remarks":          a.Remarks,
		"notes":            a.Notes,
		"created_at":       a.CreatedAt,
		"updated_at":       a.UpdatedAt,
	}
}

// ScheduledAt combines date and time in the given location.
func (a *Appointment) ScheduledAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
}
