package models

import (
	"fmt"
	"strings"
	"time"
)

// Bounds for a service's duration in minutes.
const (
	MinServiceDuration = 1
	MaxServiceDuration = 480
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ScheduleSlot is one weekly availability window of a service.
type ScheduleSlot struct {
	Day       string `mapstructure:"day" json:"day"`
	StartTime string `mapstructure:"start_time" json:"start_time"`
	EndTime   string `mapstructure:"end_time" json:"end_time"`
}

// Service is something a health center offers that can be booked.
type Service struct {
	BaseModel      `mapstructure:",squash"`
	HealthCenterID string         `mapstructure:"health_center_id" json:"health_center_id"`
	Name           string         `mapstructure:"name" json:"name"`
	Description    string         `mapstructure:"description" json:"description"`
	Duration       *int           `mapstructure:"duration" json:"duration"`
	Price          *float64       `mapstructure:"price" json:"price"`
	IsActive       bool           `mapstructure:"is_active" json:"is_active"`
	Schedule       []ScheduleSlot `mapstructure:"schedule" json:"schedule"`
}

// Validate checks duration, price and schedule. The returned map is keyed
// by json field name and is empty when the service is valid.
func (s *Service) Validate() map[string]string {
	problems := map[string]string{}
	if strings.TrimSpace(s.Name) == "" {
		problems["name"] = "name is required"
	}
	if s.HealthCenterID == "" {
		problems["health_center_id"] = "health_center_id is required"
	}
	if s.Duration != nil && (*s.Duration < MinServiceDuration || *s.Duration > MaxServiceDuration) {
		problems["duration"] = fmt.Sprintf("duration must be between %d and %d minutes", MinServiceDuration, MaxServiceDuration)
	}
	if s.Price != nil && *s.Price < 0 {
		problems["price"] = "price must not be negative"
	}
	for i, slot := range s.Schedule {
		if err := slot.validate(); err != nil {
			problems[fmt.Sprintf("schedule.%d", i)] = err.Error()
		}
	}
	return problems
}

func (slot ScheduleSlot) validate() error {
	if _, ok := weekdays[strings.ToLower(slot.Day)]; !ok {
		return fmt.Errorf("unknown day %q", slot.Day)
	}
	start, err := time.Parse(TimeLayout, slot.StartTime)
	if err != nil {
		return fmt.Errorf("start_time must be HH:MM")
	}
	end, err := time.Parse(TimeLayout, slot.EndTime)
	if err != nil {
		return fmt.Errorf("end_time must be HH:MM")
	}
	if !start.Before(end) {
		return fmt.Errorf("start_time must be before end_time")
	}
	return nil
}

// Available reports whether a booking at date/clock fits the schedule. A
// service without a schedule is always available.
func (s *Service) Available(date time.Time, clock string) bool {
	if len(s.Schedule) == 0 {
		return true
	}
	at, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return false
	}
	for _, slot := range s.Schedule {
		if weekdays[strings.ToLower(slot.Day)] != date.Weekday() {
			continue
		}
		start, errStart := time.Parse(TimeLayout, slot.StartTime)
		end, errEnd := time.Parse(TimeLayout, slot.EndTime)
		if errStart != nil || errEnd != nil {
			continue
		}
		if !at.Before(start) && at.Before(end) {
			return true
		}
	}
	return false
}

// Fields returns the document representation of the service.
func (s *Service) Fields() map[string]interface{} {
	schedule := make([]interface{}, 0, len(s.Schedule))
	for _, slot := range s.Schedule {
		schedule = append(schedule, map[string]interface{}{
			"day":        strings.ToLower(slot.Day),
			"start_time": slot.StartTime,
			"end_time":   slot.EndTime,
		})
	}

	fields := map[string]interface{}{
		"health_center_id": s.HealthCenterID,
		"name":             s.Name,
		"description":      s.Description,
		"duration":         nil,
		"price":            nil,
		"is_active":        s.IsActive,
		"schedule":         schedule,
		"created_at":       s.CreatedAt,
		"updated_at":       s.UpdatedAt,
	}
	if s.Duration != nil {
		fields["duration"] = *s.Duration
	}
	if s.Price != nil {
		fields["price"] = *s.Price
	}
	return fields
}
