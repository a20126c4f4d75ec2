package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

// ServiceHandler handles the bookable service catalog.
type ServiceHandler struct {
	Store    store.DocumentStore
	Recorder activity.Recorder
	now      func() time.Time
}

func NewServiceHandler(s store.DocumentStore, recorder activity.Recorder) *ServiceHandler {
	return &ServiceHandler{Store: s, Recorder: recorder, now: time.Now}
}

// ServiceRequest is the body for creating or updating a service.
type ServiceRequest struct {
	HealthCenterID *string                `json:"health_center_id"`
	Name           *string                `json:"name" binding:"omitempty,max=255"`
	Description    *string                `json:"description" binding:"omitempty,max=2000"`
	Duration       *int                   `json:"duration"`
	Price          *float64               `json:"price"`
	IsActive       *bool                  `json:"is_active"`
	Schedule       *[]models.ScheduleSlot `json:"schedule"`
}

func (r ServiceRequest) apply(s *models.Service) {
	if r.HealthCenterID != nil {
		s.HealthCenterID = strings.TrimSpace(*r.HealthCenterID)
	}
	if r.Name != nil {
		s.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		s.Description = strings.TrimSpace(*r.Description)
	}
	if r.Duration != nil {
		s.Duration = r.Duration
	}
	if r.Price != nil {
		s.Price = r.Price
	}
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
	if r.Schedule != nil {
		s.Schedule = *r.Schedule
	}
}

func (h *ServiceHandler) validate(c *gin.Context, s *models.Service) error {
	if problems := s.Validate(); len(problems) > 0 {
		return apperr.Validation("Validation failed", problems)
	}
	_, err := getDocument(c.Request.Context(), h.Store, store.CollectionHealthCenters, s.HealthCenterID, "Health center not found")
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Validation("Validation failed", map[string]string{"health_center_id": "health center does not exist"})
	}
	return err
}

func (h *ServiceHandler) load(c *gin.Context) (*models.Service, error) {
	doc, err := getDocument(c.Request.Context(), h.Store, store.CollectionServices, c.Param("id"), "Service not found")
	if err != nil {
		return nil, err
	}
	var s models.Service
	if err := models.Decode(doc, &s); err != nil {
		return nil, apperr.Internal("malformed service", err)
	}
	return &s, nil
}

// GetServices lists services (?health_center_id=, ?active=).
func (h *ServiceHandler) GetServices(c *gin.Context) {
	q := store.Query{OrderBy: "name"}
	if centerID := c.Query("health_center_id"); centerID != "" {
		q = q.Where("health_center_id", centerID)
	}
	active, set, err := queryBool(c, "active")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if set {
		q = q.Where("is_active", active)
	}

	docs, err := h.Store.List(c.Request.Context(), store.CollectionServices, q)
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to fetch services", err))
		return
	}
	utils.Success(c, "Services fetched successfully", decodeAll[models.Service](docs))
}

func (h *ServiceHandler) GetService(c *gin.Context) {
	s, err := h.load(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Service fetched successfully", s)
}

func (h *ServiceHandler) CreateService(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req ServiceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	s := &models.Service{IsActive: true}
	req.apply(s)
	if err := h.validate(c, s); err != nil {
		utils.RespondError(c, err)
		return
	}
	stamp := models.Timestamp(h.now())
	s.CreatedAt = stamp
	s.UpdatedAt = stamp

	id, err := h.Store.Create(c.Request.Context(), store.CollectionServices, s.Fields(), "")
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to create service", err))
		return
	}
	s.ID = id

	record(c, h.Recorder, me.UserID, activity.ActionServiceCreated, "Created service "+s.Name,
		map[string]interface{}{"service_id": id, "health_center_id": s.HealthCenterID})
	utils.Created(c, "Service created successfully", s)
}

func (h *ServiceHandler) UpdateService(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req ServiceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	s, err := h.load(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	req.apply(s)
	if err := h.validate(c, s); err != nil {
		utils.RespondError(c, err)
		return
	}
	s.UpdatedAt = models.Timestamp(h.now())

	fields := s.Fields()
	delete(fields, "created_at")
	if err := h.Store.Update(c.Request.Context(), store.CollectionServices, s.ID, fields); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to update service", err))
		return
	}

	record(c, h.Recorder, me.UserID, activity.ActionServiceUpdated, "Updated service "+s.Name,
		map[string]interface{}{"service_id": s.ID})
	utils.Success(c, "Service updated successfully", s)
}

func (h *ServiceHandler) DeleteService(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	s, err := h.load(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := h.Store.Delete(c.Request.Context(), store.CollectionServices, s.ID); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to delete service", err))
		return
	}

	record(c, h.Recorder, me.UserID, activity.ActionServiceDeleted, "Deleted service "+s.Name,
		map[string]interface{}{"service_id": s.ID})
	utils.Success(c, "Service deleted successfully", nil)
}
