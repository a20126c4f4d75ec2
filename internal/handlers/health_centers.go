package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

// HealthCenterHandler handles the health center catalog.
type HealthCenterHandler struct {
	Store    store.DocumentStore
	Recorder activity.Recorder
	now      func() time.Time
}

func NewHealthCenterHandler(s store.DocumentStore, recorder activity.Recorder) *HealthCenterHandler {
	return &HealthCenterHandler{Store: s, Recorder: recorder, now: time.Now}
}

// HealthCenterRequest is the body for creating or updating a health center.
type HealthCenterRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=255"`
	Address     *string `json:"address" binding:"omitempty,max=500"`
	Phone       *string `json:"phone" binding:"omitempty,max=30"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active"`
}

func (r HealthCenterRequest) apply(hc *models.HealthCenter) {
	if r.Name != nil {
		hc.Name = strings.TrimSpace(*r.Name)
	}
	if r.Address != nil {
		hc.Address = strings.TrimSpace(*r.Address)
	}
	if r.Phone != nil {
		hc.Phone = strings.TrimSpace(*r.Phone)
	}
	if r.Email != nil {
		hc.Email = strings.TrimSpace(*r.Email)
	}
	if r.Description != nil {
		hc.Description = strings.TrimSpace(*r.Description)
	}
	if r.IsActive != nil {
		hc.IsActive = *r.IsActive
	}
}

func validateHealthCenter(hc *models.HealthCenter) error {
	problems := map[string]string{}
	if hc.Name == "" {
		problems["name"] = "name is required"
	}
	if hc.Address == "" {
		problems["address"] = "address is required"
	}
	if len(problems) > 0 {
		return apperr.Validation("Validation failed", problems)
	}
	return nil
}

func (h *HealthCenterHandler) load(c *gin.Context) (*models.HealthCenter, error) {
	doc, err := getDocument(c.Request.Context(), h.Store, store.CollectionHealthCenters, c.Param("id"), "Health center not found")
	if err != nil {
		return nil, err
	}
	var hc models.HealthCenter
	if err := models.Decode(doc, &hc); err != nil {
		return nil, apperr.Internal("malformed health center", err)
	}
	return &hc, nil
}

// GetHealthCenters lists health centers, optionally only active ones.
func (h *HealthCenterHandler) GetHealthCenters(c *gin.Context) {
	q := store.Query{OrderBy: "name"}
	active, set, err := queryBool(c, "active")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if set {
		q = q.Where("is_active", active)
	}

	docs, err := h.Store.List(c.Request.Context(), store.CollectionHealthCenters, q)
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to fetch health centers", err))
		return
	}
	utils.Success(c, "Health centers fetched successfully", decodeAll[models.HealthCenter](docs))
}

func (h *HealthCenterHandler) GetHealthCenter(c *gin.Context) {
	hc, err := h.load(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Health center fetched successfully", hc)
}

func (h *HealthCenterHandler) CreateHealthCenter(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req HealthCenterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	hc := &models.HealthCenter{IsActive: true}
	req.apply(hc)
	if err := validateHealthCenter(hc); err != nil {
		utils.RespondError(c, err)
		return
	}
	stamp := models.Timestamp(h.now())
	hc.CreatedAt = stamp
	hc.UpdatedAt = stamp

	id, err := h.Store.Create(c.Request.Context(), store.CollectionHealthCenters, hc.Fields(), "")
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to create health center", err))
		return
	}
	hc.ID = id

	record(c, h.Recorder, me.UserID, activity.ActionHealthCenterCreated, "Created health center "+hc.Name,
		map[string]interface{}{"health_center_id": id})
	utils.Created(c, "Health center created successfully", hc)
}

func (h *HealthCenterHandler) UpdateHealthCenter(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req HealthCenterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	hc, err := h.load(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	req.apply(hc)
	if err := validateHealthCenter(hc); err != nil {
		utils.RespondError(c, err)
		return
	}
	hc.UpdatedAt = models.Timestamp(h.now())

	fields := hc.Fields()
	delete(fields, "created_at")
	if err := h.Store.Update(c.Request.Context(), store.CollectionHealthCenters, hc.ID, fields); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to update health center", err))
		return
	}

	record(c, h.Recorder, me.UserID, activity.ActionHealthCenterUpdated, "Updated health center "+hc.Name,
		map[string]interface{}{"health_center_id": hc.ID})
	utils.Success(c, "Health center updated successfully", hc)
}

func (h *HealthCenterHandler) DeleteHealthCenter(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	hc, err := h.load(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := h.Store.Delete(c.Request.Context(), store.CollectionHealthCenters, hc.ID); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to delete health center", err))
		return
	}

	record(c, h.Recorder, me.UserID, activity.ActionHealthCenterDeleted, fmt.Sprintf("Deleted health center %s", hc.Name),
		map[string]interface{}{"health_center_id": hc.ID})
	utils.Success(c, "Health center deleted successfully", nil)
}
