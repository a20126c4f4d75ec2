package handlers

import (
	"github.com/gin-gonic/gin"

	"healthreach-server/internal/appointments"
	"healthreach-server/internal/utils"
)

// AppointmentHandler exposes the appointment workflow over HTTP.
type AppointmentHandler struct {
	Workflow *appointments.Workflow
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(w *appointments.Workflow) *AppointmentHandler {
	return &AppointmentHandler{Workflow: w}
}

// CreateAppointment books an appointment for the calling patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req appointments.CreateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	view, err := h.Workflow.Create(c.Request.Context(), me, req, requestMeta(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", view)
}

// GetAppointments lists the caller's appointments, or all of them for
// staff.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	views, err := h.Workflow.List(c.Request.Context(), me, appointments.ListFilter{
		Status:         c.Query("status"),
		HealthCenterID: c.Query("health_center_id"),
		Date:           c.Query("date"),
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", views)
}

// GetAppointmentByID fetches one appointment for its patient or staff.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	view, err := h.Workflow.Get(c.Request.Context(), me, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", view)
}

// UpdateAppointment changes status (staff) or reschedules (patient).
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req appointments.UpdateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	view, err := h.Workflow.Update(c.Request.Context(), me, c.Param("id"), req, requestMeta(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", view)
}

// DeleteAppointment removes an appointment (admin).
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	if err := h.Workflow.Delete(c.Request.Context(), me, c.Param("id"), requestMeta(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointment deleted successfully", nil)
}
