package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/apperr"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// DashboardHandler serves staff statistics and the activity log.
type DashboardHandler struct {
	Store store.DocumentStore
	now   func() time.Time
}

func NewDashboardHandler(s store.DocumentStore) *DashboardHandler {
	return &DashboardHandler{Store: s, now: time.Now}
}

// Stats is the dashboard summary.
type Stats struct {
	UsersByRole          map[string]int `json:"users_by_role"`
	AppointmentsByStatus map[string]int `json:"appointments_by_status"`
	HealthCenters        int            `json:"health_centers"`
	Services             int            `json:"services"`
	TodayAppointments    int            `json:"today_appointments"`
}

// GetStats counts users, appointments and catalog entries.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := Stats{
		UsersByRole: map[string]int{
			string(models.RoleAdmin):        0,
			string(models.RoleHealthWorker): 0,
			string(models.RolePatient):      0,
		},
		AppointmentsByStatus: map[string]int{
			string(models.StatusPending):   0,
			string(models.StatusConfirmed): 0,
			string(models.StatusCompleted): 0,
			string(models.StatusCancelled): 0,
		},
	}

	users, err := h.Store.List(ctx, store.CollectionUsers, store.Query{})
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to load users", err))
		return
	}
	for _, doc := range users {
		raw, _ := doc["role"].(string)
		if role, ok := models.ParseRole(raw); ok {
			stats.UsersByRole[string(role)]++
		}
	}

	appts, err := h.Store.List(ctx, store.CollectionAppointments, store.Query{})
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to load appointments", err))
		return
	}
	today := h.now().Format(models.DateLayout)
	for _, doc := range appts {
		appt, err := models.DecodeAppointment(doc)
		if err != nil {
			continue
		}
		stats.AppointmentsByStatus[string(appt.Status)]++
		if appt.Date == today {
			stats.TodayAppointments++
		}
	}

	centers, err := h.Store.List(ctx, store.CollectionHealthCenters, store.Query{})
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to load health centers", err))
		return
	}
	stats.HealthCenters = len(centers)

	services, err := h.Store.List(ctx, store.CollectionServices, store.Query{})
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to load services", err))
		return
	}
	stats.Services = len(services)

	utils.Success(c, "Dashboard statistics fetched successfully", stats)
}

// GetLogs returns the newest activity entries (?user_id=, ?action=,
// ?limit=).
func (h *DashboardHandler) GetLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"limit": "limit must be a positive integer"}))
			return
		}
		limit = min(n, maxLogLimit)
	}

	q := store.Query{OrderBy: "created_at", Desc: true, Limit: limit}
	if userID := c.Query("user_id"); userID != "" {
		q = q.Where("user_id", userID)
	}
	if action := c.Query("action"); action != "" {
		q = q.Where("action", action)
	}

	docs, err := h.Store.List(c.Request.Context(), store.CollectionLogs, q)
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to load activity logs", err))
		return
	}
	utils.Success(c, "Activity logs fetched successfully", decodeAll[models.ActivityLog](docs))
}
