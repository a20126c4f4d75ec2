package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

// UserHandler handles user administration (admin only).
type UserHandler struct {
	Store    store.DocumentStore
	Accounts identity.AccountManager
	Recorder activity.Recorder
	now      func() time.Time
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(s store.DocumentStore, accounts identity.AccountManager, recorder activity.Recorder) *UserHandler {
	return &UserHandler{Store: s, Accounts: accounts, Recorder: recorder, now: time.Now}
}

// GetUsers lists users, optionally filtered by ?role=.
func (h *UserHandler) GetUsers(c *gin.Context) {
	q := store.Query{OrderBy: "created_at", Desc: true}
	if raw := c.Query("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"role": "unknown role"}))
			return
		}
		q = q.Where("role", string(role))
	}

	docs, err := h.Store.List(c.Request.Context(), store.CollectionUsers, q)
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to fetch users", err))
		return
	}
	utils.Success(c, "Users fetched successfully", decodeAll[models.User](docs))
}

// GetUserByID fetches one user.
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := loadUser(c.Request.Context(), h.Store, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user)
}

// UpdateUserRequest represents the fields an admin may change.
type UpdateUserRequest struct {
	Role           *string `json:"role" binding:"omitempty,oneof=admin health_worker patient"`
	HealthCenterID *string `json:"health_center_id"`
	IsActive       *bool   `json:"is_active"`
}

// UpdateUser changes a user's role, health center or active flag.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.Role == nil && req.HealthCenterID == nil && req.IsActive == nil {
		utils.RespondError(c, apperr.Validation("No fields to update", nil))
		return
	}
	ctx := c.Request.Context()

	user, err := loadUser(ctx, h.Store, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if user.ID == me.UserID {
		if req.Role != nil && models.Role(*req.Role) != models.RoleAdmin {
			utils.RespondError(c, apperr.Forbidden("You cannot change your own role"))
			return
		}
		if req.IsActive != nil && !*req.IsActive {
			utils.RespondError(c, apperr.Forbidden("You cannot deactivate your own account"))
			return
		}
	}

	changes := store.Document{}
	previous := store.Document{"updated_at": user.UpdatedAt}
	previousRole := user.Role
	wasActive := user.IsActive
	if req.Role != nil {
		previous["role"] = string(user.Role)
		user.Role = models.Role(*req.Role)
		changes["role"] = string(user.Role)
	}
	if req.HealthCenterID != nil {
		centerID := strings.TrimSpace(*req.HealthCenterID)
		if centerID != "" {
			if _, err := getDocument(ctx, h.Store, store.CollectionHealthCenters, centerID, "Health center not found"); err != nil {
				utils.RespondError(c, err)
				return
			}
		}
		previous["health_center_id"] = user.HealthCenterID
		user.HealthCenterID = centerID
		changes["health_center_id"] = centerID
	}
	if req.IsActive != nil {
		previous["is_active"] = user.IsActive
		user.IsActive = *req.IsActive
		changes["is_active"] = user.IsActive
	}

	user.UpdatedAt = models.Timestamp(h.now())
	changes["updated_at"] = user.UpdatedAt
	if err := h.Store.Update(ctx, store.CollectionUsers, user.ID, changes); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to update user", err))
		return
	}

	roleChanged := user.Role != previousRole
	if roleChanged {
		if err := h.Accounts.SetRole(ctx, user.ID, user.Role); err != nil {
			if restoreErr := h.Store.Update(ctx, store.CollectionUsers, user.ID, previous); restoreErr != nil {
				_ = c.Error(fmt.Errorf("restore user %s after role claim failure: %w", user.ID, restoreErr))
			}
			utils.RespondError(c, apperr.Unavailable("Failed to update role claim", err))
			return
		}
	}

	// Refresh tokens minted under the old role or active state are revoked.
	if roleChanged || (wasActive && !user.IsActive) {
		if err := h.Accounts.RevokeSessions(ctx, user.ID); err != nil {
			_ = c.Error(fmt.Errorf("revoke sessions for %s: %w", user.ID, err))
		}
	}

	metadata := map[string]interface{}{"target_user_id": user.ID}
	if roleChanged {
		metadata["old_role"] = string(previousRole)
		metadata["new_role"] = string(user.Role)
	}
	record(c, h.Recorder, me.UserID, activity.ActionUserUpdated, fmt.Sprintf("Updated user %s", user.Email), metadata)
	utils.Success(c, "User updated successfully", user)
}

// DeleteUser removes the Firebase account and the profile document.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if id == me.UserID {
		utils.RespondError(c, apperr.Forbidden("You cannot delete your own account"))
		return
	}
	user, err := loadUser(ctx, h.Store, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if err := h.Accounts.DeleteAccount(ctx, id); err != nil {
		utils.RespondError(c, apperr.Unavailable("Failed to delete account", err))
		return
	}
	if err := h.Store.Delete(ctx, store.CollectionUsers, id); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to delete user", err))
		return
	}

	record(c, h.Recorder, me.UserID, activity.ActionUserDeleted, fmt.Sprintf("Deleted user %s", user.Email),
		map[string]interface{}{"target_user_id": id})
	utils.Success(c, "User deleted successfully", nil)
}
