package handlers

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/blob"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

// MaxPhotoSize is the largest accepted profile photo.
const MaxPhotoSize = 5 << 20

var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// AuthHandler handles authentication and profile requests.
type AuthHandler struct {
	Store    store.DocumentStore
	Accounts identity.AccountManager
	Firebase identity.Verifier
	Sessions *identity.SessionManager
	Uploader blob.Uploader
	Recorder activity.Recorder
	Log      *logger.Logger
	now      func() time.Time
}

// NewAuthHandler creates a new AuthHandler. uploader may be nil when photo
// storage is not configured.
func NewAuthHandler(s store.DocumentStore, accounts identity.AccountManager, firebase identity.Verifier, sessions *identity.SessionManager, uploader blob.Uploader, recorder activity.Recorder, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		Store:    s,
		Accounts: accounts,
		Firebase: firebase,
		Sessions: sessions,
		Uploader: uploader,
		Recorder: recorder,
		Log:      log,
		now:      time.Now,
	}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Phone     string `json:"phone" binding:"omitempty,max=30"`
}

// Register creates a patient account and its profile document.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user := &models.User{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Role:      models.RolePatient,
		IsActive:  true,
	}

	uid, err := h.Accounts.CreateAccount(ctx, identity.Account{
		Email:       user.Email,
		Password:    req.Password,
		DisplayName: user.DisplayName(),
		Role:        models.RolePatient,
	})
	if errors.Is(err, identity.ErrEmailExists) {
		utils.RespondError(c, apperr.Conflict("An account with this email already exists"))
		return
	}
	if err != nil {
		utils.RespondError(c, apperr.Unavailable("Failed to create account", err))
		return
	}

	stamp := models.Timestamp(h.now())
	user.ID = uid
	user.CreatedAt = stamp
	user.UpdatedAt = stamp
	if _, err := h.Store.Create(ctx, store.CollectionUsers, user.Fields(), uid); err != nil {
		if delErr := h.Accounts.DeleteAccount(ctx, uid); delErr != nil {
			h.Log.WithComponent("auth").WithError(delErr).WithField("user_id", uid).
				Error("failed to roll back account after profile write failure")
		}
		utils.RespondError(c, apperr.Persistence("Failed to create user profile", err))
		return
	}

	record(c, h.Recorder, uid, activity.ActionUserRegistered, "New patient registered: "+user.Email, nil)
	utils.Created(c, "User registered successfully", user)
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	IDToken      string       `json:"id_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         *models.User `json:"user"`
}

// Login exchanges email and password for Firebase tokens.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	result, err := h.Accounts.SignIn(ctx, strings.TrimSpace(req.Email), req.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		utils.RespondError(c, apperr.Unauthorized("Invalid email or password"))
		return
	case errors.Is(err, identity.ErrAccountDisabled):
		utils.RespondError(c, apperr.Forbidden("This account has been disabled"))
		return
	case err != nil:
		utils.RespondError(c, apperr.Unavailable("Sign in is temporarily unavailable", err))
		return
	}

	user, err := loadUser(ctx, h.Store, result.UserID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if !user.IsActive {
		utils.RespondError(c, apperr.Forbidden("This account has been deactivated"))
		return
	}

	record(c, h.Recorder, user.ID, activity.ActionUserLogin, "User logged in: "+user.Email, nil)
	utils.Success(c, "Login successful", LoginResponse{
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         user,
	})
}

// SessionRequest carries a Firebase ID token to exchange.
type SessionRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// SessionResponse is a server session token.
type SessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
}

// CreateSession exchanges a Firebase ID token for a session token.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req SessionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	token := strings.TrimSpace(req.IDToken)
	if identity.IsCustomToken(token) {
		utils.RespondError(c, apperr.Unauthorized("Custom tokens are not accepted. Exchange it for an ID token with Firebase first"))
		return
	}
	id, err := h.Firebase.Verify(ctx, token)
	if err != nil {
		_ = c.Error(err)
		utils.RespondError(c, apperr.Unauthorized("Invalid or expired ID token"))
		return
	}

	user, err := loadUser(ctx, h.Store, id.UserID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		utils.RespondError(c, err)
		return
	}
	if user != nil && !user.IsActive {
		utils.RespondError(c, apperr.Forbidden("This account has been deactivated"))
		return
	}

	signed, expiresAt, err := h.Sessions.Issue(id)
	if err != nil {
		utils.RespondError(c, apperr.Internal("Failed to issue session", err))
		return
	}
	record(c, h.Recorder, id.UserID, activity.ActionUserLogin, "Session started", map[string]interface{}{"method": "session"})
	utils.Created(c, "Session created", SessionResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		UserID:    id.UserID,
		Role:      id.Role,
	})
}

// Logout revokes the caller's Firebase refresh tokens.
func (h *AuthHandler) Logout(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	if err := h.Accounts.RevokeSessions(c.Request.Context(), me.UserID); err != nil {
		utils.RespondError(c, apperr.Unavailable("Failed to revoke sessions", err))
		return
	}
	record(c, h.Recorder, me.UserID, activity.ActionUserLogout, "User logged out", nil)
	utils.Success(c, "Logged out successfully", nil)
}

// GetProfile returns the caller's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	user, err := loadUser(c.Request.Context(), h.Store, me.UserID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user)
}

// UpdateProfileRequest represents the request body for updating a profile.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone" binding:"omitempty,max=30"`
	Address   *string `json:"address" binding:"omitempty,max=255"`
}

// UpdateProfile changes the caller's name and contact details.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := loadUser(ctx, h.Store, me.UserID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	changed := []string{}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
		changed = append(changed, "first_name")
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
		changed = append(changed, "last_name")
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
		changed = append(changed, "phone")
	}
	if req.Address != nil {
		user.Address = strings.TrimSpace(*req.Address)
		changed = append(changed, "address")
	}
	if len(changed) == 0 {
		utils.RespondError(c, apperr.Validation("No fields to update", nil))
		return
	}
	user.UpdatedAt = models.Timestamp(h.now())

	err = h.Store.Update(ctx, store.CollectionUsers, user.ID, store.Document{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"name":       user.DisplayName(),
		"phone":      user.Phone,
		"address":    user.Address,
		"updated_at": user.UpdatedAt,
	})
	if err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to update profile", err))
		return
	}

	record(c, h.Recorder, user.ID, activity.ActionProfileUpdated, "Profile updated",
		map[string]interface{}{"fields": strings.Join(changed, ",")})
	utils.Success(c, "Profile updated successfully", user)
}

// UploadPhoto stores a new profile photo.
func (h *AuthHandler) UploadPhoto(c *gin.Context) {
	me, ok := caller(c)
	if !ok {
		return
	}
	if h.Uploader == nil {
		utils.RespondError(c, apperr.Unavailable("Photo uploads are not configured", nil))
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"photo": "photo is required"}))
		return
	}
	if header.Size > MaxPhotoSize {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"photo": "photo must be at most 5 MB"}))
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"photo": "photo could not be read"}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxPhotoSize+1))
	if err != nil {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"photo": "photo could not be read"}))
		return
	}
	if len(data) > MaxPhotoSize {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"photo": "photo must be at most 5 MB"}))
		return
	}

	detected := mimetype.Detect(data)
	ext, allowed := photoTypes[detected.String()]
	if !allowed {
		utils.RespondError(c, apperr.Validation("Validation failed", map[string]string{"photo": "photo must be a JPEG, PNG or WebP image"}))
		return
	}

	ctx := c.Request.Context()
	user, err := loadUser(ctx, h.Store, me.UserID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	key := fmt.Sprintf("profile-photos/%s/%s%s", user.ID, models.NewID(), ext)
	url, err := h.Uploader.Upload(ctx, key, detected.String(), data)
	if err != nil {
		utils.RespondError(c, apperr.Unavailable("Failed to store photo", err))
		return
	}

	user.PhotoURL = url
	user.UpdatedAt = models.Timestamp(h.now())
	if err := h.Store.Update(ctx, store.CollectionUsers, user.ID, store.Document{
		"photo_url":  url,
		"updated_at": user.UpdatedAt,
	}); err != nil {
		utils.RespondError(c, apperr.Persistence("Failed to update profile", err))
		return
	}

	record(c, h.Recorder, user.ID, activity.ActionProfileUpdated, "Profile photo updated",
		map[string]interface{}{"fields": "photo_url"})
	utils.Success(c, "Photo uploaded successfully", user)
}
