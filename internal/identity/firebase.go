package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"

	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
)

var (
	ErrEmailExists        = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// Account is the input for creating a Firebase Auth user.
type Account struct {
	Email       string
	Password    string
	DisplayName string
	Role        models.Role
}

// SignInResult is what a successful password sign-in yields.
type SignInResult struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// AccountManager performs account administration against the identity
// provider.
type AccountManager interface {
	CreateAccount(ctx context.Context, account Account) (string, error)
	SetRole(ctx context.Context, uid string, role models.Role) error
	RevokeSessions(ctx context.Context, uid string) error
	DeleteAccount(ctx context.Context, uid string) error
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
}

const signInEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

// FirebaseAuth verifies ID tokens and manages accounts through the Firebase
// Admin SDK.
type FirebaseAuth struct {
	client    *auth.Client
	users     store.DocumentStore
	apiKey    string
	http      *http.Client
	signInURL string
}

// NewFirebaseAuth creates the Firebase-backed verifier and account
// manager. users is consulted for the role when a token carries no role
// claim (accounts created before claims were introduced).
func NewFirebaseAuth(client *auth.Client, users store.DocumentStore, apiKey string, timeout time.Duration) *FirebaseAuth {
	return &FirebaseAuth{
		client:    client,
		users:     users,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: timeout},
		signInURL: signInEndpoint,
	}
}

func (a *FirebaseAuth) Verify(ctx context.Context, token string) (*Identity, error) {
	verified, err := a.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &Identity{UserID: verified.UID, Kind: TokenFirebaseID}
	if email, ok := verified.Claims["email"].(string); ok {
		id.Email = email
	}
	if raw, ok := verified.Claims["role"].(string); ok {
		if role, ok := models.ParseRole(raw); ok {
			id.Role = role
		}
	}
	if id.Role == "" {
		id.Role = a.lookupRole(ctx, verified.UID)
	}
	return id, nil
}

func (a *FirebaseAuth) lookupRole(ctx context.Context, uid string) models.Role {
	if a.users == nil {
		return models.RolePatient
	}
	doc, err := a.users.Get(ctx, store.CollectionUsers, uid)
	if err != nil {
		return models.RolePatient
	}
	if raw, ok := doc["role"].(string); ok {
		if role, ok := models.ParseRole(raw); ok {
			return role
		}
	}
	return models.RolePatient
}

func (a *FirebaseAuth) CreateAccount(ctx context.Context, account Account) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(account.Email).
		Password(account.Password).
		DisplayName(account.DisplayName)

	user, err := a.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", ErrEmailExists
		}
		return "", fmt.Errorf("create firebase user: %w", err)
	}

	if err := a.SetRole(ctx, user.UID, account.Role); err != nil {
		return user.UID, err
	}
	return user.UID, nil
}

func (a *FirebaseAuth) SetRole(ctx context.Context, uid string, role models.Role) error {
	if err := a.client.SetCustomUserClaims(ctx, uid, map[string]interface{}{"role": string(role)}); err != nil {
		return fmt.Errorf("set role claim: %w", err)
	}
	return nil
}

func (a *FirebaseAuth) RevokeSessions(ctx context.Context, uid string) error {
	if err := a.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (a *FirebaseAuth) DeleteAccount(ctx context.Context, uid string) error {
	if err := a.client.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("delete firebase user: %w", err)
	}
	return nil
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges email and password for an ID token through the Identity
// Toolkit REST API; the Admin SDK has no password sign-in.
func (a *FirebaseAuth) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if a.apiKey == "" {
		return nil, errors.New("FIREBASE_WEB_API_KEY is not configured")
	}

	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}

	endpoint := a.signInURL + "?key=" + url.QueryEscape(a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign in request: %w", err)
	}
	defer resp.Body.Close()

	var out signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sign in response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || out.Error != nil {
		message := ""
		if out.Error != nil {
			message = out.Error.Message
		}
		return nil, signInError(resp.StatusCode, message)
	}

	expiresIn, _ := strconv.Atoi(out.ExpiresIn)
	return &SignInResult{
		UserID:       out.LocalID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

func signInError(status int, message string) error {
	switch {
	case strings.HasPrefix(message, "USER_DISABLED"):
		return ErrAccountDisabled
	case strings.HasPrefix(message, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(message, "INVALID_PASSWORD"),
		strings.HasPrefix(message, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(message, "INVALID_EMAIL"):
		return ErrInvalidCredentials
	}
	return fmt.Errorf("sign in failed with status %d: %s", status, message)
}
