// Package identity verifies bearer tokens and manages accounts. Firebase
// Authentication is the source of truth; the server additionally mints its
// own short session tokens for the dashboard.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"healthreach-server/internal/models"
)

// TokenKind records which verifier accepted a token.
type TokenKind string

const (
	TokenFirebaseID TokenKind = "firebase_id_token"
	TokenSession    TokenKind = "session"
)

// Identity is the single, typed description of the caller that the auth
// middleware attaches to every request.
type Identity struct {
	UserID string
	Role   models.Role
	Email  string
	Kind   TokenKind
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrCustomToken  = errors.New("firebase custom tokens must be exchanged for an ID token before use")
)

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// customTokenAudience is the audience Firebase puts on server-minted
// custom tokens.
const customTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

// peekClaims reads claims without checking the signature. It is only used
// to route a token to the right verifier.
func peekClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// IsCustomToken reports whether token looks like a Firebase custom token.
func IsCustomToken(token string) bool {
	claims, ok := peekClaims(token)
	if !ok {
		return false
	}
	aud, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range aud {
		if a == customTokenAudience {
			return true
		}
	}
	return false
}

// ChainVerifier routes session tokens to the session verifier and
// everything else to Firebase.
type ChainVerifier struct {
	Sessions *SessionManager
	Firebase Verifier
}

func (v *ChainVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	if IsCustomToken(token) {
		return nil, ErrCustomToken
	}
	if claims, ok := peekClaims(token); ok && v.Sessions != nil {
		if iss, _ := claims.GetIssuer(); iss == SessionIssuer {
			return v.Sessions.Verify(ctx, token)
		}
	}
	if v.Firebase == nil {
		return nil, ErrInvalidToken
	}
	return v.Firebase.Verify(ctx, token)
}
