package identity

import (
	"context"
	"errors"
	"fmt"

	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
)

// ErrAccountUnavailable means the caller's profile could not be read.
var ErrAccountUnavailable = errors.New("account status unavailable")

// ActiveVerifier checks the caller's profile after the token itself has
// been verified, so deactivation and role changes apply to tokens that were
// issued before them. The stored role wins over the role in the token.
type ActiveVerifier struct {
	Next  Verifier
	Users store.DocumentStore
}

func (v *ActiveVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	id, err := v.Next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	doc, err := v.Users.Get(ctx, store.CollectionUsers, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		// Registration creates the account before the profile.
		return id, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
	}
	if active, ok := doc["is_active"].(bool); ok && !active {
		return nil, ErrAccountDisabled
	}

	current := *id
	if raw, ok := doc["role"].(string); ok {
		if role, ok := models.ParseRole(raw); ok {
			current.Role = role
		}
	}
	return &current, nil
}
