package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthreach-server/internal/identity"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
)

// AdminInput is what the create-admin command collects.
type AdminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// CreateAdmin creates a Firebase account with the admin role and its
// profile document. An existing account with the same email is an error.
func CreateAdmin(ctx context.Context, accounts identity.AccountManager, docs store.DocumentStore, in AdminInput, now time.Time) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Email == "":
		return nil, errors.New("email is required")
	case len(in.Password) < 8:
		return nil, errors.New("password must be at least 8 characters")
	case strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "":
		return nil, errors.New("first and last name are required")
	}

	user := &models.User{
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      models.RoleAdmin,
		IsActive:  true,
	}

	uid, err := accounts.CreateAccount(ctx, identity.Account{
		Email:       user.Email,
		Password:    in.Password,
		DisplayName: user.DisplayName(),
		Role:        models.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	user.ID = uid
	user.CreatedAt = models.Timestamp(now)
	user.UpdatedAt = user.CreatedAt
	if _, err := docs.Create(ctx, store.CollectionUsers, user.Fields(), uid); err != nil {
		return nil, fmt.Errorf("write user profile: %w", err)
	}
	return user, nil
}
