package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/appointments"
	"healthreach-server/internal/apperr"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/middleware"
	"healthreach-server/internal/models"
	"healthreach-server/internal/store"
	"healthreach-server/internal/utils"
)

// caller returns the authenticated identity or writes a 401.
func caller(c *gin.Context) (*identity.Identity, bool) {
	id, ok := middleware.CurrentUser(c)
	if !ok {
		utils.Unauthorized(c, "Authentication required")
		return nil, false
	}
	return id, true
}

func requestMeta(c *gin.Context) appointments.Meta {
	return appointments.Meta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// record appends an activity entry for the current request.
func record(c *gin.Context, recorder activity.Recorder, userID, action, description string, metadata map[string]interface{}) {
	meta := requestMeta(c)
	recorder.Record(c.Request.Context(), activity.Entry{
		UserID:      userID,
		Action:      action,
		Description: description,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Metadata:    metadata,
	})
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, key string) (value bool, set bool, err error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return false, false, nil
	}
	value, err = strconv.ParseBool(raw)
	if err != nil {
		return false, false, apperr.Validation("Validation failed", map[string]string{key: key + " must be true or false"})
	}
	return value, true, nil
}

// getDocument loads a document, mapping absence to NotFound with the given
// message.
func getDocument(ctx context.Context, s store.DocumentStore, collection, id, notFound string) (store.Document, error) {
	doc, err := s.Get(ctx, collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(notFound)
	}
	if err != nil {
		return nil, apperr.Persistence("failed to load "+collection, err)
	}
	return doc, nil
}

func loadUser(ctx context.Context, s store.DocumentStore, id string) (*models.User, error) {
	doc, err := getDocument(ctx, s, store.CollectionUsers, id, "User not found")
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := models.Decode(doc, &user); err != nil {
		return nil, apperr.Internal("malformed user", err)
	}
	return &user, nil
}

// decodeAll decodes documents into models, skipping malformed ones.
func decodeAll[T any](docs []store.Document) []*T {
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := models.Decode(doc, &v); err != nil {
			continue
		}
		out = append(out, &v)
	}
	return out
}
