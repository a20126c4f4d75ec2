package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/models"
)

type staticVerifier struct {
	id  *identity.Identity
	err error
}

func (v staticVerifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	return v.id, v.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, method, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareHeaderFormats(t *testing.T) {
	worker := &identity.Identity{UserID: "HW1", Role: models.RoleHealthWorker}
	router := gin.New()
	router.GET("/me", AuthMiddleware(staticVerifier{id: worker}), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"valid", "Bearer token", http.StatusOK},
		{"lowercase scheme", "bearer token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/me", tt.header)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "HW1", w.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareCustomToken(t *testing.T) {
	router := gin.New()
	router.GET("/me", AuthMiddleware(staticVerifier{err: identity.ErrCustomToken}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/me", "Bearer custom")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Custom tokens are not accepted")
}

func TestAuthMiddlewareAccountStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"deactivated", identity.ErrAccountDisabled, http.StatusForbidden},
		{"profile unreadable", fmt.Errorf("%w: firestore timeout", identity.ErrAccountUnavailable), http.StatusServiceUnavailable},
		{"bad token", identity.ErrInvalidToken, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/me", AuthMiddleware(staticVerifier{err: tt.err}), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			assert.Equal(t, tt.code, serve(router, http.MethodGet, "/me", "Bearer token").Code)
		})
	}
}

func TestRoleAuthMiddleware(t *testing.T) {
	patient := &identity.Identity{UserID: "P1", Role: models.RolePatient}
	router := gin.New()
	router.GET("/staff",
		AuthMiddleware(staticVerifier{id: patient}),
		RoleAuthMiddleware(models.RoleAdmin, models.RoleHealthWorker),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	router.GET("/patients",
		AuthMiddleware(staticVerifier{id: patient}),
		RoleAuthMiddleware(models.RolePatient),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	router.GET("/anonymous", RoleAuthMiddleware(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/staff", "Bearer t").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/patients", "Bearer t").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/anonymous", "").Code)
}

func TestMetricsCountByRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/appointments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/appointments/A1", "")
	serve(router, http.MethodGet, "/appointments/A2", "")
	serve(router, http.MethodGet, "/nowhere", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "/appointments/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRequestLoggerReportsErrors(t *testing.T) {
	base, hook := logtest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	log := &logger.Logger{Logger: base}

	router := gin.New()
	router.Use(RequestLogger(log))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("firestore unavailable"))
		c.Status(http.StatusServiceUnavailable)
	})

	serve(router, http.MethodGet, "/boom", "")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.ErrorLevel, entries[0].Level)
	assert.Equal(t, "http", entries[0].Data["component"])
	assert.Equal(t, http.StatusServiceUnavailable, entries[1].Data["status_code"])
}

func TestRequestTimeoutSetsDeadline(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(2 * time.Second))
	router.GET("/deadline", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/deadline", "").Code)

	unbounded := gin.New()
	unbounded.Use(RequestTimeout(0))
	unbounded.GET("/deadline", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(unbounded, http.MethodGet, "/deadline", "").Code)
}
