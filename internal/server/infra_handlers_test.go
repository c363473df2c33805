package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"monolith/internal/config"
	"monolith/internal/imagekit"
	"monolith/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gormDB, mock
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"postId", "post ID"},
		{"storyCommentId", "story comment ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestReadiness(t *testing.T) {
	t.Run("without redis is degraded", func(t *testing.T) {
		env := newTestEnv(t, false)
		resp := env.do(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.status)
		assert.Equal(t, "degraded", resp.body["status"])
		checks := resp.body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "unavailable", checks["redis"])
	})

	t.Run("with redis is healthy", func(t *testing.T) {
		env := newTestEnv(t, true)
		resp := env.do(t, http.MethodGet, "/api", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.status)
		assert.Equal(t, "healthy", resp.body["status"])
		assert.Equal(t, 0, num(resp.body["pending_jobs"]))
	})

	t.Run("liveness", func(t *testing.T) {
		env := newTestEnv(t, false)
		resp := env.do(t, http.MethodGet, "/health/live", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.status)
		assert.Equal(t, "up", resp.body["status"])
	})
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	env := newTestEnv(t, false)
	resp := env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, false, resp.body["success"])
}

func TestImageKitAuth(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, false)
		resp := env.do(t, http.MethodGet, "/api/imagekit-auth", "", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.status)
	})

	t.Run("signs with the private key", func(t *testing.T) {
		env := newTestEnv(t, false, func(c *config.Config) {
			c.ImageKitPrivateKey = "private_test"
			c.ImageKitPublicKey = "public_test"
		})
		resp := env.do(t, http.MethodGet, "/api/imagekit-auth", "", nil)
		require.Equal(t, fiber.StatusOK, resp.status)

		token := resp.body["token"].(string)
		expire := int64(resp.body["expire"].(float64))
		assert.NotEmpty(t, token)
		assert.Equal(t, imagekit.Signature("private_test", token, expire), resp.body["signature"])
	})
}

func TestFeatureFlagsAdminOnly(t *testing.T) {
	env := newTestEnv(t, false, withFlags("realtime=on,story_views=off"))
	admin, adminToken := env.user(t, "root")
	_, userToken := env.user(t, "plain")
	require.NoError(t, env.db.Model(admin).Update("is_admin", true).Error)

	denied := env.do(t, http.MethodGet, "/api/admin/feature-flags", userToken, nil)
	assert.Equal(t, fiber.StatusForbidden, denied.status)
	assert.Equal(t, "Admin access required", denied.body["message"])

	resp := env.do(t, http.MethodGet, "/api/admin/feature-flags", adminToken, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	evaluated := resp.body["evaluated"].(map[string]any)
	assert.Equal(t, true, evaluated["realtime"])
	assert.Equal(t, false, evaluated["story_views"])
}

func TestRealtimeGate(t *testing.T) {
	upgrade := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
		req.Header.Set(fiber.HeaderConnection, "Upgrade")
		req.Header.Set(fiber.HeaderUpgrade, "websocket")
		req.Header.Set("Sec-WebSocket-Version", "13")
		req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
		return req
	}

	t.Run("plain GET needs an upgrade", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, token := env.user(t, "ws")
		resp := env.do(t, http.MethodGet, "/api/ws", token, nil)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.status)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		env := newTestEnv(t, true)
		resp := env.send(t, httptest.NewRequest(http.MethodGet, "/api/ws", nil))
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	})

	t.Run("flag off", func(t *testing.T) {
		env := newTestEnv(t, true, withFlags("realtime=off"))
		_, token := env.user(t, "ws")
		resp := env.send(t, upgrade(token))
		assert.Equal(t, fiber.StatusNotFound, resp.status)
	})

	t.Run("no hub without redis", func(t *testing.T) {
		env := newTestEnv(t, false)
		_, token := env.user(t, "ws")
		resp := env.send(t, upgrade(token))
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.status)
	})
}

func TestDatabaseFailureIsInternalError(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	gormDB, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("connection reset"))

	s, err := NewServerWithDeps(testConfig(), gormDB, nil)
	require.NoError(t, err)
	env := &testEnv{server: s, app: s.NewApp(), db: gormDB}

	token := issueTestToken(t, 7)
	resp := env.do(t, http.MethodGet, "/api/user", token, nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.status)
	assert.Equal(t, models.CodeInternal, resp.body["code"])
	assert.NotContains(t, resp.body["message"], "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
