package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"monolith/internal/cache"
	"monolith/internal/config"
	"monolith/internal/middleware"
	"monolith/internal/models"
	"monolith/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
	rdb    *redis.Client
}

type envOption func(*config.Config)

func withCSRF() envOption {
	return func(c *config.Config) { c.CSRFEnabled = true }
}

func withFlags(raw string) envOption {
	return func(c *config.Config) { c.FeatureFlags = raw }
}

func testConfig(opts ...envOption) *config.Config {
	cfg := &config.Config{
		JWTSecret:            testSecret,
		Env:                  "test",
		Port:                 "0",
		SessionCookieName:    "monolith_session",
		SessionTTLHours:      24,
		FrontendURL:          "http://localhost:5173",
		ImageMaxUploadSizeMB: 2,
		StoryTTLHours:        24,
		JobPollIntervalMS:    50,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// newTestEnv builds the full app on an in-memory database. With withRedis the
// global cache client points at a miniredis instance for the test's lifetime.
func newTestEnv(t *testing.T, withRedis bool, opts ...envOption) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := testConfig(opts...)
	cfg.MediaDir = t.TempDir()
	db := testutil.NewSQLiteDB(t)

	var rdb *redis.Client
	if withRedis {
		_, rdb = testutil.NewRedis(t)
		cache.SetClient(rdb)
		t.Cleanup(func() { cache.SetClient(nil) })
	}

	s, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testEnv{server: s, app: s.NewApp(), db: db, rdb: rdb}
}

func (e *testEnv) user(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	u := testutil.CreateUser(t, e.db, name)
	return u, issueTestToken(t, u.ID)
}

func issueTestToken(t *testing.T, userID uint) string {
	t.Helper()
	token, _, err := middleware.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = jsonBody(t, body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out := response{status: resp.StatusCode, cookies: resp.Cookies()}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}
