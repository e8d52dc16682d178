package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"akinmueble/internal/config"
	"akinmueble/internal/models"
	"akinmueble/internal/notifications"
	"akinmueble/internal/search"
	"akinmueble/internal/security"
	"akinmueble/internal/testutil"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testToken = "Bearer test-token"

type identityStub struct {
	mu      sync.Mutex
	allowed bool
	issue   bool
	tokens  []string
	roles   []security.Role
	checks  []string
}

func (i *identityStub) Validate(_ context.Context, _ string, resource security.Resource, action security.Action) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.checks = append(i.checks, string(resource)+":"+string(action))
	return i.allowed, nil
}

func (i *identityStub) lastCheck() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.checks) == 0 {
		return ""
	}
	return i.checks[len(i.checks)-1]
}

func (i *identityStub) IssueCredentials(_ context.Context, _ models.Person, role security.Role, token string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens = append(i.tokens, token)
	i.roles = append(i.roles, role)
	return i.issue, nil
}

type mailerStub struct {
	mu   sync.Mutex
	sent []notifications.Email
}

func (m *mailerStub) Email(_ context.Context, msg notifications.Email) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return "msg-1"
}

func (m *mailerStub) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, e := range m.sent {
		out = append(out, e.To)
	}
	return out
}

type indexStub struct {
	result *search.Result
	query  search.Query
}

func (ix *indexStub) Upsert(context.Context, ...models.Property) error { return nil }
func (ix *indexStub) Delete(context.Context, uint) error               { return nil }
func (ix *indexStub) Search(_ context.Context, q search.Query) (*search.Result, error) {
	ix.query = q
	return ix.result, nil
}

type testEnv struct {
	server   *Server
	app      *fiber.App
	db       *gorm.DB
	f        *testutil.Fixture
	identity *identityStub
	mailer   *mailerStub
}

func newTestEnv(t *testing.T, index *indexStub) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	env := &testEnv{
		db:       db,
		f:        testutil.Seed(t, db),
		identity: &identityStub{allowed: true, issue: true},
		mailer:   &mailerStub{},
	}
	deps := Deps{Identity: env.identity, Mailer: env.mailer}
	if index != nil {
		deps.Index = index
	}
	cfg := &config.Config{Port: "0", Env: "test", StaleRequestAge: 72 * time.Hour}

	s, err := NewServerWithDeps(cfg, db, nil, deps)
	require.NoError(t, err)
	env.server = s
	env.app = s.App()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", testToken)
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (e *testEnv) reload(t *testing.T, id uint) *models.Request {
	t.Helper()
	var r models.Request
	require.NoError(t, e.db.First(&r, id).Error)
	return &r
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestNewServerWithDeps_RequiresCollaborators(t *testing.T) {
	_, err := NewServerWithDeps(&config.Config{}, nil, nil, Deps{Mailer: &mailerStub{}})
	assert.Error(t, err)
	_, err = NewServerWithDeps(&config.Config{}, nil, nil, Deps{Identity: &identityStub{}})
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	var ready struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(body, &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "unavailable", ready.Checks["redis"])
}

func TestPermissionGate(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/city", nil)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.identity.allowed = false
	status, body := env.do(t, http.MethodGet, "/city", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), models.CodeUnauthorized)

	status, _ = env.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	status, body := env.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), models.CodeNotFound)
}

func TestFiberErrorCode(t *testing.T) {
	assert.Equal(t, models.CodeNotFound, fiberErrorCode(http.StatusNotFound))
	assert.Equal(t, models.CodeUnauthorized, fiberErrorCode(http.StatusUnauthorized))
	assert.Equal(t, models.CodeValidation, fiberErrorCode(http.StatusMethodNotAllowed))
	assert.Equal(t, models.CodeInternal, fiberErrorCode(http.StatusServiceUnavailable))
}
