package security

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"akinmueble/internal/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(url string) *Gateway {
	return NewGateway(Options{
		BaseURL:       url,
		Timeout:       time.Second,
		AdviserRoleID: "role-adviser",
		ClientRoleID:  "role-client",
	})
}

func TestGateway_Validate(t *testing.T) {
	var got validateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate-permissions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		if got.Token == "good" {
			_, _ = w.Write([]byte("true"))
			return
		}
		_, _ = w.Write([]byte("false"))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	ctx := context.Background()

	ok, err := g.Validate(ctx, "good", ResourceRequest, ActionEdit)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "643dd7c10349685918540d80", got.IDMenu)
	assert.Equal(t, ActionEdit, got.Action)

	ok, err = g.Validate(ctx, "bad", ResourceProperty, ActionList)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateway_ValidateRejectsWithoutCalling(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("true"))
	}))
	defer srv.Close()

	g := newTestGateway(srv.URL)
	ctx := context.Background()

	ok, err := g.Validate(ctx, "", ResourceRequest, ActionEdit)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Validate(ctx, "tok", Resource("unknown"), ActionEdit)
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Validate(ctx, "tok", ResourceRequest, Action("listClient"))
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.Zero(t, calls)
}

func TestGateway_ValidateUpstreamFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	g := newTestGateway(srv.URL)

	ok, err := g.Validate(context.Background(), "tok", ResourceRequest, ActionList)
	assert.False(t, ok)
	assert.True(t, models.IsCode(err, models.CodeUpstream))

	srv.Close()
	ok, err = g.Validate(context.Background(), "tok", ResourceRequest, ActionList)
	assert.False(t, ok)
	assert.True(t, models.IsCode(err, models.CodeUpstream))
}

func TestGateway_ValidateForbiddenIsDenial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ok, err := newTestGateway(srv.URL).Validate(context.Background(), "tok", ResourceRequest, ActionList)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGateway_IssueCredentials(t *testing.T) {
	var got credentialRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	person := models.Person{Document: "1001", FirstName: "Laura", FirstLastname: "Mejia", Email: "laura@example.com", Phone: "3001234567"}
	ok, err := newTestGateway(srv.URL).IssueCredentials(context.Background(), person, RoleAdviser, "admin-token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Bearer admin-token", auth)
	assert.Equal(t, "role-adviser", got.RoleID)
	assert.Equal(t, "1001", got.Document)
	assert.Equal(t, "laura@example.com", got.Email)
}

func TestGateway_IssueCredentialsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	ok, err := newTestGateway(srv.URL).IssueCredentials(context.Background(), models.Person{}, RoleClient, "tok")
	assert.False(t, ok)
	assert.True(t, models.IsCode(err, models.CodeUpstream))
}

func TestResourceMenuIDs(t *testing.T) {
	assert.Equal(t, "642ce496db8a5109ec877cdb", ResourceProperty.MenuID())
	assert.Equal(t, "643dd8300349685918540d83", ResourceRequestType.MenuID())
	assert.Empty(t, Resource("nope").MenuID())
}
