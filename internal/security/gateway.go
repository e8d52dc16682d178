package security

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"akinmueble/internal/models"
	"akinmueble/internal/observability"

	"github.com/goccy/go-json"
)

const serviceName = "security"

// Options configures a Gateway.
type Options struct {
	BaseURL       string
	Timeout       time.Duration
	AdviserRoleID string
	ClientRoleID  string
	HTTPClient    *http.Client
}

// Gateway is the HTTP client for the identity service.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	roles      map[Role]string
}

// NewGateway creates a Gateway from opts.
func NewGateway(opts Options) *Gateway {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Gateway{
		baseURL:    opts.BaseURL,
		httpClient: client,
		roles: map[Role]string{
			RoleAdviser: opts.AdviserRoleID,
			RoleClient:  opts.ClientRoleID,
		},
	}
}

type validateRequest struct {
	Token  string `json:"token"`
	IDMenu string `json:"idMenu"`
	Action Action `json:"action"`
}

// Validate asks the identity service whether token may perform action on
// resource. A refusal is (false, nil); only transport or upstream failures
// return an error.
func (g *Gateway) Validate(ctx context.Context, token string, resource Resource, action Action) (bool, error) {
	menuID := resource.MenuID()
	if token == "" || menuID == "" || !action.Valid() {
		return false, nil
	}

	ctx, span := observability.StartClientSpan(ctx, serviceName, "validate")
	defer observability.TrackUpstream(serviceName, "validate")()

	status, body, err := g.post(ctx, "/validate-permissions", "", validateRequest{
		Token:  token,
		IDMenu: menuID,
		Action: action,
	})
	if err != nil {
		observability.EndSpan(span, err)
		return false, err
	}
	observability.EndSpan(span, nil)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return false, nil
	case status >= 300:
		return false, models.NewUpstreamError(serviceName, fmt.Errorf("validate-permissions returned %d", status))
	}

	var permitted bool
	if err := json.Unmarshal(body, &permitted); err != nil {
		return false, models.NewUpstreamError(serviceName, fmt.Errorf("decode validate-permissions response: %w", err))
	}
	return permitted, nil
}

type credentialRequest struct {
	FirstName      string `json:"firstName"`
	SecondName     string `json:"secondName"`
	FirstLastname  string `json:"firstLastname"`
	SecondLastname string `json:"secondLastname"`
	Document       string `json:"document"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	RoleID         string `json:"roleId"`
}

// IssueCredentials registers person as a user with role in the identity
// service, forwarding the caller's bearer token.
func (g *Gateway) IssueCredentials(ctx context.Context, person models.Person, role Role, token string) (bool, error) {
	roleID := g.roles[role]
	if roleID == "" {
		return false, fmt.Errorf("no identity role configured for %s", role)
	}

	ctx, span := observability.StartClientSpan(ctx, serviceName, "issue_credentials")
	defer observability.TrackUpstream(serviceName, "issue_credentials")()

	status, _, err := g.post(ctx, "/user", token, credentialRequest{
		FirstName:      person.FirstName,
		SecondName:     person.SecondName,
		FirstLastname:  person.FirstLastname,
		SecondLastname: person.SecondLastname,
		Document:       person.Document,
		Email:          person.Email,
		Phone:          person.Phone,
		RoleID:         roleID,
	})
	if err == nil && status >= 300 {
		err = models.NewUpstreamError(serviceName, fmt.Errorf("create user returned %d", status))
	}
	observability.EndSpan(span, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *Gateway) post(ctx context.Context, path, bearer string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, models.NewUpstreamError(serviceName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, models.NewUpstreamError(serviceName, err)
	}
	return resp.StatusCode, body, nil
}
