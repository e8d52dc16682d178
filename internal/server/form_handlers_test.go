package server

import (
	"net/http"
	"testing"

	"akinmueble/internal/models"
	"akinmueble/internal/security"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactForm() map[string]any {
	return map[string]any{
		"message":     "I would like to list my apartment.",
		"messageType": "listing",
		"fullName":    "Sara Gomez",
		"document":    "1053",
		"email":       "sara@example.com",
		"phone":       "3005550000",
	}
}

func TestContactForm(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(t, http.MethodPost, "/contact-form", contactForm())
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), models.CodeInternal)
	assert.Empty(t, env.mailer.recipients())

	env.f.SeedSystemVariables(t, env.db)
	status, body = env.do(t, http.MethodPost, "/contact-form", contactForm())
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"sent":true,"messageId":"msg-1"}`, string(body))
	assert.Equal(t, []string{"admin@example.com"}, env.mailer.recipients())

	form := contactForm()
	form["email"] = "not-an-email"
	status, _ = env.do(t, http.MethodPost, "/contact-form", form)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSendAdviserApplication(t *testing.T) {
	env := newTestEnv(t, nil)
	env.f.SeedSystemVariables(t, env.db)

	status, body := env.do(t, http.MethodPost, "/send-message-advisor-request", contactForm())
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, []string{"admin@example.com"}, env.mailer.recipients())
}

func TestAdviserApplicationAnswers(t *testing.T) {
	env := newTestEnv(t, nil)
	var pending models.Adviser
	pending.Document, pending.FirstName, pending.FirstLastname, pending.Email = "A9", "Nora", "Vega", "nora@example.com"
	require.NoError(t, env.db.Create(&pending).Error)

	status, body := env.do(t, http.MethodPost, "/adviser-form-accepted/"+itoa(pending.ID), map[string]any{"message": "Welcome aboard"})
	require.Equal(t, http.StatusOK, status, string(body))
	var accepted models.Adviser
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.True(t, accepted.Accepted)
	assert.Equal(t, []security.Role{security.RoleAdviser}, env.identity.roles)
	assert.Equal(t, []string{"test-token"}, env.identity.tokens)
	assert.Equal(t, []string{"nora@example.com"}, env.mailer.recipients())

	status, body = env.do(t, http.MethodPost, "/adviser-form-rejected/"+itoa(pending.ID), nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var rejected models.Adviser
	require.NoError(t, json.Unmarshal(body, &rejected))
	assert.False(t, rejected.Accepted)

	env.identity.issue = false
	status, body = env.do(t, http.MethodPost, "/adviser-form-accepted/"+itoa(pending.ID), nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, string(body), models.CodeUpstream)

	status, _ = env.do(t, http.MethodPost, "/adviser-form-accepted/999", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"adviserId", "adviser ID"},
		{"requestStatusId", "request status ID"},
		{"startDate", "startDate"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}
