package models

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("Request", 1), fiber.StatusNotFound},
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{NewConflictError("taken"), fiber.StatusConflict},
		{NewUpstreamError("security", errors.New("dial")), fiber.StatusBadGateway},
		{NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("Client", 3)), fiber.StatusNotFound},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("ctx: %w", NewConflictError("already accepted"))
	assert.True(t, IsCode(err, CodeConflict))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(errors.New("x"), CodeConflict))
}

func TestRespondWithErrorHidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("dsn password=secret")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), CodeInternal)
	assert.NotContains(t, string(body), "secret")
}
