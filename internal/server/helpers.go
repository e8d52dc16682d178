package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"akinmueble/internal/models"
	"akinmueble/internal/validation"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPaginationLimit = 20
	maxPaginationLimit     = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseQueryID reads a required positive integer query parameter.
func parseQueryID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(name)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseQueryTime reads a required timestamp query parameter, either RFC 3339
// or a bare date.
func parseQueryTime(c *fiber.Ctx, name string) (time.Time, error) {
	raw := c.Query(name)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError(name+" must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"))
	return time.Time{}, errResponseWritten
}

// decodeBody validates the body against schemaID and decodes it into dest.
// On failure it writes a 400 response and returns errResponseWritten.
func decodeBody(c *fiber.Ctx, schemaID string, dest any) error {
	body := c.Body()
	if err := validation.Validate(schemaID, body); err != nil {
		_ = respondError(c, err)
		return errResponseWritten
	}
	if err := json.Unmarshal(body, dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("request body is not valid JSON"))
		return errResponseWritten
	}
	return nil
}

// respondError writes err with the status its code maps to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// bearer returns the token the permission gate accepted.
func bearer(c *fiber.Ctx) string {
	token, _ := c.Locals("token").(string)
	return token
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "adviserId" -> "adviser ID", "requestStatusId" -> "request status ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}
