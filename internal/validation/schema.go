// Package validation checks request payloads against embedded JSON Schemas.
package validation

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"akinmueble/internal/models"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// Schema IDs.
const (
	CreateRequest     = "create-request"
	CancelRequest     = "cancel-request"
	ChangeStatus      = "change-status"
	AssignToRequest   = "assign-to-request"
	AdviserChange     = "adviser-change"
	ContactForm       = "contact-form"
	ApplicationAnswer = "application-answer"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Validator holds compiled schemas keyed by their $id.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// NewValidator compiles every schema under schemas/.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		var header struct {
			ID string `json:"$id"`
		}
		if err := json.Unmarshal(raw, &header); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		if header.ID == "" {
			return nil, fmt.Errorf("schema %s has no $id", entry.Name())
		}
		compiled, err := gojsonschema.NewSchemaLoader().Compile(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", header.ID, err)
		}
		v.schemas[header.ID] = compiled
	}
	return v, nil
}

// Default returns the process-wide validator, compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// Validate checks body against the schema with the given $id using the
// default validator.
func Validate(schemaID string, body []byte) error {
	v, err := Default()
	if err != nil {
		return models.NewInternalError(err)
	}
	return v.Validate(schemaID, body)
}

// Validate returns a VALIDATION_ERROR AppError naming each failing field.
func (v *Validator) Validate(schemaID string, body []byte) error {
	schema, ok := v.schemas[schemaID]
	if !ok {
		return models.NewInternalError(fmt.Errorf("unknown schema %q", schemaID))
	}
	if len(body) == 0 {
		return models.NewValidationError("request body is required")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return models.NewValidationError("request body is not valid JSON")
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	sort.Strings(problems)
	return models.NewValidationError(strings.Join(problems, "; "))
}
