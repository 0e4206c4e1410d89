package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ingestion/internal/apperrors"
)

//go:embed schemas/create_ingestion.json
var createIngestionSchema []byte

// requestValidator checks request bodies against a compiled JSON Schema.
type requestValidator struct {
	schema *jsonschema.Schema
}

func newRequestValidator(name string, raw []byte) (*requestValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &requestValidator{schema: schema}, nil
}

func mustRequestValidator(name string, raw []byte) *requestValidator {
	v, err := newRequestValidator(name, raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate decodes body as generic JSON and validates it. Failures are
// reported as validation errors naming the offending field.
func (v *requestValidator) Validate(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return apperrors.Validation("body", "invalid JSON: "+err.Error())
	}

	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return apperrors.Validation("body", err.Error())
	}
	leaf := deepestCause(ve)
	return apperrors.Validation(fieldName(leaf.InstanceLocation), leaf.Message)
}

func deepestCause(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// fieldName turns a JSON pointer such as /payload/name into payload.name.
func fieldName(pointer string) string {
	field := strings.ReplaceAll(strings.Trim(pointer, "/"), "/", ".")
	if field == "" {
		return "body"
	}
	return field
}
