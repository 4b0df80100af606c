// Package apidoc exposes the service's OpenAPI document and validates
// request bodies against it.
package apidoc

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var embedded []byte

// SummarizeRequestSchema names the request body schema of the summarize operations
const SummarizeRequestSchema = "SummarizeRequest"

// ErrSchemaViolation wraps request bodies that do not match the document
var ErrSchemaViolation = errors.New("request does not match schema")

// Document is a loaded and validated OpenAPI document
type Document struct {
	doc  *openapi3.T
	json []byte
}

// Route is one documented operation
type Route struct {
	Path        string
	Method      string
	OperationID string
}

// Load parses the embedded document
func Load() (*Document, error) {
	return LoadFromData(embedded)
}

// LoadFromData parses and validates an OpenAPI document from YAML or JSON
func LoadFromData(data []byte) (*Document, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("OpenAPI document validation failed: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}

	return &Document{doc: doc, json: raw}, nil
}

// JSON returns the document rendered as JSON
func (d *Document) JSON() []byte {
	return d.json
}

// Version returns info.version
func (d *Document) Version() string {
	if d.doc.Info == nil {
		return ""
	}
	return d.doc.Info.Version
}

// Routes lists documented operations sorted by path then method
func (d *Document) Routes() []Route {
	paths := d.doc.Paths.Map()
	routes := make([]Route, 0, len(paths))

	for path, item := range paths {
		for method, op := range item.Operations() {
			routes = append(routes, Route{
				Path:        path,
				Method:      method,
				OperationID: op.OperationID,
			})
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// Validate checks a decoded JSON value against a component schema
func (d *Document) Validate(schemaName string, value any) error {
	ref, ok := d.doc.Components.Schemas[schemaName]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %s not found", schemaName)
	}
	if err := ref.Value.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return nil
}

// ValidateSummarizeRequest checks a raw summarize request body
func (d *Document) ValidateSummarizeRequest(body []byte) error {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", ErrSchemaViolation, err)
	}
	return d.Validate(SummarizeRequestSchema, value)
}
