package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// loadDocument walks up from the package directory to api/openapi.yaml and
// parses it.
func loadDocument(t *testing.T) *openapi3.T {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if data, err := os.ReadFile(candidate); err == nil {
			loader := &openapi3.Loader{IsExternalRefsAllowed: false}
			doc, err := loader.LoadFromData(data)
			if err != nil {
				t.Fatalf("parse %s: %v", candidate, err)
			}
			return doc
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return nil
}

func TestOpenAPIDocument(t *testing.T) {
	doc := loadDocument(t)
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI document invalid: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/lod",
		"/v1/geocode/reverse",
		"/v1/users/{id}/observations",
		"/v1/users/{id}/observations/counts",
		"/v1/users/{id}/grid",
		"/v1/users/{id}/markers",
		"/v1/sessions",
		"/v1/sessions/{id}",
		"/v1/sessions/{id}/view",
		"/v1/sessions/{id}/zoom",
		"/v1/sessions/{id}/place",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in doc", path)
		}
	}

	expectedSchemas := []string{
		"Observation",
		"GeoPoint",
		"CellBounds",
		"GridCell",
		"MapView",
		"Session",
		"LevelSelection",
		"PlaceName",
		"APIError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(doc.Paths.Map()), len(doc.Components.Schemas))
}

func TestOpenAPIInfo(t *testing.T) {
	doc := loadDocument(t)

	if doc.Info.Title != "obsmap API" {
		t.Errorf("expected title 'obsmap API', got %q", doc.Info.Title)
	}

	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}

	if doc.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(doc.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", doc.Info.Title, doc.Info.Version, doc.Servers[0].URL)
}
