package validator

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
)

const minimalOpenAPI = `{
  "openapi": "3.0.0",
  "info": {"title": "MyGene.info API", "version": "1.0", "description": "Gene annotation service"},
  "paths": {}
}`

const minimalSwaggerYAML = `swagger: 2.0
info:
  title: Legacy API
  version: "1.2"
paths:
  /genes:
    get:
      responses:
        "200":
          description: ok
`

func TestValidate_OpenAPI3(t *testing.T) {
	res, err := New().Validate([]byte(minimalOpenAPI))
	require.NoError(t, err)

	assert.Equal(t, domain.FamilyOpenAPI3, res.Family)
	assert.Equal(t, "3.0.0", res.Version)
	assert.Equal(t, "MyGene.info API", res.Title)
	assert.Equal(t, "Gene annotation service", res.Description)
	assert.Contains(t, res.Document, "paths")
}

func TestValidate_OpenAPI3YAML(t *testing.T) {
	raw := "openapi: 3.0.3\ninfo:\n  title: YAML API\n  version: '2'\npaths: {}\n"
	res, err := New().Validate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "3.0.3", res.Version)
	assert.Equal(t, "YAML API", res.Title)
}

func TestValidate_Swagger2(t *testing.T) {
	res, err := New().Validate([]byte(minimalSwaggerYAML))
	require.NoError(t, err)
	assert.Equal(t, domain.FamilySwagger2, res.Family)
	assert.Equal(t, "2.0", res.Version)
	assert.Equal(t, "Legacy API", res.Title)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: "   "},
		{name: "not parseable", raw: "{not json"},
		{name: "scalar document", raw: "just a string"},
		{name: "unknown family", raw: `{"info": {"title": "x", "version": "1"}, "paths": {}}`},
		{name: "openapi v4", raw: `{"openapi": "4.0.0", "info": {"title": "x", "version": "1"}, "paths": {}}`},
		{name: "openapi missing info", raw: `{"openapi": "3.0.0", "paths": {}}`},
		{name: "swagger wrong version", raw: `{"swagger": "1.2", "info": {"title": "x", "version": "1"}, "paths": {}}`},
		{name: "swagger missing title", raw: `{"swagger": "2.0", "info": {"version": "1"}, "paths": {}}`},
		{name: "swagger missing paths", raw: `{"swagger": "2.0", "info": {"title": "x", "version": "1"}}`},
		{name: "swagger bad path", raw: `{"swagger": "2.0", "info": {"title": "x", "version": "1"}, "paths": {"genes": {}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Validate([]byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}
}

func TestValidate_UnknownFamilyMessage(t *testing.T) {
	_, err := New().Validate([]byte(`{"title": "nothing"}`))
	require.Error(t, err)
	assert.Contains(t, domain.ReasonOf(err), "unknown specification format")
}

// Re-validating the bytes that passed validation always yields the same version.
func TestValidate_Idempotent(t *testing.T) {
	v := New()
	rapid.Check(t, func(t *rapid.T) {
		patch := rapid.IntRange(0, 3).Draw(t, "patch")
		title := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,30}`).Draw(t, "title")
		doc := map[string]any{
			"openapi": fmt.Sprintf("3.0.%d", patch),
			"info":    map[string]any{"title": title, "version": "1.0.0"},
			"paths":   map[string]any{},
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		first, err := v.Validate(raw)
		if err != nil {
			t.Fatalf("first validation failed: %v", err)
		}
		second, err := v.Validate(raw)
		if err != nil {
			t.Fatalf("re-validation failed: %v", err)
		}
		if first.Version != second.Version || first.Family != second.Family {
			t.Fatalf("re-validation changed result: %+v vs %+v", first, second)
		}
	})
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "2.0", versionString(2.0))
	assert.Equal(t, "2.0", versionString(2))
	assert.Equal(t, "3.0.1", versionString("3.0.1"))
	assert.Equal(t, "", versionString(nil))
}
