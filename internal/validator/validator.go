// Package validator parses API-description documents and checks them against their
// specification family.
//
// Documents are modelled as a tagged union: the family is detected from the
// top-level "openapi" or "swagger" key and each family has its own conformance
// check. Anything else is the unknown variant, which never validates.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
)

// Result is the outcome of a successful validation.
type Result struct {
	Family      domain.Family
	Version     string
	Title       string
	Description string
	// Document is the parsed form, used for projection.
	Document map[string]any
}

// Validator holds no state; one instance can be shared by any number of goroutines.
type Validator struct{}

func New() *Validator { return &Validator{} }

// Validate parses raw (JSON or YAML) and checks it. It never needs a URL or owner,
// so it doubles as the validation-only mode used by previews and dry runs.
func (v *Validator) Validate(raw []byte) (*Result, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	variant := detect(doc)
	version, err := variant.check(raw, doc)
	if err != nil {
		return nil, err
	}

	title, description := infoText(doc)
	return &Result{
		Family:      variant.family(),
		Version:     version,
		Title:       title,
		Description: description,
		Document:    doc,
	}, nil
}

// Parse decodes raw bytes into a generic mapping without any conformance checks.
func Parse(raw []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, domain.Validation("empty document")
	}

	var doc map[string]any
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, domain.Wrap(domain.KindValidation, err, "document is not valid JSON")
		}
		return doc, nil
	}
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, domain.Wrap(domain.KindValidation, err, "document is neither valid JSON nor YAML")
	}
	if doc == nil {
		return nil, domain.Validation("document must be a mapping at the top level")
	}
	return doc, nil
}

// ─────────────────────────────────────────────────────────────────
// Variants
// ─────────────────────────────────────────────────────────────────

type variant interface {
	family() domain.Family
	check(raw []byte, doc map[string]any) (string, error)
}

func detect(doc map[string]any) variant {
	if v, ok := doc["openapi"]; ok {
		return openAPI3{version: versionString(v)}
	}
	if v, ok := doc["swagger"]; ok {
		return swagger2{version: versionString(v)}
	}
	return unknown{}
}

type openAPI3 struct{ version string }

func (openAPI3) family() domain.Family { return domain.FamilyOpenAPI3 }

func (o openAPI3) check(raw []byte, _ map[string]any) (string, error) {
	if !strings.HasPrefix(o.version, "3.") {
		return "", domain.Validation("unsupported openapi version %q, expected 3.x", o.version)
	}

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return "", domain.Wrap(domain.KindValidation, err, "invalid openapi document")
	}
	ctx := loader.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := spec.Validate(ctx); err != nil {
		return "", domain.Wrap(domain.KindValidation, err, "openapi document failed validation")
	}
	return o.version, nil
}

type swagger2 struct{ version string }

func (swagger2) family() domain.Family { return domain.FamilySwagger2 }

func (s swagger2) check(_ []byte, doc map[string]any) (string, error) {
	if s.version != "2.0" {
		return "", domain.Validation("unsupported swagger version %q, expected 2.0", s.version)
	}

	info, ok := doc["info"].(map[string]any)
	if !ok {
		return "", domain.Validation("swagger document requires an info object")
	}
	if str(info["title"]) == "" {
		return "", domain.Validation("swagger document requires info.title")
	}
	if versionString(info["version"]) == "" {
		return "", domain.Validation("swagger document requires info.version")
	}

	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return "", domain.Validation("swagger document requires a paths object")
	}
	for p := range paths {
		if strings.HasPrefix(p, "x-") {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			return "", domain.Validation("swagger path %q must begin with '/'", p)
		}
	}
	return s.version, nil
}

type unknown struct{}

func (unknown) family() domain.Family { return "" }

func (unknown) check([]byte, map[string]any) (string, error) {
	return "", domain.Validation("unknown specification format: expected an \"openapi\" or \"swagger\" version field")
}

// ─────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────

// versionString renders a version field that YAML may have decoded as a number (swagger: 2.0).
func versionString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int:
		return strconv.Itoa(t) + ".0"
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func infoText(doc map[string]any) (string, string) {
	info, _ := doc["info"].(map[string]any)
	return str(info["title"]), str(info["description"])
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
