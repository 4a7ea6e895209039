// Package schema holds the compiled per-shape validators for cleaned
// records: required fields, types, closed lowercase enums, and rejection of
// undeclared properties.
//
// Validation reports every violation found, not just the first, so a parked
// transcript carries enough detail for a reviewer to fix it in one pass.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/moorline/moorline/internal/ingest"
)

// shapeSchema is one shape's compiled validator: a resolved sub-schema per
// declared property plus the required-field list.
type shapeSchema struct {
	required []string
	props    map[string]*jsonschema.Resolved
}

// Registry maps every shape to its compiled validator. Construct once at
// startup with [NewRegistry]; the registry is immutable afterwards and safe
// for concurrent use.
type Registry struct {
	shapes map[ingest.Shape]*shapeSchema
}

var _ ingest.Validator = (*Registry)(nil)

// NewRegistry compiles the validators for all shapes.
func NewRegistry() (*Registry, error) {
	defs := map[ingest.Shape]struct {
		required []string
		props    map[string]*jsonschema.Schema
	}{
		ingest.ShapeQnA: {
			required: []string{"question", "answer", "harbour_name", "category", "tier", "tags"},
			props: map[string]*jsonschema.Schema{
				"question":     str(),
				"answer":       str(),
				"harbour_name": str(),
				"category":     enum("mooring", "anchoring", "provisioning", "navigation", "facilities", "local_knowledge"),
				"tier":         enum("free", "pro", "exclusive"),
				"tags":         strArray(),
			},
		},
		ingest.ShapeHarbour: {
			required: []string{"name", "island", "lat", "lon", "description", "facilities"},
			props: map[string]*jsonschema.Schema{
				"name":        str(),
				"island":      str(),
				"lat":         num(-90, 90),
				"lon":         num(-180, 180),
				"description": str(),
				"facilities":  strArray(),
				"vhf_channel": str(),
			},
		},
		ingest.ShapeWeather: {
			required: []string{"harbour_name", "wind_direction", "shelter_quality", "notes"},
			props: map[string]*jsonschema.Schema{
				"harbour_name":    str(),
				"wind_direction":  enum("n", "ne", "e", "se", "s", "sw", "w", "nw"),
				"shelter_quality": enum("excellent", "good", "moderate", "poor", "dangerous"),
				"notes":           str(),
			},
		},
		ingest.ShapeMedia: {
			required: []string{"harbour_name", "media_type", "caption"},
			props: map[string]*jsonschema.Schema{
				"harbour_name": str(),
				"media_type":   enum("photo", "video", "chart"),
				"caption":      str(),
				"url":          str(),
			},
		},
	}

	r := &Registry{shapes: make(map[ingest.Shape]*shapeSchema, len(defs))}
	for shape, def := range defs {
		compiled := &shapeSchema{
			required: def.required,
			props:    make(map[string]*jsonschema.Resolved, len(def.props)),
		}
		for name, s := range def.props {
			resolved, err := s.Resolve(nil)
			if err != nil {
				return nil, fmt.Errorf("schema: compiling %s.%s: %w", shape, name, err)
			}
			compiled.props[name] = resolved
		}
		r.shapes[shape] = compiled
	}
	return r, nil
}

// Validate checks raw against the shape's schema and returns every violation
// found, or nil when the candidate passes. An unknown shape yields a single
// violation rather than a panic; the pipeline treats it as unrecoverable.
func (r *Registry) Validate(shape ingest.Shape, raw []byte) []ingest.FieldViolation {
	s, ok := r.shapes[shape]
	if !ok {
		return []ingest.FieldViolation{{Path: "", Reason: fmt.Sprintf("unknown shape %q", shape)}}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return []ingest.FieldViolation{{Path: "", Reason: "candidate is not a JSON object"}}
	}

	var violations []ingest.FieldViolation
	for _, name := range s.required {
		if _, present := obj[name]; !present {
			violations = append(violations, ingest.FieldViolation{
				Path:   name,
				Reason: "required field is missing",
			})
		}
	}

	// Undeclared properties are rejected so cleaner vocabulary drift surfaces
	// here instead of silently dropping data at the transformer.
	extras := make([]string, 0)
	for name := range obj {
		if _, declared := s.props[name]; !declared {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	for _, name := range extras {
		violations = append(violations, ingest.FieldViolation{
			Path:   name,
			Reason: "property is not declared for this shape",
		})
	}

	names := make([]string, 0, len(obj))
	for name := range obj {
		if _, declared := s.props[name]; declared {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.props[name].Validate(obj[name]); err != nil {
			violations = append(violations, ingest.FieldViolation{
				Path:   name,
				Reason: err.Error(),
			})
		}
	}

	return violations
}

func str() *jsonschema.Schema {
	minLen := 1
	return &jsonschema.Schema{Type: "string", MinLength: &minLen}
}

func enum(values ...string) *jsonschema.Schema {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return &jsonschema.Schema{Type: "string", Enum: vals}
}

func num(lo, hi float64) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Minimum: &lo, Maximum: &hi}
}

func strArray() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	}
}
