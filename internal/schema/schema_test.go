package schema_test

import (
	"strings"
	"testing"

	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r, err := schema.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestValidatePasses(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	tests := []struct {
		name  string
		shape ingest.Shape
		raw   string
	}{
		{
			name:  "qna",
			shape: ingest.ShapeQnA,
			raw:   `{"question": "Depth at the quay?", "answer": "About 3m.", "harbour_name": "Kioni", "category": "mooring", "tier": "free", "tags": ["mooring:depth"]}`,
		},
		{
			name:  "harbour with optional vhf",
			shape: ingest.ShapeHarbour,
			raw:   `{"name": "Vathi", "island": "Ithaca", "lat": 38.3661, "lon": 20.7258, "description": "Main port.", "facilities": ["water"], "vhf_channel": "12"}`,
		},
		{
			name:  "harbour without optional vhf",
			shape: ingest.ShapeHarbour,
			raw:   `{"name": "Frikes", "island": "Ithaca", "lat": 38.4533, "lon": 20.6622, "description": "Small fishing village.", "facilities": []}`,
		},
		{
			name:  "weather",
			shape: ingest.ShapeWeather,
			raw:   `{"harbour_name": "Kioni", "wind_direction": "ne", "shelter_quality": "poor", "notes": "Swell works in."}`,
		},
		{
			name:  "media without optional url",
			shape: ingest.ShapeMedia,
			raw:   `{"harbour_name": "Kioni", "media_type": "photo", "caption": "Windmills."}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if v := r.Validate(tc.shape, []byte(tc.raw)); len(v) != 0 {
				t.Fatalf("Validate: expected pass, got violations %+v", v)
			}
		})
	}
}

func TestValidateViolations(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)

	tests := []struct {
		name      string
		shape     ingest.Shape
		raw       string
		wantPaths []string
	}{
		{
			name:      "missing required fields",
			shape:     ingest.ShapeQnA,
			raw:       `{"question": "Depth?", "harbour_name": "Kioni", "category": "mooring", "tier": "free"}`,
			wantPaths: []string{"answer", "tags"},
		},
		{
			name:      "out of range coordinates",
			shape:     ingest.ShapeHarbour,
			raw:       `{"name": "Vathi", "island": "Ithaca", "lat": 9999, "lon": 9999, "description": "x", "facilities": []}`,
			wantPaths: []string{"lat", "lon"},
		},
		{
			name:      "enum violations",
			shape:     ingest.ShapeWeather,
			raw:       `{"harbour_name": "Kioni", "wind_direction": "north-east", "shelter_quality": "fine", "notes": "x"}`,
			wantPaths: []string{"wind_direction", "shelter_quality"},
		},
		{
			name:      "uppercase enum rejected",
			shape:     ingest.ShapeMedia,
			raw:       `{"harbour_name": "Kioni", "media_type": "Photo", "caption": "x"}`,
			wantPaths: []string{"media_type"},
		},
		{
			name:      "undeclared property",
			shape:     ingest.ShapeMedia,
			raw:       `{"harbour_name": "Kioni", "media_type": "photo", "caption": "x", "rating": 5}`,
			wantPaths: []string{"rating"},
		},
		{
			name:      "wrong type",
			shape:     ingest.ShapeQnA,
			raw:       `{"question": "Depth?", "answer": "3m.", "harbour_name": "Kioni", "category": "mooring", "tier": "free", "tags": "mooring:depth"}`,
			wantPaths: []string{"tags"},
		},
		{
			name:      "not an object",
			shape:     ingest.ShapeQnA,
			raw:       `["not", "an", "object"]`,
			wantPaths: []string{""},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			violations := r.Validate(tc.shape, []byte(tc.raw))
			if len(violations) != len(tc.wantPaths) {
				t.Fatalf("Validate: expected %d violations at %v, got %+v",
					len(tc.wantPaths), tc.wantPaths, violations)
			}
			got := make([]string, len(violations))
			for i, v := range violations {
				got[i] = v.Path
			}
			for _, want := range tc.wantPaths {
				found := false
				for _, g := range got {
					if g == want {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Validate: expected violation at %q, got paths %v", want, got)
				}
			}
		})
	}
}

func TestValidateUnknownShape(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	violations := r.Validate(ingest.Shape("logbook"), []byte(`{}`))
	if len(violations) != 1 || !strings.Contains(violations[0].Reason, "unknown shape") {
		t.Fatalf("Validate: expected single unknown-shape violation, got %+v", violations)
	}
}
