package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/moorline/moorline/internal/ingest"
	"github.com/moorline/moorline/internal/observe"
	"github.com/moorline/moorline/pkg/provider/llm/mock"
)

const cleanedQnA = `{"question": "How do I stern-to in Kioni?", "answer": "1. Drop anchor three lengths out. 2. Reverse slowly to the quay.", "harbour_name": "Kioni", "category": "mooring", "tier": "free", "tags": ["mooring:stern-to"]}`

type fakeValidator struct {
	violations []ingest.FieldViolation
	raw        []byte
}

func (f *fakeValidator) Validate(_ ingest.Shape, raw []byte) []ingest.FieldViolation {
	f.raw = raw
	return f.violations
}

type fakeResolver struct {
	id    string
	err   error
	names []string
}

func (f *fakeResolver) Resolve(_ context.Context, name string) (string, error) {
	f.names = append(f.names, name)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

type insertCall struct {
	shape ingest.Shape
	cols  ingest.Columns
}

type fakeStore struct {
	id      string
	err     error
	inserts []insertCall
}

func (f *fakeStore) InsertRecord(_ context.Context, shape ingest.Shape, cols ingest.Columns) (string, error) {
	f.inserts = append(f.inserts, insertCall{shape: shape, cols: cols})
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

type triggerCall struct {
	shape ingest.Shape
	id    string
	text  string
}

type fakeEmbedder struct {
	err   error
	calls []triggerCall
}

func (f *fakeEmbedder) Trigger(_ context.Context, shape ingest.Shape, id, text string) error {
	f.calls = append(f.calls, triggerCall{shape: shape, id: id, text: text})
	return f.err
}

type fakeRouter struct {
	reviewID string
	routed   []ingest.Failure
}

func (f *fakeRouter) Route(_ context.Context, fl ingest.Failure) string {
	f.routed = append(f.routed, fl)
	if fl.Category.Parkable() {
		return f.reviewID
	}
	return ""
}

// fixture bundles a pipeline with its fakes for inspection after Ingest.
type fixture struct {
	pipeline *ingest.Pipeline
	provider *mock.Provider
	resolver *fakeResolver
	store    *fakeStore
	embedder *fakeEmbedder
	router   *fakeRouter
	valid    *fakeValidator
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("creating metrics: %v", err)
	}

	f := &fixture{
		provider: &mock.Provider{Responses: responses},
		resolver: &fakeResolver{id: "h-123"},
		store:    &fakeStore{id: "rec-1"},
		embedder: &fakeEmbedder{},
		router:   &fakeRouter{reviewID: "review-42"},
		valid:    &fakeValidator{},
	}
	f.pipeline = ingest.NewPipeline(ingest.PipelineConfig{
		Classifier: ingest.NewClassifier(f.provider),
		Cleaner:    ingest.NewCleaner(f.provider),
		Validator:  f.valid,
		Resolver:   f.resolver,
		Store:      f.store,
		Embedder:   f.embedder,
		Router:     f.router,
		Metrics:    metrics,
	})
	return f
}

func ingestError(t *testing.T, err error) *ingest.Error {
	t.Helper()
	var ie *ingest.Error
	if !errors.As(err, &ie) {
		t.Fatalf("expected *ingest.Error, got %T: %v", err, err)
	}
	return ie
}

func TestIngestQnARoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanedQnA)

	res, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text:  "TIER: PRO QUESTION: Kioni stern-to. Drop anchor three lengths out, reverse slowly.",
		RowID: "row-9",
	})
	if err != nil {
		t.Fatalf("Ingest: unexpected error: %v", err)
	}

	if res.Shape != ingest.ShapeQnA {
		t.Errorf("shape: expected qna, got %q", res.Shape)
	}
	if res.Method != ingest.MethodPrefix || res.Confidence != 1.0 {
		t.Errorf("classification: expected prefix/1.0, got %q/%v", res.Method, res.Confidence)
	}
	if res.ID != "rec-1" {
		t.Errorf("id: expected rec-1, got %q", res.ID)
	}
	if res.ReferenceID != "h-123" {
		t.Errorf("reference_id: expected h-123, got %q", res.ReferenceID)
	}
	if !res.EmbeddingTriggered {
		t.Error("embedding_triggered: expected true")
	}

	// The declared tier wins over the cleaner's "free".
	if res.Cleaned.QnA.Tier != ingest.TierPro {
		t.Errorf("tier: expected forced pro, got %q", res.Cleaned.QnA.Tier)
	}

	if len(f.store.inserts) != 1 {
		t.Fatalf("store: expected 1 insert, got %d", len(f.store.inserts))
	}
	if f.store.inserts[0].cols["row_id"] != "row-9" {
		t.Errorf("row_id column: expected row-9, got %v", f.store.inserts[0].cols["row_id"])
	}
	if len(f.embedder.calls) != 1 || f.embedder.calls[0].id != "rec-1" {
		t.Fatalf("embedder: expected 1 trigger for rec-1, got %+v", f.embedder.calls)
	}
	if len(f.router.routed) != 0 {
		t.Errorf("router: expected no failures, got %+v", f.router.routed)
	}
}

func TestIngestTierDirectiveSurvivesCleanerOmission(t *testing.T) {
	t.Parallel()

	// The cleaner dropped the tier field entirely; the declared directive
	// must still land in the candidate before validation, not park the
	// transcript as a schema violation.
	cleaned := `{"question": "Is there water in Kioni?", "answer": "Yes, on the quay.", "harbour_name": "Kioni", "category": "provisioning", "tags": []}`
	f := newFixture(t, cleaned)

	res, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "TIER: FREE QUESTION: Kioni water. Is there water? Yes, on the quay.",
	})
	if err != nil {
		t.Fatalf("Ingest: unexpected error: %v", err)
	}
	if !strings.Contains(string(f.valid.raw), `"tier":"free"`) {
		t.Errorf("validated candidate: expected injected tier free, got %s", f.valid.raw)
	}
	if res.Cleaned.QnA.Tier != ingest.TierFree {
		t.Errorf("tier: expected free from directive, got %q", res.Cleaned.QnA.Tier)
	}
	if len(f.store.inserts) != 1 {
		t.Fatalf("store: expected 1 insert, got %d", len(f.store.inserts))
	}
	if f.store.inserts[0].cols["tier"] != "free" {
		t.Errorf("tier column: expected free, got %v", f.store.inserts[0].cols["tier"])
	}
}

func TestIngestHarbourMasterExemptFromResolution(t *testing.T) {
	t.Parallel()

	cleaned := `{"name": "Vathi", "island": "Ithaca", "lat": 38.3661, "lon": 20.7258, "description": "Main port of Ithaca.", "facilities": ["water", "fuel"]}`
	f := newFixture(t, cleaned)

	res, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "HARBOUR: Vathi, Ithaca, 38.3661 N, 20.7258 E",
	})
	if err != nil {
		t.Fatalf("Ingest: unexpected error: %v", err)
	}
	if res.Shape != ingest.ShapeHarbour {
		t.Errorf("shape: expected harbours, got %q", res.Shape)
	}
	if res.ReferenceID != "" {
		t.Errorf("reference_id: expected empty for harbour master, got %q", res.ReferenceID)
	}
	if res.Cleaned.Harbour.Name != "Vathi" {
		t.Errorf("cleaned.name: expected Vathi, got %q", res.Cleaned.Harbour.Name)
	}
	if len(f.resolver.names) != 0 {
		t.Errorf("resolver: expected no lookups, got %v", f.resolver.names)
	}
	if res.EmbeddingTriggered {
		t.Error("embedding_triggered: expected false for non-searchable shape")
	}
	if len(f.embedder.calls) != 0 {
		t.Errorf("embedder: expected no triggers, got %+v", f.embedder.calls)
	}
}

func TestIngestMissingInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{Text: "   "})
	ie := ingestError(t, err)
	if ie.Category != ingest.CategoryMissingInput {
		t.Fatalf("category: expected missing_input, got %q", ie.Category)
	}
	if len(f.router.routed) != 0 {
		t.Errorf("router: missing input must not be routed, got %+v", f.router.routed)
	}
}

func TestIngestLowConfidenceParksWithoutCleaning(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"shape": "qna", "confidence": 0.55, "reasoning": "vague mention of a quay"}`)

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "something about a quay somewhere maybe",
	})
	ie := ingestError(t, err)
	if ie.Category != ingest.CategoryLowConfidence {
		t.Fatalf("category: expected low_confidence, got %q", ie.Category)
	}
	if ie.ReviewID != "review-42" {
		t.Errorf("review id: expected review-42, got %q", ie.ReviewID)
	}
	if ie.Detail["suggested_shape"] != "qna" {
		t.Errorf("detail: expected suggested shape qna, got %v", ie.Detail["suggested_shape"])
	}

	// Exactly one provider call (the fallback); the cleaner never runs.
	if len(f.provider.Calls) != 1 {
		t.Errorf("provider: expected 1 call, got %d", len(f.provider.Calls))
	}
	if len(f.store.inserts) != 0 {
		t.Errorf("store: expected no side effects, got %d inserts", len(f.store.inserts))
	}
}

func TestIngestSchemaValidationParked(t *testing.T) {
	t.Parallel()

	f := newFixture(t, `{"name": "Vathi", "island": "Ithaca", "lat": 9999, "lon": 9999, "description": "x", "facilities": []}`)
	f.valid.violations = []ingest.FieldViolation{
		{Path: "lat", Reason: "must be between -90 and 90"},
		{Path: "lon", Reason: "must be between -180 and 180"},
	}

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "HARBOUR: Vathi, Ithaca, 9999 N 9999 E",
	})
	ie := ingestError(t, err)
	if ie.Category != ingest.CategorySchemaValidation {
		t.Fatalf("category: expected schema_validation, got %q", ie.Category)
	}
	if ie.ReviewID == "" {
		t.Error("review id: schema violations must be parked")
	}
	if len(f.router.routed) != 1 {
		t.Fatalf("router: expected 1 failure, got %d", len(f.router.routed))
	}
	if f.router.routed[0].Payload == nil {
		t.Error("routed payload: expected attempted record")
	}
	if len(f.store.inserts) != 0 {
		t.Errorf("store: expected no inserts, got %d", len(f.store.inserts))
	}
}

func TestIngestGuardrailViolationNotParked(t *testing.T) {
	t.Parallel()

	cleaned := `{"question": "How to stern-to in Kioni?", "answer": "Just reverse in.", "harbour_name": "Kioni", "category": "mooring", "tier": "pro", "tags": []}`
	f := newFixture(t, cleaned)

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "QUESTION: Kioni mooring. How to stern-to? Just reverse in.",
	})
	ie := ingestError(t, err)
	if ie.Category != ingest.CategoryGuardrailViolation {
		t.Fatalf("category: expected guardrail_violation, got %q", ie.Category)
	}
	if ie.ReviewID != "" {
		t.Errorf("review id: guardrail violations must not be parked, got %q", ie.ReviewID)
	}
	if _, ok := ie.Detail["cleaned"]; !ok {
		t.Error("detail: expected the offending cleaned record")
	}
	if len(f.router.routed) != 1 {
		t.Errorf("router: expected the violation logged, got %d failures", len(f.router.routed))
	}
	if len(f.store.inserts) != 0 {
		t.Errorf("store: expected no inserts, got %d", len(f.store.inserts))
	}
}

type notFoundErr struct{ suggestions []string }

func (e *notFoundErr) Error() string         { return "harbour not found" }
func (e *notFoundErr) Suggestions() []string { return e.suggestions }

func TestIngestMissingReferenceParked(t *testing.T) {
	t.Parallel()

	cleaned := `{"question": "How to approach?", "answer": "1. Head in. 2. Anchor.", "harbour_name": "NonExistentHarbour", "category": "navigation", "tier": "pro", "tags": []}`
	f := newFixture(t, cleaned)
	f.resolver.err = &notFoundErr{suggestions: []string{"Kioni", "Frikes"}}

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "QUESTION: NonExistentHarbour mooring. How to approach?",
	})
	ie := ingestError(t, err)
	if ie.Category != ingest.CategoryMissingReference {
		t.Fatalf("category: expected missing_reference, got %q", ie.Category)
	}
	if ie.ReviewID == "" {
		t.Error("review id: missing references must be parked")
	}
	if ie.Detail["harbour_name"] != "NonExistentHarbour" {
		t.Errorf("detail: expected attempted name, got %v", ie.Detail["harbour_name"])
	}
	got, _ := ie.Detail["did_you_mean"].([]string)
	if len(got) != 2 {
		t.Errorf("detail: expected 2 suggestions, got %v", ie.Detail["did_you_mean"])
	}
	if len(f.store.inserts) != 0 {
		t.Errorf("store: expected no inserts, got %d", len(f.store.inserts))
	}
}

func TestIngestHarbourNameHintFallback(t *testing.T) {
	t.Parallel()

	cleaned := `{"harbour_name": "", "wind_direction": "ne", "shelter_quality": "poor", "notes": "Uncomfortable in a northeasterly."}`
	f := newFixture(t, cleaned)

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text:        "WEATHER: it gets rolly when the wind comes from the northeast",
		HarbourName: "Kioni",
	})
	if err != nil {
		t.Fatalf("Ingest: unexpected error: %v", err)
	}
	if len(f.resolver.names) != 1 || f.resolver.names[0] != "Kioni" {
		t.Fatalf("resolver: expected lookup with hint Kioni, got %v", f.resolver.names)
	}
}

func TestIngestPersistenceFailureCritical(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanedQnA)
	f.store.err = errors.New("connection reset")

	_, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "QUESTION: Kioni stern-to technique?",
	})
	ie := ingestError(t, err)
	if ie.Category != ingest.CategoryPersistenceFailure {
		t.Fatalf("category: expected persistence_failure, got %q", ie.Category)
	}
	if ie.ReviewID != "" {
		t.Errorf("review id: persistence failures must not be parked, got %q", ie.ReviewID)
	}
	if len(f.router.routed) != 1 {
		t.Fatalf("router: expected 1 failure, got %d", len(f.router.routed))
	}
	if f.router.routed[0].Payload == nil {
		t.Error("routed payload: critical failures must carry the attempted columns")
	}
}

func TestIngestEmbeddingFailureNonFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cleanedQnA)
	f.embedder.err = errors.New("embedding backend down")

	res, err := f.pipeline.Ingest(context.Background(), ingest.Transcript{
		Text: "QUESTION: Kioni stern-to technique?",
	})
	if err != nil {
		t.Fatalf("Ingest: embedding failure must not fail the request: %v", err)
	}
	if res.EmbeddingTriggered {
		t.Error("embedding_triggered: expected false after failure")
	}
	if res.ID != "rec-1" {
		t.Errorf("id: record must remain persisted, got %q", res.ID)
	}
	if len(f.router.routed) != 1 || f.router.routed[0].Category != ingest.CategoryEmbeddingFailure {
		t.Errorf("router: expected one embedding_failure entry, got %+v", f.router.routed)
	}
}
