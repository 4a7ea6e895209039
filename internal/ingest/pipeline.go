package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/moorline/moorline/internal/observe"
)

// FieldViolation is a single structural violation found by schema validation.
type FieldViolation struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Validator checks a cleaned JSON candidate against the shape's compiled
// schema and returns every violation found, or nil when the candidate passes.
type Validator interface {
	Validate(shape Shape, raw []byte) []FieldViolation
}

// Resolver looks up a harbour by name (case-insensitive, exact) and returns
// its stable identifier. Zero or multiple matches is an error.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// RecordStore persists one transformed record and returns its new id.
type RecordStore interface {
	InsertRecord(ctx context.Context, shape Shape, cols Columns) (string, error)
}

// EmbeddingTrigger attaches a vector embedding to an already persisted row.
// Implementations must be idempotent per record id.
type EmbeddingTrigger interface {
	Trigger(ctx context.Context, shape Shape, recordID string, text string) error
}

// Failure is the routing input for a pipeline stage failure.
type Failure struct {
	Category   Category
	Message    string
	Transcript string
	Detail     map[string]any
	// Payload is the attempted record or columns, included so critical
	// failures carry enough to reproduce the failing insert.
	Payload any
}

// FailureRouter produces the error-log entry and, for parkable categories,
// the review-queue item for a failure. It returns the review-queue id when
// the failure was parked and the empty string otherwise. Routing must never
// fail the request; implementations handle their own errors internally.
type FailureRouter interface {
	Route(ctx context.Context, f Failure) (reviewID string)
}

// Result is the outcome of a fully successful ingestion.
type Result struct {
	Shape              Shape          `json:"shape"`
	ID                 string         `json:"id"`
	Confidence         float64        `json:"confidence"`
	Method             Method         `json:"method"`
	ReferenceID        string         `json:"reference_id,omitempty"`
	EmbeddingTriggered bool           `json:"embedding_triggered"`
	Cleaned            *CleanedRecord `json:"cleaned"`
}

// PipelineConfig carries the collaborators and policy knobs for a [Pipeline].
// All collaborator fields are required.
type PipelineConfig struct {
	Classifier *Classifier
	Cleaner    *Cleaner
	Validator  Validator
	Resolver   Resolver
	Store      RecordStore
	Embedder   EmbeddingTrigger
	Router     FailureRouter
	Metrics    *observe.Metrics

	// MinFallbackConfidence is the gate below which a fallback classification
	// is parked rather than cleaned. Zero means the 0.90 default.
	MinFallbackConfidence float64
}

// Pipeline orchestrates one single-pass ingestion per transcript. It holds no
// mutable state beyond its collaborators, so a single Pipeline serves
// concurrent requests.
type Pipeline struct {
	classifier    *Classifier
	cleaner       *Cleaner
	validator     Validator
	resolver      Resolver
	store         RecordStore
	embedder      EmbeddingTrigger
	router        FailureRouter
	metrics       *observe.Metrics
	minConfidence float64
}

// NewPipeline creates a Pipeline from cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	minConf := cfg.MinFallbackConfidence
	if minConf == 0 {
		minConf = 0.90
	}
	return &Pipeline{
		classifier:    cfg.Classifier,
		cleaner:       cfg.Cleaner,
		validator:     cfg.Validator,
		resolver:      cfg.Resolver,
		store:         cfg.Store,
		embedder:      cfg.Embedder,
		router:        cfg.Router,
		metrics:       cfg.Metrics,
		minConfidence: minConf,
	}
}

// Ingest runs the full pipeline for one transcript. On failure it returns a
// [*Error] whose Category maps to the response taxonomy; when the failure was
// parked, the error carries the review-queue id.
func (p *Pipeline) Ingest(ctx context.Context, t Transcript) (*Result, error) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		// Never logged and never parked, there is nothing to review.
		return nil, newError(CategoryMissingInput, "transcript is required")
	}

	tier, working := ExtractTier(text)

	start := time.Now()
	cls, err := p.classifier.Classify(ctx, working)
	p.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, p.fail(ctx, t, err, nil)
	}

	if cls.Method == MethodFallback && cls.Confidence < p.minConfidence {
		e := newError(CategoryLowConfidence, "classification confidence below threshold")
		e.Detail["suggested_shape"] = string(cls.Shape)
		e.Detail["confidence"] = cls.Confidence
		e.Detail["reasoning"] = cls.Reasoning
		return nil, p.fail(ctx, t, e, nil)
	}

	start = time.Now()
	raw, err := p.cleaner.Clean(ctx, cls.Shape, working)
	p.metrics.CleanDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("shape", string(cls.Shape))))
	if err != nil {
		return nil, p.fail(ctx, t, err, nil)
	}

	// The declared tier always wins over the cleaner's judgment, including
	// when the cleaner omitted or garbled the field, so it is written into
	// the candidate before validation and the same transcript yields the same
	// tier across runs.
	if cls.Shape == ShapeQnA {
		raw = forceTier(raw, tier)
	}

	if violations := p.validator.Validate(cls.Shape, raw); len(violations) > 0 {
		e := newError(CategorySchemaValidation, "cleaned record failed schema validation")
		e.Detail["shape"] = string(cls.Shape)
		e.Detail["violations"] = violations
		return nil, p.fail(ctx, t, e, string(raw))
	}

	rec, err := parseCleaned(cls.Shape, raw)
	if err != nil {
		e := newError(CategoryCleanerParseFailure, "cleaned record could not be decoded")
		e.Err = err
		return nil, p.fail(ctx, t, e, string(raw))
	}

	if err := CheckGuardrails(rec); err != nil {
		return nil, p.fail(ctx, t, err, rec.Payload())
	}

	var harbourID string
	if rec.Shape.ReferencesHarbour() {
		name := rec.HarbourName()
		if name == "" {
			name = t.HarbourName
		}
		harbourID, err = p.resolver.Resolve(ctx, name)
		if err != nil {
			e := newError(CategoryMissingReference, "harbour could not be resolved")
			e.Err = err
			e.Detail["harbour_name"] = name
			var s interface{ Suggestions() []string }
			if errors.As(err, &s) {
				if sugg := s.Suggestions(); len(sugg) > 0 {
					e.Detail["did_you_mean"] = sugg
				}
			}
			return nil, p.fail(ctx, t, e, rec.Payload())
		}
	}

	cols, err := Transform(rec, harbourID, t.RowID)
	if err != nil {
		e := newError(CategoryPersistenceFailure, "record could not be transformed")
		e.Err = err
		return nil, p.fail(ctx, t, e, rec.Payload())
	}

	id, err := p.store.InsertRecord(ctx, rec.Shape, cols)
	if err != nil {
		e := newError(CategoryPersistenceFailure, "insert failed")
		e.Err = err
		return nil, p.fail(ctx, t, e, cols)
	}

	embedded := false
	if rec.Shape.Searchable() {
		start = time.Now()
		embedErr := p.embedder.Trigger(ctx, rec.Shape, id, rec.EmbeddingText())
		p.metrics.EmbedDuration.Record(ctx, time.Since(start).Seconds())
		if embedErr != nil {
			// Non-fatal. The row is already persisted and the vector can be
			// regenerated out of band.
			p.router.Route(ctx, Failure{
				Category:   CategoryEmbeddingFailure,
				Message:    embedErr.Error(),
				Transcript: t.Text,
				Detail:     map[string]any{"record_id": id, "shape": string(rec.Shape)},
			})
		} else {
			embedded = true
		}
	}

	p.metrics.RecordIngest(ctx, string(rec.Shape), string(cls.Method), "ok")

	return &Result{
		Shape:              rec.Shape,
		ID:                 id,
		Confidence:         cls.Confidence,
		Method:             cls.Method,
		ReferenceID:        harbourID,
		EmbeddingTriggered: embedded,
		Cleaned:            rec,
	}, nil
}

// fail routes err through the failure router, records metrics, and returns
// the error decorated with the review id when it was parked. Non-taxonomy
// errors are wrapped as persistence failures, the catch-all for
// infrastructure faults.
func (p *Pipeline) fail(ctx context.Context, t Transcript, err error, payload any) error {
	var e *Error
	if !errors.As(err, &e) {
		e = newError(CategoryPersistenceFailure, "pipeline failure")
		e.Err = err
	}

	if e.Category.Logged() {
		e.ReviewID = p.router.Route(ctx, Failure{
			Category:   e.Category,
			Message:    e.Message,
			Transcript: t.Text,
			Detail:     e.Detail,
			Payload:    payload,
		})
	}

	p.metrics.RecordIngest(ctx, "", "", string(e.Category))
	return e
}
