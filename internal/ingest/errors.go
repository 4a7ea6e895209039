package ingest

import "net/http"

// Category names a failure class in the ingestion taxonomy. Category names
// are stable API surface; clients and the review queue key on them.
type Category string

const (
	CategoryMissingInput           Category = "missing_input"
	CategoryClassifierParseFailure Category = "classifier_parse_failure"
	CategoryLowConfidence          Category = "low_confidence"
	CategoryCleanerParseFailure    Category = "cleaner_parse_failure"
	CategorySchemaValidation       Category = "schema_validation"
	CategoryGuardrailViolation     Category = "guardrail_violation"
	CategoryMissingReference       Category = "missing_reference"
	CategoryPersistenceFailure     Category = "persistence_failure"
	CategoryEmbeddingFailure       Category = "embedding_failure"
)

// Severity is the error-log level attached to a failure.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Severity returns the log level for this category. Categories that are never
// logged return the empty Severity.
func (c Category) Severity() Severity {
	switch c {
	case CategoryClassifierParseFailure, CategoryPersistenceFailure:
		return SeverityCritical
	case CategoryLowConfidence, CategoryCleanerParseFailure,
		CategorySchemaValidation, CategoryMissingReference:
		return SeverityHigh
	case CategoryGuardrailViolation, CategoryEmbeddingFailure:
		return SeverityMedium
	}
	return ""
}

// Logged reports whether failures in this category are appended to the
// persistent error log. Only missing input is exempt.
func (c Category) Logged() bool {
	return c != CategoryMissingInput
}

// Parkable reports whether failures in this category represent recoverable
// ambiguity and create a review-queue entry.
func (c Category) Parkable() bool {
	switch c {
	case CategoryLowConfidence, CategorySchemaValidation, CategoryMissingReference:
		return true
	}
	return false
}

// HTTPStatus maps the category to the response status code.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryMissingInput:
		return http.StatusBadRequest
	case CategoryClassifierParseFailure, CategoryPersistenceFailure:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}

// Error is a pipeline failure carrying its taxonomy category, structured
// detail for the caller, and the review-queue id when the failure was parked.
type Error struct {
	Category Category
	Message  string
	Detail   map[string]any
	ReviewID string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Category) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an [Error] with an initialised detail map.
func newError(cat Category, msg string) *Error {
	return &Error{Category: cat, Message: msg, Detail: map[string]any{}}
}
