// Package ingest implements the transcript ingestion pipeline: tier
// extraction, shape classification, LLM cleaning, schema validation,
// guardrails, harbour resolution, column transformation, persistence, and
// embedding enrichment.
package ingest

import (
	"fmt"
	"strings"
)

// Shape identifies the record kind a transcript is coerced into. The set is
// closed; every switch over Shape must handle all members and fail loudly on
// anything else.
type Shape string

const (
	ShapeQnA     Shape = "qna"
	ShapeHarbour Shape = "harbours"
	ShapeWeather Shape = "weather_profiles"
	ShapeMedia   Shape = "media"
)

// Shapes returns all members of the closed shape set.
func Shapes() []Shape {
	return []Shape{ShapeQnA, ShapeHarbour, ShapeWeather, ShapeMedia}
}

// IsValid reports whether s is a member of the closed shape set.
func (s Shape) IsValid() bool {
	switch s {
	case ShapeQnA, ShapeHarbour, ShapeWeather, ShapeMedia:
		return true
	}
	return false
}

// Searchable reports whether rows of this shape carry an embedding column and
// participate in similarity search.
func (s Shape) Searchable() bool {
	return s == ShapeQnA || s == ShapeWeather
}

// SupportsRowID reports whether the storage contract for this shape has a
// row_id column for an external tracking identifier.
func (s Shape) SupportsRowID() bool {
	return s == ShapeQnA || s == ShapeMedia
}

// ReferencesHarbour reports whether records of this shape hold a harbour
// reference that must resolve before persistence. HarbourMaster records
// define harbours instead of referencing them.
func (s Shape) ReferencesHarbour() bool {
	return s != ShapeHarbour
}

// Table returns the storage table name for this shape.
func (s Shape) Table() string {
	switch s {
	case ShapeQnA:
		return "qna_pairs"
	case ShapeHarbour:
		return "harbours"
	case ShapeWeather:
		return "weather_profiles"
	case ShapeMedia:
		return "media_assets"
	}
	panic("ingest: unknown shape " + string(s))
}

// Tier is the access tier attached to QnA content. Closed lowercase set.
type Tier string

const (
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierExclusive Tier = "exclusive"
)

// IsValid reports whether t is a member of the closed tier set.
func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPro, TierExclusive:
		return true
	}
	return false
}

// Method records how a classification decision was reached.
type Method string

const (
	MethodPrefix   Method = "prefix"
	MethodKeyword  Method = "keyword"
	MethodFallback Method = "fallback"
)

// Transcript is a raw ingestion input. Immutable once received.
type Transcript struct {
	// Text is the transcribed spoken input.
	Text string `json:"transcript"`

	// HarbourName optionally hints which harbour the transcript refers to,
	// used when the cleaned record itself lacks one.
	HarbourName string `json:"harbour_name,omitempty"`

	// RowID is an optional external tracking identifier, attached only to
	// shapes whose storage contract supports one.
	RowID string `json:"row_id,omitempty"`
}

// ClassificationResult is the single classification decision made for a
// transcript.
type ClassificationResult struct {
	Shape      Shape
	Confidence float64
	Method     Method
	Reasoning  string
}

// QnARecord is the canonical cleaned form of a qna transcript.
type QnARecord struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	HarbourName string   `json:"harbour_name"`
	Category    string   `json:"category"`
	Tier        Tier     `json:"tier"`
	Tags        []string `json:"tags"`
}

// HarbourRecord is the canonical cleaned form of a HarbourMaster transcript.
type HarbourRecord struct {
	Name        string   `json:"name"`
	Island      string   `json:"island"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Description string   `json:"description"`
	Facilities  []string `json:"facilities"`
	VHFChannel  string   `json:"vhf_channel,omitempty"`
}

// WeatherRecord is the canonical cleaned form of a weather profile transcript.
type WeatherRecord struct {
	HarbourName    string `json:"harbour_name"`
	WindDirection  string `json:"wind_direction"`
	ShelterQuality string `json:"shelter_quality"`
	Notes          string `json:"notes"`
}

// MediaRecord is the canonical cleaned form of a media transcript.
type MediaRecord struct {
	HarbourName string `json:"harbour_name"`
	MediaType   string `json:"media_type"`
	Caption     string `json:"caption"`
	URL         string `json:"url,omitempty"`
}

// CleanedRecord is a tagged union over the four canonical record types.
// Exactly one variant pointer is non-nil, matching Shape.
type CleanedRecord struct {
	Shape   Shape
	QnA     *QnARecord
	Harbour *HarbourRecord
	Weather *WeatherRecord
	Media   *MediaRecord
}

// Payload returns the active variant as an untyped value, for logging and
// error details.
func (r *CleanedRecord) Payload() any {
	switch r.Shape {
	case ShapeQnA:
		return r.QnA
	case ShapeHarbour:
		return r.Harbour
	case ShapeWeather:
		return r.Weather
	case ShapeMedia:
		return r.Media
	}
	return nil
}

// HarbourName returns the harbour reference carried by the record, or the
// empty string for shapes that define rather than reference a harbour.
func (r *CleanedRecord) HarbourName() string {
	switch r.Shape {
	case ShapeQnA:
		return r.QnA.HarbourName
	case ShapeWeather:
		return r.Weather.HarbourName
	case ShapeMedia:
		return r.Media.HarbourName
	}
	return ""
}

// EmbeddingText returns the concatenated salient text used for semantic
// retrieval, or the empty string for non-searchable shapes.
func (r *CleanedRecord) EmbeddingText() string {
	switch r.Shape {
	case ShapeQnA:
		return strings.TrimSpace(r.QnA.Question + "\n" + r.QnA.Answer)
	case ShapeWeather:
		return strings.TrimSpace(r.Weather.Notes)
	}
	return ""
}

// parseCleaned decodes schema-validated JSON into the typed variant for the
// given shape.
func parseCleaned(shape Shape, raw []byte) (*CleanedRecord, error) {
	rec := &CleanedRecord{Shape: shape}
	var err error
	switch shape {
	case ShapeQnA:
		rec.QnA = &QnARecord{}
		err = unmarshalStrict(raw, rec.QnA)
	case ShapeHarbour:
		rec.Harbour = &HarbourRecord{}
		err = unmarshalStrict(raw, rec.Harbour)
	case ShapeWeather:
		rec.Weather = &WeatherRecord{}
		err = unmarshalStrict(raw, rec.Weather)
	case ShapeMedia:
		rec.Media = &MediaRecord{}
		err = unmarshalStrict(raw, rec.Media)
	default:
		return nil, fmt.Errorf("ingest: unknown shape %q", shape)
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: decoding cleaned %s record: %w", shape, err)
	}
	return rec, nil
}
