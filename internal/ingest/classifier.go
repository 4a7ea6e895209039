package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moorline/moorline/pkg/provider/llm"
)

// Reserved shape prefixes, checked against the upper-cased transcript head.
var shapePrefixes = []struct {
	token string
	shape Shape
}{
	{"QUESTION:", ShapeQnA},
	{"HARBOUR:", ShapeHarbour},
	{"WEATHER:", ShapeWeather},
	{"MEDIA:", ShapeMedia},
}

const classifierSystemPrompt = `You classify transcribed spoken notes about Greek harbours and anchorages.
Decide which ONE of these record shapes the transcript represents:

- "qna": a question about a harbour together with its answer
- "harbours": a harbour master record (name, island, coordinates, description)
- "weather_profiles": wind shelter and weather behaviour of a harbour
- "media": a photo, video, or chart reference with a caption

Respond with ONLY a JSON object, no prose, no markdown:
{"shape": "<one of the four names above>", "confidence": <0.0-1.0>, "reasoning": "<one short sentence>"}`

// Classifier decides which shape a transcript belongs to. Deterministic
// prefix and keyword rules run first; only unprefixed free-form text reaches
// the LLM fallback.
type Classifier struct {
	provider llm.Provider
}

// NewClassifier creates a Classifier using provider for fallback decisions.
func NewClassifier(provider llm.Provider) *Classifier {
	return &Classifier{provider: provider}
}

// Classify produces exactly one [ClassificationResult] for text.
//
// Priority order: strict prefix (confidence 1.0), "question"+"answer"
// keyword co-occurrence (0.99, qna), then the LLM fallback. A fallback reply
// that cannot be parsed, or that names an unknown shape, is a hard classifier
// failure, distinct from the low-confidence case the caller gates on.
func (c *Classifier) Classify(ctx context.Context, text string) (*ClassificationResult, error) {
	head := strings.ToUpper(strings.TrimSpace(text))
	for _, p := range shapePrefixes {
		if strings.HasPrefix(head, p.token) {
			return &ClassificationResult{
				Shape:      p.shape,
				Confidence: 1.0,
				Method:     MethodPrefix,
			}, nil
		}
	}

	// Spoken transcripts often drop the leading punctuation a strict prefix
	// needs, so a bare question-and-answer pair still lands on qna.
	lower := strings.ToLower(text)
	if strings.Contains(lower, "question") && strings.Contains(lower, "answer") {
		return &ClassificationResult{
			Shape:      ShapeQnA,
			Confidence: 0.99,
			Method:     MethodKeyword,
		}, nil
	}

	return c.fallback(ctx, text)
}

func (c *Classifier) fallback(ctx context.Context, text string) (*ClassificationResult, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: classifierSystemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
		Temperature: 0.0,
		MaxTokens:   256,
	})
	if err != nil {
		e := newError(CategoryClassifierParseFailure, "fallback classification request failed")
		e.Err = err
		return nil, e
	}

	raw := stripMarkdown(resp.Content)
	var parsed struct {
		Shape      string  `json:"shape"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		e := newError(CategoryClassifierParseFailure, "fallback classifier returned unparseable output")
		e.Err = fmt.Errorf("parsing classifier reply: %w", err)
		e.Detail["raw_reply"] = resp.Content
		return nil, e
	}

	shape := Shape(strings.ToLower(strings.TrimSpace(parsed.Shape)))
	if !shape.IsValid() {
		e := newError(CategoryClassifierParseFailure, "fallback classifier named an unknown shape")
		e.Detail["raw_reply"] = resp.Content
		e.Detail["shape"] = parsed.Shape
		return nil, e
	}

	return &ClassificationResult{
		Shape:      shape,
		Confidence: parsed.Confidence,
		Method:     MethodFallback,
		Reasoning:  parsed.Reasoning,
	}, nil
}
