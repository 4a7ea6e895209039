package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moorline/moorline/pkg/provider/llm"
)

// cleanerPrompts holds one fixed instruction set per shape. The instructions
// name the exact target fields, the allowed enum values, and the tier
// formatting rules the guardrail engine later enforces.
var cleanerPrompts = map[Shape]string{
	ShapeQnA: `You convert a transcribed spoken note into a Q&A record about a harbour.
Respond with ONLY a JSON object, no prose, no markdown fences. Fields:

{"question": "<the question, cleaned up>",
 "answer": "<the answer, cleaned up>",
 "harbour_name": "<harbour the note is about>",
 "category": "<one of: mooring, anchoring, provisioning, navigation, facilities, local_knowledge>",
 "tier": "<one of: free, pro, exclusive>",
 "tags": ["<category>:<keyword>", ...]}

Rules:
- All enum values lowercase.
- Tags are domain-prefixed, e.g. "mooring:stern-to" or "navigation:shoals".
- For tier "pro" or "exclusive", format the answer as numbered steps: "1. ..." then "2. ..." and so on.
- For tier "free", keep the answer to at most two sentences.
- Do not invent facts absent from the transcript.`,

	ShapeHarbour: `You convert a transcribed spoken note into a harbour master record.
Respond with ONLY a JSON object, no prose, no markdown fences. Fields:

{"name": "<harbour name>",
 "island": "<island or coast name>",
 "lat": <decimal latitude, north positive>,
 "lon": <decimal longitude, east positive>,
 "description": "<one or two sentence description>",
 "facilities": ["<facility>", ...],
 "vhf_channel": "<VHF channel if mentioned, otherwise omit the field>"}

Rules:
- Convert spoken coordinates like "38.3661 N, 20.7258 E" to signed decimals.
- Facilities are lowercase single words or short phrases (e.g. "water", "fuel", "laundry").
- Do not invent facts absent from the transcript.`,

	ShapeWeather: `You convert a transcribed spoken note into a harbour weather profile.
Respond with ONLY a JSON object, no prose, no markdown fences. Fields:

{"harbour_name": "<harbour the note is about>",
 "wind_direction": "<one of: n, ne, e, se, s, sw, w, nw>",
 "shelter_quality": "<one of: excellent, good, moderate, poor, dangerous>",
 "notes": "<cleaned-up description of the conditions>"}

Rules:
- All enum values lowercase.
- wind_direction is the direction the profile describes shelter FROM.
- Do not invent facts absent from the transcript.`,

	ShapeMedia: `You convert a transcribed spoken note into a media asset record.
Respond with ONLY a JSON object, no prose, no markdown fences. Fields:

{"harbour_name": "<harbour the asset shows>",
 "media_type": "<one of: photo, video, chart>",
 "caption": "<cleaned-up caption>",
 "url": "<url if mentioned, otherwise omit the field>"}

Rules:
- All enum values lowercase.
- Do not invent facts absent from the transcript.`,
}

// Cleaner turns a tier-stripped transcript into a candidate record for its
// classified shape via a low-temperature completion.
type Cleaner struct {
	provider llm.Provider
}

// NewCleaner creates a Cleaner backed by provider.
func NewCleaner(provider llm.Provider) *Cleaner {
	return &Cleaner{provider: provider}
}

// Clean invokes the completion backend with the shape's instruction set and
// returns the raw JSON object bytes, not yet validated against the shape
// schema.
//
// A reply that is not a JSON object is a terminal input error: the caller
// never got a usable candidate, as opposed to getting one that fails
// validation.
func (c *Cleaner) Clean(ctx context.Context, shape Shape, text string) ([]byte, error) {
	prompt, ok := cleanerPrompts[shape]
	if !ok {
		return nil, fmt.Errorf("ingest: no cleaner prompt for shape %q", shape)
	}

	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages: []llm.Message{
			{Role: "user", Content: text},
		},
		Temperature: 0.1,
		MaxTokens:   1024,
	})
	if err != nil {
		e := newError(CategoryCleanerParseFailure, "cleaning request failed")
		e.Err = err
		return nil, e
	}

	raw := stripMarkdown(resp.Content)
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
		e := newError(CategoryCleanerParseFailure, "cleaner output is not a JSON object")
		e.Detail["raw_reply"] = resp.Content
		return nil, e
	}
	return []byte(trimmed), nil
}

// stripMarkdown removes a surrounding markdown code fence from an LLM reply.
// Models occasionally wrap JSON in ```json fences despite instructions.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// unmarshalStrict decodes JSON into v, rejecting fields v does not declare.
func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
