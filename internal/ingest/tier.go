package ingest

import (
	"encoding/json"
	"regexp"
	"strings"
)

// DefaultTier is assumed when a transcript carries no explicit tier
// directive.
const DefaultTier = TierPro

// tierDirective matches an optional leading "TIER: <value>" directive. The
// tier value is validated separately so that a garbled directive falls
// through to the default rather than silently becoming part of the text.
var tierDirective = regexp.MustCompile(`(?i)^\s*tier:\s*(\w+)\s*`)

// ExtractTier strips a leading tier directive from text and returns the
// declared tier plus the remaining working text. The directive is
// case-insensitive; when absent or naming an unknown tier, [DefaultTier] is
// returned and the text is left untouched.
//
// The extracted tier is written over the cleaner's output before validation,
// so a transcript's tier is stable across cleaning runs.
func ExtractTier(text string) (Tier, string) {
	m := tierDirective.FindStringSubmatch(text)
	if m == nil {
		return DefaultTier, text
	}
	tier := Tier(strings.ToLower(m[1]))
	if !tier.IsValid() {
		return DefaultTier, text
	}
	return tier, text[len(m[0]):]
}

// forceTier overwrites the tier field of a raw qna candidate so the declared
// directive survives a cleaner that omitted or mangled the field. A candidate
// that is not a JSON object is returned untouched for downstream stages to
// reject.
func forceTier(raw []byte, tier Tier) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	val, err := json.Marshal(string(tier))
	if err != nil {
		return raw
	}
	obj["tier"] = val
	out, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return out
}
