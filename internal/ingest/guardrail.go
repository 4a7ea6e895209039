package ingest

import (
	"strings"
	"unicode"
)

// CheckGuardrails enforces content-level rules schema types cannot express.
// Only the qna shape has guardrails today: tier pro answers must contain at
// least two ordinal markers ("1." followed later by "2."), and tier free
// answers must not exceed two sentences.
//
// Returns a guardrail_violation [*Error] on failure, nil otherwise.
func CheckGuardrails(rec *CleanedRecord) error {
	if rec.Shape != ShapeQnA {
		return nil
	}

	answer := rec.QnA.Answer
	switch rec.QnA.Tier {
	case TierPro:
		if !hasNumberedSteps(answer) {
			e := newError(CategoryGuardrailViolation,
				"tier pro answers must be formatted as numbered steps")
			e.Detail["tier"] = string(TierPro)
			e.Detail["cleaned"] = rec.QnA
			return e
		}
	case TierFree:
		if n := sentenceCount(answer); n > 2 {
			e := newError(CategoryGuardrailViolation,
				"tier free answers must contain at most two sentences")
			e.Detail["tier"] = string(TierFree)
			e.Detail["sentence_count"] = n
			e.Detail["cleaned"] = rec.QnA
			return e
		}
	}
	return nil
}

// hasNumberedSteps reports whether s contains "1." followed later by "2.".
func hasNumberedSteps(s string) bool {
	first := strings.Index(s, "1.")
	if first < 0 {
		return false
	}
	return strings.Contains(s[first+2:], "2.")
}

// sentenceCount counts sentence-terminal punctuation followed by whitespace
// or end of string. "Kioni. Good holding." counts as two.
func sentenceCount(s string) int {
	count := 0
	runes := []rune(s)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			count++
		}
	}
	return count
}
