package ai

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// AssessmentResult is the structured outcome of parsing an evaluator response.
type AssessmentResult struct {
	Scores     map[uint]float64
	Feedback   string
	TotalScore float64
}

// AssessmentOutcome is a tagged result: either a parsed assessment or the
// documented degraded-success fallback. It never represents a hard failure.
type AssessmentOutcome struct {
	Result         AssessmentResult
	Fallback       bool
	FallbackReason string
}

const fallbackFeedback = "Automated grading could not interpret the evaluator's response. " +
	"All criteria were scored 0; a human reviewer should grade this solution manually."

type assessmentPayload struct {
	Scores   map[string]json.Number `json:"scores"`
	Feedback string                 `json:"feedback"`
	Total    json.Number            `json:"total"`
}

// ParseAssessment extracts per-criterion scores and narrative feedback from
// free-form evaluator output. Decoding is attempted on the raw text, then on
// the first balanced {...} region, then on a repaired rendition of it. Any
// failure produces the zero-score fallback result instead of an error.
func ParseAssessment(raw string, criteria []RubricCriterion) AssessmentOutcome {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallbackOutcome(criteria, "empty response")
	}

	payload, reason := decodePayload(raw)
	if payload == nil {
		return fallbackOutcome(criteria, reason)
	}
	if len(payload.Scores) == 0 {
		return fallbackOutcome(criteria, "response contained no scores")
	}

	scores := make(map[uint]float64, len(criteria))
	for _, criterion := range criteria {
		value, ok := lookupScore(payload.Scores, criterion)
		if !ok {
			scores[criterion.ID] = 0
			continue
		}
		scores[criterion.ID] = clampScore(value, criterion.MaxPoints)
	}

	total := 0.0
	for _, score := range scores {
		total += score
	}

	return AssessmentOutcome{
		Result: AssessmentResult{
			Scores:     scores,
			Feedback:   strings.TrimSpace(payload.Feedback),
			TotalScore: total,
		},
	}
}

func decodePayload(raw string) (*assessmentPayload, string) {
	candidates := []string{raw}
	if region := extractBalancedObject(raw); region != "" && region != raw {
		candidates = append(candidates, region)
	}

	var lastReason string
	for _, candidate := range candidates {
		var payload assessmentPayload
		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			return &payload, ""
		} else {
			lastReason = err.Error()
		}

		repaired, err := jsonrepair.JSONRepair(candidate)
		if err != nil {
			continue
		}
		var payload2 assessmentPayload
		if err := json.Unmarshal([]byte(repaired), &payload2); err == nil {
			return &payload2, ""
		}
	}

	if lastReason == "" {
		lastReason = "no JSON object found in response"
	}
	return nil, lastReason
}

// extractBalancedObject returns the first balanced {...} region of the text,
// honouring string literals and escapes, or "" when none exists.
func extractBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

func lookupScore(scores map[string]json.Number, criterion RubricCriterion) (float64, bool) {
	key := strconv.FormatUint(uint64(criterion.ID), 10)
	if number, ok := scores[key]; ok {
		if value, err := number.Float64(); err == nil {
			return value, true
		}
	}

	// Some models key scores by criterion name instead of id.
	for name, number := range scores {
		if strings.EqualFold(strings.TrimSpace(name), criterion.Name) {
			if value, err := number.Float64(); err == nil {
				return value, true
			}
		}
	}
	return 0, false
}

func clampScore(value, maxPoints float64) float64 {
	if value < 0 {
		return 0
	}
	if maxPoints > 0 && value > maxPoints {
		return maxPoints
	}
	return value
}

func fallbackOutcome(criteria []RubricCriterion, reason string) AssessmentOutcome {
	scores := make(map[uint]float64, len(criteria))
	for _, criterion := range criteria {
		scores[criterion.ID] = 0
	}

	return AssessmentOutcome{
		Result: AssessmentResult{
			Scores:     scores,
			Feedback:   fallbackFeedback,
			TotalScore: 0,
		},
		Fallback:       true,
		FallbackReason: reason,
	}
}
