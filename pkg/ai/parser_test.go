package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var parserCriteria = []RubricCriterion{
	{ID: 1, Name: "Correctness", MaxPoints: 10},
	{ID: 2, Name: "Style", MaxPoints: 5},
}

func TestParseAssessmentStructuredResponse(t *testing.T) {
	raw := `{"scores": {"1": 8, "2": 4}, "feedback": "Solid work.", "total": 12}`

	outcome := ParseAssessment(raw, parserCriteria)
	require.False(t, outcome.Fallback)
	require.Equal(t, 8.0, outcome.Result.Scores[1])
	require.Equal(t, 4.0, outcome.Result.Scores[2])
	require.Equal(t, 12.0, outcome.Result.TotalScore)
	require.Equal(t, "Solid work.", outcome.Result.Feedback)
}

func TestParseAssessmentExtractsEmbeddedObject(t *testing.T) {
	raw := "Here is my grading:\n```json\n" +
		`{"scores": {"1": 9.5, "2": 3}, "feedback": "Nearly perfect {braces} inside", "total": 12.5}` +
		"\n```\nLet me know if you need anything else."

	outcome := ParseAssessment(raw, parserCriteria)
	require.False(t, outcome.Fallback)
	require.Equal(t, 9.5, outcome.Result.Scores[1])
	require.Equal(t, 12.5, outcome.Result.TotalScore)
}

func TestParseAssessmentClampsScores(t *testing.T) {
	raw := `{"scores": {"1": 42, "2": -3}, "feedback": "out of range", "total": 39}`

	outcome := ParseAssessment(raw, parserCriteria)
	require.False(t, outcome.Fallback)
	require.Equal(t, 10.0, outcome.Result.Scores[1])
	require.Equal(t, 0.0, outcome.Result.Scores[2])
	require.Equal(t, 10.0, outcome.Result.TotalScore)
}

func TestParseAssessmentScoresKeyedByName(t *testing.T) {
	raw := `{"scores": {"correctness": 7, "Style": 2}, "feedback": "ok", "total": 9}`

	outcome := ParseAssessment(raw, parserCriteria)
	require.False(t, outcome.Fallback)
	require.Equal(t, 7.0, outcome.Result.Scores[1])
	require.Equal(t, 2.0, outcome.Result.Scores[2])
}

func TestParseAssessmentMissingCriterionScoredZero(t *testing.T) {
	raw := `{"scores": {"1": 6}, "feedback": "partial", "total": 6}`

	outcome := ParseAssessment(raw, parserCriteria)
	require.False(t, outcome.Fallback)
	require.Equal(t, 6.0, outcome.Result.Scores[1])
	require.Equal(t, 0.0, outcome.Result.Scores[2])
	require.Equal(t, 6.0, outcome.Result.TotalScore)
}

func TestParseAssessmentUnparsableFallsBack(t *testing.T) {
	outcome := ParseAssessment("I refuse to answer in JSON today.", parserCriteria)
	require.True(t, outcome.Fallback)
	require.NotEmpty(t, outcome.FallbackReason)
	require.Equal(t, 0.0, outcome.Result.TotalScore)
	require.Equal(t, 0.0, outcome.Result.Scores[1])
	require.Equal(t, 0.0, outcome.Result.Scores[2])
	require.Contains(t, outcome.Result.Feedback, "could not interpret")
}

func TestParseAssessmentEmptyResponseFallsBack(t *testing.T) {
	outcome := ParseAssessment("   ", parserCriteria)
	require.True(t, outcome.Fallback)
	require.Equal(t, "empty response", outcome.FallbackReason)
}

func TestExtractBalancedObjectHonoursStrings(t *testing.T) {
	text := `prefix {"a": "value with } brace", "b": {"nested": 1}} suffix {"c": 2}`
	require.Equal(t, `{"a": "value with } brace", "b": {"nested": 1}}`, extractBalancedObject(text))
	require.Equal(t, "", extractBalancedObject("no object here"))
}
