package ai

import (
	"fmt"
	"strings"
)

// RubricCriterion is one grading dimension as presented to the evaluator.
type RubricCriterion struct {
	ID          uint
	Name        string
	Description string
	MaxPoints   float64
}

// RubricInput carries everything needed to render a grading prompt.
type RubricInput struct {
	TaskTitle         string
	TaskDescription   string
	ReferenceSolution string
	SubmissionContent string
	Criteria          []RubricCriterion
}

// RubricSystemPrompt returns the system instruction paired with rubric prompts.
func RubricSystemPrompt() string {
	return "You are an automated grader for open-ended student work. Grade strictly against the provided rubric. " +
		"Respond with a JSON object containing a \"scores\" object keyed by criterion id where each value is within " +
		"[0, that criterion's max points], a \"feedback\" string addressed to the student, and a \"total\" number equal " +
		"to the sum of the scores."
}

// BuildRubricPrompt renders the grading prompt for one solution. The output
// is deterministic for identical inputs: criteria appear in their stored
// order and no timestamps or random content are embedded.
func BuildRubricPrompt(input RubricInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Task\n")
	builder.WriteString(input.TaskTitle)
	builder.WriteString("\n\n## Description\n")
	builder.WriteString(input.TaskDescription)
	builder.WriteString("\n\n## Rubric\n")
	for index, criterion := range input.Criteria {
		builder.WriteString(fmt.Sprintf("%d. %s (max %g points)", index+1, criterion.Name, criterion.MaxPoints))
		if criterion.Description != "" {
			builder.WriteString(": ")
			builder.WriteString(criterion.Description)
		}
		builder.WriteString(fmt.Sprintf(" [criterion id: %d]\n", criterion.ID))
	}
	builder.WriteString("\n## Reference Solution\n")
	builder.WriteString(input.ReferenceSolution)
	builder.WriteString("\n\n## Student Submission\n")
	builder.WriteString(input.SubmissionContent)
	builder.WriteString("\n\nReturn a JSON object of the form ")
	builder.WriteString(`{"scores": {"<criterion id>": <points>}, "feedback": "<comment for the student>", "total": <sum>}`)
	builder.WriteString(". Each score must lie within [0, the criterion's max points].")
	return builder.String()
}
