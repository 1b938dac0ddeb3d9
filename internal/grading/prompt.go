package grading

import (
	"fmt"
	"strings"

	"github.com/prabalshrestha/grade-lens/internal/extract"
	"github.com/prabalshrestha/grade-lens/internal/models"
)

const (
	// maxContextSnippets bounds sibling-answer context in the prompt.
	maxContextSnippets = 3
	// contextSnippetLen truncates each sibling answer.
	contextSnippetLen = 200
)

const gradingSystem = "You are a fair and consistent grader for a university course. " +
	"Grade the student's answer against the question and rubric provided. " +
	"Respond with a JSON object: {\"score\": number, \"reasoning\": string, \"feedback\": string, " +
	"\"criteria_met\": [string], \"criteria_missed\": [string], \"deductions\": {string: number}}. " +
	"The score must be between 0 and the maximum points for the question."

// PromptBuilder assembles grading prompts according to the disclosure
// mode.
type PromptBuilder struct {
	mode Mode
}

func NewPromptBuilder(mode Mode) *PromptBuilder {
	return &PromptBuilder{mode: mode}
}

// SingleQuestion builds the system and user prompts for grading one
// question. Context snippets come from sibling questions' answers.
func (p *PromptBuilder) SingleQuestion(assignment *models.Assignment, question models.Question, answer extract.Answer, context []string) (string, string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Question (%s, %.1f points):\n%s\n\n", question.ID, question.Points, question.Text)

	rubric := assignment.RubricFor(question)
	p.writeRubric(&b, rubric, question.Points)

	if p.mode.includesAnswerKey() {
		if question.AnswerKey != "" {
			fmt.Fprintf(&b, "Reference answer:\n%s\n\n", question.AnswerKey)
		} else if assignment.AnswerKeyText != "" {
			fmt.Fprintf(&b, "Reference material:\n%s\n\n", assignment.AnswerKeyText)
		}
	}

	if len(context) > 0 {
		b.WriteString("Context from the student's other answers:\n")
		for i, snippet := range context {
			if i >= maxContextSnippets {
				break
			}
			fmt.Fprintf(&b, "- %s\n", truncateRunes(snippet, contextSnippetLen))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Student's answer:\n%s\n", answer.Text)
	if answer.ExtractedFromImage {
		b.WriteString("\n(The answer above was transcribed from a scanned or photographed page.)\n")
	}

	return gradingSystem, b.String()
}

// writeRubric always shows the scoring tiers; criteria and instructions
// depend on the disclosure mode.
func (p *PromptBuilder) writeRubric(b *strings.Builder, rubric *models.Rubric, points float64) {
	b.WriteString("Scoring:\n")
	if rubric != nil {
		fmt.Fprintf(b, "- no submission: %.1f points\n", rubric.NoSubmission)
		if rubric.Attempted != nil {
			fmt.Fprintf(b, "- attempted: %.1f points\n", *rubric.Attempted)
		}
		if rubric.MostlyCorrect != nil {
			fmt.Fprintf(b, "- mostly correct: %.1f points\n", *rubric.MostlyCorrect)
		}
		if rubric.Correct != nil {
			fmt.Fprintf(b, "- correct: %.1f points\n", *rubric.Correct)
		} else {
			fmt.Fprintf(b, "- correct: %.1f points\n", points)
		}
	} else {
		fmt.Fprintf(b, "- full credit: %.1f points, partial credit allowed\n", points)
	}
	b.WriteString("\n")

	if rubric == nil || !p.mode.includesCriteria() {
		return
	}

	if len(rubric.Criteria) > 0 {
		b.WriteString("Grading criteria:\n")
		for _, c := range rubric.Criteria {
			fmt.Fprintf(b, "- %s\n", c)
		}
		b.WriteString("\n")
	}

	if rubric.Instructions != "" {
		fmt.Fprintf(b, "Grading instructions:\n%s\n\n", rubric.Instructions)
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + "..."
}
