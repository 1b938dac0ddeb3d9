package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prabalshrestha/grade-lens/internal/extract"
	"github.com/prabalshrestha/grade-lens/internal/models"
)

func rubricAssignment() *models.Assignment {
	correct := 10.0
	return &models.Assignment{
		ID:            "hw1",
		Name:          "Homework 1",
		AnswerKeyText: "See chapter 4 of the textbook.",
		Questions: []models.Question{
			{
				ID:        "q1",
				Text:      "Define a stack.",
				Points:    10,
				AnswerKey: "A stack is a LIFO structure.",
				Rubric: &models.Rubric{
					Criteria:     []string{"mentions LIFO", "gives an example"},
					NoSubmission: 0,
					Correct:      &correct,
					Instructions: "Award partial credit for incomplete definitions.",
				},
			},
		},
	}
}

func TestPromptModeDisclosureIsNested(t *testing.T) {
	asg := rubricAssignment()
	answer := extract.Answer{Text: "A stack is LIFO."}

	_, basic := NewPromptBuilder(ModeBasic).SingleQuestion(asg, asg.Questions[0], answer, nil)
	_, standard := NewPromptBuilder(ModeStandard).SingleQuestion(asg, asg.Questions[0], answer, nil)
	_, full := NewPromptBuilder(ModeFull).SingleQuestion(asg, asg.Questions[0], answer, nil)

	// Scoring tiers appear in every mode.
	for _, prompt := range []string{basic, standard, full} {
		require.Contains(t, prompt, "Scoring:")
		require.Contains(t, prompt, "Define a stack.")
		require.Contains(t, prompt, "A stack is LIFO.")
	}

	require.NotContains(t, basic, "mentions LIFO")
	require.NotContains(t, basic, "partial credit for incomplete")
	require.NotContains(t, basic, "LIFO structure")

	require.Contains(t, standard, "mentions LIFO")
	require.Contains(t, standard, "Award partial credit for incomplete definitions.")
	require.NotContains(t, standard, "A stack is a LIFO structure.")

	require.Contains(t, full, "mentions LIFO")
	require.Contains(t, full, "A stack is a LIFO structure.")
}

func TestPromptFallsBackToAssignmentAnswerKey(t *testing.T) {
	asg := rubricAssignment()
	asg.Questions[0].AnswerKey = ""

	_, full := NewPromptBuilder(ModeFull).SingleQuestion(asg, asg.Questions[0], extract.Answer{Text: "x"}, nil)

	require.Contains(t, full, "See chapter 4 of the textbook.")
}

func TestPromptContextSnippetsAreBounded(t *testing.T) {
	asg := rubricAssignment()
	long := strings.Repeat("a", 300)
	context := []string{long, "second", "third", "fourth"}

	_, prompt := NewPromptBuilder(ModeFull).SingleQuestion(asg, asg.Questions[0], extract.Answer{Text: "x"}, context)

	require.Contains(t, prompt, strings.Repeat("a", 200)+"...")
	require.NotContains(t, prompt, strings.Repeat("a", 201))
	require.Contains(t, prompt, "second")
	require.Contains(t, prompt, "third")
	require.NotContains(t, prompt, "fourth")
}

func TestPromptMarksTranscribedAnswers(t *testing.T) {
	asg := rubricAssignment()

	_, prompt := NewPromptBuilder(ModeFull).SingleQuestion(asg, asg.Questions[0], extract.Answer{
		Text:               "handwritten answer",
		ExtractedFromImage: true,
	}, nil)

	require.Contains(t, prompt, "transcribed from a scanned or photographed page")
}
