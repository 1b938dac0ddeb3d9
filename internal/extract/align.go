package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/llm"
	"github.com/prabalshrestha/grade-lens/internal/models"
)

const (
	// maxAlignContent bounds the content handed to the alignment call.
	maxAlignContent = 10000
	// questionPreviewLen is how much of each question text the aligner sees.
	questionPreviewLen = 200
)

const alignSystem = "You split a student's submission into per-question answers. " +
	"Respond with a JSON object mapping each question id to an object with " +
	"\"text\" (the answer content for that question, empty string if none) and " +
	"\"confidence\" (0 to 1). Include every question id exactly once."

// Answer is one question's share of a submission's extracted content.
type Answer struct {
	Text               string
	Confidence         float64
	ExtractedFromImage bool
	ExtractionNotes    string
}

// Aligner maps combined extracted content onto the assignment's questions
// with a single model call. Every question is guaranteed an entry, even
// when the model response is unusable.
type Aligner struct {
	client llm.Client
	logger zerolog.Logger
}

func NewAligner(client llm.Client, logger zerolog.Logger) *Aligner {
	return &Aligner{
		client: client,
		logger: logger.With().Str("component", "question_aligner").Logger(),
	}
}

type alignedAnswer struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Align partitions the content across question ids. On model or parse
// failure: a single-question assignment receives all content, a
// multi-question assignment receives empty answers.
func (a *Aligner) Align(ctx context.Context, content Content, assignment *models.Assignment) map[string]Answer {
	parsed := a.callModel(ctx, content, assignment)

	answers := make(map[string]Answer, len(assignment.Questions))
	for _, q := range assignment.Questions {
		answer := Answer{ExtractedFromImage: content.FromImages}

		if aligned, ok := parsed[q.ID]; ok {
			answer.Text = strings.TrimSpace(aligned.Text)
			answer.Confidence = aligned.Confidence
		}

		var notes []string
		if content.ImageCount > 0 {
			notes = append(notes, fmt.Sprintf("Processed %d images", content.ImageCount))
		}
		if answer.Text == "" {
			notes = append(notes, "No text answer found")
		}
		answer.ExtractionNotes = strings.Join(notes, "; ")

		answers[q.ID] = answer
	}

	return answers
}

// callModel issues the alignment call and decodes the response. A nil map
// signals total failure and triggers the fallback assignment.
func (a *Aligner) callModel(ctx context.Context, content Content, assignment *models.Assignment) map[string]alignedAnswer {
	text := strings.TrimSpace(content.Text)
	if text == "" {
		return a.fallback(content, assignment)
	}

	out, err := a.client.Complete(ctx, llm.Request{
		System:   alignSystem,
		User:     a.buildPrompt(text, assignment),
		JSONMode: true,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("alignment call failed")
		return a.fallback(content, assignment)
	}

	var parsed map[string]alignedAnswer
	if err := llm.DecodeJSON(out, &parsed); err != nil {
		a.logger.Warn().Err(err).Msg("alignment response unparsable")
		return a.fallback(content, assignment)
	}

	return parsed
}

// fallback implements the total-failure heuristic: with exactly one
// question, all content belongs to it; otherwise nothing can be assigned.
func (a *Aligner) fallback(content Content, assignment *models.Assignment) map[string]alignedAnswer {
	if len(assignment.Questions) == 1 {
		return map[string]alignedAnswer{
			assignment.Questions[0].ID: {Text: content.Text, Confidence: 0.5},
		}
	}

	return nil
}

func (a *Aligner) buildPrompt(text string, assignment *models.Assignment) string {
	var b strings.Builder
	b.WriteString("Questions:\n")
	for _, q := range assignment.Questions {
		b.WriteString(fmt.Sprintf("- %s: %s\n", q.ID, truncate(q.Text, questionPreviewLen)))
	}
	b.WriteString("\nSubmission content:\n")
	b.WriteString(truncate(text, maxAlignContent))

	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max]) + "..."
}
