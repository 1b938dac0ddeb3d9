package grading

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/extract"
	"github.com/prabalshrestha/grade-lens/internal/llm"
	"github.com/prabalshrestha/grade-lens/internal/models"
)

// noAnswerSentinel marks answers the aligner could not populate.
const noAnswerSentinel = "No answer provided"

// StudentRef identifies the student a grade belongs to.
type StudentRef struct {
	Name           string
	ID             string
	SubmissionFile string
}

// Engine grades questions against their rubric with a model call per
// question. Empty answers short-circuit without touching the model.
type Engine struct {
	client llm.Client
	prompt *PromptBuilder
	mode   Mode
	model  string
	logger zerolog.Logger
}

func NewEngine(client llm.Client, mode Mode, model string, logger zerolog.Logger) *Engine {
	return &Engine{
		client: client,
		prompt: NewPromptBuilder(mode),
		mode:   mode,
		model:  model,
		logger: logger.With().Str("component", "grading_engine").Logger(),
	}
}

type gradeResponse struct {
	Score          float64            `json:"score"`
	Reasoning      string             `json:"reasoning"`
	Feedback       string             `json:"feedback"`
	CriteriaMet    []string           `json:"criteria_met"`
	CriteriaMissed []string           `json:"criteria_missed"`
	Deductions     map[string]float64 `json:"deductions"`
}

// GradeQuestion grades one question. Blank answers and the aligner's
// no-answer sentinel produce the fixed zero grade without a model call;
// model or parse failures produce the fixed error grade.
func (e *Engine) GradeQuestion(ctx context.Context, assignment *models.Assignment, question models.Question, answer extract.Answer, siblingContext []string) models.QuestionGrade {
	text := strings.TrimSpace(answer.Text)
	if text == "" || text == noAnswerSentinel {
		grade := models.NewQuestionGrade(e.logger, question.ID, 0, question.Points)
		grade.Reasoning = "No answer provided for this question"
		grade.Feedback = "Please ensure you answer all questions in future submissions"
		grade.ExtractedFromImage = answer.ExtractedFromImage
		grade.ImageProcessingNotes = answer.ExtractionNotes

		return grade
	}

	system, user := e.prompt.SingleQuestion(assignment, question, answer, siblingContext)
	out, err := e.client.Complete(ctx, llm.Request{
		System:   system,
		User:     user,
		JSONMode: true,
	})
	if err != nil {
		e.logger.Warn().
			Str("question_id", question.ID).
			Err(err).
			Msg("grading call failed")
		return e.errorQuestionGrade(question, answer)
	}

	var parsed gradeResponse
	if err := llm.DecodeJSON(out, &parsed); err != nil {
		e.logger.Warn().
			Str("question_id", question.ID).
			Err(err).
			Msg("grading response unparsable")
		return e.errorQuestionGrade(question, answer)
	}

	grade := models.NewQuestionGrade(e.logger, question.ID, parsed.Score, question.Points)
	grade.Reasoning = parsed.Reasoning
	grade.Feedback = parsed.Feedback
	grade.CriteriaMet = parsed.CriteriaMet
	grade.CriteriaMissed = parsed.CriteriaMissed
	grade.Deductions = parsed.Deductions
	grade.ExtractedFromImage = answer.ExtractedFromImage
	grade.ImageProcessingNotes = answer.ExtractionNotes

	return grade
}

func (e *Engine) errorQuestionGrade(question models.Question, answer extract.Answer) models.QuestionGrade {
	grade := models.NewQuestionGrade(e.logger, question.ID, 0, question.Points)
	grade.Reasoning = "Error: Unable to grade this question due to processing failure"
	grade.Feedback = "Please contact instructor for manual review"
	grade.ExtractedFromImage = answer.ExtractedFromImage
	grade.ImageProcessingNotes = answer.ExtractionNotes

	return grade
}

// GradeSubmission grades every question in assignment order. The result
// always covers the full question list; a question without an extracted
// answer contributes a zero entry rather than being skipped.
func (e *Engine) GradeSubmission(ctx context.Context, assignment *models.Assignment, student StudentRef, answers map[string]extract.Answer) models.SubmissionGrade {
	grades := make([]models.QuestionGrade, 0, len(assignment.Questions))

	for _, question := range assignment.Questions {
		answer, ok := answers[question.ID]
		if !ok {
			answer = extract.Answer{ExtractionNotes: "Answer not found in extraction"}
		}

		siblingContext := e.contextFor(assignment, question.ID, answers)
		grades = append(grades, e.GradeQuestion(ctx, assignment, question, answer, siblingContext))
	}

	grade := e.newSubmissionGrade(assignment, student)
	grade.Questions = grades
	grade.Recompute()

	return grade
}

// contextFor collects up to maxContextSnippets sibling answers, in
// assignment order, skipping the question being graded.
func (e *Engine) contextFor(assignment *models.Assignment, questionID string, answers map[string]extract.Answer) []string {
	var snippets []string
	for _, q := range assignment.Questions {
		if q.ID == questionID || len(snippets) >= maxContextSnippets {
			continue
		}
		if answer, ok := answers[q.ID]; ok && strings.TrimSpace(answer.Text) != "" {
			snippets = append(snippets, answer.Text)
		}
	}

	return snippets
}

// ErrorGrade is the terminal record for a submission whose processing
// failed. Every question scores zero and the record is flagged.
func (e *Engine) ErrorGrade(assignment *models.Assignment, student StudentRef) models.SubmissionGrade {
	grade := e.newSubmissionGrade(assignment, student)
	for _, question := range assignment.Questions {
		q := models.NewQuestionGrade(e.logger, question.ID, 0, question.Points)
		q.Reasoning = "Error: Unable to grade this question due to processing failure"
		q.Feedback = "Please contact instructor for manual review"
		grade.Questions = append(grade.Questions, q)
	}
	grade.Recompute()
	grade.OverallComment = "Error processing submission - requires manual review"
	grade.RequiresHumanReview = true
	grade.ReviewReason = "Processing error during automated grading"

	return grade
}

// EmptyGrade is the terminal record for a student whose files yielded no
// gradable content. No model calls are made.
func (e *Engine) EmptyGrade(assignment *models.Assignment, student StudentRef) models.SubmissionGrade {
	grade := e.newSubmissionGrade(assignment, student)
	for _, question := range assignment.Questions {
		q := models.NewQuestionGrade(e.logger, question.ID, 0, question.Points)
		q.Reasoning = "No submission or empty submission"
		q.Feedback = "No response provided for this question"
		grade.Questions = append(grade.Questions, q)
	}
	grade.Recompute()
	grade.OverallComment = "No submission provided"

	return grade
}

func (e *Engine) newSubmissionGrade(assignment *models.Assignment, student StudentRef) models.SubmissionGrade {
	return models.SubmissionGrade{
		StudentName:    student.Name,
		StudentID:      student.ID,
		SubmissionFile: student.SubmissionFile,
		AssignmentID:   assignment.ID,
		AssignmentName: assignment.Name,
		GradedAt:       time.Now().UTC(),
		Model:          e.model,
	}
}
