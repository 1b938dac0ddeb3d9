package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prabalshrestha/grade-lens/internal/extract"
	"github.com/prabalshrestha/grade-lens/internal/grading"
	"github.com/prabalshrestha/grade-lens/internal/models"
	"github.com/prabalshrestha/grade-lens/internal/submission"
	"github.com/prabalshrestha/grade-lens/pkg/sandbox"
)

// Orchestrator drives one student group at a time through the code,
// document, or mixed grading route. A failure for one student never
// affects the rest of the batch.
type Orchestrator struct {
	grouper     *submission.Grouper
	extractor   *extract.ContentExtractor
	code        *extract.CodeExtractor
	aligner     *extract.Aligner
	engine      *grading.Engine
	synthesizer *grading.Synthesizer
	runner      sandbox.Runner
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewOrchestrator wires the pipeline stages. runner may be nil; code
// submissions are then graded without executing test cases.
func NewOrchestrator(
	grouper *submission.Grouper,
	extractor *extract.ContentExtractor,
	code *extract.CodeExtractor,
	aligner *extract.Aligner,
	engine *grading.Engine,
	synthesizer *grading.Synthesizer,
	runner sandbox.Runner,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		grouper:     grouper,
		extractor:   extractor,
		code:        code,
		aligner:     aligner,
		engine:      engine,
		synthesizer: synthesizer,
		runner:      runner,
		tracer:      otel.Tracer("github.com/prabalshrestha/grade-lens/internal/pipeline"),
		logger:      logger.With().Str("component", "orchestrator").Logger(),
	}
}

// GradeBatch grades every student group found in the file list. The
// output holds exactly one record per group, in sorted key order.
func (o *Orchestrator) GradeBatch(ctx context.Context, assignment *models.Assignment, files []string) []models.SubmissionGrade {
	groups := o.grouper.GroupByStudent(files)
	keys := submission.SortedKeys(groups)

	grades := make([]models.SubmissionGrade, 0, len(keys))
	for _, key := range keys {
		grades = append(grades, o.gradeStudent(ctx, assignment, key, groups[key]))
	}

	return grades
}

// gradeStudent runs one group through its route. Panics are converted to
// an error-grade record so the batch invariant holds.
func (o *Orchestrator) gradeStudent(parent context.Context, assignment *models.Assignment, key string, files []string) (grade models.SubmissionGrade) {
	ctx, span := o.tracer.Start(parent, "pipeline.grade_student", trace.WithAttributes(
		attribute.String("student_key", key),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	info := o.grouper.StudentInfo(files)
	student := grading.StudentRef{
		Name:           info.StudentName,
		ID:             info.StudentID,
		SubmissionFile: info.OriginalFilename,
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("student_key", key).
				Interface("panic", r).
				Msg("student pipeline failed")
			grade = o.engine.ErrorGrade(assignment, student)
			o.stamp(&grade, info, files, models.SubmissionDocument)
		}
	}()

	buckets := o.grouper.Categorize(files)
	codeFiles := buckets[submission.CategoryCode]
	docFiles := buckets[submission.CategoryDocument]

	switch {
	case len(codeFiles) > 0 && len(docFiles) > 0:
		grade = o.gradeMixed(ctx, assignment, student, codeFiles, docFiles)
		o.stamp(&grade, info, files, models.SubmissionMixed)
	case len(codeFiles) > 0:
		grade = o.gradeCode(ctx, assignment, student, codeFiles)
		o.stamp(&grade, info, files, models.SubmissionCode)
	case len(docFiles) > 0:
		grade = o.gradeDocuments(ctx, assignment, student, docFiles)
		o.stamp(&grade, info, files, models.SubmissionDocument)
	default:
		o.logger.Warn().
			Str("student_key", key).
			Msg("group contains no gradable files")
		grade = o.engine.EmptyGrade(assignment, student)
		o.stamp(&grade, info, files, models.SubmissionDocument)
	}

	return grade
}

// gradeDocuments extracts and aligns each document independently, then
// merges per-question answers across files before grading.
func (o *Orchestrator) gradeDocuments(ctx context.Context, assignment *models.Assignment, student grading.StudentRef, files []string) models.SubmissionGrade {
	merged := make(map[string]extract.Answer, len(assignment.Questions))
	hasContent := false

	for _, file := range files {
		content := o.extractor.Extract(ctx, file)
		if strings.TrimSpace(content.Text) == "" {
			continue
		}
		hasContent = true

		answers := o.aligner.Align(ctx, content, assignment)
		for id, answer := range answers {
			merged[id] = mergeAnswers(merged[id], answer, filepath.Base(file), len(files) > 1)
		}
	}

	if !hasContent {
		return o.engine.EmptyGrade(assignment, student)
	}

	grade := o.engine.GradeSubmission(ctx, assignment, student, merged)
	o.synthesizer.Synthesize(ctx, &grade, assignment)

	return grade
}

// mergeAnswers concatenates a file's answer onto the accumulated one
// under a labeled separator and ORs the image provenance flag.
func mergeAnswers(acc, next extract.Answer, filename string, label bool) extract.Answer {
	text := next.Text
	if label && text != "" {
		text = fmt.Sprintf("--- From %s ---\n%s", filename, text)
	}

	if acc.Text != "" && text != "" {
		acc.Text += "\n\n" + text
	} else if text != "" {
		acc.Text = text
	}

	acc.ExtractedFromImage = acc.ExtractedFromImage || next.ExtractedFromImage
	if acc.ExtractionNotes == "" {
		acc.ExtractionNotes = next.ExtractionNotes
	}
	if next.Confidence > acc.Confidence {
		acc.Confidence = next.Confidence
	}

	return acc
}

// gradeCode hands the full combined code blob to every question. Code
// submissions are not aligned per question; the grading prompt selects
// the relevant portion.
func (o *Orchestrator) gradeCode(ctx context.Context, assignment *models.Assignment, student grading.StudentRef, files []string) models.SubmissionGrade {
	sub := o.code.Extract(files)
	if strings.TrimSpace(sub.Combined) == "" {
		return o.engine.EmptyGrade(assignment, student)
	}

	blob := sub.Analysis + "\n\n" + sub.Combined
	if summary := o.runTests(ctx, assignment, sub); summary != "" {
		blob += "\n\nTest execution results:\n" + summary
	}

	answers := make(map[string]extract.Answer, len(assignment.Questions))
	for _, q := range assignment.Questions {
		answers[q.ID] = extract.Answer{Text: blob}
	}

	grade := o.engine.GradeSubmission(ctx, assignment, student, answers)
	o.synthesizer.Synthesize(ctx, &grade, assignment)

	return grade
}

// gradeMixed concatenates code and document content into one blob and
// assigns it to every question, skipping per-question alignment.
func (o *Orchestrator) gradeMixed(ctx context.Context, assignment *models.Assignment, student grading.StudentRef, codeFiles, docFiles []string) models.SubmissionGrade {
	sub := o.code.Extract(codeFiles)

	var parts []string
	if strings.TrimSpace(sub.Combined) != "" {
		parts = append(parts, "Code submission:\n"+sub.Analysis+"\n\n"+sub.Combined)
	}

	fromImages := false
	for _, file := range docFiles {
		content := o.extractor.Extract(ctx, file)
		if strings.TrimSpace(content.Text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Document %s:\n%s", filepath.Base(file), content.Text))
		fromImages = fromImages || content.FromImages
	}

	if len(parts) == 0 {
		return o.engine.EmptyGrade(assignment, student)
	}

	blob := strings.Join(parts, "\n\n")
	answers := make(map[string]extract.Answer, len(assignment.Questions))
	for _, q := range assignment.Questions {
		answers[q.ID] = extract.Answer{Text: blob, ExtractedFromImage: fromImages}
	}

	grade := o.engine.GradeSubmission(ctx, assignment, student, answers)
	o.synthesizer.Synthesize(ctx, &grade, assignment)

	return grade
}

// runTests executes the assignment's test cases against the submission's
// primary file. Any sandbox failure degrades to a note in the summary.
func (o *Orchestrator) runTests(ctx context.Context, assignment *models.Assignment, sub extract.CodeSubmission) string {
	if o.runner == nil || len(assignment.TestCases) == 0 || len(sub.Files) == 0 {
		return ""
	}

	primary := sub.Files[0]
	cases := make([]sandbox.TestCase, 0, len(assignment.TestCases))
	for _, tc := range assignment.TestCases {
		cases = append(cases, sandbox.TestCase{
			Description:    tc.Description,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}

	results, err := o.runner.RunTests(ctx, primary.Language, primary.Content, cases)
	if err != nil {
		o.logger.Warn().Err(err).Msg("test execution failed")
		return fmt.Sprintf("Test execution unavailable: %v", err)
	}

	return sandbox.Summarize(results)
}

func (o *Orchestrator) stamp(grade *models.SubmissionGrade, info submission.ParsedFilename, files []string, kind models.SubmissionType) {
	grade.IsLate = info.IsLate
	grade.FileCount = len(files)
	grade.SubmissionType = kind
}
