package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/llm"
	"github.com/prabalshrestha/grade-lens/internal/models"
)

const (
	// maxReportItems caps the strengths and weaknesses lists.
	maxReportItems = 5
	// questionLabelLen is how much question text appears in report items.
	questionLabelLen = 50
	// minReasoningLen flags zero scores with too little explanation.
	minReasoningLen = 50
)

const narrativeSystem = "You write short grade-report summaries for students. " +
	"Given the scores, strengths, and weaknesses, write an encouraging but honest " +
	"summary of the submission in 2 to 4 sentences. Address the student directly."

// Stats are the aggregate figures for one graded submission.
type Stats struct {
	TotalScore       float64
	MaxScore         float64
	Percentage       float64
	MeanPercentage   float64
	MedianPercentage float64
	NumPerfect       int
	NumZero          int
}

// Synthesizer fills the report fields of a graded submission: aggregate
// comment, strengths, weaknesses, and the human-review decision.
type Synthesizer struct {
	client llm.Client
	logger zerolog.Logger
}

func NewSynthesizer(client llm.Client, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		client: client,
		logger: logger.With().Str("component", "report_synthesizer").Logger(),
	}
}

// Synthesize computes statistics, extracts strengths and weaknesses,
// generates the narrative comment, and decides the human-review flag.
// The grade is updated in place.
func (s *Synthesizer) Synthesize(ctx context.Context, grade *models.SubmissionGrade, assignment *models.Assignment) {
	st := computeStats(grade)

	grade.Strengths, grade.AreasForImprovement = extractHighlights(grade.Questions, assignment)
	grade.OverallComment = s.narrative(ctx, grade, st)
	grade.RequiresHumanReview, grade.ReviewReason = reviewDecision(grade.Questions, st)
}

func computeStats(grade *models.SubmissionGrade) Stats {
	st := Stats{
		TotalScore: grade.TotalScore,
		MaxScore:   grade.MaxScore,
		Percentage: grade.Percentage(),
	}

	percentages := make([]float64, 0, len(grade.Questions))
	for _, q := range grade.Questions {
		percentages = append(percentages, q.Percentage())
		if q.MaxScore > 0 && q.Score == q.MaxScore {
			st.NumPerfect++
		}
		if q.Score == 0 {
			st.NumZero++
		}
	}

	if len(percentages) > 0 {
		st.MeanPercentage, _ = stats.Mean(percentages)
		st.MedianPercentage, _ = stats.Median(percentages)
	}

	return st
}

// extractHighlights builds the strengths and weaknesses lists by
// percentage band, preserving question order and capping each list.
func extractHighlights(questions []models.QuestionGrade, assignment *models.Assignment) ([]string, []string) {
	var strengths, weaknesses []string

	for _, q := range questions {
		label := questionLabel(q.QuestionID, assignment)
		pct := q.Percentage()

		switch {
		case pct >= 90:
			if len(q.CriteriaMet) > 0 {
				strengths = append(strengths, fmt.Sprintf("%s: %s", label, joinFirst(q.CriteriaMet, 2)))
			} else {
				strengths = append(strengths, fmt.Sprintf("%s: Excellent performance (%.0f%%)", label, pct))
			}
		case pct >= 75:
			if len(q.CriteriaMet) > 0 {
				strengths = append(strengths, fmt.Sprintf("%s: Strong understanding demonstrated", label))
			}
		case pct < 60:
			if len(q.CriteriaMissed) > 0 {
				weaknesses = append(weaknesses, fmt.Sprintf("%s: %s", label, joinFirst(q.CriteriaMissed, 2)))
			} else {
				weaknesses = append(weaknesses, fmt.Sprintf("%s: Significant improvement needed (%.0f%%)", label, pct))
			}
		default: // 60-74
			if len(q.CriteriaMissed) > 0 {
				weaknesses = append(weaknesses, fmt.Sprintf("%s: Minor improvements needed - %s", label, q.CriteriaMissed[0]))
			}
		}
	}

	if len(strengths) > maxReportItems {
		strengths = strengths[:maxReportItems]
	}
	if len(weaknesses) > maxReportItems {
		weaknesses = weaknesses[:maxReportItems]
	}

	return strengths, weaknesses
}

func questionLabel(questionID string, assignment *models.Assignment) string {
	if q := assignment.QuestionByID(questionID); q != nil && q.Text != "" {
		return truncateRunes(q.Text, questionLabelLen)
	}

	return questionID
}

func joinFirst(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}

	return strings.Join(items, ", ")
}

// narrative asks the model for a short summary, falling back to the
// banded template when the call fails.
func (s *Synthesizer) narrative(ctx context.Context, grade *models.SubmissionGrade, st Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Student: %s\n", grade.StudentName)
	fmt.Fprintf(&b, "Score: %.1f/%.1f (%.1f%%)\n", st.TotalScore, st.MaxScore, st.Percentage)
	if len(grade.Strengths) > 0 {
		fmt.Fprintf(&b, "Strengths:\n- %s\n", strings.Join(grade.Strengths, "\n- "))
	}
	if len(grade.AreasForImprovement) > 0 {
		fmt.Fprintf(&b, "Areas for improvement:\n- %s\n", strings.Join(grade.AreasForImprovement, "\n- "))
	}

	out, err := s.client.Complete(ctx, llm.Request{
		System: narrativeSystem,
		User:   b.String(),
	})
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			s.logger.Warn().Err(err).Msg("narrative call failed, using template")
		}
		return templateComment(st)
	}

	return strings.TrimSpace(out)
}

func templateComment(st Stats) string {
	var sentence string
	switch {
	case st.Percentage >= 90:
		sentence = "Excellent work! You demonstrated a strong understanding of the material."
	case st.Percentage >= 80:
		sentence = "Good work overall, with a few areas that could be improved."
	case st.Percentage >= 70:
		sentence = "A solid effort, but several answers need more depth or accuracy."
	case st.Percentage >= 60:
		sentence = "Your submission shows partial understanding. Please review the material covered."
	default:
		sentence = "This submission needs significant improvement. Please review the feedback for each question and consider seeking help."
	}

	return fmt.Sprintf("%s Score: %.1f/%.1f (%.1f%%)", sentence, st.TotalScore, st.MaxScore, st.Percentage)
}

// reviewDecision applies the triage heuristics. Reasons accumulate and
// are joined with semicolons.
func reviewDecision(questions []models.QuestionGrade, st Stats) (bool, string) {
	var reasons []string

	if st.NumZero > len(questions)/2 {
		reasons = append(reasons, "More than half of questions received zero points")
	}

	if st.Percentage > 95 && st.NumPerfect < len(questions) {
		reasons = append(reasons, "Near-perfect score with some deductions - verify grading")
	}

	imageIssues := 0
	underExplained := 0
	for _, q := range questions {
		if q.ExtractedFromImage && strings.Contains(strings.ToLower(q.ImageProcessingNotes), "error") {
			imageIssues++
		}
		if q.Score == 0 && len(q.Reasoning) < minReasoningLen {
			underExplained++
		}
	}
	if imageIssues > 0 {
		reasons = append(reasons, fmt.Sprintf("%d question(s) had image extraction issues", imageIssues))
	}
	if underExplained > 0 {
		reasons = append(reasons, fmt.Sprintf("%d question(s) received zero with minimal explanation", underExplained))
	}

	if len(reasons) == 0 {
		return false, ""
	}

	return true, strings.Join(reasons, "; ")
}
