package models

import (
	"time"

	"github.com/rs/zerolog"
)

// SubmissionType describes which grading route a submission took.
type SubmissionType string

const (
	SubmissionDocument SubmissionType = "document"
	SubmissionCode     SubmissionType = "code"
	SubmissionMixed    SubmissionType = "mixed"
)

// QuestionGrade is the grading outcome for a single question.
type QuestionGrade struct {
	QuestionID           string             `json:"question_id"`
	Score                float64            `json:"score"`
	MaxScore             float64            `json:"max_score"`
	Reasoning            string             `json:"reasoning"`
	Feedback             string             `json:"feedback"`
	CriteriaMet          []string           `json:"criteria_met,omitempty"`
	CriteriaMissed       []string           `json:"criteria_missed,omitempty"`
	Deductions           map[string]float64 `json:"deductions,omitempty"`
	ExtractedFromImage   bool               `json:"extracted_from_image"`
	ImageProcessingNotes string             `json:"image_processing_notes,omitempty"`
}

// NewQuestionGrade builds a grade record, clamping the score into
// [0, maxScore]. Out-of-range model scores are logged and clamped rather
// than rejected.
func NewQuestionGrade(logger zerolog.Logger, questionID string, score, maxScore float64) QuestionGrade {
	clamped := score
	if clamped < 0 {
		clamped = 0
	}
	if clamped > maxScore {
		clamped = maxScore
	}

	if clamped != score {
		logger.Warn().
			Str("question_id", questionID).
			Float64("score", score).
			Float64("max_score", maxScore).
			Float64("clamped", clamped).
			Msg("score out of range, clamped")
	}

	return QuestionGrade{
		QuestionID: questionID,
		Score:      clamped,
		MaxScore:   maxScore,
	}
}

// Percentage returns the score as a percentage of the maximum, or 0 when
// the maximum is zero.
func (q QuestionGrade) Percentage() float64 {
	if q.MaxScore <= 0 {
		return 0
	}

	return q.Score / q.MaxScore * 100
}

// SubmissionGrade is the full grading outcome for one student's submission.
type SubmissionGrade struct {
	StudentName         string          `json:"student_name"`
	StudentID           string          `json:"student_id"`
	SubmissionFile      string          `json:"submission_file"`
	AssignmentID        string          `json:"assignment_id"`
	AssignmentName      string          `json:"assignment_name"`
	TotalScore          float64         `json:"total_score"`
	MaxScore            float64         `json:"max_score"`
	Questions           []QuestionGrade `json:"question_grades"`
	OverallComment      string          `json:"overall_comment"`
	Strengths           []string        `json:"strengths,omitempty"`
	AreasForImprovement []string        `json:"areas_for_improvement,omitempty"`
	GradedAt            time.Time       `json:"graded_at"`
	Model               string          `json:"grading_model,omitempty"`
	RequiresHumanReview bool            `json:"requires_human_review"`
	ReviewReason        string          `json:"review_reason,omitempty"`
	IsLate              bool            `json:"is_late"`
	FileCount           int             `json:"file_count"`
	SubmissionType      SubmissionType  `json:"submission_type"`
}

// Recompute derives TotalScore and MaxScore from the question grades.
// The per-question records are the single source of truth for totals.
func (s *SubmissionGrade) Recompute() {
	s.TotalScore = 0
	s.MaxScore = 0
	for _, q := range s.Questions {
		s.TotalScore += q.Score
		s.MaxScore += q.MaxScore
	}
}

// Percentage returns the overall score as a percentage, or 0 when the
// maximum is zero.
func (s SubmissionGrade) Percentage() float64 {
	if s.MaxScore <= 0 {
		return 0
	}

	return s.TotalScore / s.MaxScore * 100
}
