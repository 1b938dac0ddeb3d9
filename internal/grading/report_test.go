package grading

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prabalshrestha/grade-lens/internal/models"
)

func gradedSubmission(questions ...models.QuestionGrade) *models.SubmissionGrade {
	grade := &models.SubmissionGrade{
		StudentName: "alice",
		StudentID:   "123456",
		Questions:   questions,
	}
	grade.Recompute()

	return grade
}

func reportAssignment() *models.Assignment {
	return &models.Assignment{
		ID:   "hw1",
		Name: "Homework 1",
		Questions: []models.Question{
			{ID: "q1", Text: "Define a stack.", Points: 10},
			{ID: "q2", Text: "Define a queue.", Points: 10},
			{ID: "q3", Text: "Compare both structures.", Points: 10},
		},
	}
}

func TestComputeStats(t *testing.T) {
	grade := gradedSubmission(
		models.QuestionGrade{QuestionID: "q1", Score: 10, MaxScore: 10},
		models.QuestionGrade{QuestionID: "q2", Score: 5, MaxScore: 10},
		models.QuestionGrade{QuestionID: "q3", Score: 0, MaxScore: 10},
	)

	st := computeStats(grade)

	require.Equal(t, 15.0, st.TotalScore)
	require.Equal(t, 30.0, st.MaxScore)
	require.InDelta(t, 50.0, st.Percentage, 1e-9)
	require.InDelta(t, 50.0, st.MeanPercentage, 1e-9)
	require.InDelta(t, 50.0, st.MedianPercentage, 1e-9)
	require.Equal(t, 1, st.NumPerfect)
	require.Equal(t, 1, st.NumZero)
}

func TestExtractHighlightsBands(t *testing.T) {
	asg := reportAssignment()
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 9.5, MaxScore: 10, CriteriaMet: []string{"clear definition", "good example", "extra detail"}},
		{QuestionID: "q2", Score: 8, MaxScore: 10, CriteriaMet: []string{"covers basics"}},
		{QuestionID: "q3", Score: 2, MaxScore: 10, CriteriaMissed: []string{"no comparison", "missing tradeoffs", "more"}},
	}

	strengths, weaknesses := extractHighlights(questions, asg)

	require.Len(t, strengths, 2)
	require.Contains(t, strengths[0], "clear definition, good example")
	require.NotContains(t, strengths[0], "extra detail")
	require.Contains(t, strengths[1], "Strong understanding demonstrated")

	require.Len(t, weaknesses, 1)
	require.Contains(t, weaknesses[0], "no comparison, missing tradeoffs")
}

func TestExtractHighlightsGenericFallbacks(t *testing.T) {
	asg := reportAssignment()
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 10, MaxScore: 10},
		{QuestionID: "q2", Score: 8, MaxScore: 10},
		{QuestionID: "q3", Score: 1, MaxScore: 10},
	}

	strengths, weaknesses := extractHighlights(questions, asg)

	require.Len(t, strengths, 1)
	require.Contains(t, strengths[0], "Excellent performance (100%)")
	require.Len(t, weaknesses, 1)
	require.Contains(t, weaknesses[0], "Significant improvement needed (10%)")
}

func TestExtractHighlightsMidBandWeaknessNeedsCriteria(t *testing.T) {
	asg := reportAssignment()

	_, withCriteria := extractHighlights([]models.QuestionGrade{
		{QuestionID: "q1", Score: 6.5, MaxScore: 10, CriteriaMissed: []string{"edge cases"}},
	}, asg)
	require.Len(t, withCriteria, 1)
	require.Contains(t, withCriteria[0], "Minor improvements needed - edge cases")

	_, withoutCriteria := extractHighlights([]models.QuestionGrade{
		{QuestionID: "q1", Score: 6.5, MaxScore: 10},
	}, asg)
	require.Empty(t, withoutCriteria)
}

func TestExtractHighlightsCapsLists(t *testing.T) {
	asg := &models.Assignment{ID: "hw", Questions: []models.Question{}}
	var questions []models.QuestionGrade
	for i := 0; i < 8; i++ {
		questions = append(questions, models.QuestionGrade{
			QuestionID: "q", Score: 10, MaxScore: 10,
		})
	}

	strengths, _ := extractHighlights(questions, asg)

	require.Len(t, strengths, maxReportItems)
}

func TestQuestionLabelTruncatesText(t *testing.T) {
	asg := &models.Assignment{Questions: []models.Question{
		{ID: "q1", Text: strings.Repeat("x", 80), Points: 10},
	}}

	label := questionLabel("q1", asg)
	require.Equal(t, strings.Repeat("x", 50)+"...", label)

	require.Equal(t, "q9", questionLabel("q9", asg))
}

func TestReviewDecisionMajorityZeros(t *testing.T) {
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 0, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
		{QuestionID: "q2", Score: 0, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
		{QuestionID: "q3", Score: 10, MaxScore: 10},
	}
	st := computeStats(gradedSubmission(questions...))

	flagged, reason := reviewDecision(questions, st)

	require.True(t, flagged)
	require.Contains(t, reason, "More than half of questions received zero points")
}

func TestReviewDecisionNearPerfectWithDeductions(t *testing.T) {
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 10, MaxScore: 10},
		{QuestionID: "q2", Score: 9.8, MaxScore: 10},
	}
	st := computeStats(gradedSubmission(questions...))

	flagged, reason := reviewDecision(questions, st)

	require.True(t, flagged)
	require.Contains(t, reason, "Near-perfect score with some deductions - verify grading")
}

func TestReviewDecisionImageExtractionIssues(t *testing.T) {
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 8, MaxScore: 10, ExtractedFromImage: true, ImageProcessingNotes: "image transcription error: timeout", Reasoning: strings.Repeat("r", 60)},
		{QuestionID: "q2", Score: 8, MaxScore: 10},
	}
	st := computeStats(gradedSubmission(questions...))

	flagged, reason := reviewDecision(questions, st)

	require.True(t, flagged)
	require.Contains(t, reason, "1 question(s) had image extraction issues")
}

func TestReviewDecisionUnderExplainedZero(t *testing.T) {
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 0, MaxScore: 10, Reasoning: "wrong"},
		{QuestionID: "q2", Score: 9, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
		{QuestionID: "q3", Score: 9, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
	}
	st := computeStats(gradedSubmission(questions...))

	flagged, reason := reviewDecision(questions, st)

	require.True(t, flagged)
	require.Contains(t, reason, "1 question(s) received zero with minimal explanation")
}

func TestReviewDecisionCleanSubmission(t *testing.T) {
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 8, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
		{QuestionID: "q2", Score: 9, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
	}
	st := computeStats(gradedSubmission(questions...))

	flagged, reason := reviewDecision(questions, st)

	require.False(t, flagged)
	require.Empty(t, reason)
}

func TestReviewDecisionJoinsMultipleReasons(t *testing.T) {
	questions := []models.QuestionGrade{
		{QuestionID: "q1", Score: 0, MaxScore: 10, Reasoning: "short"},
	}
	st := computeStats(gradedSubmission(questions...))

	flagged, reason := reviewDecision(questions, st)

	require.True(t, flagged)
	require.Contains(t, reason, "; ")
	require.Contains(t, reason, "More than half of questions received zero points")
	require.Contains(t, reason, "received zero with minimal explanation")
}

func TestSynthesizeUsesModelNarrative(t *testing.T) {
	client := &fakeClient{response: "Great job on stacks, review queues before the exam."}
	s := NewSynthesizer(client, zerolog.Nop())

	grade := gradedSubmission(
		models.QuestionGrade{QuestionID: "q1", Score: 9, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
		models.QuestionGrade{QuestionID: "q2", Score: 8, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
	)

	s.Synthesize(context.Background(), grade, reportAssignment())

	require.Equal(t, "Great job on stacks, review queues before the exam.", grade.OverallComment)
	require.False(t, grade.RequiresHumanReview)
}

func TestSynthesizeFallsBackToTemplate(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	s := NewSynthesizer(client, zerolog.Nop())

	grade := gradedSubmission(
		models.QuestionGrade{QuestionID: "q1", Score: 5, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
		models.QuestionGrade{QuestionID: "q2", Score: 5, MaxScore: 10, Reasoning: strings.Repeat("r", 60)},
	)

	s.Synthesize(context.Background(), grade, reportAssignment())

	require.Contains(t, grade.OverallComment, "Score: 10.0/20.0 (50.0%)")
	require.Contains(t, grade.OverallComment, "significant improvement")
}

func TestTemplateCommentBands(t *testing.T) {
	tests := []struct {
		percentage float64
		want       string
	}{
		{95, "Excellent work"},
		{85, "Good work overall"},
		{75, "solid effort"},
		{65, "partial understanding"},
		{40, "significant improvement"},
	}

	for _, tt := range tests {
		st := Stats{TotalScore: tt.percentage, MaxScore: 100, Percentage: tt.percentage}
		require.Contains(t, templateComment(st), tt.want)
	}
}
