package models

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewQuestionGradeClampsOutOfRangeScores(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name     string
		score    float64
		maxScore float64
		want     float64
	}{
		{"within range", 7.5, 10, 7.5},
		{"above max", 12, 10, 10},
		{"negative", -3, 10, 0},
		{"exact max", 10, 10, 10},
		{"zero", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewQuestionGrade(logger, "q1", tt.score, tt.maxScore)
			require.Equal(t, tt.want, g.Score)
			require.Equal(t, tt.maxScore, g.MaxScore)
		})
	}
}

func TestQuestionGradePercentage(t *testing.T) {
	g := QuestionGrade{Score: 3, MaxScore: 4}
	require.InDelta(t, 75.0, g.Percentage(), 1e-9)

	zero := QuestionGrade{Score: 0, MaxScore: 0}
	require.Zero(t, zero.Percentage())
}

func TestSubmissionGradeRecompute(t *testing.T) {
	grade := SubmissionGrade{
		TotalScore: 999,
		MaxScore:   999,
		Questions: []QuestionGrade{
			{QuestionID: "q1", Score: 8, MaxScore: 10},
			{QuestionID: "q2", Score: 4.5, MaxScore: 5},
			{QuestionID: "q3", Score: 0, MaxScore: 5},
		},
	}

	grade.Recompute()

	require.Equal(t, 12.5, grade.TotalScore)
	require.Equal(t, 20.0, grade.MaxScore)
	require.InDelta(t, 62.5, grade.Percentage(), 1e-9)
}
