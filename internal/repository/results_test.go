package repository

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prabalshrestha/grade-lens/internal/models"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()

	store, err := OpenResultStore(filepath.Join(t.TempDir(), "results.db"), zerolog.Nop())
	require.NoError(t, err)

	return store
}

func TestSaveAndListRuns(t *testing.T) {
	store := openTestStore(t)

	grades := []models.SubmissionGrade{
		{
			StudentName:         "alice",
			StudentID:           "123456",
			TotalScore:          8,
			MaxScore:            10,
			SubmissionType:      models.SubmissionDocument,
			Questions:           []models.QuestionGrade{{QuestionID: "q1", Score: 8, MaxScore: 10}},
			RequiresHumanReview: false,
		},
		{
			StudentName:         "bob",
			StudentID:           "654321",
			TotalScore:          0,
			MaxScore:            10,
			SubmissionType:      models.SubmissionCode,
			Questions:           []models.QuestionGrade{{QuestionID: "q1", Score: 0, MaxScore: 10}},
			RequiresHumanReview: true,
			ReviewReason:        "More than half of questions received zero points",
		},
	}

	require.NoError(t, store.SaveRun("run-1", "hw1", "full", grades))

	runs, err := store.ListRuns("hw1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 2, runs[0].NumSubmissions)
	require.Equal(t, 1, runs[0].FlaggedForReview)
	require.Equal(t, "full", runs[0].GradingMode)

	results, err := store.ResultsForRun("run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "alice", results[0].StudentName)
	require.Contains(t, results[0].QuestionsJSON, `"question_id":"q1"`)
	require.True(t, results[1].RequiresHumanReview)
}

func TestListRunsUnknownAssignment(t *testing.T) {
	store := openTestStore(t)

	runs, err := store.ListRuns("missing")
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestSaveRunEmptyBatch(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveRun("run-empty", "hw1", "basic", nil))

	runs, err := store.ListRuns("hw1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Zero(t, runs[0].NumSubmissions)
}
