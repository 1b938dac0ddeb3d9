package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prabalshrestha/grade-lens/internal/llm"
	"github.com/prabalshrestha/grade-lens/internal/models"
)

type fakeClient struct {
	response string
	err      error
	calls    int
	lastReq  llm.Request
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}

	return f.response, nil
}

func twoQuestionAssignment() *models.Assignment {
	return &models.Assignment{
		ID:   "hw1",
		Name: "Homework 1",
		Questions: []models.Question{
			{ID: "q1", Text: "Define a stack.", Points: 10},
			{ID: "q2", Text: "Define a queue.", Points: 10},
		},
	}
}

func TestAlignDistributesContent(t *testing.T) {
	client := &fakeClient{response: `{
		"q1": {"text": "A stack is LIFO.", "confidence": 0.9},
		"q2": {"text": "A queue is FIFO.", "confidence": 0.8}
	}`}
	aligner := NewAligner(client, zerolog.Nop())

	answers := aligner.Align(context.Background(), Content{Text: "full submission"}, twoQuestionAssignment())

	require.Len(t, answers, 2)
	require.Equal(t, "A stack is LIFO.", answers["q1"].Text)
	require.Equal(t, 0.9, answers["q1"].Confidence)
	require.Equal(t, "A queue is FIFO.", answers["q2"].Text)
	require.Equal(t, 1, client.calls)
}

func TestAlignGuaranteesEntryPerQuestion(t *testing.T) {
	client := &fakeClient{response: `{"q1": {"text": "only the first", "confidence": 1}}`}
	aligner := NewAligner(client, zerolog.Nop())

	answers := aligner.Align(context.Background(), Content{Text: "content"}, twoQuestionAssignment())

	require.Len(t, answers, 2)
	require.Equal(t, "only the first", answers["q1"].Text)
	require.Empty(t, answers["q2"].Text)
	require.Contains(t, answers["q2"].ExtractionNotes, "No text answer found")
}

func TestAlignSingleQuestionFallbackGetsAllContent(t *testing.T) {
	client := &fakeClient{err: errors.New("model down")}
	aligner := NewAligner(client, zerolog.Nop())

	assignment := &models.Assignment{
		ID:        "hw1",
		Questions: []models.Question{{ID: "q1", Text: "Explain everything.", Points: 10}},
	}

	answers := aligner.Align(context.Background(), Content{Text: "the whole essay"}, assignment)

	require.Len(t, answers, 1)
	require.Equal(t, "the whole essay", answers["q1"].Text)
}

func TestAlignMultiQuestionFallbackIsEmpty(t *testing.T) {
	client := &fakeClient{response: "this is not json"}
	aligner := NewAligner(client, zerolog.Nop())

	answers := aligner.Align(context.Background(), Content{Text: "content"}, twoQuestionAssignment())

	require.Len(t, answers, 2)
	require.Empty(t, answers["q1"].Text)
	require.Empty(t, answers["q2"].Text)
}

func TestAlignEmptyContentSkipsModel(t *testing.T) {
	client := &fakeClient{}
	aligner := NewAligner(client, zerolog.Nop())

	answers := aligner.Align(context.Background(), Content{Text: "   "}, twoQuestionAssignment())

	require.Zero(t, client.calls)
	require.Len(t, answers, 2)
}

func TestAlignCarriesImageProvenance(t *testing.T) {
	client := &fakeClient{response: `{"q1": {"text": "from scan", "confidence": 0.7}, "q2": {"text": "", "confidence": 0}}`}
	aligner := NewAligner(client, zerolog.Nop())

	content := Content{Text: "from scan", FromImages: true, ImageCount: 3}
	answers := aligner.Align(context.Background(), content, twoQuestionAssignment())

	require.True(t, answers["q1"].ExtractedFromImage)
	require.Contains(t, answers["q1"].ExtractionNotes, "Processed 3 images")
	require.Contains(t, answers["q2"].ExtractionNotes, "Processed 3 images; No text answer found")
}
