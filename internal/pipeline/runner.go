package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/models"
	"github.com/prabalshrestha/grade-lens/internal/output"
	"github.com/prabalshrestha/grade-lens/internal/repository"
)

var (
	// ErrAssignmentNotFound means the assignment configuration is missing
	// or invalid. The run aborts with no partial output.
	ErrAssignmentNotFound = errors.New("pipeline: assignment not found")
	// ErrNoSubmissions means the submissions directory is absent or empty.
	ErrNoSubmissions = errors.New("pipeline: no submissions found")
)

// RunResult is the outcome of one batch grading run.
type RunResult struct {
	RunID      string                   `json:"run_id"`
	Assignment *models.Assignment       `json:"-"`
	Grades     []models.SubmissionGrade `json:"grades"`
	Artifacts  output.Artifacts         `json:"artifacts"`
}

// BatchRunner loads an assignment, grades its submissions directory, and
// persists artifacts and database rows. It is the entry point shared by
// the CLI and the HTTP surface.
type BatchRunner struct {
	orch           *Orchestrator
	writer         *output.Writer
	store          *repository.ResultStore
	assignmentsDir string
	submissionsDir string
	logger         zerolog.Logger
}

// NewBatchRunner wires the runner. store may be nil; runs are then only
// written as file artifacts.
func NewBatchRunner(orch *Orchestrator, writer *output.Writer, store *repository.ResultStore, assignmentsDir, submissionsDir string, logger zerolog.Logger) *BatchRunner {
	return &BatchRunner{
		orch:           orch,
		writer:         writer,
		store:          store,
		assignmentsDir: assignmentsDir,
		submissionsDir: submissionsDir,
		logger:         logger.With().Str("component", "batch_runner").Logger(),
	}
}

// Run grades every submission for the assignment. Missing configuration
// or submissions abort the run before any grading happens.
func (r *BatchRunner) Run(ctx context.Context, assignmentID, mode string) (RunResult, error) {
	assignment, err := models.LoadAssignment(filepath.Join(r.assignmentsDir, assignmentID+".json"))
	if err != nil {
		return RunResult{}, fmt.Errorf("%w: %s: %v", ErrAssignmentNotFound, assignmentID, err)
	}

	files, err := r.submissionFiles(assignmentID)
	if err != nil {
		return RunResult{}, err
	}

	r.logger.Info().
		Str("assignment_id", assignmentID).
		Str("mode", mode).
		Int("files", len(files)).
		Msg("starting grading run")

	grades := r.orch.GradeBatch(ctx, assignment, files)

	runID := uuid.NewString()
	artifacts, err := r.writer.Write(runID, assignment.ID, assignment.Name, mode, grades)
	if err != nil {
		return RunResult{}, fmt.Errorf("write artifacts: %w", err)
	}

	if r.store != nil {
		if err := r.store.SaveRun(runID, assignment.ID, mode, grades); err != nil {
			// Artifacts exist on disk; losing the DB row is not fatal.
			r.logger.Error().Err(err).Str("run_id", runID).Msg("failed to persist run")
		}
	}

	return RunResult{
		RunID:      runID,
		Assignment: assignment,
		Grades:     grades,
		Artifacts:  artifacts,
	}, nil
}

func (r *BatchRunner) submissionFiles(assignmentID string) ([]string, error) {
	dir := filepath.Join(r.submissionsDir, assignmentID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSubmissions, dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSubmissions, dir)
	}

	return files, nil
}

// ListAssignments returns the assignment ids that have a configuration
// file on disk.
func (r *BatchRunner) ListAssignments() ([]string, error) {
	entries, err := os.ReadDir(r.assignmentsDir)
	if err != nil {
		return nil, fmt.Errorf("read assignments directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}

	return ids, nil
}

// LatestSummary exposes the newest summary artifact for an assignment.
func (r *BatchRunner) LatestSummary(assignmentID, mode string) ([]byte, error) {
	return r.writer.LatestSummary(assignmentID, mode)
}
