package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prabalshrestha/grade-lens/internal/models"
)

// GradingRun is one persisted batch grading run.
type GradingRun struct {
	ID               string `gorm:"primaryKey"`
	AssignmentID     string `gorm:"index"`
	GradingMode      string
	NumSubmissions   int
	FlaggedForReview int
	CreatedAt        time.Time
}

// StudentResult is one student's outcome within a run. Question grades
// are stored as a JSON column since they are only read back whole.
type StudentResult struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement"`
	RunID               string `gorm:"index"`
	StudentName         string
	StudentID           string
	TotalScore          float64
	MaxScore            float64
	IsLate              bool
	SubmissionType      string
	RequiresHumanReview bool
	ReviewReason        string
	OverallComment      string
	QuestionsJSON       string
}

// ResultStore persists grading runs to sqlite so past results survive
// artifact cleanup.
type ResultStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// OpenResultStore opens (or creates) the sqlite database and migrates
// the result tables.
func OpenResultStore(path string, logger zerolog.Logger) (*ResultStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	if err := db.AutoMigrate(&GradingRun{}, &StudentResult{}); err != nil {
		return nil, fmt.Errorf("migrate result store: %w", err)
	}

	return &ResultStore{
		db:     db,
		logger: logger.With().Str("component", "result_store").Logger(),
	}, nil
}

// SaveRun writes the run header and one row per graded student in a
// single transaction.
func (s *ResultStore) SaveRun(runID, assignmentID, mode string, grades []models.SubmissionGrade) error {
	run := GradingRun{
		ID:             runID,
		AssignmentID:   assignmentID,
		GradingMode:    mode,
		NumSubmissions: len(grades),
		CreatedAt:      time.Now().UTC(),
	}

	results := make([]StudentResult, 0, len(grades))
	for _, g := range grades {
		if g.RequiresHumanReview {
			run.FlaggedForReview++
		}

		questions, err := json.Marshal(g.Questions)
		if err != nil {
			return fmt.Errorf("encode question grades: %w", err)
		}

		results = append(results, StudentResult{
			RunID:               runID,
			StudentName:         g.StudentName,
			StudentID:           g.StudentID,
			TotalScore:          g.TotalScore,
			MaxScore:            g.MaxScore,
			IsLate:              g.IsLate,
			SubmissionType:      string(g.SubmissionType),
			RequiresHumanReview: g.RequiresHumanReview,
			ReviewReason:        g.ReviewReason,
			OverallComment:      g.OverallComment,
			QuestionsJSON:       string(questions),
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}

		return tx.Create(&results).Error
	})
	if err != nil {
		return fmt.Errorf("save grading run: %w", err)
	}

	s.logger.Info().
		Str("run_id", runID).
		Str("assignment_id", assignmentID).
		Int("students", len(results)).
		Msg("persisted grading run")

	return nil
}

// ListRuns returns the runs for an assignment, newest first.
func (s *ResultStore) ListRuns(assignmentID string) ([]GradingRun, error) {
	var runs []GradingRun
	err := s.db.
		Where("assignment_id = ?", assignmentID).
		Order("created_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list grading runs: %w", err)
	}

	return runs, nil
}

// ResultsForRun returns the per-student rows of one run.
func (s *ResultStore) ResultsForRun(runID string) ([]StudentResult, error) {
	var results []StudentResult
	err := s.db.
		Where("run_id = ?", runID).
		Order("student_name ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("load run results: %w", err)
	}

	return results, nil
}
