package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/models"
)

// Artifacts lists the files produced for one grading run.
type Artifacts struct {
	Dir          string `json:"dir"`
	CSVPath      string `json:"csv_path"`
	SummaryPath  string `json:"summary_path"`
	DetailedPath string `json:"detailed_path"`
}

// Writer serializes a batch of graded submissions into per-run CSV and
// JSON artifacts under the output directory.
type Writer struct {
	baseDir string
	logger  zerolog.Logger
}

func NewWriter(baseDir string, logger zerolog.Logger) *Writer {
	return &Writer{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "output_writer").Logger(),
	}
}

type runSummary struct {
	RunID            string           `json:"run_id"`
	AssignmentID     string           `json:"assignment_id"`
	AssignmentName   string           `json:"assignment_name"`
	GradingMode      string           `json:"grading_mode"`
	GeneratedAt      time.Time        `json:"generated_at"`
	NumSubmissions   int              `json:"num_submissions"`
	FlaggedForReview int              `json:"flagged_for_review"`
	Students         []studentSummary `json:"students"`
}

type studentSummary struct {
	StudentName         string  `json:"student_name"`
	StudentID           string  `json:"student_id"`
	TotalScore          float64 `json:"total_score"`
	MaxScore            float64 `json:"max_score"`
	Percentage          float64 `json:"percentage"`
	IsLate              bool    `json:"is_late"`
	RequiresHumanReview bool    `json:"requires_human_review"`
}

// Write produces the run directory and its three artifacts. The
// directory name is the assignment id, suffixed with the grading mode
// when one is given.
func (w *Writer) Write(runID, assignmentID, assignmentName, mode string, grades []models.SubmissionGrade) (Artifacts, error) {
	dirName := assignmentID
	if mode != "" {
		dirName = fmt.Sprintf("%s_%s", assignmentID, mode)
	}

	dir := filepath.Join(w.baseDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create run directory: %w", err)
	}

	ts := time.Now().Format("20060102_150405")
	artifacts := Artifacts{
		Dir:          dir,
		CSVPath:      filepath.Join(dir, fmt.Sprintf("grading_results_%s.csv", ts)),
		SummaryPath:  filepath.Join(dir, fmt.Sprintf("grading_summary_%s.json", ts)),
		DetailedPath: filepath.Join(dir, fmt.Sprintf("grading_results_detailed_%s.json", ts)),
	}

	if err := w.writeCSV(artifacts.CSVPath, grades); err != nil {
		return Artifacts{}, err
	}
	if err := w.writeSummary(artifacts.SummaryPath, runID, assignmentID, assignmentName, mode, grades); err != nil {
		return Artifacts{}, err
	}
	if err := writeJSON(artifacts.DetailedPath, grades); err != nil {
		return Artifacts{}, err
	}

	w.logger.Info().
		Str("dir", dir).
		Int("students", len(grades)).
		Msg("wrote grading artifacts")

	return artifacts, nil
}

func (w *Writer) writeCSV(path string, grades []models.SubmissionGrade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{
		"student_name", "student_id", "total_score", "max_score", "percentage",
		"is_late", "submission_type", "file_count", "requires_human_review", "review_reason",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, g := range grades {
		row := []string{
			g.StudentName,
			g.StudentID,
			strconv.FormatFloat(g.TotalScore, 'f', 2, 64),
			strconv.FormatFloat(g.MaxScore, 'f', 2, 64),
			strconv.FormatFloat(g.Percentage(), 'f', 1, 64),
			strconv.FormatBool(g.IsLate),
			string(g.SubmissionType),
			strconv.Itoa(g.FileCount),
			strconv.FormatBool(g.RequiresHumanReview),
			g.ReviewReason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func (w *Writer) writeSummary(path, runID, assignmentID, assignmentName, mode string, grades []models.SubmissionGrade) error {
	summary := runSummary{
		RunID:          runID,
		AssignmentID:   assignmentID,
		AssignmentName: assignmentName,
		GradingMode:    mode,
		GeneratedAt:    time.Now().UTC(),
		NumSubmissions: len(grades),
	}

	for _, g := range grades {
		if g.RequiresHumanReview {
			summary.FlaggedForReview++
		}
		summary.Students = append(summary.Students, studentSummary{
			StudentName:         g.StudentName,
			StudentID:           g.StudentID,
			TotalScore:          g.TotalScore,
			MaxScore:            g.MaxScore,
			Percentage:          g.Percentage(),
			IsLate:              g.IsLate,
			RequiresHumanReview: g.RequiresHumanReview,
		})
	}

	return writeJSON(path, summary)
}

func writeJSON(path string, payload any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// LatestSummary returns the newest summary artifact for an assignment,
// or an error when no run has been written yet.
func (w *Writer) LatestSummary(assignmentID, mode string) ([]byte, error) {
	dirName := assignmentID
	if mode != "" {
		dirName = fmt.Sprintf("%s_%s", assignmentID, mode)
	}

	pattern := filepath.Join(w.baseDir, dirName, "grading_summary_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no results for assignment %s", assignmentID)
	}

	// Timestamped names sort chronologically.
	latest := matches[0]
	for _, m := range matches[1:] {
		if m > latest {
			latest = m
		}
	}

	return os.ReadFile(latest)
}
