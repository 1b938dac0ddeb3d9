package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

var languageByExtension = map[string]string{
	".py":   "python",
	".java": "java",
	".cpp":  "cpp",
	".c":    "c",
	".js":   "javascript",
	".ts":   "typescript",
}

// CodeFile is one source file from a code submission.
type CodeFile struct {
	Filename  string
	Language  string
	Content   string
	LineCount int
}

// CodeSubmission is the combined view of a student's code files, ready to
// be handed to the grading prompt as a single labeled blob.
type CodeSubmission struct {
	Files      []CodeFile
	Combined   string
	Languages  []string
	Analysis   string
	TotalLines int
}

// CodeExtractor reads and concatenates code files. Unreadable files are
// skipped with a warning rather than failing the submission.
type CodeExtractor struct {
	logger zerolog.Logger
}

func NewCodeExtractor(logger zerolog.Logger) *CodeExtractor {
	return &CodeExtractor{logger: logger.With().Str("component", "code_extractor").Logger()}
}

// Extract reads every code file, detects languages, and builds the
// combined blob with per-file separators. File order is by base name so
// output is deterministic regardless of directory traversal order.
func (c *CodeExtractor) Extract(paths []string) CodeSubmission {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	var submission CodeSubmission
	seen := map[string]struct{}{}

	for _, path := range sorted {
		raw, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn().
				Str("file", filepath.Base(path)).
				Err(err).
				Msg("code file unreadable, skipped")
			continue
		}

		content := string(raw)
		language := languageByExtension[strings.ToLower(filepath.Ext(path))]
		if language == "" {
			language = "unknown"
		}

		file := CodeFile{
			Filename:  filepath.Base(path),
			Language:  language,
			Content:   content,
			LineCount: countLines(content),
		}
		submission.Files = append(submission.Files, file)
		submission.TotalLines += file.LineCount

		if _, ok := seen[language]; !ok {
			seen[language] = struct{}{}
			submission.Languages = append(submission.Languages, language)
		}
	}

	submission.Combined = combine(submission.Files)
	submission.Analysis = analyze(submission)

	return submission
}

func combine(files []CodeFile) string {
	separator := strings.Repeat("=", 70)

	var b strings.Builder
	for _, f := range files {
		b.WriteString(separator)
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("File: %s (%s, %d lines)\n", f.Filename, f.Language, f.LineCount))
		b.WriteString(separator)
		b.WriteString("\n")
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func analyze(s CodeSubmission) string {
	if len(s.Files) == 0 {
		return "No readable code files found."
	}

	names := make([]string, len(s.Files))
	for i, f := range s.Files {
		names[i] = f.Filename
	}

	return fmt.Sprintf("Submission contains %d file(s) in %s, %d total lines: %s.",
		len(s.Files), strings.Join(s.Languages, ", "), s.TotalLines, strings.Join(names, ", "))
}

func countLines(content string) int {
	if content == "" {
		return 0
	}

	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}

	return n
}
