package submission

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ParsedFilename holds the identity fields recovered from a submission
// filename. Parsing never fails; unrecognized names degrade to a record
// with StudentID "unknown".
type ParsedFilename struct {
	StudentName      string
	StudentID        string
	SubmissionID     string
	Remainder        string
	IsLate           bool
	Extension        string
	OriginalFilename string
}

// StudentKey is the grouping key for all files belonging to one student.
func (p ParsedFilename) StudentKey() string {
	return p.StudentName + "_" + p.StudentID
}

// Resolver parses LMS-style submission filenames of the form
// name[_LATE]_studentid_submissionid_rest.ext.
type Resolver struct {
	logger zerolog.Logger
}

func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{logger: logger.With().Str("component", "filename_resolver").Logger()}
}

// Parse extracts identity fields from a submission filename. The filename
// may include a directory prefix; only the base name is inspected.
func (r *Resolver) Parse(filename string) ParsedFilename {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	parsed := ParsedFilename{
		StudentID:        "unknown",
		Extension:        strings.ToLower(ext),
		OriginalFilename: base,
	}

	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		parsed.StudentName = stem
		r.logger.Warn().
			Str("filename", base).
			Msg("filename does not match expected pattern, using degraded identity")

		return parsed
	}

	parsed.StudentName = parts[0]

	idx := 1
	if strings.ToUpper(parts[idx]) == "LATE" {
		parsed.IsLate = true
		idx++
	}

	parsed.StudentID = ""
	var remainder []string
	for ; idx < len(parts); idx++ {
		token := parts[idx]
		if isNumericID(token) {
			if parsed.StudentID == "" {
				parsed.StudentID = token
				continue
			}
			if parsed.SubmissionID == "" {
				parsed.SubmissionID = token
				continue
			}
		}
		remainder = append(remainder, token)
	}

	if parsed.StudentID == "" {
		parsed.StudentID = "unknown"
	}
	parsed.Remainder = strings.Join(remainder, "_")

	return parsed
}

// isNumericID reports whether the token looks like an LMS numeric
// identifier: all digits, at least four of them.
func isNumericID(token string) bool {
	if len(token) < 4 {
		return false
	}
	for _, ch := range token {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
