package submission

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// Category classifies a submission file by how it should be processed.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryDocument Category = "document"
	CategoryOther    Category = "other"
)

var codeExtensions = map[string]struct{}{
	".py": {}, ".java": {}, ".cpp": {}, ".c": {}, ".js": {}, ".ts": {},
}

var documentExtensions = map[string]struct{}{
	".pdf": {}, ".docx": {}, ".txt": {}, ".doc": {}, ".md": {},
}

// Grouper clusters submission files per student and partitions them by
// processing category.
type Grouper struct {
	resolver *Resolver
	logger   zerolog.Logger
}

func NewGrouper(resolver *Resolver, logger zerolog.Logger) *Grouper {
	return &Grouper{
		resolver: resolver,
		logger:   logger.With().Str("component", "submission_grouper").Logger(),
	}
}

// GroupByStudent maps each student key to the files belonging to that
// student. File order within a group follows the input order.
func (g *Grouper) GroupByStudent(paths []string) map[string][]string {
	groups := make(map[string][]string)
	for _, path := range paths {
		key := g.resolver.Parse(path).StudentKey()
		groups[key] = append(groups[key], path)
	}

	g.logger.Info().
		Int("files", len(paths)).
		Int("students", len(groups)).
		Msg("grouped submissions")

	return groups
}

// Categorize partitions files into code, document, and other buckets by
// extension. Every input path lands in exactly one bucket.
func (g *Grouper) Categorize(paths []string) map[Category][]string {
	buckets := map[Category][]string{
		CategoryCode:     {},
		CategoryDocument: {},
		CategoryOther:    {},
	}

	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case hasExtension(codeExtensions, ext):
			buckets[CategoryCode] = append(buckets[CategoryCode], path)
		case hasExtension(documentExtensions, ext):
			buckets[CategoryDocument] = append(buckets[CategoryDocument], path)
		default:
			buckets[CategoryOther] = append(buckets[CategoryOther], path)
			if detected, err := mimetype.DetectFile(path); err == nil {
				g.logger.Warn().
					Str("file", filepath.Base(path)).
					Str("detected_type", detected.String()).
					Msg("unrecognized extension, file will not be graded as content")
			}
		}
	}

	return buckets
}

// StudentInfo returns the parsed identity for a group of files. Identity
// comes from the first file; the late flag of the first file stands for
// the whole group.
func (g *Grouper) StudentInfo(paths []string) ParsedFilename {
	if len(paths) == 0 {
		return ParsedFilename{StudentID: "unknown"}
	}

	return g.resolver.Parse(paths[0])
}

// ValidateConsistency reports whether every file in the group parses to
// the same student identity.
func (g *Grouper) ValidateConsistency(paths []string) bool {
	if len(paths) < 2 {
		return true
	}

	key := g.resolver.Parse(paths[0]).StudentKey()
	for _, path := range paths[1:] {
		if g.resolver.Parse(path).StudentKey() != key {
			return false
		}
	}

	return true
}

// SortedKeys returns the group keys in lexicographic order so batch runs
// process students deterministically.
func SortedKeys(groups map[string][]string) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

func hasExtension(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}
