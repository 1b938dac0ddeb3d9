package extract

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// Reader extracts plain text from a document of one format.
// Implementations for binary formats (PDF, DOCX) are injected by the
// caller; this package only knows how to route to them.
type Reader interface {
	Extract(path string) (string, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(path string) (string, error)

func (f ReaderFunc) Extract(path string) (string, error) { return f(path) }

// TextExtractor turns a document file into plain text. It never returns
// an error: any failure yields an empty string and a warning log, so a
// broken file degrades instead of aborting the submission.
type TextExtractor struct {
	readers map[string]Reader
	logger  zerolog.Logger
}

// NewTextExtractor builds an extractor with per-extension readers for
// binary formats. Plain-text formats need no reader.
func NewTextExtractor(readers map[string]Reader, logger zerolog.Logger) *TextExtractor {
	if readers == nil {
		readers = map[string]Reader{}
	}

	return &TextExtractor{
		readers: readers,
		logger:  logger.With().Str("component", "text_extractor").Logger(),
	}
}

// ExtractText returns the plain-text content of the file, or "" when the
// file cannot be read or its format is unsupported.
func (t *TextExtractor) ExtractText(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		return t.readPlain(path)
	}

	if reader, ok := t.readers[ext]; ok {
		text, err := reader.Extract(path)
		if err != nil {
			t.logger.Warn().
				Str("file", filepath.Base(path)).
				Err(err).
				Msg("document text extraction failed")
			return ""
		}
		return text
	}

	// Unknown extension: sniff the content and accept it only if it is
	// actually plain text.
	detected, err := mimetype.DetectFile(path)
	if err == nil && detected.Is("text/plain") {
		return t.readPlain(path)
	}

	t.logger.Warn().
		Str("file", filepath.Base(path)).
		Str("extension", ext).
		Msg("unsupported document format")

	return ""
}

func (t *TextExtractor) readPlain(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		t.logger.Warn().
			Str("file", filepath.Base(path)).
			Err(err).
			Msg("read failed")
		return ""
	}

	return string(raw)
}
