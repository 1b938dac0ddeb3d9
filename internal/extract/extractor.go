package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/llm"
)

// imageSeparator labels transcribed image content inside combined text.
const imageSeparator = "\n\n--- Content from Images ---\n"

const transcriptionSystem = "You are a transcription assistant. Transcribe all handwritten and printed text " +
	"visible in the provided images, in reading order. Preserve question numbering and mathematical notation. " +
	"Output only the transcribed text."

// Content is the combined extraction result for one document file.
type Content struct {
	Text       string
	ImageCount int
	FromImages bool
	Notes      []string
}

// ContentExtractor produces plain text for a document, including text
// recovered from embedded or rendered images via a vision model call.
type ContentExtractor struct {
	text      *TextExtractor
	collector *imageCollector
	client    llm.Client
	enabled   bool
	logger    zerolog.Logger
}

// NewContentExtractor wires the text extractor, an optional image source
// for PDFs, and the vision-capable model client. When enabled is false or
// source is nil, image processing is skipped entirely.
func NewContentExtractor(text *TextExtractor, source ImageSource, client llm.Client, enabled bool, logger zerolog.Logger) *ContentExtractor {
	componentLogger := logger.With().Str("component", "content_extractor").Logger()

	var collector *imageCollector
	if enabled && source != nil {
		collector = &imageCollector{source: source, logger: componentLogger}
	}

	return &ContentExtractor{
		text:      text,
		collector: collector,
		client:    client,
		enabled:   enabled && source != nil,
		logger:    componentLogger,
	}
}

// Extract returns the document's combined content. Extraction failures
// degrade to partial content with notes; this method never fails.
func (e *ContentExtractor) Extract(ctx context.Context, path string) Content {
	content := Content{Text: e.text.ExtractText(path)}

	if !e.enabled || strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return content
	}

	images, notes := e.collector.collect(path)
	content.Notes = append(content.Notes, notes...)
	if len(images) == 0 {
		return content
	}
	content.ImageCount = len(images)

	transcript, err := e.transcribe(ctx, images)
	if err != nil {
		e.logger.Warn().
			Str("file", filepath.Base(path)).
			Err(err).
			Msg("image transcription failed")
		content.Notes = append(content.Notes, fmt.Sprintf("image transcription error: %v", err))
		return content
	}

	if transcript != "" {
		content.Text += imageSeparator + transcript
		content.FromImages = true
	}

	return content
}

func (e *ContentExtractor) transcribe(ctx context.Context, images []llm.Image) (string, error) {
	out, err := e.client.Complete(ctx, llm.Request{
		System: transcriptionSystem,
		User:   fmt.Sprintf("Transcribe the text content of these %d image(s).", len(images)),
		Images: images,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}
