package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/prabalshrestha/grade-lens/internal/llm"
)

const (
	// minImageDim filters out icons, bullets, and decorative noise.
	minImageDim = 100
	// rasterDPI is the render resolution for the scanned-document fallback.
	rasterDPI = 150
	// maxRasterPages bounds the rasterization fallback.
	maxRasterPages = 10
	// pageCountCeiling skips rasterization for large documents entirely.
	pageCountCeiling = 20
	// maxVisionImages is the per-call batch limit for transcription.
	maxVisionImages = 10
	// maxImageDim is the longest side sent to the vision model.
	maxImageDim = 2000
)

// ImageSource provides image access to PDF documents. Page rendering and
// embedded-image decoding are injected by the caller.
type ImageSource interface {
	PageCount(path string) (int, error)
	EmbeddedImages(path string) ([]image.Image, error)
	RenderPages(path string, dpi int, maxPages int) ([]image.Image, error)
}

// imageCollector runs the hybrid image chain: embedded images first, page
// rasterization as the scanned-document fallback.
type imageCollector struct {
	source ImageSource
	logger zerolog.Logger
}

// collect returns vision-ready images for the document plus notes about
// any degraded steps. A nil source disables image processing.
func (c *imageCollector) collect(path string) ([]llm.Image, []string) {
	if c.source == nil {
		return nil, nil
	}

	var notes []string

	embedded, err := c.source.EmbeddedImages(path)
	if err != nil {
		notes = append(notes, fmt.Sprintf("embedded image extraction failed: %v", err))
		embedded = nil
	}

	kept := make([]image.Image, 0, len(embedded))
	for _, img := range embedded {
		bounds := img.Bounds()
		if bounds.Dx() > minImageDim && bounds.Dy() > minImageDim {
			kept = append(kept, img)
		}
	}

	if len(kept) == 0 {
		rendered, note := c.rasterize(path)
		if note != "" {
			notes = append(notes, note)
		}
		kept = rendered
	}

	if len(kept) > maxVisionImages {
		kept = kept[:maxVisionImages]
	}

	images := make([]llm.Image, 0, len(kept))
	for i, img := range kept {
		encoded, err := encodePNG(downsize(img))
		if err != nil {
			notes = append(notes, fmt.Sprintf("image %d encoding failed: %v", i+1, err))
			continue
		}
		images = append(images, llm.Image{
			Name: fmt.Sprintf("image_%d", i+1),
			PNG:  encoded,
		})
	}

	return images, notes
}

// rasterize renders document pages when no usable embedded images exist.
// Large documents are skipped to bound vision cost.
func (c *imageCollector) rasterize(path string) ([]image.Image, string) {
	pages, err := c.source.PageCount(path)
	if err != nil {
		return nil, fmt.Sprintf("page count failed: %v", err)
	}

	if pages > pageCountCeiling {
		c.logger.Debug().
			Int("pages", pages).
			Msg("skipping rasterization for large document")
		return nil, fmt.Sprintf("document too large for page rendering (%d pages)", pages)
	}

	rendered, err := c.source.RenderPages(path, rasterDPI, maxRasterPages)
	if err != nil {
		return nil, fmt.Sprintf("page rendering failed: %v", err)
	}

	return rendered, ""
}

// downsize fits oversized images inside maxImageDim, preserving aspect.
func downsize(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxImageDim && bounds.Dy() <= maxImageDim {
		return img
	}

	return imaging.Fit(img, maxImageDim, maxImageDim, imaging.Lanczos)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
