// Package extraction turns receipt documents into structured insight results.
//
// A run goes through four stages: text extraction (OCR or a PDF text layer),
// translation into the target language, structured extraction by a language
// model, and parsing of the JSON the model returns.
package extraction

import (
	"context"
	"fmt"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

// TextExtractor recognises the text printed on a receipt document
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error)
}

// Translator translates text into a target language
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// ByKind routes a document to the extractor registered for its kind
type ByKind struct {
	Image TextExtractor
	PDF   TextExtractor
}

func (b ByKind) ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error) {
	var extractor TextExtractor
	switch kind {
	case media.Image:
		extractor = b.Image
	case media.PDF:
		extractor = b.PDF
	}
	if extractor == nil {
		return "", apperr.Unsupported(fmt.Sprintf("no text extractor for %q", kind))
	}
	return extractor.ExtractText(ctx, data, kind)
}

// Passthrough returns text untouched
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}
