package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

// PDFText reads the embedded text layer of a PDF without any network call.
// Scanned PDFs without a text layer yield an empty string.
type PDFText struct{}

func (PDFText) ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error) {
	if kind != media.PDF {
		return "", apperr.Unsupported(fmt.Sprintf("pdf text layer requires a PDF, got %q", kind))
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", apperr.External("pdf", fmt.Errorf("opening PDF: %w", err))
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", apperr.External("pdf", err)
		}
		text, err := doc.Text(i)
		if err != nil {
			return "", apperr.External("pdf", fmt.Errorf("reading page %d: %w", i+1, err))
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}
