package extraction

import (
	"context"
	"strings"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/llm"
	"github.com/zombor/receipt-insight/internal/media"
)

const transcriptionPrompt = `You are reading a photographed or scanned receipt. Transcribe every piece of text you can see, line by line, in the order it appears, keeping the original language and all numbers exactly as printed.

Return only the transcribed text. Do not summarise, translate, explain or use markdown.`

// ModelOCR transcribes receipts with a multimodal language model.
// PDFs are rendered from their first page before being sent.
type ModelOCR struct {
	model llm.VisionGenerator
}

func NewModelOCR(model llm.VisionGenerator) *ModelOCR {
	return &ModelOCR{model: model}
}

func (m *ModelOCR) ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error) {
	if !kind.Supported() {
		return "", apperr.Unsupported(string(kind))
	}

	image, mimeType, err := prepareImage(data, kind)
	if err != nil {
		return "", err
	}

	text, err := m.model.GenerateWithImage(ctx, transcriptionPrompt, image, mimeType)
	if err != nil {
		return "", apperr.External("vision model", err)
	}
	return stripCodeFence(text), nil
}

// stripCodeFence removes a surrounding markdown code block if the model added one
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
