package extraction

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"

	"github.com/zombor/receipt-insight/internal/apperr"
)

// GoogleTranslate translates text with the Cloud Translation v2 API
type GoogleTranslate struct {
	service *translate.Service
}

func NewGoogleTranslate(ctx context.Context, opts ...option.ClientOption) (*GoogleTranslate, error) {
	service, err := translate.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating translate client: %w", err)
	}
	return &GoogleTranslate{service: service}, nil
}

// Translate returns text in the target language. Blank text is returned without
// a call, and text already written in the target language comes back unchanged.
func (g *GoogleTranslate) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	req := &translate.TranslateTextRequest{
		Q:      []string{text},
		Target: target,
		Format: "text",
	}
	resp, err := g.service.Translations.Translate(req).Context(ctx).Do()
	if err != nil {
		return "", apperr.External("translate", err)
	}
	if len(resp.Translations) == 0 {
		return "", apperr.External("translate", fmt.Errorf("no translation returned"))
	}

	translation := resp.Translations[0]
	if strings.EqualFold(translation.DetectedSourceLanguage, target) {
		return text, nil
	}
	return translation.TranslatedText, nil
}
