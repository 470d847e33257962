package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

// DefaultLanguageHints covers the scripts receipts commonly arrive in
var DefaultLanguageHints = []string{"en", "hi", "fr", "de", "ar", "ta", "zh"}

// VisionOCR recognises text in photos with Google Cloud Vision
type VisionOCR struct {
	service *vision.Service
	hints   []string
}

// NewVisionOCR creates a Cloud Vision client
func NewVisionOCR(ctx context.Context, hints []string, opts ...option.ClientOption) (*VisionOCR, error) {
	service, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	if len(hints) == 0 {
		hints = DefaultLanguageHints
	}
	return &VisionOCR{service: service, hints: hints}, nil
}

// ExtractText runs TEXT_DETECTION on an image. An image without any
// detected text yields an empty string.
func (v *VisionOCR) ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error) {
	if kind != media.Image {
		return "", apperr.Unsupported(fmt.Sprintf("vision OCR handles images, got %q", kind))
	}

	if isHEICFormat(data) {
		converted, err := heicToPNG(data)
		if err != nil {
			return "", apperr.Unsupported(err.Error())
		}
		data = converted
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:        &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
			Features:     []*vision.Feature{{Type: "TEXT_DETECTION"}},
			ImageContext: &vision.ImageContext{LanguageHints: v.hints},
		}},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", apperr.External("vision", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}

	annotated := resp.Responses[0]
	if annotated.Error != nil {
		return "", apperr.External("vision", fmt.Errorf("annotate failed (%d): %s", annotated.Error.Code, annotated.Error.Message))
	}
	if annotated.FullTextAnnotation != nil {
		return strings.TrimSpace(annotated.FullTextAnnotation.Text), nil
	}
	if len(annotated.TextAnnotations) > 0 {
		return strings.TrimSpace(annotated.TextAnnotations[0].Description), nil
	}
	return "", nil
}
