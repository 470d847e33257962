package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	documentai "google.golang.org/api/documentai/v1"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

// DocumentAIOptions identifies a Document AI OCR processor
type DocumentAIOptions struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// DocumentAI recognises text in PDFs with a Google Document AI processor
type DocumentAI struct {
	service *documentai.Service
	name    string
}

// NewDocumentAI creates a client against the processor's regional endpoint.
// Options passed by the caller take precedence over the regional endpoint.
func NewDocumentAI(ctx context.Context, o DocumentAIOptions, opts ...option.ClientOption) (*DocumentAI, error) {
	if o.ProjectID == "" || o.ProcessorID == "" {
		return nil, fmt.Errorf("document ai project and processor are required")
	}
	if o.Location == "" {
		o.Location = "us"
	}

	endpoint := option.WithEndpoint(fmt.Sprintf("https://%s-documentai.googleapis.com/", o.Location))
	service, err := documentai.NewService(ctx, append([]option.ClientOption{endpoint}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating document ai client: %w", err)
	}

	return &DocumentAI{
		service: service,
		name:    fmt.Sprintf("projects/%s/locations/%s/processors/%s", o.ProjectID, o.Location, o.ProcessorID),
	}, nil
}

// ExtractText processes the whole document and returns its recognised text
func (d *DocumentAI) ExtractText(ctx context.Context, data []byte, kind media.Kind) (string, error) {
	mimeType := "application/pdf"
	switch kind {
	case media.PDF:
	case media.Image:
		mimeType = http.DetectContentType(data)
	default:
		return "", apperr.Unsupported(fmt.Sprintf("document ai cannot process %q", kind))
	}

	req := &documentai.GoogleCloudDocumentaiV1ProcessRequest{
		RawDocument: &documentai.GoogleCloudDocumentaiV1RawDocument{
			Content:  base64.StdEncoding.EncodeToString(data),
			MimeType: mimeType,
		},
	}

	resp, err := d.service.Projects.Locations.Processors.Process(d.name, req).Context(ctx).Do()
	if err != nil {
		return "", apperr.External("documentai", err)
	}
	if resp.Document == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Document.Text), nil
}
