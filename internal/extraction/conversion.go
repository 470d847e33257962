package extraction

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/media"
)

// pdfToImage renders the first page of a PDF as PNG
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// heicToPNG decodes an iPhone HEIC/HEIF photo and re-encodes it as PNG
func heicToPNG(data []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// prepareImage returns image bytes a vision model accepts along with their MIME type.
// PDFs are rendered from their first page and HEIC photos are converted to PNG.
func prepareImage(data []byte, kind media.Kind) ([]byte, string, error) {
	switch {
	case kind == media.PDF:
		out, err := pdfToImage(data)
		if err != nil {
			return nil, "", apperr.Unsupported(fmt.Sprintf("converting PDF to image: %v", err))
		}
		return out, "image/png", nil
	case isHEICFormat(data):
		out, err := heicToPNG(data)
		if err != nil {
			return nil, "", apperr.Unsupported(err.Error())
		}
		return out, "image/png", nil
	}

	mimeType := http.DetectContentType(data)
	switch mimeType {
	case "image/png", "image/jpeg", "image/webp", "image/gif":
		return data, mimeType, nil
	}
	return nil, "", apperr.Unsupported(fmt.Sprintf("unrecognised image data (%s)", mimeType))
}
