// Package media classifies uploaded receipt files.
package media

import (
	"path/filepath"
	"strings"

	"github.com/zombor/receipt-insight/internal/apperr"
)

// Kind is the broad media type of a receipt file
type Kind string

const (
	Image Kind = "image"
	PDF   Kind = "pdf"
)

// extensions maps accepted file extensions to their kind and MIME type
var extensions = map[string]struct {
	kind        Kind
	contentType string
}{
	".png":  {Image, "image/png"},
	".jpg":  {Image, "image/jpeg"},
	".jpeg": {Image, "image/jpeg"},
	".webp": {Image, "image/webp"},
	".heic": {Image, "image/heic"},
	".heif": {Image, "image/heif"},
	".pdf":  {PDF, "application/pdf"},
}

// FromFilename returns the kind of a file based on its extension
func FromFilename(name string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	e, ok := extensions[ext]
	if !ok {
		return "", apperr.Unsupported("file extension " + quoteExt(ext))
	}
	return e.kind, nil
}

// ContentType returns the MIME type for a file name, or application/octet-stream
func ContentType(name string) string {
	if e, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return e.contentType
	}
	return "application/octet-stream"
}

// Supported reports whether the kind can be processed
func (k Kind) Supported() bool {
	return k == Image || k == PDF
}

func quoteExt(ext string) string {
	if ext == "" {
		return "(none)"
	}
	return `"` + ext + `"`
}
