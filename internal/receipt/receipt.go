package receipt

import (
	"strings"
	"time"

	"github.com/zombor/receipt-insight/internal/media"
)

// idTimeLayout is the sortable timestamp that prefixes every receipt ID
const idTimeLayout = "20060102150405.000000"

// Receipt describes one uploaded receipt file
type Receipt struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Kind        media.Kind `json:"kind"`
	ContentType string     `json:"content_type"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	HasInsight  bool       `json:"has_insight"`
}

// receiptFromID recovers the upload time and file name encoded in an ID.
// IDs that do not follow the layout keep a zero UploadedAt.
func receiptFromID(id string, hasInsight bool) *Receipt {
	r := &Receipt{
		ID:          id,
		Filename:    id,
		ContentType: media.ContentType(id),
		HasInsight:  hasInsight,
	}
	if kind, err := media.FromFilename(id); err == nil {
		r.Kind = kind
	}

	stamp, name, ok := strings.Cut(id, "_")
	if !ok {
		return r
	}
	r.Filename = name
	// a collision suffix follows the timestamp as ~NNN
	stamp, _, _ = strings.Cut(stamp, "~")
	if t, err := time.Parse(idTimeLayout, stamp); err == nil {
		r.UploadedAt = t.UTC()
	}
	return r
}
