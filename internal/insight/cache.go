package insight

import (
	"context"
	"encoding/json"

	"github.com/zombor/receipt-insight/internal/apperr"
)

// Cache maps a receipt ID to its extraction result. Implementations must
// treat Delete of a missing key as success and skip unreadable entries in All.
type Cache interface {
	// Get looks up a result; it never triggers extraction
	Get(ctx context.Context, id string) (*Result, bool, error)
	// Put stores a result, replacing any previous one
	Put(ctx context.Context, id string, result *Result) error
	// Delete removes a result
	Delete(ctx context.Context, id string) error
	// All returns every readable result in no particular order
	All(ctx context.Context) ([]*Result, error)
	// Keys returns the IDs of all entries
	Keys(ctx context.Context) ([]string, error)
}

func decodeResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperr.Malformed(err)
	}
	return &r, nil
}
