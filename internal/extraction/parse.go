package extraction

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/zombor/receipt-insight/internal/apperr"
	"github.com/zombor/receipt-insight/internal/insight"
)

// ParseResult decodes an extraction JSON object and applies defaults for
// missing fields. Only text that is not a JSON object is rejected: fields of
// the wrong type become unknown rather than failing the whole receipt.
func ParseResult(jsonStr string) (*insight.Result, error) {
	var reply modelReply
	if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
		return nil, apperr.Malformed(err)
	}

	result := &insight.Result{
		Vendor:      string(reply.Vendor),
		Date:        string(reply.Date),
		TotalAmount: reply.TotalAmount,
		Items:       make([]insight.LineItem, 0, len(reply.Items)),
	}
	for _, item := range reply.Items {
		result.Items = append(result.Items, insight.LineItem{
			Name:     strings.TrimSpace(string(item.Name)),
			Quantity: item.Quantity,
			Price:    item.Price,
			Category: strings.TrimSpace(string(item.Category)),
		})
	}
	result.Normalize()

	return result, nil
}

type modelReply struct {
	Vendor      looseString    `json:"vendor"`
	Date        looseString    `json:"date"`
	TotalAmount insight.Number `json:"total_amount"`
	Items       looseItems     `json:"items"`
}

type modelItem struct {
	Name     looseString    `json:"name"`
	Quantity insight.Number `json:"quantity"`
	Price    insight.Number `json:"price"`
	Category looseString    `json:"category"`
}

// looseString takes strings as they are and numbers or booleans as their
// literal text. Objects, arrays and null decode to the empty string.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	*s = ""
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			*s = looseString(v)
		}
	case '{', '[', 'n':
	default:
		*s = looseString(raw)
	}
	return nil
}

// looseItems skips entries that are not objects and treats a non-array as no items
type looseItems []modelItem

func (items *looseItems) UnmarshalJSON(data []byte) error {
	*items = nil
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}
	for _, raw := range raws {
		var item modelItem
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		*items = append(*items, item)
	}
	return nil
}
