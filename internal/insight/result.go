// Package insight holds the structured result extracted from a receipt, the
// cache that persists it and the per-category aggregation used for charts.
package insight

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Unknown is stored for vendor, date and total when the model did not supply them
const Unknown = "unknown"

// Result is the structured data extracted from one receipt
type Result struct {
	Vendor      string     `json:"vendor"`
	Date        string     `json:"date"` // free-form, ISO or DD-MM-YYYY
	TotalAmount Number     `json:"total_amount"`
	Items       []LineItem `json:"items"`
}

// LineItem is one purchased product or service on a receipt
type LineItem struct {
	Name     string `json:"name"`
	Quantity Number `json:"quantity"`
	Price    Number `json:"price"`
	Category string `json:"category"`
}

// MarshalJSON writes a missing total as the "unknown" sentinel
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		TotalAmount any `json:"total_amount"`
	}{plain: plain(r), TotalAmount: r.TotalAmount}
	if !r.TotalAmount.Valid {
		out.TotalAmount = Unknown
	}
	if out.Items == nil {
		out.Items = []LineItem{}
	}
	return json.Marshal(out)
}

// Normalize fills the defaults for fields the model left out
func (r *Result) Normalize() {
	r.Vendor = strings.TrimSpace(r.Vendor)
	if r.Vendor == "" {
		r.Vendor = Unknown
	}
	r.Date = strings.TrimSpace(r.Date)
	if r.Date == "" {
		r.Date = Unknown
	}
	if r.Items == nil {
		r.Items = []LineItem{}
	}
}

// Equal compares two results field by field, treating numerically equal
// amounts as equal regardless of their decimal representation.
func (r *Result) Equal(o *Result) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Vendor != o.Vendor || r.Date != o.Date || !r.TotalAmount.Equal(o.TotalAmount) {
		return false
	}
	if len(r.Items) != len(o.Items) {
		return false
	}
	for i := range r.Items {
		a, b := r.Items[i], o.Items[i]
		if a.Name != b.Name || a.Category != b.Category || !a.Quantity.Equal(b.Quantity) || !a.Price.Equal(b.Price) {
			return false
		}
	}
	return true
}

// Number is a decimal that may be absent. Decoding never fails on odd input:
// numeric strings such as "₹1,200.50" are accepted and anything else that is
// not a number becomes an invalid (absent) Number.
type Number struct {
	Value decimal.Decimal
	Valid bool
}

// NewNumber returns a valid Number from a float
func NewNumber(f float64) Number {
	return Number{Value: decimal.NewFromFloat(f), Valid: true}
}

// NewNumberFromString parses a decimal string; invalid input yields an absent Number
func NewNumberFromString(s string) Number {
	var n Number
	n.parse(s)
	return n
}

// Or returns the value, or def when the number is absent
func (n Number) Or(def decimal.Decimal) decimal.Decimal {
	if !n.Valid {
		return def
	}
	return n.Value
}

// Equal reports numeric equality; two absent numbers are equal
func (n Number) Equal(o Number) bool {
	if n.Valid != o.Valid {
		return false
	}
	return !n.Valid || n.Value.Equal(o.Value)
}

func (n Number) String() string {
	if !n.Valid {
		return Unknown
	}
	return n.Value.String()
}

// MarshalJSON writes a bare JSON number, or null when absent
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n.parse(s)
		return nil
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		n.Value, n.Valid = d, true
	}
	return nil
}

var numericPattern = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

func (n *Number) parse(s string) {
	match := numericPattern.FindString(s)
	if match == "" {
		return
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return
	}
	n.Value, n.Valid = d, true
}
