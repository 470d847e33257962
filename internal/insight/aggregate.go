package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// OtherCategory collects line items without a category
const OtherCategory = "Other"

// CategoryTotal is the spend on one category and the items that contributed to it
type CategoryTotal struct {
	Category string     `json:"category"`
	Total    Number     `json:"total"`
	Items    []LineItem `json:"items"`
	Tooltip  string     `json:"tooltip"`
}

// Breakdown maps a category name to its total. It is always derived from
// results and never stored.
type Breakdown map[string]*CategoryTotal

// AggregateByCategory sums quantity x price per category. A missing category
// counts as "Other", a missing quantity as 1 and a missing price as 0.
func AggregateByCategory(items []LineItem) Breakdown {
	b := make(Breakdown)
	b.add(items)
	return b
}

// AggregateResults builds one breakdown across the items of many receipts
func AggregateResults(results []*Result) Breakdown {
	b := make(Breakdown)
	for _, r := range results {
		if r == nil {
			continue
		}
		b.add(r.Items)
	}
	return b
}

func (b Breakdown) add(items []LineItem) {
	one := decimal.NewFromInt(1)
	for _, item := range items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = OtherCategory
		}
		qty := item.Quantity.Or(one)
		price := item.Price.Or(decimal.Zero)

		ct, ok := b[category]
		if !ok {
			ct = &CategoryTotal{Category: category, Total: Number{Value: decimal.Zero, Valid: true}}
			b[category] = ct
		}
		ct.Total.Value = ct.Total.Value.Add(qty.Mul(price))
		ct.Items = append(ct.Items, item)

		line := fmt.Sprintf("%s (x%s @ %s)", item.Name, qty.String(), price.StringFixed(2))
		if ct.Tooltip == "" {
			ct.Tooltip = line
		} else {
			ct.Tooltip += "\n" + line
		}
	}
}

// Totals returns just the per-category sums
func (b Breakdown) Totals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b))
	for name, ct := range b {
		out[name] = ct.Total.Value
	}
	return out
}

// Sorted returns the categories ordered by total, largest first, then by name
func (b Breakdown) Sorted() []*CategoryTotal {
	out := make([]*CategoryTotal, 0, len(b))
	for _, ct := range b {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Value.Cmp(out[j].Total.Value); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Sum is the total across all categories
func (b Breakdown) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, ct := range b {
		sum = sum.Add(ct.Total.Value)
	}
	return sum
}
