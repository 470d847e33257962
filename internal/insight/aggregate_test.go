package insight

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func total(b Breakdown, category string) decimal.Decimal {
	ct, ok := b[category]
	Expect(ok).To(BeTrue(), "missing category %q", category)
	return ct.Total.Value
}

var _ = Describe("AggregateByCategory", func() {
	var (
		items     []LineItem
		breakdown Breakdown
	)

	JustBeforeEach(func() {
		breakdown = AggregateByCategory(items)
	})

	When("there are no items", func() {
		BeforeEach(func() {
			items = nil
		})

		It("returns an empty mapping", func() {
			Expect(breakdown).NotTo(BeNil())
			Expect(breakdown).To(BeEmpty())
		})
	})

	When("aggregating the Cafe Luna receipt", func() {
		BeforeEach(func() {
			items = cafeLuna().Items
		})

		It("yields a single food category of 450", func() {
			Expect(breakdown).To(HaveLen(1))
			Expect(total(breakdown, "food").Equal(decimal.NewFromInt(450))).To(BeTrue())
		})

		It("keeps the contributing items", func() {
			Expect(breakdown["food"].Items).To(HaveLen(2))
		})

		It("builds a tooltip line per item", func() {
			Expect(breakdown["food"].Tooltip).To(Equal("coffee (x2 @ 100.00)\npastry (x1 @ 250.00)"))
		})
	})

	When("fields are missing", func() {
		BeforeEach(func() {
			items = []LineItem{
				{Name: "no category", Quantity: NewNumber(2), Price: NewNumber(5)},
				{Name: "no quantity", Price: NewNumber(7), Category: "household"},
				{Name: "no price", Quantity: NewNumber(3), Category: "household"},
				{Name: "blank category", Quantity: NewNumber(1), Price: NewNumber(1), Category: "  "},
			}
		})

		It("treats a missing category as Other", func() {
			Expect(total(breakdown, OtherCategory).Equal(decimal.NewFromInt(11))).To(BeTrue())
		})

		It("defaults quantity to 1 and price to 0", func() {
			Expect(total(breakdown, "household").Equal(decimal.NewFromInt(7))).To(BeTrue())
		})
	})

	When("quantities are fractional", func() {
		BeforeEach(func() {
			items = []LineItem{
				{Name: "apples", Quantity: NewNumberFromString("1.5"), Price: NewNumberFromString("0.10"), Category: "groceries"},
				{Name: "pears", Quantity: NewNumberFromString("0.2"), Price: NewNumberFromString("0.10"), Category: "groceries"},
			}
		})

		It("sums exactly", func() {
			Expect(total(breakdown, "groceries").String()).To(Equal("0.17"))
		})
	})

	When("categories are outside the suggested vocabulary", func() {
		BeforeEach(func() {
			items = []LineItem{
				{Name: "x", Quantity: NewNumber(1), Price: NewNumber(3), Category: "pet supplies"},
			}
		})

		It("accepts them as-is", func() {
			Expect(breakdown).To(HaveKey("pet supplies"))
		})
	})

	It("equals the grouped sum of quantity x price", func() {
		items := []LineItem{
			{Name: "a", Quantity: NewNumber(2), Price: NewNumber(3), Category: "x"},
			{Name: "b", Quantity: NewNumber(4), Price: NewNumber(0.5), Category: "y"},
			{Name: "c", Price: NewNumber(10), Category: "x"},
			{Name: "d", Quantity: NewNumber(3)},
		}
		b := AggregateByCategory(items)
		Expect(b.Totals()).To(HaveLen(3))
		Expect(total(b, "x").Equal(decimal.NewFromInt(16))).To(BeTrue())
		Expect(total(b, "y").Equal(decimal.NewFromInt(2))).To(BeTrue())
		Expect(total(b, OtherCategory).IsZero()).To(BeTrue())
		Expect(b.Sum().Equal(decimal.NewFromInt(18))).To(BeTrue())
	})
})

var _ = Describe("AggregateResults", func() {
	It("merges items across receipts", func() {
		second := &Result{Items: []LineItem{
			{Name: "bus", Quantity: NewNumber(1), Price: NewNumber(30), Category: "transport"},
			{Name: "tea", Quantity: NewNumber(1), Price: NewNumber(50), Category: "food"},
		}}
		b := AggregateResults([]*Result{cafeLuna(), nil, second})
		Expect(total(b, "food").Equal(decimal.NewFromInt(500))).To(BeTrue())
		Expect(total(b, "transport").Equal(decimal.NewFromInt(30))).To(BeTrue())
	})
})

var _ = Describe("Breakdown.Sorted", func() {
	It("orders by total then name", func() {
		b := AggregateByCategory([]LineItem{
			{Name: "a", Quantity: NewNumber(1), Price: NewNumber(5), Category: "b"},
			{Name: "b", Quantity: NewNumber(1), Price: NewNumber(5), Category: "a"},
			{Name: "c", Quantity: NewNumber(1), Price: NewNumber(9), Category: "c"},
		})
		sorted := b.Sorted()
		Expect(sorted).To(HaveLen(3))
		Expect(sorted[0].Category).To(Equal("c"))
		Expect(sorted[1].Category).To(Equal("a"))
		Expect(sorted[2].Category).To(Equal("b"))
	})
})
