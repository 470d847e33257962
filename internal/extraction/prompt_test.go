package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BuildExtractionPrompt", func() {
	It("appends the receipt text after the instructions", func() {
		prompt := BuildExtractionPrompt("CAFE LUNA\nTOTAL 450")
		Expect(prompt).To(HaveSuffix("Receipt Text:\nCAFE LUNA\nTOTAL 450\n"))
	})

	It("lists the category taxonomy and the fallback", func() {
		prompt := BuildExtractionPrompt("")
		for _, c := range Categories {
			Expect(prompt).To(ContainSubstring(c))
		}
		Expect(prompt).To(ContainSubstring(`assign category as "other"`))
		Expect(prompt).To(ContainSubstring("Do not return markdown or explanation."))
		Expect(prompt).NotTo(ContainSubstring("{{categories}}"))
	})

	It("describes every result field", func() {
		prompt := BuildExtractionPrompt("x")
		for _, field := range []string{`"vendor"`, `"date"`, `"total_amount"`, `"items"`, `"name"`, `"quantity"`, `"price"`, `"category"`} {
			Expect(prompt).To(ContainSubstring(field))
		}
	})
})
