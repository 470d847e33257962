package extraction

import "strings"

// Categories suggested to the model for line items. The model may still infer others.
var Categories = []string{
	"food", "beverages", "groceries", "household", "electronics", "clothing",
	"cosmetics", "personal care", "medicine", "travel", "transport", "stationery",
	"dining", "utility", "subscriptions", "entertainment",
}

const extractionPrompt = `You are a receipt parsing assistant that extracts structured data with high accuracy. From the receipt text below, extract the key fields and categorise each item meaningfully.

Use detailed, diverse categories such as:
- {{categories}}, etc.

Return only strict valid JSON with this structure:
{
  "vendor": string,
  "date": string (ISO or DD-MM-YYYY format),
  "total_amount": float,
  "items": [
    {
      "name": string,
      "quantity": int or float,
      "price": float,
      "category": string (one of the above or best inferred)
    }
  ]
}

Rules:
- Do not return markdown or explanation.
- Infer item categories from name and context.
- If uncertain, assign category as "other".

Receipt Text:
`

// BuildExtractionPrompt wraps receipt text in the structured extraction instructions
func BuildExtractionPrompt(text string) string {
	prompt := strings.Replace(extractionPrompt, "{{categories}}", strings.Join(Categories, ", "), 1)
	return prompt + text + "\n"
}
