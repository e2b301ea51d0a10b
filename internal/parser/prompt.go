package parser

import "fmt"

// maxContentChars caps how much extracted text goes into a prompt.
const maxContentChars = 4000

const systemPrompt = "You are a precise data extraction assistant for banking documents. " +
	"You respond with JSON only, never with prose or markdown."

const fieldList = `- name: Credit card name
- annual_fee: Annual fee (numeric value, 0 if free)
- interest_rate_apr: Interest rate APR (percentage as a number)
- lounge_access_international: International lounge access description
- lounge_access_domestic: Domestic lounge access description
- lounge_access_condition: Conditions attached to lounge access
- cash_advance_fee: Cash advance fee description
- late_payment_fee: Late payment fee description
- annual_fee_waiver_policy: Annual fee waiver conditions (JSON object)
- reward_points_policy: Reward points policy description
- additional_features: List of additional features (array of strings)`

func buildStructuredPrompt(content, bankName string) string {
	return fmt.Sprintf(`Extract credit card information from the following content for %s.

Extract exactly these fields for each credit card:
%s

NUMERIC RULES:
- Strip currency symbols and thousands separators ("$1,250.50" becomes 1250.50)
- Convert percentages to plain decimals ("18.99%%" becomes 18.99)
- "Free" or "No fee" becomes 0

Return ONLY a JSON array of credit card objects, no markdown, no commentary.
If no credit card data is found, return an empty array.

Content to analyze:
%s`, bankName, fieldList, clip(content, maxContentChars))
}

func buildComprehensivePrompt(content, bankName string) string {
	return fmt.Sprintf(`Extract ALL credit card information from the following content for %s.

For each credit card include:
%s

Additionally, preserve every other column or attribute present in the source
under its original label, verbatim, inside each card object. Do not discard
columns that are not in the list above.

Apply the same numeric rules: strip currency symbols and separators, convert
percentages to plain decimals, "Free" becomes 0.

Return ONLY a JSON array of credit card objects, no markdown, no commentary.

Content to analyze:
%s`, bankName, fieldList, clip(content, maxContentChars))
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
