package provider

import (
	"fmt"

	"github.com/pocketledger/expense-cli/internal/model"
)

// jsonShape is the response contract every chat model is asked to honor.
// Parsing downstream is tolerant, so this is a request, not a guarantee.
const jsonShape = `{
  "amount": number (payment amount),
  "merchant": "merchant name",
  "description": "what was purchased",
  "category": "expense category (e.g. Food, Transport, Shopping, Entertainment)",
  "timestamp": "payment time in ISO 8601 format",
  "confidence": number (recognition confidence between 0 and 1)
}`

// ScreenshotPrompt asks a vision model to read a payment screenshot.
func ScreenshotPrompt() string {
	return fmt.Sprintf(`Analyze this payment screenshot and extract the expense details.
Return ONLY a JSON object in this exact shape, with no surrounding prose:
%s

Read the screenshot carefully. If a field is uncertain, reflect that in the confidence value.`, jsonShape)
}

// ReceiptPrompt asks a vision model to read a printed receipt or invoice.
func ReceiptPrompt() string {
	return fmt.Sprintf(`Analyze this receipt or invoice image and extract the expense details.
Return ONLY a JSON object in this exact shape, with no surrounding prose:
%s

Pay special attention to the total amount, the merchant name, and the purchase time.`, jsonShape)
}

// TextPrompt asks a chat model to parse a free-form expense description,
// which may be in Chinese or English.
func TextPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following expense description and extract the key details:

%q

Return ONLY a JSON object in this exact shape, with no surrounding prose:
%s

If a field cannot be determined, make a reasonable guess and reflect the uncertainty in the confidence value.`, text, jsonShape)
}

// PromptFor returns the extraction prompt for a text-bearing input method.
// Image methods pair the returned prompt with the image payload.
func PromptFor(method model.InputMethod, text string) string {
	switch method {
	case model.InputScreenshot:
		return ScreenshotPrompt()
	case model.InputReceipt:
		return ReceiptPrompt()
	default:
		return TextPrompt(text)
	}
}
