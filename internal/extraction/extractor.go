package extraction

import (
	"context"
	"fmt"
	"time"
)

// ExpenseData contains the fields extracted from a receipt image
type ExpenseData struct {
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Date     string  `json:"date"` // ISO 8601 format (YYYY-MM-DD)
}

// Extractor defines the interface for vision-model receipt extraction providers
type Extractor interface {
	// Extract sends a receipt image to the provider and returns the raw reply text
	Extract(ctx context.Context, imageData []byte) (string, error)
	// Close closes the extractor and releases resources
	Close() error
}

// requestTimeout bounds a single provider call. The embedded frontend waits
// 90 seconds before aborting, so this must stay strictly below that.
const requestTimeout = 60 * time.Second

// extractionPrompt builds the shared instruction used by all providers.
// today is the date default the model is told to use, in YYYY-MM-DD form.
func extractionPrompt(today string) string {
	return fmt.Sprintf(`Analyze this receipt image and extract the following information. Return ONLY valid JSON with no additional text.

Extract these fields:
- merchant: The store or business name (string)
- amount: The total amount as a number (just the number, no currency symbol)
- date: The transaction date in YYYY-MM-DD format (string)

Rules:
- If you cannot find a field, use these defaults: merchant="Unknown Merchant", amount=0, date="%s"
- For amount, extract only the TOTAL or final amount paid
- For date, convert any date format to YYYY-MM-DD
- Return valid JSON only

Example response:
{
  "merchant": "Whole Foods Market",
  "amount": 45.67,
  "date": "2025-10-01"
}`, today)
}
