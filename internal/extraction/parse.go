package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseExpense parses the raw reply text from a vision model into a fully
// populated ExpenseData. Missing or invalid fields are replaced with their
// defaults (merchant "Unknown Merchant", amount 0, date = now); the result
// is never partially invalid. Text that contains no parsable JSON object
// fails with ErrMalformedResponse.
func ParseExpense(text string, now time.Time) (*ExpenseData, error) {
	text = stripCodeFences(text)

	// Find the JSON object boundaries - first { to last }
	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")
	if startIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("%w: no JSON object found in reply", ErrMalformedResponse)
	}

	var raw struct {
		Merchant string          `json:"merchant"`
		Amount   json.RawMessage `json:"amount"`
		Date     string          `json:"date"`
	}
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	data := ExpenseData{
		Merchant: raw.Merchant,
		Amount:   coerceAmount(raw.Amount),
		Date:     raw.Date,
	}
	data.Normalize(now)
	return &data, nil
}

// Normalize applies the per-field default substitution table in place.
// Afterward the merchant is non-empty, the amount is finite and
// non-negative, and the date matches YYYY-MM-DD.
func (d *ExpenseData) Normalize(now time.Time) {
	d.Merchant = strings.TrimSpace(d.Merchant)
	if d.Merchant == "" {
		d.Merchant = "Unknown Merchant"
	}

	if math.IsNaN(d.Amount) || math.IsInf(d.Amount, 0) || d.Amount < 0 {
		d.Amount = 0
	}

	if !isoDateRe.MatchString(d.Date) {
		d.Date = now.Format("2006-01-02")
	}
}

// coerceAmount turns a JSON number or numeric string into a float64,
// falling back to 0 for anything else
func coerceAmount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	// Models occasionally quote the amount
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}

	return 0
}

// stripCodeFences removes surrounding markdown code fence markup
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
