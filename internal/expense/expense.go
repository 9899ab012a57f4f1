package expense

import "time"

// Expense represents one receipt's extracted fields as persisted by the UI
type Expense struct {
	ID        string    `json:"id"`
	Merchant  string    `json:"merchant"`
	Amount    float64   `json:"amount"`
	Date      string    `json:"date"` // ISO 8601 format (YYYY-MM-DD)
	CreatedAt time.Time `json:"created_at"`
}
