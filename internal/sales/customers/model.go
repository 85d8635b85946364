package customers

import "time"

// Customer is a buyer account. OpeningBalance is a standing debt carried on the
// account, settled ahead of any specific sale's own balance.
type Customer struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Currency       string    `json:"currency" db:"currency"`
	OpeningBalance float64   `json:"opening_balance" db:"opening_balance"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
