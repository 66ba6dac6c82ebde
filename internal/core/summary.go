package core

import "fmt"

// CategoryTotal is the summed expense amount for one category in a month.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Cursor selects the (month, year) slice of the ledger being aggregated.
type Cursor struct {
	Month int // 1-12
	Year  int
}

// NewCursor validates month and returns the cursor.
func NewCursor(month, year int) (Cursor, error) {
	if month < 1 || month > 12 {
		return Cursor{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	return Cursor{Month: month, Year: year}, nil
}

// Next returns the following month, rolling December into January of the next year.
func (c Cursor) Next() Cursor {
	if c.Month == 12 {
		return Cursor{Month: 1, Year: c.Year + 1}
	}
	return Cursor{Month: c.Month + 1, Year: c.Year}
}

// Previous returns the preceding month, rolling January into December of the previous year.
func (c Cursor) Previous() Cursor {
	if c.Month == 1 {
		return Cursor{Month: 12, Year: c.Year - 1}
	}
	return Cursor{Month: c.Month - 1, Year: c.Year}
}

// Key is a stable string form used for cache keys and log fields.
func (c Cursor) Key() string {
	return fmt.Sprintf("%04d-%02d", c.Year, c.Month)
}

func (c Cursor) String() string {
	return c.Key()
}
