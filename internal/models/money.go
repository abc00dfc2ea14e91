package models

import "strconv"

// DefaultCurrencyCode is used when an offer amount arrives without a currency.
const DefaultCurrencyCode = "PKR"

// Money defines the structure for monetary values on offers and cart lines.
type Money struct {
	Amount       float64 `bson:"amount" json:"amount"`
	CurrencyCode string  `bson:"currencyCode" json:"currencyCode"`
}

// String renders the amount without trailing zeros, e.g. "100" or "99.5".
func (m *Money) String() string {
	if m == nil {
		return "0"
	}
	return strconv.FormatFloat(m.Amount, 'f', -1, 64)
}
