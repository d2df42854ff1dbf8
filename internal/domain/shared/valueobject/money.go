// Package valueobject holds immutable value types shared across
// aggregates.
package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code. The engine is effectively
// single-currency: every item value and differential is recorded in
// the default currency.
type Currency string

// USD is the only currency the engine currently trades in.
const USD Currency = "USD"

// DefaultCurrency is the currency assumed when none is given
const DefaultCurrency = USD

// Money is an immutable monetary amount. It carries item values, the
// per-participant net balances of a cycle and the cash differentials
// owed on execution. All operations return new instances.
//
// The zero value Money{} is a currency-less zero amount; arithmetic
// against it adopts the other operand's currency, so accumulation
// loops can start from the zero value without error plumbing.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money with the given amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromString parses a decimal string into Money
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// NewMoneyUSD creates Money in the default currency
func NewMoneyUSD(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: USD}
}

// NewMoneyUSDFromFloat creates Money in the default currency from a float64
func NewMoneyUSDFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: USD}
}

// ZeroUSD returns a zero amount in the default currency
func ZeroUSD() Money {
	return Money{amount: decimal.Zero, currency: USD}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is less than zero
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// mergeCurrency resolves the currency of a binary operation. A zero
// value operand adopts the other side's currency; two different
// concrete currencies are a programming error.
func mergeCurrency(a, b Currency) Currency {
	switch {
	case a == b:
		return a
	case a == "":
		return b
	case b == "":
		return a
	}
	panic(fmt.Sprintf("money currency mismatch: %s vs %s", a, b))
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) Money {
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: mergeCurrency(m.currency, other.currency),
	}
}

// Sub returns the difference of both amounts
func (m Money) Sub(other Money) Money {
	return Money{
		amount:   m.amount.Sub(other.amount),
		currency: mergeCurrency(m.currency, other.currency),
	}
}

// Neg returns the amount with the sign reversed
func (m Money) Neg() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// Abs returns the absolute amount
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs(), currency: m.currency}
}

// Multiply scales the amount by a dimensionless factor, e.g. the
// imbalance ceiling ratio
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// MeanOver returns the amount divided by n, used for the average item
// value of a cycle. n <= 0 yields zero.
func (m Money) MeanOver(n int) Money {
	if n <= 0 {
		return Money{amount: decimal.Zero, currency: m.currency}
	}
	return Money{
		amount:   m.amount.Div(decimal.NewFromInt(int64(n))),
		currency: m.currency,
	}
}

// Equal returns true when amount and currency both match
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Cmp compares the amounts: -1 if m < other, 0 if equal, +1 if m > other
func (m Money) Cmp(other Money) int {
	mergeCurrency(m.currency, other.currency)
	return m.amount.Cmp(other.amount)
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) bool {
	return m.Cmp(other) < 0
}

// GreaterThanOrEqual returns true if m >= other
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.Cmp(other) >= 0
}

// String formats the amount with two decimal places and the currency
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = amount
	m.currency = v.Currency
	return nil
}

// Value implements driver.Valuer. Only the amount is stored; the
// currency is fixed per deployment.
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		m.amount = decimal.Zero
		m.currency = DefaultCurrency
		return nil
	}

	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("failed to scan money amount: %w", err)
	}
	m.amount = d
	m.currency = DefaultCurrency
	return nil
}
