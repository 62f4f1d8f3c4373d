package orders

import "fmt"

// Money is an amount in minor currency units. The catalog runs in a single
// fixed currency, so no currency code travels with the value.
type Money int64

func NewMoney(v int64) (Money, error) {
	if v <= 0 {
		return 0, fmt.Errorf("money: amount must be positive, got %d", v)
	}
	return Money(v), nil
}

func (m Money) Int64() int64 { return int64(m) }
