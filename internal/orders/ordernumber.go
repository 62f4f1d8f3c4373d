package orders

import (
	"fmt"
	"strconv"
	"time"
)

// MaxSequencePerDate caps how many orders a single delivery date can carry.
// The sequence part of an order number is exactly four digits.
const MaxSequencePerDate = 9999

const dateLayout = "20060102"

// OrderNumber is the human-facing order identifier, YYYYMMDD-NNNN: the menu's
// delivery date plus a per-date sequence issued by the allocator.
type OrderNumber string

func NewOrderNumber(date time.Time, seq int) (OrderNumber, error) {
	if seq < 1 || seq > MaxSequencePerDate {
		return "", fmt.Errorf("order number: sequence %d out of range 1..%d", seq, MaxSequencePerDate)
	}
	return OrderNumber(fmt.Sprintf("%s-%04d", date.Format(dateLayout), seq)), nil
}

// ParseOrderNumber validates the canonical YYYYMMDD-NNNN form and returns its
// components.
func ParseOrderNumber(s string) (time.Time, int, error) {
	if len(s) != 13 || s[8] != '-' {
		return time.Time{}, 0, fmt.Errorf("order number %q: want YYYYMMDD-NNNN", s)
	}
	date, err := time.Parse(dateLayout, s[:8])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("order number %q: bad date: %w", s, err)
	}
	for _, c := range s[9:] {
		if c < '0' || c > '9' {
			return time.Time{}, 0, fmt.Errorf("order number %q: sequence is not numeric", s)
		}
	}
	seq, err := strconv.Atoi(s[9:])
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("order number %q: bad sequence: %w", s, err)
	}
	if seq < 1 {
		return time.Time{}, 0, fmt.Errorf("order number %q: sequence must be positive", s)
	}
	return date, seq, nil
}

func (n OrderNumber) String() string { return string(n) }

// Date is the delivery date encoded in the number; zero when malformed.
func (n OrderNumber) Date() time.Time {
	d, _, err := ParseOrderNumber(string(n))
	if err != nil {
		return time.Time{}
	}
	return d
}

// Sequence is the per-date sequence encoded in the number; zero when malformed.
func (n OrderNumber) Sequence() int {
	_, seq, err := ParseOrderNumber(string(n))
	if err != nil {
		return 0
	}
	return seq
}
