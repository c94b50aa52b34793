package utils

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	OrderNumberPrefix = "ORD"
	DraftNumberPrefix = "DRF"
)

// FormatOrderNumber renders a value drawn from order_number_seq.
func FormatOrderNumber(seq int64) string {
	return formatSequence(OrderNumberPrefix, seq)
}

// FormatDraftNumber renders a value drawn from draft_number_seq. Draft numbers
// are provisional and never reused as order numbers.
func FormatDraftNumber(seq int64) string {
	return formatSequence(DraftNumberPrefix, seq)
}

func formatSequence(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

// ParseOrderNumber returns the sequence part of an order number.
func ParseOrderNumber(s string) (int64, error) {
	rest, ok := strings.CutPrefix(s, OrderNumberPrefix+"-")
	if !ok {
		return 0, fmt.Errorf("invalid order number: %q", s)
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid order number: %q", s)
	}
	return n, nil
}
