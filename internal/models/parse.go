package models

import (
	"math"
	"strconv"
	"strings"
)

// ParseValue turns raw user input into a numeric value. Empty input means
// "not yet entered" and parses to nil; anything else must be a finite
// number.
func ParseValue(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, WrapKind(ErrValidation, "value must be numeric, got %q", raw)
	}
	return &f, nil
}
