package models

import (
	"strconv"
	"strings"
)

// ParseUnsigned64 parses a decimal token into the unsigned 64-bit space.
// Values in [-2^63, 0) wrap by two's complement, so "-1" and
// "18446744073709551615" are the same key. Anything outside [-2^63, 2^64) or
// non-numeric is rejected.
func ParseUnsigned64(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint64(v), true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
