package security

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTTL is returned for TTL strings ParseTTL cannot read.
var ErrInvalidTTL = errors.New("security: invalid ttl")

// ParseTTL parses a lifetime such as "30s", "15m", "12h" or "7d". A bare
// integer is read as seconds. The result must be positive and fit in a time.Duration.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrInvalidTTL
	}
	unit := time.Second
	num := s
	switch s[len(s)-1] {
	case 's':
		num = s[:len(s)-1]
	case 'm':
		unit, num = time.Minute, s[:len(s)-1]
	case 'h':
		unit, num = time.Hour, s[:len(s)-1]
	case 'd':
		unit, num = 24*time.Hour, s[:len(s)-1]
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidTTL
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, ErrInvalidTTL
	}
	return time.Duration(n) * unit, nil
}
