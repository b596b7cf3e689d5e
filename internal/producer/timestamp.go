package producer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedTimestamp = errors.New("malformed timestamp")

// SplitKey splits key on its last "/" into parent path and file name. A key
// without a separator has an empty parent.
func SplitKey(key string) (parent, name string) {
	i := strings.LastIndexByte(key, '/')
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

// ParseTimestamp reads "M-D-YYYY" from the part of name before the first dot.
// Month and day may be one or two digits; the year must have four.
func ParseTimestamp(name string) (time.Time, error) {
	stem, _, _ := strings.Cut(name, ".")
	parts := strings.Split(stem, "-")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, name)
	}
	var vals [3]int
	for i, p := range parts {
		if p == "" || len(p) > 4 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, name)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, name)
		}
		vals[i] = n
	}
	month, day, year := vals[0], vals[1], vals[2]
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if month < 1 || month > 12 || t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("%w: %q: no such date", ErrMalformedTimestamp, name)
	}
	return t, nil
}
