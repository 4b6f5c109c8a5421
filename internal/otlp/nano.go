package otlp

import (
	"fmt"
	"strconv"
	"time"
)

// UnixNanoToTime parses a decimal-string nanosecond timestamp and truncates
// it to millisecond precision by integer division. Truncation, not rounding:
// stored timestamps must match what earlier deployments wrote.
func UnixNanoToTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing unix nano timestamp")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid unix nano timestamp %q: %w", s, err)
	}
	return time.UnixMilli(int64(n / 1_000_000)).UTC(), nil
}

// OptionalUnixNano is UnixNanoToTime for fields that may legitimately be
// absent, such as a span's end time. Empty input yields nil without error.
func OptionalUnixNano(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := UnixNanoToTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
