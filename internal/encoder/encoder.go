// Package encoder serializes response DTOs to JSON with a fixed timestamp
// convention: every timestamp is an integer number of milliseconds since the
// Unix epoch.
package encoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a time that encodes as epoch milliseconds
type Timestamp time.Time

// MarshalJSON encodes the timestamp as an integer
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Time(t).UnixMilli(), 10), nil
}

// UnmarshalJSON decodes an integer or fractional millisecond value
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = Timestamp(time.UnixMilli(int64(ms)))
	return nil
}

// Time returns the underlying time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// Encode renders v as a compact UTF-8 JSON string. Output is a pure function
// of v: the same value always produces the same bytes.
func Encode(v any) (string, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
