package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ID identifies a list or a task. It is either a JSON string or a JSON
// integer; the kind survives a decode/encode round-trip.
type ID struct {
	value   string
	numeric bool
}

// StringID returns an ID encoded as a JSON string.
func StringID(s string) ID {
	return ID{value: s}
}

// NumericID returns an ID encoded as a JSON integer.
func NumericID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10), numeric: true}
}

// String returns the textual form of the id.
func (id ID) String() string {
	return id.value
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return id.value == ""
}

// IsNumeric reports whether the id is encoded as a JSON integer.
func (id ID) IsNumeric() bool {
	return id.numeric
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty id")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid id: %w", err)
		}
		*id = StringID(s)
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		n, err = integralNumber(data)
		if err != nil {
			return err
		}
	}
	*id = NumericID(n)
	return nil
}

// integralNumber accepts JSON numbers such as 1.0 or 1e3 whose value is a
// whole number in the int64 range.
func integralNumber(data []byte) (int64, error) {
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("id must be a string or an integer, got %s", data)
	}
	return int64(f), nil
}

// MarshalText implements encoding.TextMarshaler so ids can be used by
// text-based encoders. The numeric flag is not carried.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}
