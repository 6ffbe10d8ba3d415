package pure

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

type fieldState uint8

const (
	fieldUnset fieldState = iota
	fieldCleared
	fieldSet
)

// Field is a date component that is unset (absent from JSON), explicitly
// cleared (JSON null) or set to a number.
type Field struct {
	state fieldState
	value int
}

// SetField returns a Field holding v.
func SetField(v int) Field {
	return Field{state: fieldSet, value: v}
}

// ClearedField returns a Field that encodes as null.
func ClearedField() Field {
	return Field{state: fieldCleared}
}

// IsZero reports whether the field is unset; omitzero relies on it.
func (f Field) IsZero() bool { return f.state == fieldUnset }

// IsSet reports whether the field holds a value.
func (f Field) IsSet() bool { return f.state == fieldSet }

// IsCleared reports whether the field was explicitly cleared.
func (f Field) IsCleared() bool { return f.state == fieldCleared }

// Value returns the held value and whether there is one.
func (f Field) Value() (int, bool) {
	return f.value, f.state == fieldSet
}

// Cleared returns the field a lower-precision write leaves behind: unset
// stays unset, anything else becomes cleared.
func (f Field) Cleared() Field {
	if f.state == fieldUnset {
		return f
	}
	return ClearedField()
}

func (f Field) String() string {
	switch f.state {
	case fieldSet:
		return strconv.Itoa(f.value)
	case fieldCleared:
		return "null"
	default:
		return ""
	}
}

// MarshalJSON encodes a set field as a number and anything else as null.
func (f Field) MarshalJSON() ([]byte, error) {
	if f.state != fieldSet {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.value)), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. The strings
// "null" and "" decode as cleared; older writers stored that sentinel.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ClearedField()
		return nil
	}

	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "pure: decode date field")
		}
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "null") {
			*f = ClearedField()
			return nil
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return eris.Wrapf(err, "pure: decode date field %s", data)
	}
	*f = SetField(n)
	return nil
}
