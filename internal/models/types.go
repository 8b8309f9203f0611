package models

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Metadata is a free-form attribute map persisted as JSON text.
type Metadata map[string]interface{}

// Clone returns a shallow copy of m.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the string value at key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	data, ok := textBytes(src)
	if !ok {
		return fmt.Errorf("metadata: unsupported column type %T", src)
	}
	if len(data) == 0 {
		*m = Metadata{}
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	*m = out
	return nil
}

// StringList is a list column persisted as a JSON array.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	data, ok := textBytes(src)
	if !ok {
		return fmt.Errorf("string list: unsupported column type %T", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	*l = out
	return nil
}

// Vector is an embedding persisted as a little-endian float32 blob,
// the layout sqlite-vec uses for its vector functions.
type Vector []float32

// Value implements driver.Valuer. A nil vector is stored as NULL.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return EncodeVector(v), nil
}

// Scan implements sql.Scanner.
func (v *Vector) Scan(src interface{}) error {
	switch b := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		out, err := DecodeVector(b)
		if err != nil {
			return err
		}
		*v = out
		return nil
	default:
		return fmt.Errorf("vector: unsupported column type %T", src)
	}
}

// EncodeVector serializes v as consecutive little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	if len(b) == 0 {
		return nil, nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func textBytes(src interface{}) ([]byte, bool) {
	switch s := src.(type) {
	case nil:
		return nil, true
	case []byte:
		return s, true
	case string:
		return []byte(s), true
	default:
		return nil, false
	}
}
