package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Value is an immutable typed scalar with an optional rule.
//
// The content is held as the Go type matching its DataType:
//   - TypeInteger, TypeLong: int64
//   - TypeString: string
//   - TypeBoolean: bool
//   - TypeInstant: time.Time
//   - TypeDecimal: decimal.Decimal
//   - TypeBinary: []byte
//
// A nil content is a typed SQL NULL. An empty rule means "no rule".
type Value struct {
	typ  DataType
	data any
	rule string
}

// Int creates an integer Value.
func Int(n int64) *Value { return &Value{typ: TypeInteger, data: n} }

// Long creates a long Value.
func Long(n int64) *Value { return &Value{typ: TypeLong, data: n} }

// String creates a string Value.
func String(s string) *Value { return &Value{typ: TypeString, data: s} }

// Bool creates a boolean Value.
func Bool(b bool) *Value { return &Value{typ: TypeBoolean, data: b} }

// Instant creates a date/time Value.
func Instant(t time.Time) *Value { return &Value{typ: TypeInstant, data: t} }

// Decimal creates a decimal Value.
func Decimal(d decimal.Decimal) *Value { return &Value{typ: TypeDecimal, data: d} }

// Binary creates a binary Value. The slice is copied.
func Binary(b []byte) *Value {
	return &Value{typ: TypeBinary, data: bytes.Clone(b)}
}

// Null creates a typed NULL Value.
func Null(t DataType) *Value { return &Value{typ: t} }

// WithRule returns a copy of v carrying rule.
func (v *Value) WithRule(rule string) *Value {
	c := *v
	c.rule = rule
	return &c
}

// Type returns the value kind.
func (v *Value) Type() DataType { return v.typ }

// Rule returns the rule string, empty when absent.
func (v *Value) Rule() string { return v.rule }

// HasRule reports whether a rule is present.
func (v *Value) HasRule() bool { return v.rule != "" }

// IsNull reports whether the content is NULL.
func (v *Value) IsNull() bool { return v.data == nil }

// Data returns the raw content (see the type table on Value).
func (v *Value) Data() any { return v.data }

// Bool returns the boolean content.
// ok is false when the value is not a non-null boolean.
func (v *Value) Bool() (b bool, ok bool) {
	b, ok = v.data.(bool)
	return b, ok
}

// Int64 returns the integer content of an integer or long value.
func (v *Value) Int64() (int64, bool) {
	n, ok := v.data.(int64)
	return n, ok
}

// Text renders the content as text. NULL renders as "".
func (v *Value) Text() string {
	switch d := v.data.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(d, 10)
	case string:
		return d
	case bool:
		return strconv.FormatBool(d)
	case time.Time:
		return d.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return d.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(d)
	default:
		return fmt.Sprint(d)
	}
}

// Param returns the value as a database/sql parameter.
// Decimals are passed as text so no precision is lost.
func (v *Value) Param() any {
	if d, ok := v.data.(decimal.Decimal); ok {
		return d.String()
	}
	return v.data
}

// Equal reports whether two values have the same kind, content and rule.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.typ == o.typ && v.rule == o.rule && v.IsNull() == o.IsNull() && v.Text() == o.Text()
}

// ParseValue converts text to a Value of kind t.
func ParseValue(t DataType, text string) (*Value, error) {
	switch t {
	case TypeInteger:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse integer %q: %w", text, err)
		}
		return Int(n), nil
	case TypeLong:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse long %q: %w", text, err)
		}
		return Long(n), nil
	case TypeString:
		return String(text), nil
	case TypeBoolean:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("parse boolean %q: %w", text, err)
		}
		return Bool(b), nil
	case TypeInstant:
		ts, err := parseInstant(text)
		if err != nil {
			return nil, err
		}
		return Instant(ts), nil
	case TypeDecimal:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", text, err)
		}
		return Decimal(d), nil
	case TypeBinary:
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("parse binary: %w", err)
		}
		return Binary(b), nil
	default:
		return nil, fmt.Errorf("unknown data type %q", t)
	}
}

// instantLayouts are tried in order when parsing date/time text.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInstant(text string) (time.Time, error) {
	for _, layout := range instantLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse instant %q: unsupported layout", text)
}

// FromDriver converts a value read from database/sql into a Value of kind t.
// The driver types handled are int64, float64, bool, []byte, string,
// time.Time and nil.
func FromDriver(t DataType, src any) (*Value, error) {
	if src == nil {
		return Null(t), nil
	}
	switch t {
	case TypeInteger, TypeLong:
		switch s := src.(type) {
		case int64:
			return &Value{typ: t, data: s}, nil
		case float64:
			if s != math.Trunc(s) {
				return nil, fmt.Errorf("%v is not a whole number", s)
			}
			return &Value{typ: t, data: int64(s)}, nil
		case bool:
			if s {
				return &Value{typ: t, data: int64(1)}, nil
			}
			return &Value{typ: t, data: int64(0)}, nil
		}
	case TypeBoolean:
		switch s := src.(type) {
		case bool:
			return Bool(s), nil
		case int64:
			return Bool(s != 0), nil
		}
	case TypeString:
		switch s := src.(type) {
		case string:
			return String(s), nil
		case []byte:
			return String(string(s)), nil
		case int64:
			return String(strconv.FormatInt(s, 10)), nil
		case float64:
			return String(strconv.FormatFloat(s, 'f', -1, 64)), nil
		case bool:
			return String(strconv.FormatBool(s)), nil
		case time.Time:
			return String(s.UTC().Format(time.RFC3339Nano)), nil
		}
	case TypeInstant:
		if s, ok := src.(time.Time); ok {
			return Instant(s), nil
		}
	case TypeDecimal:
		switch s := src.(type) {
		case float64:
			return Decimal(decimal.NewFromFloat(s)), nil
		case int64:
			return Decimal(decimal.NewFromInt(s)), nil
		}
	case TypeBinary:
		switch s := src.(type) {
		case []byte:
			return Binary(s), nil
		case string:
			return Binary([]byte(s)), nil
		}
	default:
		return nil, fmt.Errorf("unknown data type %q", t)
	}

	// Fall back to text conversion.
	switch s := src.(type) {
	case string:
		return ParseValue(t, s)
	case []byte:
		return ParseValue(t, string(s))
	}
	return nil, fmt.Errorf("cannot convert %T to %s", src, t)
}

// InferType picks a DataType for a driver value of unknown declared type.
func InferType(src any) DataType {
	switch src.(type) {
	case int64:
		return TypeLong
	case float64:
		return TypeDecimal
	case bool:
		return TypeBoolean
	case []byte:
		return TypeBinary
	case time.Time:
		return TypeInstant
	default:
		return TypeString
	}
}

// valueJSON is the wire form of a Value.
type valueJSON struct {
	Type  DataType        `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Rule  string          `json:"rule,omitempty"`
}

// MarshalJSON encodes v as {"type":..,"value":..,"rule":..}.
// Decimals and instants are encoded as strings, binary as base64.
func (v *Value) MarshalJSON() ([]byte, error) {
	w := valueJSON{Type: v.typ, Rule: v.rule}
	var (
		raw []byte
		err error
	)
	switch d := v.data.(type) {
	case nil:
		raw = []byte("null")
	case int64, bool, string:
		raw, err = json.Marshal(d)
	default:
		raw, err = json.Marshal(v.Text())
	}
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
// Numbers and booleans may also be sent as strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Type.IsValid() {
		return fmt.Errorf("value: unknown data type %q", w.Type)
	}

	raw := bytes.TrimSpace(w.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*v = Value{typ: w.Type, rule: w.Rule}
		return nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return err
		}
	} else {
		text = string(raw)
	}
	if text == "" && w.Type != TypeString {
		*v = Value{typ: w.Type, rule: w.Rule}
		return nil
	}

	parsed, err := ParseValue(w.Type, text)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	*v = Value{typ: parsed.typ, data: parsed.data, rule: w.Rule}
	return nil
}
