package ir

import "fmt"

// DataType is the closed set of value kinds a Column or Value can carry.
type DataType string

const (
	TypeInteger DataType = "integer"
	TypeLong    DataType = "long"
	TypeString  DataType = "string"
	TypeBoolean DataType = "boolean"
	TypeInstant DataType = "instant"
	TypeDecimal DataType = "decimal"
	TypeBinary  DataType = "binary"
)

// DataTypes lists every valid DataType in declaration order.
var DataTypes = []DataType{
	TypeInteger, TypeLong, TypeString, TypeBoolean, TypeInstant, TypeDecimal, TypeBinary,
}

// IsValid reports whether t is one of the declared kinds.
func (t DataType) IsValid() bool {
	for _, d := range DataTypes {
		if d == t {
			return true
		}
	}
	return false
}

// ParseDataType converts a type name to a DataType.
func ParseDataType(s string) (DataType, error) {
	t := DataType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// OutputType tags a Column as a procedure input, an output, or neither.
type OutputType string

const (
	OutputUnspecified OutputType = ""
	OutputInput       OutputType = "input"
	OutputOutput      OutputType = "output"
)

// IsValid reports whether o is a known direction.
func (o OutputType) IsValid() bool {
	switch o {
	case OutputUnspecified, OutputInput, OutputOutput:
		return true
	}
	return false
}

// AndFieldName is the reserved column whose boolean value makes a filter row
// AND into the overall condition instead of OR.
const AndFieldName = "&"

// Column describes one position of a Table.
type Column struct {
	Name   string     `json:"name"`
	Type   DataType   `json:"type"`
	Output OutputType `json:"output,omitempty"`
}

// NewColumn creates a Column with unspecified direction.
func NewColumn(name string, t DataType) Column {
	return Column{Name: name, Type: t}
}

// NewOutputColumn creates a Column tagged as a procedure output.
func NewOutputColumn(name string, t DataType) Column {
	return Column{Name: name, Type: t, Output: OutputOutput}
}

// SecurityContext identifies the caller of a request.
// Authorities are the group names the user belongs to.
type SecurityContext struct {
	User        string   `json:"user"`
	Authorities []string `json:"authorities"`
}
