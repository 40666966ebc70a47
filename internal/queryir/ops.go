package queryir

import "strings"

// Op is the closed set of filter operators.
type Op int

const (
	OpEq Op = iota + 1
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpLike
	OpNotLike
	OpBetween
	OpIn
	OpIsNull
	OpIsNotNull
)

var opNames = map[Op]string{
	OpEq:        "=",
	OpNe:        "<>",
	OpGt:        ">",
	OpGe:        ">=",
	OpLt:        "<",
	OpLe:        "<=",
	OpLike:      "like",
	OpNotLike:   "not like",
	OpBetween:   "between",
	OpIn:        "in",
	OpIsNull:    "is null",
	OpIsNotNull: "is not null",
}

// String returns the SQL spelling of the operator.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// ruleTokens maps every accepted rule spelling to its operator.
// Tokens are matched exactly; anything else is rejected.
var ruleTokens = map[string]Op{
	"~":         OpLike,
	"like":      OpLike,
	"!~":        OpNotLike,
	"not like":  OpNotLike,
	"=":         OpEq,
	"<>":        OpNe,
	">":         OpGt,
	">=":        OpGe,
	"<":         OpLt,
	"<=":        OpLe,
	"between()": OpBetween,
	"in()":      OpIn,
}

// ParseOp maps a rule token to its operator.
// ok is false for tokens outside the table.
func ParseOp(token string) (op Op, ok bool) {
	op, ok = ruleTokens[token]
	return op, ok
}

// ClassifyRule resolves a filter rule to an operator.
//
// Null checks win over everything else: a rule containing "!null" is
// OpIsNotNull, otherwise one containing "null" is OpIsNull. An empty rule
// returns ok=true with op 0 so the caller can pick a default.
func ClassifyRule(rule string) (op Op, ok bool) {
	switch {
	case strings.Contains(rule, "!null"):
		return OpIsNotNull, true
	case strings.Contains(rule, "null"):
		return OpIsNull, true
	case strings.TrimSpace(rule) == "":
		return 0, true
	}
	return ParseOp(rule)
}
