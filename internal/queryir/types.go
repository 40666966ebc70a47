package queryir

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
// Backends use exhaustive type switches over:
//   - True: the neutral condition
//   - Compare: field <op> value for =, <>, >, >=, <, <=
//   - NullCheck: field IS [NOT] NULL
//   - Like: field [NOT] LIKE pattern, case-insensitive
//   - Between: field BETWEEN low AND high (inclusive)
//   - In: field IN (values...)
//   - And, Or: conjunction and disjunction
//   - Raw: a pre-rendered fragment with no parameters
type Predicate interface {
	predicateNode()
}

// True is the neutral condition. It renders as no WHERE clause and is the
// identity for both Conj and Disj.
type True struct{}

func (True) predicateNode() {}

// Compare is an ordered or equality comparison against a parameter.
// IgnoreCase lowers both sides; it is only meaningful for strings.
type Compare struct {
	Field      string
	Op         Op
	Value      any
	IgnoreCase bool
}

func (Compare) predicateNode() {}

// NullCheck tests a field for NULL, or NOT NULL when Not is set.
type NullCheck struct {
	Field string
	Not   bool
}

func (NullCheck) predicateNode() {}

// Like is a case-insensitive pattern match, negated when Not is set.
type Like struct {
	Field   string
	Pattern string
	Not     bool
}

func (Like) predicateNode() {}

// Between matches Low <= field <= High.
type Between struct {
	Field string
	Low   any
	High  any
}

func (Between) predicateNode() {}

// In matches a field against a set of values.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And is a conjunction (empty = always true).
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Raw is a fragment rendered verbatim. It must not need parameters.
type Raw struct {
	SQL string
}

func (Raw) predicateNode() {}

// IsTrue reports whether p is the neutral condition.
func IsTrue(p Predicate) bool {
	switch pred := p.(type) {
	case nil, True:
		return true
	case And:
		return len(pred.Predicates) == 0
	}
	return false
}

// Conj returns a AND b, treating True as identity.
// Nested conjunctions are flattened.
func Conj(a, b Predicate) Predicate {
	switch {
	case IsTrue(a):
		if IsTrue(b) {
			return True{}
		}
		return b
	case IsTrue(b):
		return a
	}
	var preds []Predicate
	preds = appendAnd(preds, a)
	preds = appendAnd(preds, b)
	return And{Predicates: preds}
}

// Disj returns a OR b, treating True as identity.
//
// This mirrors a builder whose neutral condition disappears when combined:
// True OR x yields x rather than True.
func Disj(a, b Predicate) Predicate {
	switch {
	case IsTrue(a):
		if IsTrue(b) {
			return True{}
		}
		return b
	case IsTrue(b):
		return a
	}
	var preds []Predicate
	preds = appendOr(preds, a)
	preds = appendOr(preds, b)
	return Or{Predicates: preds}
}

func appendAnd(preds []Predicate, p Predicate) []Predicate {
	if and, ok := p.(And); ok {
		return append(preds, and.Predicates...)
	}
	return append(preds, p)
}

func appendOr(preds []Predicate, p Predicate) []Predicate {
	if or, ok := p.(Or); ok {
		return append(preds, or.Predicates...)
	}
	return append(preds, p)
}

// Select is a projection over a single relation.
//
//	SELECT <fields> FROM <from> [WHERE <filter>] [LIMIT <limit>]
//	SELECT COUNT(*) FROM <from> [WHERE <filter>]
type Select struct {
	From   string
	Fields []string  // empty = all columns
	Filter Predicate // nil or True = no WHERE clause
	Count  bool      // select a row count instead of fields
	Limit  int       // 0 = unbounded
}
