// Package filter compiles filter tables into SQL conditions.
//
// A filter table names the relation to query and carries one row per
// alternative. Every value in a row contributes one condition; the rule on
// the value picks the operator:
//
//	rule           condition
//	----           ---------
//	*!null*        column IS NOT NULL
//	*null*         column IS NULL
//	(none)         LIKE for wildcard strings or autoLike, else =
//	~, like        LOWER(column) LIKE LOWER(value)
//	!~, not like   LOWER(column) NOT LIKE LOWER(value)
//	= <>           case-insensitive for string values
//	> >= < <=      ordered comparison
//	between()      "low,high", both inclusive
//	in()           "a,b,c"
//
// Conditions within a row are ANDed. A row ANDs into the accumulated
// condition when its "&" column is true, otherwise it ORs. The accumulator
// starts out as the neutral condition.
//
// ROW-LEVEL SECURITY:
//
// The security fragment built from the caller's authority rows is applied
// only while the compiled condition is still neutral. A request that carries
// any filter is not restricted by it. This mirrors the behaviour of the
// service this layer replaces and is kept until the owners confirm whether
// filtered requests should be restricted too.
package filter
