// Package queryir provides the abstract condition tree produced by the
// filter compiler and consumed by the SQL backend.
//
//	[ir.Table filter] → [filter] → [queryir.Predicate] → [querysql] → SQL + params
//
// OPERATORS:
//
// Op is a closed enumeration. Client rule strings are mapped to operators
// through a fixed token table (ParseOp); unknown tokens are rejected when
// the filter is compiled, never later during rendering.
//
//	Token            Op
//	-----            --
//	~, like          OpLike
//	!~, not like     OpNotLike
//	=                OpEq
//	<>               OpNe
//	> >= < <=        OpGt OpGe OpLt OpLe
//	between()        OpBetween
//	in()             OpIn
//	*!null*          OpIsNotNull (containment, checked first)
//	*null*           OpIsNull    (containment)
//
// SEALED INTERFACES:
//
// Predicate is sealed with a marker method so backends can switch
// exhaustively over the node types.
//
// NEUTRAL CONDITION:
//
// True is the "no filter" condition. Conj and Disj treat it as identity on
// both sides, so a filter built by folding rows into a True accumulator
// stays True until a row contributes a condition.
package queryir
