package engine

// DefaultMaxItems bounds how many items, follow-ups included, one batch
// may execute.
const DefaultMaxItems = 1000

// quota counts executed items of one batch against a limit.
//
// Follow-up derivation multiplies items (one checker call per mapping row
// and per matching result), so the limit guards against a privilege table
// that fans a small batch out into an unbounded one.
type quota struct {
	limit   int
	current int
}

func newQuota(limit int) *quota {
	return &quota{limit: limit}
}

// Check counts one more item and fails once the limit is passed.
// A limit of 0 or less disables the check.
func (q *quota) Check(token string) error {
	q.current++
	if q.limit > 0 && q.current > q.limit {
		return &ItemLimitError{Token: token, Items: q.current, Limit: q.limit}
	}
	return nil
}
