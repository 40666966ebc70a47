package engine

import "github.com/roach88/tablegate/internal/ir"

// seqCounter numbers the follow-ups of one batch, continuing after the
// highest Seq of the primary items. A batch runs on one goroutine.
type seqCounter struct {
	last int64
}

func seqAfter(items []ir.TransactionItem) *seqCounter {
	c := &seqCounter{}
	for _, item := range items {
		c.last = max(c.last, item.Seq)
	}
	return c
}

// Next returns the next sequence number.
func (c *seqCounter) Next() int64 {
	c.last++
	return c.last
}
