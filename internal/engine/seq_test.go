package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tablegate/internal/ir"
)

func TestSeqAfter_ContinuesFromHighest(t *testing.T) {
	c := seqAfter([]ir.TransactionItem{{ID: "a", Seq: 10}, {ID: "b", Seq: 20}})
	assert.Equal(t, int64(21), c.Next())
	assert.Equal(t, int64(22), c.Next())
}

func TestSeqAfter_Empty(t *testing.T) {
	assert.Equal(t, int64(1), seqAfter(nil).Next())
}
