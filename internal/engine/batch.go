package engine

import (
	"fmt"

	"github.com/roach88/tablegate/internal/ir"
)

// prepareBatch checks a submitted batch and returns a copy ready to run.
//
// Rules:
//  1. The batch has at least one item
//  2. Every item has an identifier, unique within the batch
//  3. Every item names a procedure and its table is well formed
//  4. Seq is strictly increasing; a batch whose Seq values are all zero
//     is numbered by position, starting at 1
func prepareBatch(items []ir.TransactionItem) ([]ir.TransactionItem, error) {
	if len(items) == 0 {
		return nil, &InvalidBatchError{Message: "batch has no items"}
	}

	numbered := true
	for _, item := range items {
		if item.Seq != 0 {
			numbered = false
			break
		}
	}

	out := make([]ir.TransactionItem, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, &InvalidBatchError{Message: fmt.Sprintf("item %d has no id", i)}
		}
		if seen[item.ID] {
			return nil, &InvalidBatchError{Item: item.ID, Message: "duplicate id"}
		}
		seen[item.ID] = true

		if item.Table.Name == "" {
			return nil, &InvalidBatchError{Item: item.ID, Message: "table has no name"}
		}
		if err := item.Table.Validate(); err != nil {
			return nil, &InvalidBatchError{Item: item.ID, Message: err.Error()}
		}

		if numbered {
			item.Seq = int64(i + 1)
		} else if i > 0 && item.Seq <= out[i-1].Seq {
			return nil, &InvalidBatchError{
				Item:    item.ID,
				Message: fmt.Sprintf("seq %d does not follow %d", item.Seq, out[i-1].Seq),
			}
		}
		out[i] = item
	}
	return out, nil
}
