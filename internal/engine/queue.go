package engine

import "github.com/roach88/tablegate/internal/ir"

// itemKind distinguishes submitted items from derived checker calls.
type itemKind int

const (
	// kindPrimary is an item submitted by the client.
	kindPrimary itemKind = iota + 1
	// kindFollowUp is a checker call derived after the primaries.
	kindFollowUp
)

func (k itemKind) String() string {
	if k == kindFollowUp {
		return "follow-up"
	}
	return "primary"
}

// pending is one queued unit of work.
type pending struct {
	kind itemKind
	item ir.TransactionItem
}

// workQueue is the FIFO of items still to execute within one batch.
//
// The queue is owned by a single Execute call and is never shared, so it
// needs no locking. Follow-ups are enqueued once the primaries drain,
// which keeps derivation iterative instead of recursive.
type workQueue struct {
	items []pending
}

func newWorkQueue(capacity int) *workQueue {
	return &workQueue{items: make([]pending, 0, capacity)}
}

// Enqueue adds an item to the back of the queue.
func (q *workQueue) Enqueue(kind itemKind, item ir.TransactionItem) {
	q.items = append(q.items, pending{kind: kind, item: item})
}

// TryDequeue removes and returns the front item.
// Returns false if the queue is empty.
func (q *workQueue) TryDequeue() (pending, bool) {
	if len(q.items) == 0 {
		return pending{}, false
	}
	p := q.items[0]

	// Release the slot so the table can be collected.
	q.items[0] = pending{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return p, true
}
