// Package engine runs batches of procedure calls as one transaction.
//
// An Orchestrator takes the items of a batch, in submission order, through
//
//	resolve → authorize → execute
//
// and, once every submitted item has succeeded, derives the checker
// procedures registered for them and runs those through
//
//	resolve → execute
//
// before committing. Any failure rolls the whole batch back and surfaces as
// a *BatchError holding the submitted items, the results accumulated so far
// and the cause.
//
// WORK QUEUE:
//
// Items wait in a FIFO work queue owned by the Execute call. Primaries are
// enqueued up front; when the queue drains, follow-ups are derived from the
// accumulated results and enqueued once. Results of earlier items, follow-ups
// included, are visible to every later item through value references.
//
// FOLLOW-UP DERIVATION:
//
// The privilege table maps a procedure (KeyText) to an optional checker
// (TransactionChecker). For each mapped procedure the results whose output
// table carries its name are checked, falling back to the first result of
// the batch. Each checked result yields one item <procedure><checker> whose
// single KeyLong column holds one row per output row of the result.
//
// Follow-ups are derived only when privilege checks apply (security enabled
// and privileges defined). The primaries already passed a privilege check
// at that point, so an empty mapping is a PrivilegeError.
//
// CONCURRENCY:
//
// Items of one batch run strictly one after another on one connection.
// Separate Execute calls share nothing; each reserves its own connection.
package engine
