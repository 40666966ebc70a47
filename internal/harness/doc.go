// Package harness runs batch scenarios against a fresh database and checks
// their outcome, trace and final state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: order_with_checker
//	description: "An order insert is checked by its registered checker"
//	catalog: catalogs/orders
//	security: true
//	setup:
//	  - CREATE TABLE orders (KeyLong INTEGER PRIMARY KEY, Name TEXT)
//	grants:
//	  - privilege: xpcorInsertOrder
//	    group: clerks
//	    checker: xpcorCheckOrder
//	    users: [alice]
//	user: alice
//	token: batch-1
//	batch:
//	  - id: "0"
//	    table:
//	      name: xpcorInsertOrder
//	      columns: [{name: Name, type: string}]
//	      rows: [{values: [{type: string, value: widget}]}]
//	expect:
//	  outcome: committed
//	  results: ["0", xpcorInsertOrderxpcorCheckOrder]
//	assertions:
//	  - type: trace_order
//	    procedures: [xpcorInsertOrder, xpcorCheckOrder]
//	  - type: final_state
//	    table: orders
//	    where: { Name: widget }
//	    expect: { KeyLong: 1 }
//
// The batch uses the same JSON wire form as `tablegate exec`, written as
// YAML. The catalog path is relative to the scenario file.
//
// # Assertion Types
//
//   - trace_contains: an item of a procedure ran, optionally with a given id
//   - trace_order: procedures first ran in the given order
//   - trace_count: a procedure ran exactly N times
//   - final_state: exactly one row of a table matches and holds the values
//
// # Deterministic Testing
//
// Each scenario runs in its own in-memory SQLite database with a fixed
// batch token (scenario.token, or testutil.DefaultToken). Repeated runs
// produce byte-identical snapshots, compared against golden files with
// RunWithGolden.
package harness
