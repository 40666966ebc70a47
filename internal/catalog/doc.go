// Package catalog loads the procedure catalog from CUE.
//
// SQLite has no stored procedures, so every procedure a batch may call is
// declared in CUE as a list of parameterized statements:
//
//	procedure: xpcorInsertOrder: {
//		description: "Creates an order"
//		params: {
//			KeyLong: {type: "long", direction: "output"}
//			Name:    {type: "string"}
//		}
//		exec:   ["INSERT INTO orders (Name) VALUES (:Name)"]
//		output: "SELECT last_insert_rowid() AS KeyLong"
//		result: "SELECT * FROM orders WHERE KeyLong = :KeyLong"
//	}
//
// exec statements run first, then the output query (its first row becomes
// the output parameters), then assert queries, then the result query.
// Statements reference parameters as :Name; every reference must be a
// declared parameter.
//
// An assert query fails the call unless its first row's first column is
// truthy. Checker procedures use asserts to veto a batch.
package catalog
