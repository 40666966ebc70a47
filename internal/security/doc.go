// Package security answers the authorization questions of the execution
// layer from the xtcas tables: may a caller run a procedure or read a view,
// which checker procedures guard a privilege, and which row-level security
// tokens apply.
//
// Lookups are expressed as filter tables and compiled by package filter, so
// the authorization tables are queried the same way clients query views.
// Every method takes the Querier to run on; inside a batch that is the
// batch transaction.
package security
