// Package ir provides the generic tabular model exchanged with clients.
//
// A Table names a relation or procedure and carries ordered Columns and
// position-aligned Rows of typed Values. The same model describes view
// filters, procedure calls, procedure output parameters and result sets.
//
// This package contains types only. All other internal packages import ir;
// ir imports nothing internal.
//
// Key constraints:
//   - every Row has exactly one Value slot per Column (nil is a SQL NULL)
//   - Values are immutable; WithRule returns a copy
//   - a Value's rule is either a filter operator or a reference to the
//     output of another item in the same batch
//   - the model lives for one request only and is never persisted
package ir
