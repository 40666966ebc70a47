package ir

// TransactionItem is one procedure call within a batch.
//
// ID is unique within the batch and is what other items reference in their
// value rules. Seq is the explicit position of the item in the batch; items
// execute in increasing Seq order.
type TransactionItem struct {
	ID    string `json:"id"`
	Seq   int64  `json:"seq,omitempty"`
	Table Table  `json:"table"`
}

// ProcedureResult captures the outcome of one executed procedure call.
type ProcedureResult struct {
	ResultSet        *Table `json:"result_set,omitempty"`
	OutputParameters *Table `json:"output_parameters,omitempty"`
	ReturnCodes      []int  `json:"return_codes,omitempty"`
	ReturnCode       int    `json:"return_code"`
}

// ItemResult pairs a TransactionItem identifier with its result.
// Procedure is the name of the executed procedure.
type ItemResult struct {
	ID        string           `json:"id"`
	Seq       int64            `json:"seq"`
	Procedure string           `json:"procedure,omitempty"`
	Result    *ProcedureResult `json:"result"`
}

// FindResult returns the first result with the given identifier.
func FindResult(results []ItemResult, id string) (ItemResult, bool) {
	for _, r := range results {
		if r.ID == id {
			return r, true
		}
	}
	return ItemResult{}, false
}
