package harness

// Batch outcomes.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// TraceEvent is one executed item of the scenario batch, in execution
// order. Follow-ups appear after the primaries they were derived from.
type TraceEvent struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Procedure string `json:"procedure"`

	// Outputs holds the output parameter rows, values rendered as text.
	Outputs []map[string]any `json:"outputs,omitempty"`

	// ResultRows is the number of rows in the result set.
	ResultRows int `json:"result_rows"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if the expect clause and every assertion matched.
	Pass bool `json:"pass"`

	// Outcome is OutcomeCommitted or OutcomeRolledBack.
	Outcome string `json:"outcome"`

	// ErrorKind classifies the failure of a rolled back batch.
	ErrorKind string `json:"error_kind,omitempty"`

	// Message is the failure message of a rolled back batch.
	Message string `json:"message,omitempty"`

	// Trace holds the executed items. For a rolled back batch these are
	// the items that ran before the failure.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
