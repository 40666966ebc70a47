package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/testutil"
)

// TraceSnapshot captures the outcome and trace of a scenario execution.
// It is serialized as canonical JSON for byte-stable comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Token        string       `json:"token"`
	Outcome      string       `json:"outcome"`
	ErrorKind    string       `json:"error_kind,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to the generic form
// ir.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"id":          event.ID,
			"seq":         event.Seq,
			"procedure":   event.Procedure,
			"result_rows": event.ResultRows,
		}
		if len(event.Outputs) > 0 {
			outputs := make([]any, len(event.Outputs))
			for j, row := range event.Outputs {
				outputs[j] = row
			}
			eventMap["outputs"] = outputs
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"token":         s.Token,
		"outcome":       s.Outcome,
		"trace":         traceList,
	}
	if s.ErrorKind != "" {
		result["error_kind"] = s.ErrorKind
	}
	return result
}

// Snapshot renders the canonical JSON snapshot of a scenario result, as
// stored in golden files.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	token := scenario.Token
	if token == "" {
		token = testutil.DefaultToken
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Token:        token,
		Outcome:      result.Outcome,
		ErrorKind:    result.ErrorKind,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass and Errors as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
