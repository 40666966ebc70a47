package testutil

// DefaultToken is the batch token used when a scenario names none.
const DefaultToken = "test-batch-default"

// FixedToken returns the same batch token on every call, so repeated runs
// of a scenario produce byte-identical traces and batch logs.
//
// Unlike engine.FixedGenerator, which hands out a list of tokens once,
// FixedToken never runs out. Safe for concurrent use.
type FixedToken struct {
	token string
}

// NewFixedToken creates a generator for token, or DefaultToken if empty.
func NewFixedToken(token string) *FixedToken {
	if token == "" {
		token = DefaultToken
	}
	return &FixedToken{token: token}
}

// Generate returns the fixed token.
func (g *FixedToken) Generate() string {
	return g.token
}
