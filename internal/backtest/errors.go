package backtest

import "fmt"

// InvalidInputError reports a malformed price series or an
// out-of-domain parameter. It is always fatal to the call and never
// retried internally.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid backtest input: %s: %s", e.Field, e.Reason)
}
