package domain

import "context"

// Fallback is consulted when no registered unit resolves for a command.
// Implementations are expected to bound their own execution time; a timeout
// surfaces as an error, which the dispatcher reports as "command not found".
type Fallback interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
