package domain

import "context"

// Invocation carries the arguments resolved for a single unit call.
// Positional holds the free-text remainder of a prefix-matched command;
// Kwargs holds structured key/value arguments from the caller or from the
// key=value command grammar.
type Invocation struct {
	Positional string
	Kwargs     map[string]any
}

// Handler is the capability interface every registered unit implements.
// Handlers validate their own arguments; the dispatcher never inspects
// anything beyond this contract.
type Handler interface {
	Invoke(ctx context.Context, inv Invocation) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, inv Invocation) (any, error)

func (f HandlerFunc) Invoke(ctx context.Context, inv Invocation) (any, error) {
	return f(ctx, inv)
}

// Unit is a named, invocable capability (a "skill" or "tool").
// Names may contain spaces. Disabled units are invisible to dispatch and
// listing; hidden units are excluded from listings but remain dispatchable.
type Unit struct {
	Name        string
	Description string
	Category    string
	Aliases     []string
	Enabled     bool
	Hidden      bool
	Handler     Handler
}

// UnitInfo is the listing payload exposed to callers.
type UnitInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Aliases     []string `json:"aliases,omitempty"`
	Enabled     bool     `json:"enabled"`
}
