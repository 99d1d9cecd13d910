package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"evcore/internal/domain"
	"evcore/internal/metrics"
)

// ErrNotFound reports that no unit matched a command and no fallback could
// produce a result.
var ErrNotFound = errors.New("command not found")

// Dispatcher resolves free-text commands against a Registry and invokes the
// matching unit. Resolution never blocks; only handler invocation may.
type Dispatcher struct {
	reg      *Registry
	fallback domain.Fallback
	logger   *slog.Logger
}

func NewDispatcher(reg *Registry, fallback domain.Fallback, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{reg: reg, fallback: fallback, logger: logger}
}

// Dispatch resolves and invokes a command. Resolution order:
//
//  1. Scan units in registration order. An exact, case-insensitive name match
//     invokes the unit with the caller's kwargs. A name-prefix match invokes
//     it with the remainder as a single positional argument (or the kwargs
//     when the remainder is empty). The first matching unit wins, so
//     registration order is significant.
//  2. Otherwise split the command into an identifier and key=value pairs,
//     merge the pairs into the kwargs, and look the identifier up in the
//     case-folded name and alias tables.
//  3. Otherwise delegate to the fallback capability; if there is none or it
//     fails, report ErrNotFound.
//
// Handler errors are returned as-is; the caller-facing boundary converts
// them to an error mapping.
func (d *Dispatcher) Dispatch(ctx context.Context, command string, kwargs map[string]any) (any, error) {
	metrics.Dispatches.Inc()

	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		metrics.DispatchErrors.Inc()
		return nil, fmt.Errorf("%w: empty command", ErrNotFound)
	}
	if kwargs == nil {
		kwargs = make(map[string]any)
	}
	folded := strings.ToLower(trimmed)

	for _, u := range d.reg.snapshot() {
		if !u.Enabled {
			continue
		}
		name := strings.ToLower(u.Name)
		if folded == name {
			return d.invoke(ctx, u, domain.Invocation{Kwargs: kwargs})
		}
		if strings.HasPrefix(folded, name) {
			remainder := strings.TrimSpace(trimmed[len(u.Name):])
			if remainder == "" {
				return d.invoke(ctx, u, domain.Invocation{Kwargs: kwargs})
			}
			return d.invoke(ctx, u, domain.Invocation{Positional: remainder, Kwargs: kwargs})
		}
	}

	// Token grammar: "<identifier> k=v k2='v2' ...".
	lookup := folded
	if ident, params, ok := SplitCommand(trimmed); ok {
		for k, v := range ParseKeyValues(params) {
			kwargs[k] = v
		}
		lookup = strings.ToLower(ident)
	}

	if u, ok := d.reg.lookupFolded(lookup); ok && u.Enabled {
		return d.invoke(ctx, u, domain.Invocation{Kwargs: kwargs})
	}

	if d.fallback != nil {
		metrics.Fallbacks.Inc()
		out, err := d.fallback.Complete(ctx, trimmed)
		if err == nil {
			return out, nil
		}
		d.logger.Warn("fallback failed", "fallback", d.fallback.Name(), "err", err)
	}

	metrics.DispatchErrors.Inc()
	return nil, fmt.Errorf("%w: %s", ErrNotFound, trimmed)
}

func (d *Dispatcher) invoke(ctx context.Context, u *domain.Unit, inv domain.Invocation) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %q panicked: %v", u.Name, r)
		}
		if err != nil {
			metrics.DispatchErrors.Inc()
		}
	}()

	d.logger.Debug("dispatching", "unit", u.Name, "positional", inv.Positional != "")
	return u.Handler.Invoke(ctx, inv)
}
