package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Priority orders proactive actions when several match the same input.
// Higher priorities fire first.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name to its value. Empty input means
// normal priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("unknown priority: %q", s)
	}
}

// ActionHandler receives the merged engine/caller context for one firing.
type ActionHandler func(ctx context.Context, actionCtx map[string]any) (any, error)

// Action is a named capability fired by the trigger engine when one of its
// bound triggers matches. Cooldown is the minimum time between successive
// firings; zero means no cooldown.
type Action struct {
	Name        string
	Description string
	Handler     ActionHandler
	Priority    Priority
	Enabled     bool
	Cooldown    time.Duration
}

// ActionInfo is the listing payload for actions.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Enabled     bool   `json:"enabled"`
}

// ActionResult is one entry of a trigger-execution batch. Exactly one of
// Result and Error is populated; a failing action never aborts the batch.
type ActionResult struct {
	Action string `json:"action"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
