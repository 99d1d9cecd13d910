package skill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"evcore/internal/domain"
	"evcore/internal/trigger"
)

// RegisterActions installs the built-in proactive actions and their trigger
// bindings into the engine.
func RegisterActions(e *trigger.Engine, store domain.MemoryStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	e.RegisterAction(domain.Action{
		Name:        "auto save",
		Description: "Persist the current input when the user mentions saving",
		Priority:    domain.PriorityHigh,
		Enabled:     true,
		Cooldown:    30 * time.Second,
		Handler:     autoSave(store),
	})
	e.OnKeyword("save", "auto save")

	e.RegisterAction(domain.Action{
		Name:        "suggest improvements",
		Description: "Offer help when the input mentions slowness or failures",
		Priority:    domain.PriorityNormal,
		Enabled:     true,
		Cooldown:    time.Minute,
		Handler:     suggestImprovements,
	})
	if err := e.OnPattern(`\b(slow|error|fail(ed|ing)?|broken)\b`, "suggest improvements"); err != nil {
		return err
	}

	e.RegisterAction(domain.Action{
		Name:        "memory digest",
		Description: "Summarize recently stored facts",
		Priority:    domain.PriorityLow,
		Enabled:     true,
		Handler:     memoryDigest(store),
	})
	e.Every(time.Hour, "memory digest")

	return nil
}

func autoSave(store domain.MemoryStore) domain.ActionHandler {
	return func(ctx context.Context, actionCtx map[string]any) (any, error) {
		input, _ := actionCtx["input"].(string)
		if input == "" {
			return nil, fmt.Errorf("no input to save")
		}
		if store == nil {
			return nil, fmt.Errorf("memory store unavailable")
		}
		key := fmt.Sprintf("autosave %d", time.Now().Unix())
		if err := store.Store(ctx, key, input, "autosave", 1); err != nil {
			return nil, err
		}
		return map[string]any{"saved": key}, nil
	}
}

func suggestImprovements(_ context.Context, actionCtx map[string]any) (any, error) {
	input, _ := actionCtx["input"].(string)
	return map[string]any{
		"suggestion": "something went wrong; try 'memory search' for similar past issues",
		"input":      input,
	}, nil
}

func memoryDigest(store domain.MemoryStore) domain.ActionHandler {
	return func(ctx context.Context, actionCtx map[string]any) (any, error) {
		if store == nil {
			return nil, fmt.Errorf("memory store unavailable")
		}
		recs, err := store.All(ctx, "")
		if err != nil {
			return nil, err
		}
		byCategory := make(map[string]int)
		for _, r := range recs {
			byCategory[r.Category]++
		}
		return map[string]any{"total": len(recs), "by_category": byCategory}, nil
	}
}
