package skill

import (
	"context"
	"fmt"
	"strings"

	"evcore/internal/domain"
)

// memoryUnits returns the units backed by the persistent memory store.
func memoryUnits(store domain.MemoryStore) []domain.Unit {
	return []domain.Unit{
		{
			Name:        "remember",
			Description: "Store a fact: remember <key> <value> [category=... importance=...]",
			Category:    "memory",
			Enabled:     true,
			Handler:     domain.HandlerFunc(remember(store)),
		},
		{
			Name:        "recall",
			Description: "Retrieve a stored fact by key",
			Category:    "memory",
			Enabled:     true,
			Handler:     domain.HandlerFunc(recall(store)),
		},
		{
			Name:        "forget",
			Description: "Delete a stored fact by key",
			Category:    "memory",
			Enabled:     true,
			Handler:     domain.HandlerFunc(forget(store)),
		},
		{
			Name:        "memory search",
			Description: "Search stored facts: memory search <query> [category=...]",
			Category:    "memory",
			Aliases:     []string{"ms"},
			Enabled:     true,
			Handler:     domain.HandlerFunc(memorySearch(store)),
		},
	}
}

func remember(store domain.MemoryStore) func(context.Context, domain.Invocation) (any, error) {
	return func(ctx context.Context, inv domain.Invocation) (any, error) {
		text, kw := args(inv)
		key := strArg(kw, "key", "")
		value := any(strArg(kw, "value", ""))
		if key == "" {
			// "remember <key> <value...>" form.
			parts := strings.SplitN(text, " ", 2)
			if len(parts) < 2 {
				return nil, fmt.Errorf("usage: remember <key> <value>")
			}
			key, value = parts[0], parts[1]
		}
		category := strArg(kw, "category", "general")
		importance := intArg(kw, "importance", 1)
		if err := store.Store(ctx, key, value, category, importance); err != nil {
			return nil, err
		}
		return fmt.Sprintf("remembered %q", key), nil
	}
}

func recall(store domain.MemoryStore) func(context.Context, domain.Invocation) (any, error) {
	return func(ctx context.Context, inv domain.Invocation) (any, error) {
		text, kw := args(inv)
		key := strArg(kw, "key", text)
		if key == "" {
			return nil, fmt.Errorf("usage: recall <key>")
		}
		rec, err := store.Recall(ctx, key)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("nothing remembered under %q", key)
		}
		return rec, nil
	}
}

func forget(store domain.MemoryStore) func(context.Context, domain.Invocation) (any, error) {
	return func(ctx context.Context, inv domain.Invocation) (any, error) {
		text, kw := args(inv)
		key := strArg(kw, "key", text)
		if key == "" {
			return nil, fmt.Errorf("usage: forget <key>")
		}
		if err := store.Delete(ctx, key); err != nil {
			return nil, err
		}
		return fmt.Sprintf("forgot %q", key), nil
	}
}

func memorySearch(store domain.MemoryStore) func(context.Context, domain.Invocation) (any, error) {
	return func(ctx context.Context, inv domain.Invocation) (any, error) {
		text, kw := args(inv)
		query := strArg(kw, "query", text)
		if query == "" {
			return nil, fmt.Errorf("usage: memory search <query>")
		}
		category := strArg(kw, "category", "")
		limit := intArg(kw, "limit", 10)
		recs, err := store.Search(ctx, query, category, limit)
		if err != nil {
			return nil, err
		}
		return recs, nil
	}
}
