package domain

import (
	"context"
	"time"
)

// MemoryStore handles persistent key/value memory, interaction history, and
// learned behavior patterns.
type MemoryStore interface {
	Store(ctx context.Context, key string, value any, category string, importance int) error
	Recall(ctx context.Context, key string) (*Record, error)
	Search(ctx context.Context, query, category string, limit int) ([]Record, error)
	Delete(ctx context.Context, key string) error
	All(ctx context.Context, category string) ([]Record, error)

	LogInteraction(ctx context.Context, userText, agentText, extra string) error
	Recent(ctx context.Context, limit int) ([]Interaction, error)

	LearnPattern(ctx context.Context, pattern, description string, examples []string) error
	Patterns(ctx context.Context) ([]Pattern, error)

	Close() error
}

// Record is one memory entry. Value round-trips through JSON; AccessCount
// increments on every successful Recall.
type Record struct {
	Key         string    `json:"key"`
	Value       any       `json:"value"`
	Category    string    `json:"category"`
	Importance  int       `json:"importance"`
	AccessCount int       `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Interaction is one logged user/agent exchange.
type Interaction struct {
	ID        string    `json:"id"`
	UserText  string    `json:"user_text"`
	AgentText string    `json:"agent_text"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Pattern is a learned behavior pattern with example inputs.
type Pattern struct {
	ID          string    `json:"id"`
	Pattern     string    `json:"pattern"`
	Description string    `json:"description"`
	Examples    []string  `json:"examples,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
