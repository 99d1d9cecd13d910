// Package trigger implements the rule-based proactive action engine:
// keyword/pattern/interval triggers bound to prioritized actions with
// per-action cooldowns.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"evcore/internal/domain"
	"evcore/internal/metrics"
)

// Kind discriminates trigger matching rules.
type Kind string

const (
	KindKeyword  Kind = "keyword"
	KindPattern  Kind = "pattern"
	KindInterval Kind = "interval"
)

// Trigger is a single matching rule. Keyword triggers match on case-folded
// substring containment, pattern triggers on a case-insensitive regexp, and
// interval triggers only through the monitor loop.
type Trigger struct {
	kind     Kind
	keyword  string
	pattern  *regexp.Regexp
	interval time.Duration
}

// Keyword builds a case-insensitive substring trigger.
func Keyword(kw string) Trigger {
	return Trigger{kind: KindKeyword, keyword: strings.ToLower(kw)}
}

// Pattern builds a case-insensitive regexp trigger.
func Pattern(expr string) (Trigger, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Trigger{}, fmt.Errorf("compile trigger pattern %q: %w", expr, err)
	}
	return Trigger{kind: KindPattern, pattern: re}, nil
}

// Interval builds a time trigger that fires every period.
func Interval(period time.Duration) Trigger {
	return Trigger{kind: KindInterval, interval: period}
}

func (t Trigger) Kind() Kind { return t.kind }

// matches tests keyword and pattern triggers against the input. Interval
// triggers never match here; they are evaluated by the monitor loop.
func (t Trigger) matches(text, folded string) bool {
	switch t.kind {
	case KindKeyword:
		return strings.Contains(folded, t.keyword)
	case KindPattern:
		return t.pattern.MatchString(text)
	default:
		return false
	}
}

type actionState struct {
	domain.Action
	lastRun time.Time
}

// Engine matches input text against registered triggers and fires the bound
// actions. All shared state sits behind one mutex because the monitor
// goroutine and foreground callers run concurrently.
type Engine struct {
	mu        sync.Mutex
	actions   map[string]*actionState
	triggers  map[string][]Trigger // by action name, binding order
	bindOrder []string             // action names in first-binding order
	learned   map[string][]string
	context   map[string]any

	monitoring bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	period     time.Duration

	now    func() time.Time
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		actions:  make(map[string]*actionState),
		triggers: make(map[string][]Trigger),
		learned:  make(map[string][]string),
		context:  make(map[string]any),
		period:   time.Second,
		now:      time.Now,
		logger:   logger,
	}
}

// RegisterAction inserts or replaces an action. Replacing keeps the action's
// cooldown clock; triggers bound to the name stay bound.
func (e *Engine) RegisterAction(a domain.Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.actions[a.Name]; ok {
		st.Action = a
		e.logger.Debug("action replaced", "name", a.Name)
		return
	}
	e.actions[a.Name] = &actionState{Action: a}
	e.logger.Debug("action registered", "name", a.Name, "priority", a.Priority.String())
}

// Bind attaches a trigger to an action name. Binding before the action is
// registered is allowed; such triggers simply never fire until it is.
func (e *Engine) Bind(t Trigger, actionName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.triggers[actionName]; !ok {
		e.bindOrder = append(e.bindOrder, actionName)
	}
	e.triggers[actionName] = append(e.triggers[actionName], t)
}

// OnKeyword binds a keyword trigger to an action.
func (e *Engine) OnKeyword(keyword, actionName string) {
	e.Bind(Keyword(keyword), actionName)
}

// OnPattern binds a regexp trigger to an action.
func (e *Engine) OnPattern(expr, actionName string) error {
	t, err := Pattern(expr)
	if err != nil {
		return err
	}
	e.Bind(t, actionName)
	return nil
}

// Every binds an interval trigger to an action.
func (e *Engine) Every(period time.Duration, actionName string) {
	e.Bind(Interval(period), actionName)
}

// Analyze returns the enabled actions with at least one matching bound
// trigger, ordered by priority descending; equal priorities keep
// trigger-binding order. Matching consumes the cooldown window: an action
// admitted here has its last-run timestamp advanced even if the caller never
// executes it.
func (e *Engine) Analyze(text string) []domain.Action {
	folded := strings.ToLower(text)
	now := e.now()

	e.mu.Lock()
	var matched []domain.Action
	for _, name := range e.bindOrder {
		st, ok := e.actions[name]
		if !ok || !st.Enabled {
			continue
		}
		for _, t := range e.triggers[name] {
			if !t.matches(text, folded) {
				continue
			}
			if st.Cooldown > 0 {
				if now.Sub(st.lastRun) < st.Cooldown {
					break // cooling down; timestamp stays put
				}
				st.lastRun = now
			}
			matched = append(matched, st.Action)
			break // short-circuit OR over this action's triggers
		}
	}
	e.mu.Unlock()

	sortByPriority(matched)
	return matched
}

// Execute invokes each action in order with the engine context merged under
// the caller's context (caller keys win). A failing action is reported in
// its result entry and never aborts the batch.
func (e *Engine) Execute(ctx context.Context, actions []domain.Action, callerCtx map[string]any) []domain.ActionResult {
	results := make([]domain.ActionResult, 0, len(actions))
	for _, a := range actions {
		merged := e.mergedContext(callerCtx)
		res := domain.ActionResult{Action: a.Name}
		out, err := invoke(ctx, a, merged)
		if err != nil {
			metrics.ActionErrors.Inc()
			e.logger.Warn("action failed", "action", a.Name, "err", err)
			res.Error = err.Error()
		} else {
			metrics.ActionFires.Inc()
			res.Result = out
		}
		results = append(results, res)
	}
	return results
}

func invoke(ctx context.Context, a domain.Action, merged map[string]any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q panicked: %v", a.Name, r)
		}
	}()
	if a.Handler == nil {
		return nil, fmt.Errorf("action %q has no handler", a.Name)
	}
	return a.Handler(ctx, merged)
}

func (e *Engine) mergedContext(callerCtx map[string]any) map[string]any {
	e.mu.Lock()
	merged := make(map[string]any, len(e.context)+len(callerCtx))
	for k, v := range e.context {
		merged[k] = v
	}
	e.mu.Unlock()
	for k, v := range callerCtx {
		merged[k] = v
	}
	return merged
}

// Learn appends a pattern to the memo list for a context label. Duplicates
// are dropped; insertion order is preserved.
func (e *Engine) Learn(pattern, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.learned[label] {
		if p == pattern {
			return
		}
	}
	e.learned[label] = append(e.learned[label], pattern)
}

// Learned returns the memo list for a context label.
func (e *Engine) Learned(label string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.learned[label]))
	copy(out, e.learned[label])
	return out
}

// SetContext sets one key of the shared context merged into every execution.
func (e *Engine) SetContext(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.context[key] = value
}

// GetContext reads one key of the shared context.
func (e *Engine) GetContext(key string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.context[key]
	return v, ok
}

// Context returns a copy of the whole shared context.
func (e *Engine) Context() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.context))
	for k, v := range e.context {
		out[k] = v
	}
	return out
}

// EnableAction gates an action back on. Unknown names are a no-op.
func (e *Engine) EnableAction(name string) {
	e.setEnabled(name, true)
}

// DisableAction gates an action off without unbinding its triggers.
func (e *Engine) DisableAction(name string) {
	e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.actions[name]; ok {
		st.Enabled = enabled
	}
}

// SetPriority adjusts a registered action's priority.
func (e *Engine) SetPriority(name string, p domain.Priority) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.actions[name]; ok {
		st.Priority = p
	}
}

// SetCooldown adjusts a registered action's cooldown.
func (e *Engine) SetCooldown(name string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.actions[name]; ok {
		st.Cooldown = d
	}
}

// Unbind removes all triggers bound to an action name.
func (e *Engine) Unbind(actionName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.triggers, actionName)
	for i, n := range e.bindOrder {
		if n == actionName {
			e.bindOrder = append(e.bindOrder[:i], e.bindOrder[i+1:]...)
			break
		}
	}
}

// ListActions returns all registered actions in trigger-binding order,
// followed by actions that have no bound triggers.
func (e *Engine) ListActions() []domain.ActionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	var infos []domain.ActionInfo
	seen := make(map[string]bool)
	emit := func(name string) {
		st, ok := e.actions[name]
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		infos = append(infos, domain.ActionInfo{
			Name:        st.Name,
			Description: st.Description,
			Priority:    st.Priority.String(),
			Enabled:     st.Enabled,
		})
	}
	for _, name := range e.bindOrder {
		emit(name)
	}
	// Map order is unspecified; sort unbound action names for stability.
	var rest []string
	for name := range e.actions {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		emit(name)
	}
	return infos
}

func sortByPriority(actions []domain.Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})
}
