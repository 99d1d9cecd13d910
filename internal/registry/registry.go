// Package registry holds the command registry and the free-text dispatcher.
package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"evcore/internal/domain"
)

// DuplicatePolicy controls what Register does when a unit name is reused.
type DuplicatePolicy string

const (
	// DuplicateReplace keeps the historic behavior: last write wins.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateError rejects re-registration of an existing name.
	DuplicateError DuplicatePolicy = "error"
)

// Registry holds all registered units in registration order. All access is
// mutex-guarded because the trigger monitor goroutine and foreground dispatch
// may touch it concurrently.
type Registry struct {
	mu      sync.RWMutex
	units   []*domain.Unit
	byName  map[string]*domain.Unit // case-folded name -> unit
	byAlias map[string]*domain.Unit // case-folded alias -> unit
	byCat   map[string][]string     // category -> names, insertion order
	policy  DuplicatePolicy
	logger  *slog.Logger
}

func NewRegistry(policy DuplicatePolicy, logger *slog.Logger) *Registry {
	if policy == "" {
		policy = DuplicateReplace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName:  make(map[string]*domain.Unit),
		byAlias: make(map[string]*domain.Unit),
		byCat:   make(map[string][]string),
		policy:  policy,
		logger:  logger,
	}
}

// Register inserts a unit by name. Duplicate names follow the configured
// policy; alias collisions with any existing name or alias always error.
func (r *Registry) Register(u *domain.Unit) error {
	if u == nil || u.Name == "" {
		return fmt.Errorf("unit must have a name")
	}
	if u.Handler == nil {
		return fmt.Errorf("unit %q must have a handler", u.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	folded := fold(u.Name)
	existing := r.byName[folded]
	if existing != nil && r.policy == DuplicateError {
		return fmt.Errorf("unit %q already registered", u.Name)
	}

	for _, a := range u.Aliases {
		fa := fold(a)
		if owner, ok := r.byName[fa]; ok && owner != existing {
			return fmt.Errorf("alias %q collides with unit %q", a, owner.Name)
		}
		if owner, ok := r.byAlias[fa]; ok && owner != existing {
			return fmt.Errorf("alias %q collides with an alias of unit %q", a, owner.Name)
		}
	}

	if existing != nil {
		r.replace(existing, u, folded)
		r.logger.Debug("unit replaced", "name", u.Name)
		return nil
	}

	r.units = append(r.units, u)
	r.byName[folded] = u
	for _, a := range u.Aliases {
		r.byAlias[fold(a)] = u
	}
	r.byCat[u.Category] = append(r.byCat[u.Category], u.Name)
	r.logger.Debug("unit registered", "name", u.Name, "category", u.Category)
	return nil
}

// replace swaps a unit in place, keeping its registration-order slot.
func (r *Registry) replace(old, u *domain.Unit, folded string) {
	for i, existing := range r.units {
		if existing == old {
			r.units[i] = u
			break
		}
	}
	for _, a := range old.Aliases {
		delete(r.byAlias, fold(a))
	}
	r.byName[folded] = u
	for _, a := range u.Aliases {
		r.byAlias[fold(a)] = u
	}
	if old.Category != u.Category {
		r.byCat[old.Category] = removeName(r.byCat[old.Category], old.Name)
		r.byCat[u.Category] = append(r.byCat[u.Category], u.Name)
	}
}

// Get returns the unit with the given name (case-insensitive). No fuzzy
// matching, no alias resolution.
func (r *Registry) Get(name string) (*domain.Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[fold(name)]
	return u, ok
}

// List returns all enabled, non-hidden units in registration order,
// optionally filtered to one category.
func (r *Registry) List(category string) []domain.UnitInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []domain.UnitInfo
	if category != "" {
		for _, name := range r.byCat[category] {
			if u, ok := r.byName[fold(name)]; ok && u.Enabled && !u.Hidden {
				infos = append(infos, info(u))
			}
		}
		return infos
	}
	for _, u := range r.units {
		if u.Enabled && !u.Hidden {
			infos = append(infos, info(u))
		}
	}
	return infos
}

// Categories returns all category labels that have at least one unit,
// in first-registration order.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var cats []string
	for _, u := range r.units {
		if !seen[u.Category] {
			seen[u.Category] = true
			cats = append(cats, u.Category)
		}
	}
	return cats
}

// Enable marks a unit dispatchable again. Idempotent; unknown names are a
// no-op.
func (r *Registry) Enable(name string) {
	r.setEnabled(name, true)
}

// Disable hides a unit from dispatch and listing. Idempotent; unknown names
// are a no-op.
func (r *Registry) Disable(name string) {
	r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byName[fold(name)]; ok {
		u.Enabled = enabled
	}
}

// Len reports the number of registered units, including disabled and hidden
// ones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// snapshot returns the units slice for a dispatch scan. Callers must not
// mutate the returned units outside the registry's own methods.
func (r *Registry) snapshot() []*domain.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Unit, len(r.units))
	copy(out, r.units)
	return out
}

// lookupFolded resolves a case-folded name through the name table first,
// then the alias table.
func (r *Registry) lookupFolded(folded string) (*domain.Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byName[folded]; ok {
		return u, true
	}
	u, ok := r.byAlias[folded]
	return u, ok
}

func info(u *domain.Unit) domain.UnitInfo {
	return domain.UnitInfo{
		Name:        u.Name,
		Description: u.Description,
		Category:    u.Category,
		Aliases:     u.Aliases,
		Enabled:     u.Enabled,
	}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
