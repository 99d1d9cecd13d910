// Package rules loads user-defined trigger rules and unit overrides from
// YAML manifests and applies them to the engine and registry.
package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"evcore/internal/domain"
	"evcore/internal/registry"
	"evcore/internal/trigger"

	"gopkg.in/yaml.v3"
)

// File is one rules manifest. Actions declared here override or extend the
// built-in set; triggers bind to actions by name; units toggles enable or
// disable registered units.
type File struct {
	Actions  []ActionRule  `yaml:"actions"`
	Triggers []TriggerRule `yaml:"triggers"`
	Units    []UnitRule    `yaml:"units"`
}

type ActionRule struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Priority        string `yaml:"priority"`
	CooldownSeconds int    `yaml:"cooldownSeconds"`
	Enabled         *bool  `yaml:"enabled"`
}

type TriggerRule struct {
	Kind            string `yaml:"kind"` // keyword | pattern | interval
	Match           string `yaml:"match"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
	Action          string `yaml:"action"`
}

type UnitRule struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LoadDirectory reads every .yaml/.yml manifest in dir. A missing directory
// is not an error; a malformed file is skipped with a warning.
func LoadDirectory(dir string, logger *slog.Logger) ([]File, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("rules directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read rules file", "path", path, "err", err)
			continue
		}

		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			logger.Warn("cannot parse rules file", "path", path, "err", err)
			continue
		}

		logger.Info("loaded rules file", "path", path,
			"actions", len(f.Actions), "triggers", len(f.Triggers))
		files = append(files, f)
	}
	return files, nil
}

// Apply installs a manifest's rules. Action rules update existing actions in
// place (priority, cooldown, enabled gate); rules naming an unregistered
// action are a no-op. Triggers may bind before their action is registered.
func Apply(f File, e *trigger.Engine, reg *registry.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, a := range f.Actions {
		if a.Name == "" {
			return fmt.Errorf("action rule missing a name")
		}
		p, err := domain.ParsePriority(a.Priority)
		if err != nil {
			return fmt.Errorf("action %q: %w", a.Name, err)
		}
		e.SetPriority(a.Name, p)
		if a.CooldownSeconds > 0 {
			e.SetCooldown(a.Name, time.Duration(a.CooldownSeconds)*time.Second)
		}
		if a.Enabled != nil {
			if *a.Enabled {
				e.EnableAction(a.Name)
			} else {
				e.DisableAction(a.Name)
			}
		}
	}

	for _, t := range f.Triggers {
		if t.Action == "" {
			return fmt.Errorf("trigger rule missing an action name")
		}
		switch strings.ToLower(t.Kind) {
		case "keyword":
			if t.Match == "" {
				return fmt.Errorf("keyword trigger for %q missing match", t.Action)
			}
			e.OnKeyword(t.Match, t.Action)
		case "pattern":
			if t.Match == "" {
				return fmt.Errorf("pattern trigger for %q missing match", t.Action)
			}
			if err := e.OnPattern(t.Match, t.Action); err != nil {
				return fmt.Errorf("pattern trigger for %q: %w", t.Action, err)
			}
		case "interval":
			if t.IntervalSeconds <= 0 {
				return fmt.Errorf("interval trigger for %q needs intervalSeconds > 0", t.Action)
			}
			e.Every(time.Duration(t.IntervalSeconds)*time.Second, t.Action)
		default:
			return fmt.Errorf("unknown trigger kind %q for %q", t.Kind, t.Action)
		}
	}

	for _, u := range f.Units {
		if u.Name == "" {
			return fmt.Errorf("unit rule missing a name")
		}
		if u.Enabled {
			reg.Enable(u.Name)
		} else {
			reg.Disable(u.Name)
		}
	}
	return nil
}
