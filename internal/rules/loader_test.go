package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"evcore/internal/domain"
	"evcore/internal/registry"
	"evcore/internal/trigger"
)

const sampleRules = `
actions:
  - name: auto save
    priority: critical
    cooldownSeconds: 5
  - name: suggest improvements
    enabled: false

triggers:
  - kind: keyword
    match: backup
    action: auto save
  - kind: pattern
    match: '\bdeadline\b'
    action: auto save
  - kind: interval
    intervalSeconds: 60
    action: auto save

units:
  - name: hash
    enabled: false
`

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadDirectory(t *testing.T) {
	dir := writeRules(t, "base.yaml", sampleRules)

	files, err := LoadDirectory(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files", len(files))
	}
	f := files[0]
	if len(f.Actions) != 2 || len(f.Triggers) != 3 || len(f.Units) != 1 {
		t.Errorf("parsed file = %+v", f)
	}
	if f.Actions[0].Priority != "critical" || f.Actions[0].CooldownSeconds != 5 {
		t.Errorf("action rule = %+v", f.Actions[0])
	}
	if f.Actions[1].Enabled == nil || *f.Actions[1].Enabled {
		t.Errorf("enabled override = %+v", f.Actions[1].Enabled)
	}
}

func TestLoadDirectoryMissingDir(t *testing.T) {
	files, err := LoadDirectory(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil || files != nil {
		t.Errorf("missing dir: files=%v err=%v", files, err)
	}
}

func TestLoadDirectorySkipsMalformed(t *testing.T) {
	dir := writeRules(t, "bad.yaml", "actions: [broken")
	files, err := LoadDirectory(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("malformed file not skipped: %v", files)
	}
}

func TestApply(t *testing.T) {
	dir := writeRules(t, "base.yaml", sampleRules)
	files, err := LoadDirectory(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	e := trigger.NewEngine(nil)
	e.RegisterAction(domain.Action{
		Name: "auto save", Priority: domain.PriorityHigh, Enabled: true,
		Handler: func(_ context.Context, _ map[string]any) (any, error) { return nil, nil },
	})
	e.RegisterAction(domain.Action{
		Name: "suggest improvements", Priority: domain.PriorityNormal, Enabled: true,
		Handler: func(_ context.Context, _ map[string]any) (any, error) { return nil, nil },
	})

	reg := registry.NewRegistry(registry.DuplicateReplace, nil)
	reg.Register(&domain.Unit{
		Name: "hash", Enabled: true,
		Handler: domain.HandlerFunc(func(_ context.Context, _ domain.Invocation) (any, error) { return nil, nil }),
	})

	if err := Apply(files[0], e, reg, nil); err != nil {
		t.Fatal(err)
	}

	got := e.Analyze("please backup now")
	if len(got) != 1 || got[0].Name != "auto save" {
		t.Fatalf("keyword binding missing: %v", got)
	}
	if got[0].Priority != domain.PriorityCritical {
		t.Errorf("priority override lost: %v", got[0].Priority)
	}
	if got[0].Cooldown != 5*time.Second {
		t.Errorf("cooldown override lost: %v", got[0].Cooldown)
	}

	if u, _ := reg.Get("hash"); u.Enabled {
		t.Error("unit toggle lost")
	}

	// "suggest improvements" was disabled by the manifest.
	infos := e.ListActions()
	for _, info := range infos {
		if info.Name == "suggest improvements" && info.Enabled {
			t.Error("disabled action still enabled")
		}
	}
}

func TestApplyRejectsBadRules(t *testing.T) {
	e := trigger.NewEngine(nil)
	reg := registry.NewRegistry(registry.DuplicateReplace, nil)

	cases := []File{
		{Actions: []ActionRule{{Name: ""}}},
		{Actions: []ActionRule{{Name: "x", Priority: "extreme"}}},
		{Triggers: []TriggerRule{{Kind: "keyword", Action: "x"}}},
		{Triggers: []TriggerRule{{Kind: "pattern", Match: "[", Action: "x"}}},
		{Triggers: []TriggerRule{{Kind: "interval", Action: "x"}}},
		{Triggers: []TriggerRule{{Kind: "cron", Match: "* *", Action: "x"}}},
		{Units: []UnitRule{{Name: ""}}},
	}
	for i, f := range cases {
		if err := Apply(f, e, reg, nil); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
