package skill

import (
	"context"
	"strings"
	"testing"

	"evcore/internal/domain"
	"evcore/internal/memory"
	"evcore/internal/registry"
)

func newTestRegistry(t *testing.T) (*registry.Registry, *memory.SQLiteStore) {
	t.Helper()
	store, err := memory.NewSQLiteStore(t.TempDir()+"/test.db", nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.NewRegistry(registry.DuplicateReplace, nil)
	if err := RegisterBuiltins(reg, store); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return reg, store
}

func dispatchText(t *testing.T, reg *registry.Registry, command string) any {
	t.Helper()
	d := registry.NewDispatcher(reg, nil, nil)
	out, err := d.Dispatch(context.Background(), command, nil)
	if err != nil {
		t.Fatalf("Dispatch(%q): %v", command, err)
	}
	return out
}

func TestPasswordGenerateDefaults(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out := dispatchText(t, reg, "password generate")
	pw, ok := out.(string)
	if !ok {
		t.Fatalf("result type = %T, want string", out)
	}
	if len(pw) != 16 {
		t.Errorf("length = %d, want 16", len(pw))
	}
	for _, class := range []string{lowerChars, upperChars, digitChars, specialChars} {
		if !strings.ContainsAny(pw, class) {
			t.Errorf("password %q missing a character from %q", pw, class)
		}
	}
}

func TestPasswordGenerateLengthAndClasses(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out := dispatchText(t, reg, "password generate length=32 special=false")
	pw := out.(string)
	if len(pw) != 32 {
		t.Errorf("length = %d, want 32", len(pw))
	}
	if strings.ContainsAny(pw, specialChars) {
		t.Errorf("password %q contains special characters despite special=false", pw)
	}
}

func TestPasswordGenerateRejectsTinyLength(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := registry.NewDispatcher(reg, nil, nil)
	if _, err := d.Dispatch(context.Background(), "password generate length=2", nil); err == nil {
		t.Error("expected error for length=2")
	}
}

func TestBase64RoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)

	encoded := dispatchText(t, reg, "base64 encode hello world").(string)
	decoded := dispatchText(t, reg, "base64 decode "+encoded).(string)
	if decoded != "hello world" {
		t.Errorf("round trip = %q, want hello world", decoded)
	}
}

func TestBase64Aliases(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out := dispatchText(t, reg, `b64e text="abc"`)
	if out.(string) != "YWJj" {
		t.Errorf("b64e = %v, want YWJj", out)
	}
}

func TestURLEncodeDecode(t *testing.T) {
	reg, _ := newTestRegistry(t)

	encoded := dispatchText(t, reg, "url encode a b&c").(string)
	if encoded != "a+b%26c" {
		t.Errorf("encoded = %q", encoded)
	}
	decoded := dispatchText(t, reg, "url decode "+encoded).(string)
	if decoded != "a b&c" {
		t.Errorf("decoded = %q", decoded)
	}
}

func TestHashKnownVector(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out := dispatchText(t, reg, "hash abc").(map[string]any)
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if out["hex"] != want {
		t.Errorf("sha256(abc) = %v, want %s", out["hex"], want)
	}

	out = dispatchText(t, reg, "hash abc algo=md5").(map[string]any)
	if out["hex"] != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("md5(abc) = %v", out["hex"])
	}
}

func TestHashRejectsUnknownAlgo(t *testing.T) {
	reg, _ := newTestRegistry(t)
	d := registry.NewDispatcher(reg, nil, nil)
	if _, err := d.Dispatch(context.Background(), "hash abc algo=crc32", nil); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestSystemInfoAlias(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out := dispatchText(t, reg, "si").(map[string]any)
	if out["os"] == "" || out["cpus"].(int) < 1 {
		t.Errorf("unexpected system info: %v", out)
	}
}

func TestRememberRecallForget(t *testing.T) {
	reg, _ := newTestRegistry(t)

	dispatchText(t, reg, "remember editor neovim with plugins")

	out := dispatchText(t, reg, "recall editor")
	rec, ok := out.(*domain.Record)
	if !ok {
		t.Fatalf("recall result type = %T", out)
	}
	if rec.Value != "neovim with plugins" {
		t.Errorf("value = %v", rec.Value)
	}

	dispatchText(t, reg, "forget editor")
	d := registry.NewDispatcher(reg, nil, nil)
	if _, err := d.Dispatch(context.Background(), "recall editor", nil); err == nil {
		t.Error("expected error recalling a forgotten key")
	}
}

func TestMemorySearchUnit(t *testing.T) {
	reg, _ := newTestRegistry(t)

	dispatchText(t, reg, "remember standup daily at 10am category=work importance=3")
	dispatchText(t, reg, "remember retro friday category=work")

	out := dispatchText(t, reg, "memory search standup")
	recs, ok := out.([]domain.Record)
	if !ok {
		t.Fatalf("search result type = %T", out)
	}
	if len(recs) != 1 || recs[0].Key != "standup" {
		t.Errorf("search results = %+v", recs)
	}
	if recs[0].Importance != 3 {
		t.Errorf("importance = %d, want 3", recs[0].Importance)
	}
}

func TestArgsHelper(t *testing.T) {
	text, kw := args(domain.Invocation{Positional: "some text length=20 special=false"})
	if text != "some text" {
		t.Errorf("text = %q", text)
	}
	if intArg(kw, "length", 0) != 20 {
		t.Errorf("length = %v", kw["length"])
	}
	if boolArg(kw, "special", true) {
		t.Error("special should parse as false")
	}

	// Explicit kwargs win over positional pairs.
	_, kw = args(domain.Invocation{
		Positional: "length=20",
		Kwargs:     map[string]any{"length": 8},
	})
	if intArg(kw, "length", 0) != 8 {
		t.Errorf("kwargs should win, got %v", kw["length"])
	}
}
