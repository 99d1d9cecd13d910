// Package skill provides the built-in units and proactive actions that ship
// with the agent.
package skill

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"evcore/internal/domain"
	"evcore/internal/registry"
)

var processStart = time.Now()

// RegisterBuiltins installs the built-in units into the registry. The memory
// units are skipped when store is nil.
func RegisterBuiltins(reg *registry.Registry, store domain.MemoryStore) error {
	units := []domain.Unit{
		{
			Name:        "system info",
			Description: "Show runtime and host information",
			Category:    "system",
			Aliases:     []string{"si"},
			Enabled:     true,
			Handler:     domain.HandlerFunc(systemInfo),
		},
		{
			Name:        "uptime",
			Description: "Show how long the agent has been running",
			Category:    "system",
			Enabled:     true,
			Handler:     domain.HandlerFunc(uptime),
		},
		{
			Name:        "timestamp",
			Description: "Show the current time as unix and RFC 3339",
			Category:    "system",
			Aliases:     []string{"ts", "now"},
			Enabled:     true,
			Handler:     domain.HandlerFunc(timestamp),
		},
		{
			Name:        "password generate",
			Description: "Generate a random password (length=16 special=true)",
			Category:    "utility",
			Aliases:     []string{"pw"},
			Enabled:     true,
			Handler:     domain.HandlerFunc(passwordGenerate),
		},
		{
			Name:        "url encode",
			Description: "Percent-encode text for use in a URL query",
			Category:    "utility",
			Enabled:     true,
			Handler:     domain.HandlerFunc(urlEncode),
		},
		{
			Name:        "url decode",
			Description: "Decode percent-encoded text",
			Category:    "utility",
			Enabled:     true,
			Handler:     domain.HandlerFunc(urlDecode),
		},
		{
			Name:        "base64 encode",
			Description: "Base64-encode text",
			Category:    "utility",
			Aliases:     []string{"b64e"},
			Enabled:     true,
			Handler:     domain.HandlerFunc(base64Encode),
		},
		{
			Name:        "base64 decode",
			Description: "Decode base64 text",
			Category:    "utility",
			Aliases:     []string{"b64d"},
			Enabled:     true,
			Handler:     domain.HandlerFunc(base64Decode),
		},
		{
			Name:        "hash",
			Description: "Hash text (algo=sha256|sha1|md5)",
			Category:    "utility",
			Enabled:     true,
			Handler:     domain.HandlerFunc(hashText),
		},
	}
	if store != nil {
		units = append(units, memoryUnits(store)...)
	}
	for i := range units {
		if err := reg.Register(&units[i]); err != nil {
			return fmt.Errorf("register builtin %q: %w", units[i].Name, err)
		}
	}
	return nil
}

// args merges the positional remainder's key=value pairs into the caller
// kwargs; explicit kwargs win. The part of the remainder before the first
// pair is returned as free text.
func args(inv domain.Invocation) (text string, kw map[string]any) {
	kw = make(map[string]any, len(inv.Kwargs))
	rest := inv.Positional
	if i := strings.Index(rest, "="); i >= 0 {
		// Back up to the start of the first key token.
		cut := strings.LastIndexByte(rest[:i], ' ')
		for k, v := range registry.ParseKeyValues(rest[cut+1:]) {
			kw[k] = v
		}
		rest = rest[:cut+1]
	}
	for k, v := range inv.Kwargs {
		kw[k] = v
	}
	return strings.TrimSpace(rest), kw
}

func strArg(kw map[string]any, key, fallback string) string {
	if v, ok := kw[key]; ok {
		return fmt.Sprint(v)
	}
	return fallback
}

func intArg(kw map[string]any, key string, fallback int) int {
	v, ok := kw[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		if i, err := strconv.Atoi(fmt.Sprint(v)); err == nil {
			return i
		}
	}
	return fallback
}

func boolArg(kw map[string]any, key string, fallback bool) bool {
	v, ok := kw[key]
	if !ok {
		return fallback
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if b, err := strconv.ParseBool(fmt.Sprint(v)); err == nil {
		return b
	}
	return fallback
}

func systemInfo(_ context.Context, _ domain.Invocation) (any, error) {
	host, _ := os.Hostname()
	return map[string]any{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
		"go_version": runtime.Version(),
		"hostname":   host,
		"pid":        os.Getpid(),
		"goroutines": runtime.NumGoroutine(),
	}, nil
}

func uptime(_ context.Context, _ domain.Invocation) (any, error) {
	return map[string]any{
		"uptime":  time.Since(processStart).Round(time.Second).String(),
		"started": processStart.Format(time.RFC3339),
	}, nil
}

func timestamp(_ context.Context, _ domain.Invocation) (any, error) {
	now := time.Now()
	return map[string]any{
		"unix":    now.Unix(),
		"rfc3339": now.Format(time.RFC3339),
		"utc":     now.UTC().Format(time.RFC3339),
	}, nil
}

const (
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()-_=+[]{}<>?"
)

func passwordGenerate(_ context.Context, inv domain.Invocation) (any, error) {
	_, kw := args(inv)
	length := intArg(kw, "length", 16)
	if length < 4 {
		return nil, fmt.Errorf("password length must be at least 4, got %d", length)
	}
	if length > 256 {
		return nil, fmt.Errorf("password length must be at most 256, got %d", length)
	}
	special := boolArg(kw, "special", true)

	classes := []string{lowerChars, upperChars, digitChars}
	if special {
		classes = append(classes, specialChars)
	}
	alphabet := strings.Join(classes, "")

	// One character from every class, the rest from the full alphabet.
	buf := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomByte(class)
		if err != nil {
			return nil, err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomByte(alphabet)
		if err != nil {
			return nil, err
		}
		buf = append(buf, c)
	}
	if err := shuffle(buf); err != nil {
		return nil, err
	}
	return string(buf), nil
}

func randomByte(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("random source failed: %w", err)
	}
	return alphabet[n.Int64()], nil
}

func shuffle(buf []byte) error {
	for i := len(buf) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("random source failed: %w", err)
		}
		j := n.Int64()
		buf[i], buf[j] = buf[j], buf[i]
	}
	return nil
}

func urlEncode(_ context.Context, inv domain.Invocation) (any, error) {
	text := textArg(inv)
	if text == "" {
		return nil, fmt.Errorf("nothing to encode")
	}
	return url.QueryEscape(text), nil
}

func urlDecode(_ context.Context, inv domain.Invocation) (any, error) {
	text := textArg(inv)
	if text == "" {
		return nil, fmt.Errorf("nothing to decode")
	}
	out, err := url.QueryUnescape(text)
	if err != nil {
		return nil, fmt.Errorf("invalid percent-encoding: %w", err)
	}
	return out, nil
}

func base64Encode(_ context.Context, inv domain.Invocation) (any, error) {
	text := textArg(inv)
	if text == "" {
		return nil, fmt.Errorf("nothing to encode")
	}
	return base64.StdEncoding.EncodeToString([]byte(text)), nil
}

func base64Decode(_ context.Context, inv domain.Invocation) (any, error) {
	text := textArg(inv)
	if text == "" {
		return nil, fmt.Errorf("nothing to decode")
	}
	out, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return string(out), nil
}

func hashText(_ context.Context, inv domain.Invocation) (any, error) {
	text, kw := args(inv)
	if t := strArg(kw, "text", ""); t != "" {
		text = t
	}
	if text == "" {
		return nil, fmt.Errorf("nothing to hash")
	}
	algo := strings.ToLower(strArg(kw, "algo", "sha256"))
	var sum []byte
	switch algo {
	case "sha256":
		h := sha256.Sum256([]byte(text))
		sum = h[:]
	case "sha1":
		h := sha1.Sum([]byte(text))
		sum = h[:]
	case "md5":
		h := md5.Sum([]byte(text))
		sum = h[:]
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", algo)
	}
	return map[string]any{"algo": algo, "hex": hex.EncodeToString(sum)}, nil
}

// textArg prefers the positional remainder, falling back to the "text" kwarg.
func textArg(inv domain.Invocation) string {
	if inv.Positional != "" {
		return inv.Positional
	}
	if v, ok := inv.Kwargs["text"]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
