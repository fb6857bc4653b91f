package ledgerd

import (
	"flag"
	"io"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("LEDGERD_PORT", "")

	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("LEDGERD_PORT", "9090")

	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
}

func TestParseConfigFlagOverridesEnv(t *testing.T) {
	t.Setenv("LEDGERD_PORT", "9090")

	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"--port", "7070"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("expected port 7070, got %d", cfg.Port)
	}
}

func TestParseConfigBadFlag(t *testing.T) {
	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"--port", "not-a-number"}); err == nil {
		t.Fatal("expected error for invalid port")
	}
}
