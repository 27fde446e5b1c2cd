package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pountzas/plix/internal/config"
)

func TestPreflightIngestRejectsBadDataDir(t *testing.T) {
	dir := t.TempDir()
	notADir := filepath.Join(dir, "data")
	if err := os.WriteFile(notADir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &config.Config{}
	cfg.Paths.DataDir = notADir
	cfg.Paths.LogDir = dir

	err := preflightIngest(cfg)
	if err == nil {
		t.Fatal("expected preflight failure for non-directory data dir")
	}
	if !strings.Contains(err.Error(), "Data directory") {
		t.Fatalf("failure does not name the check: %v", err)
	}
}

func TestPreflightIngestPassesOnWritableDirs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()

	if err := preflightIngest(cfg); err != nil {
		t.Fatalf("preflight: %v", err)
	}
}
