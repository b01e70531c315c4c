// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/deckagent/deckagent/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	config.FromEnv(cfg)
	applyCommandLineFlagsToConfig(cfg)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestApplyCommandLineFlags(t *testing.T) {
	cfg := config.DefaultConfig()

	*transport = "sse"
	*port = 9191
	*aiProvider = "anthropic"
	*aiMaxIterations = 7
	defer func() {
		*transport = ""
		*port = 0
		*aiProvider = ""
		*aiMaxIterations = 0
	}()

	applyCommandLineFlagsToConfig(cfg)

	if cfg.Server.TransportMode != "sse" {
		t.Errorf("TransportMode = %q, want sse", cfg.Server.TransportMode)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.AI.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", cfg.AI.Provider)
	}
	if cfg.AI.MaxToolIterations != 7 {
		t.Errorf("MaxToolIterations = %d, want 7", cfg.AI.MaxToolIterations)
	}
}

func TestCreateAppAndShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Logging.FilePath = filepath.Join(t.TempDir(), "test.log")
	cfg.Server.TransportMode = "sse"
	cfg.Server.Port = 0 // skipped: server not started in this test

	app, err := createApp(cfg)
	if err != nil {
		t.Fatalf("createApp: %v", err)
	}
	if !app.isPrimary {
		t.Error("expected first instance to be primary")
	}
	if app.store == nil {
		t.Fatal("expected a store")
	}

	// The scheduler starts and stops cleanly without serving transports.
	ctx, cancel := context.WithCancel(context.Background())
	app.scheduler.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := app.scheduler.Stop(); err != nil {
		t.Fatalf("scheduler stop: %v", err)
	}
	if err := app.store.Close(); err != nil {
		t.Fatalf("store close: %v", err)
	}
	if app.lock != nil {
		if err := app.lock.Release(); err != nil {
			t.Fatalf("lock release: %v", err)
		}
	}
}
