package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"otcdesk/internal/config"
	"otcdesk/internal/dispatch"
	"otcdesk/internal/storage"
)

// settingsStore serves only GetGlobalSettings; strategy resolution never
// touches the other group operations.
type settingsStore struct {
	settings storage.GlobalSettings
	err      error
}

func (s *settingsStore) GetGroupConfig(ctx context.Context, groupID int64) (*storage.GroupConfig, error) {
	return nil, storage.ErrNotFound
}

func (s *settingsStore) UpsertGroupConfig(ctx context.Context, cfg storage.GroupConfig) error {
	return nil
}

func (s *settingsStore) DeleteGroupConfig(ctx context.Context, groupID int64) error { return nil }

func (s *settingsStore) GetGlobalSettings(ctx context.Context) (storage.GlobalSettings, error) {
	if s.err != nil {
		return storage.GlobalSettings{}, s.err
	}
	return s.settings, nil
}

func (s *settingsStore) UpdateGlobalSettings(ctx context.Context, settings storage.GlobalSettings) error {
	return nil
}

func newStrategyTestApp() *App {
	cfg := &config.Config{}
	cfg.Dispatch.DefaultStrategy = "smart"
	return &App{Config: cfg, Logger: zerolog.Nop()}
}

func TestResolveStrategyUsesStoredGlobal(t *testing.T) {
	a := newStrategyTestApp()
	groups := &settingsStore{settings: storage.GlobalSettings{Strategy: "round_robin"}}

	got, err := a.resolveStrategy(context.Background(), groups, "")
	if err != nil {
		t.Fatalf("resolve strategy: %v", err)
	}
	if got != dispatch.RoundRobin {
		t.Fatalf("stored strategy must win over the config default, got %s", got)
	}
}

func TestResolveStrategyOverrideWins(t *testing.T) {
	a := newStrategyTestApp()
	groups := &settingsStore{settings: storage.GlobalSettings{Strategy: "round_robin"}}

	got, err := a.resolveStrategy(context.Background(), groups, "least_busy")
	if err != nil {
		t.Fatalf("resolve strategy: %v", err)
	}
	if got != dispatch.LeastBusy {
		t.Fatalf("explicit override must win, got %s", got)
	}
}

func TestResolveStrategyFallsBackToConfigDefault(t *testing.T) {
	a := newStrategyTestApp()

	for name, groups := range map[string]*settingsStore{
		"empty stored strategy": {settings: storage.GlobalSettings{}},
		"no settings row":       {err: storage.ErrNotFound},
	} {
		got, err := a.resolveStrategy(context.Background(), groups, "")
		if err != nil {
			t.Fatalf("%s: resolve strategy: %v", name, err)
		}
		if got != dispatch.Smart {
			t.Fatalf("%s: expected config default smart, got %s", name, got)
		}
	}
}

func TestResolveStrategyRejectsUnknownOverride(t *testing.T) {
	a := newStrategyTestApp()
	groups := &settingsStore{}

	if _, err := a.resolveStrategy(context.Background(), groups, "coin_flip"); err == nil {
		t.Fatal("unknown strategy must be rejected")
	}
}
