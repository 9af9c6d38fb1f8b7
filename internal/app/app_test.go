package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/verdict/internal/config"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/oracle"
	"github.com/newthinker/verdict/internal/storage/ledger"
)

type mockProvider struct {
	price float64
	calls int
}

func (m *mockProvider) Name() string { return "mock" }
func (m *mockProvider) FetchQuote(ctx context.Context, pair string) (*core.Quote, error) {
	m.calls++
	return &core.Quote{Symbol: pair, Price: m.price, Source: "mock"}, nil
}
func (m *mockProvider) FetchCandles(ctx context.Context, pair string, since, until time.Time, interval string) ([]core.Candle, error) {
	return nil, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Ledger.Type = "memory"
	cfg.Scheduler.Enabled = false
	return cfg
}

func TestApp_New(t *testing.T) {
	a, err := New(testConfig(t), nil, WithProviders(&mockProvider{price: 100}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Engine() == nil || a.Store() == nil || a.Jobs() == nil {
		t.Fatal("expected engine, store and jobs to be built")
	}
	if a.Metrics() == nil {
		t.Error("expected metrics registry when metrics are enabled")
	}
}

func TestApp_NewRejectsBadConfig(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("nil config: expected CONFIG_MISSING, got %v", err)
	}

	cfg := testConfig(t)
	cfg.Ledger.Type = "postgres"
	if _, err := New(cfg, nil); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("bad ledger: expected CONFIG_INVALID, got %v", err)
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	a, err := New(cfg, nil, WithProviders(&mockProvider{price: 100}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Metrics() != nil {
		t.Error("expected no metrics registry")
	}
}

func TestApp_RunOnce(t *testing.T) {
	provider := &mockProvider{price: 95000}
	a, err := New(testConfig(t), nil, WithProviders(provider))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	call := core.Call{
		ID:         "c1",
		CreatedAt:  time.Now().Add(-24*time.Hour - 30*time.Minute),
		EntryPrice: 90000,
		Direction:  core.DirectionUp,
		Confidence: 0.7,
	}
	if err := ledger.Append(ctx, a.Store(), call, time.Now()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	result, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if result.Checked != 1 || result.Correct != 1 {
		t.Errorf("expected 1 checked and correct, got %d/%d", result.Checked, result.Correct)
	}
	if result.Source != "mock" {
		t.Errorf("expected source mock, got %q", result.Source)
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.AccuracyAll != 100 {
		t.Errorf("expected 100%% accuracy, got %f", stats.AccuracyAll)
	}
}

func TestApp_RunOnceSkipsOracleWhenNothingDue(t *testing.T) {
	provider := &mockProvider{price: 95000}
	a, err := New(testConfig(t), nil, WithProviders(provider))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("expected no oracle calls for an empty ledger, got %d", provider.calls)
	}
}

func TestApp_LocalFSLedgerAndArchive(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Ledger.Type = "localfs"
	cfg.Ledger.Path = filepath.Join(dir, "ledger")
	cfg.Archive.Type = "localfs"
	cfg.Archive.Path = filepath.Join(dir, "archive")

	a, err := New(cfg, nil, WithProviders(&mockProvider{price: 100}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Ledger.Path, "signals.json")); err != nil {
		t.Errorf("expected ledger document on disk: %v", err)
	}
}

func TestApp_RedisLedgerBuildsLazily(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Type = "redis"
	cfg.Ledger.Redis.Addr = "127.0.0.1:1"

	a, err := New(cfg, nil, WithProviders(&mockProvider{price: 100}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.Store().(*ledger.RedisStore); !ok {
		t.Errorf("expected redis store, got %T", a.Store())
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestApp_WithStore(t *testing.T) {
	store := ledger.NewMemoryStore()
	a, err := New(testConfig(t), nil, WithProviders(&mockProvider{price: 100}), WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Store() != store {
		t.Error("expected the supplied store")
	}
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil, WithProviders(&mockProvider{price: 100}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

var _ oracle.Provider = (*mockProvider)(nil)
