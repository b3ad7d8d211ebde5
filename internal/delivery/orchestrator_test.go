package delivery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reportbot/internal/graphs"
	"reportbot/internal/report"
	"reportbot/internal/storage"
	"reportbot/internal/transport"
	"reportbot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	name  string
	errs  []error // per-call; past the end, nil
	calls []transport.Message
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Send(_ context.Context, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, msg)
	if n := len(f.calls) - 1; n < len(f.errs) {
		return f.errs[n]
	}
	return nil
}

func (f *fakeAdapter) Close(context.Context) error { return nil }

func (f *fakeAdapter) sent() []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]transport.Message, len(f.calls))
	copy(out, f.calls)
	return out
}

type memStore struct {
	mu      sync.Mutex
	entries []storage.DeliveryEntry
}

func (m *memStore) AppendDelivery(_ context.Context, e storage.DeliveryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) Close() error { return nil }

func newTestOrchestrator(t *testing.T, cfg Config, live, sim transport.Adapter, store storage.Store) *Orchestrator {
	t.Helper()
	o := New(cfg, live, sim, nil, store, logx.Nop())
	o.sleep = func(context.Context, time.Duration) error { return nil }
	o.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return o
}

func sampleResult() *report.Result {
	return &report.Result{
		SummaryMetrics: &report.Metrics{
			UniqueClients: 10, TotalSales: 20,
			TotalWithoutIGV: 100, TotalWithIGV: 118, TotalIGVCollected: 18,
			AverageWithoutIGV: 5, MaxWithoutIGV: 40, MinWithoutIGV: 1,
		},
		SalesByHeadquarter: report.Table{{Label: "Lima", Value: 60}},
		TopModels:          report.Table{{Label: "Modelo A", Value: 30}},
		SalesByChannel:     report.Table{{Label: "Web", Value: 70}},
	}
}

func TestSendWithRetryAttemptBudget(t *testing.T) {
	t.Parallel()
	fail := errors.New("boom")
	live := &fakeAdapter{name: "test", errs: []error{fail, fail, fail, fail, fail}}
	o := newTestOrchestrator(t, Config{MaxRetries: 4}, live, &fakeAdapter{name: "sim"}, nil)

	attempts, err := o.SendWithRetry(context.Background(), live, transport.Message{To: "x", Body: "b"})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want 4", attempts)
	}
	if got := len(live.sent()); got != 4 {
		t.Fatalf("adapter invoked %d times, want 4", got)
	}
	if !strings.Contains(err.Error(), "all 4 attempts failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendWithRetryWaitsBetweenAttempts(t *testing.T) {
	t.Parallel()
	fail := errors.New("boom")
	live := &fakeAdapter{name: "test", errs: []error{fail, fail, fail}}
	o := newTestOrchestrator(t, Config{MaxRetries: 3, RetryWait: 5 * time.Second}, live, &fakeAdapter{name: "sim"}, nil)

	var waits []time.Duration
	o.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	if _, err := o.SendWithRetry(context.Background(), live, transport.Message{To: "x"}); err == nil {
		t.Fatalf("expected failure")
	}
	if len(waits) != 2 {
		t.Fatalf("slept %d times, want 2 (between attempts only, not after the last)", len(waits))
	}
	for i, d := range waits {
		if d != 5*time.Second {
			t.Fatalf("wait %d = %v, want 5s", i, d)
		}
	}
}

func TestSendWithRetryNoWaitAfterRateLimit(t *testing.T) {
	t.Parallel()
	live := &fakeAdapter{name: "test", errs: []error{transport.ErrRateLimited}}
	o := newTestOrchestrator(t, Config{MaxRetries: 5, RetryWait: 5 * time.Second}, live, &fakeAdapter{name: "sim"}, nil)

	sleeps := 0
	o.sleep = func(context.Context, time.Duration) error {
		sleeps++
		return nil
	}

	if _, err := o.SendWithRetry(context.Background(), live, transport.Message{To: "x"}); !errors.Is(err, transport.ErrRateLimited) {
		t.Fatalf("unexpected error: %v", err)
	}
	if sleeps != 0 {
		t.Fatalf("slept %d times after rate limit, want 0", sleeps)
	}
}

func TestSendWithRetryStopsOnSuccess(t *testing.T) {
	t.Parallel()
	live := &fakeAdapter{name: "test", errs: []error{errors.New("boom"), nil}}
	o := newTestOrchestrator(t, Config{MaxRetries: 5}, live, &fakeAdapter{name: "sim"}, nil)

	attempts, err := o.SendWithRetry(context.Background(), live, transport.Message{To: "x"})
	if err != nil {
		t.Fatalf("SendWithRetry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestSendWithRetryRateLimitShortCircuits(t *testing.T) {
	t.Parallel()
	wrapped := errors.Join(transport.ErrRateLimited, errors.New("code 63038"))
	live := &fakeAdapter{name: "test", errs: []error{wrapped}}
	o := newTestOrchestrator(t, Config{MaxRetries: 5}, live, &fakeAdapter{name: "sim"}, nil)

	attempts, err := o.SendWithRetry(context.Background(), live, transport.Message{To: "x"})
	if !errors.Is(err, transport.ErrRateLimited) {
		t.Fatalf("error lost rate-limit identity: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retries after rate limit)", attempts)
	}
	if got := len(live.sent()); got != 1 {
		t.Fatalf("adapter invoked %d times, want 1", got)
	}
}

func TestSendFullReportRateLimitFallsBackToSimulation(t *testing.T) {
	t.Parallel()
	live := &fakeAdapter{name: "twilio", errs: []error{transport.ErrRateLimited}}
	sim := &fakeAdapter{name: "simulation"}
	store := &memStore{}
	o := newTestOrchestrator(t, Config{Destination: "+51911111111", MaxRetries: 3}, live, sim, store)

	ok := o.SendFullReport(context.Background(), sampleResult(), SendOptions{})
	if !ok {
		t.Fatalf("expected fallback delivery to succeed")
	}
	if got := len(live.sent()); got != 1 {
		t.Fatalf("live adapter invoked %d times, want 1", got)
	}
	simSent := sim.sent()
	if len(simSent) != 1 {
		t.Fatalf("simulation adapter invoked %d times, want 1", len(simSent))
	}
	if simSent[0].To != "+51911111111" {
		t.Fatalf("simulation destination = %q", simSent[0].To)
	}
	if len(store.entries) != 1 || !store.entries[0].Simulated || !store.entries[0].OK {
		t.Fatalf("unexpected history entry: %+v", store.entries)
	}
	if store.entries[0].Error == "" {
		t.Fatalf("history entry should carry the rate-limit error")
	}
}

func TestSendFullReportSimulatedListsLocalGraphFiles(t *testing.T) {
	t.Parallel()
	outputs := t.TempDir()
	dir := filepath.Join(outputs, "graphs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"top_models.png", "sales_by_channel.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	live := &fakeAdapter{name: "twilio"}
	sim := &fakeAdapter{name: "simulation"}
	o := newTestOrchestrator(t, Config{
		Destination: "+51922222222",
		Simulate:    true,
		MaxRetries:  3,
		OutputsDir:  outputs,
	}, live, sim, nil)

	if ok := o.SendFullReport(context.Background(), sampleResult(), SendOptions{}); !ok {
		t.Fatalf("simulated send failed")
	}
	if got := len(live.sent()); got != 0 {
		t.Fatalf("live adapter invoked %d times in simulated mode", got)
	}
	body := sim.sent()[0].Body
	if !strings.Contains(body, graphsLocalHead) {
		t.Fatalf("missing local files section:\n%s", body)
	}
	for _, name := range []string{"sales_by_channel.png", "top_models.png"} {
		if !strings.Contains(body, filepath.Join(dir, name)) {
			t.Fatalf("body missing path for %s:\n%s", name, body)
		}
	}
	// Canonical ordering: channel graph listed before top models.
	if strings.Index(body, "sales_by_channel.png") > strings.Index(body, "top_models.png") {
		t.Fatalf("graph paths out of canonical order:\n%s", body)
	}
}

func TestSendFullReportSimulatedNoGraphs(t *testing.T) {
	t.Parallel()
	sim := &fakeAdapter{name: "simulation"}
	o := newTestOrchestrator(t, Config{
		Destination: "+51933333333",
		Simulate:    true,
		MaxRetries:  3,
		OutputsDir:  t.TempDir(),
	}, &fakeAdapter{name: "twilio"}, sim, nil)

	if ok := o.SendFullReport(context.Background(), sampleResult(), SendOptions{}); !ok {
		t.Fatalf("simulated send failed")
	}
	if body := sim.sent()[0].Body; !strings.Contains(body, graphsNoneNote) {
		t.Fatalf("expected no-graphs note, got:\n%s", body)
	}
}

func TestSendFullReportNoDestinationFailsFast(t *testing.T) {
	t.Parallel()
	live := &fakeAdapter{name: "twilio"}
	sim := &fakeAdapter{name: "simulation"}
	store := &memStore{}
	o := newTestOrchestrator(t, Config{MaxRetries: 3}, live, sim, store)

	if ok := o.SendFullReport(context.Background(), sampleResult(), SendOptions{}); ok {
		t.Fatalf("expected failure without destination")
	}
	if len(live.sent()) != 0 || len(sim.sent()) != 0 {
		t.Fatalf("no transport should be touched without a destination")
	}
	if len(store.entries) != 0 {
		t.Fatalf("no history entry expected, got %+v", store.entries)
	}
}

func TestSendFullReportSimulateOverride(t *testing.T) {
	t.Parallel()
	live := &fakeAdapter{name: "twilio"}
	sim := &fakeAdapter{name: "simulation"}
	o := newTestOrchestrator(t, Config{Destination: "+51944444444", MaxRetries: 3}, live, sim, nil)

	force := true
	if ok := o.SendFullReport(context.Background(), sampleResult(), SendOptions{Simulate: &force}); !ok {
		t.Fatalf("override simulated send failed")
	}
	if len(live.sent()) != 0 {
		t.Fatalf("live adapter must not be invoked under simulate override")
	}
	if len(sim.sent()) != 1 {
		t.Fatalf("simulation adapter invoked %d times, want 1", len(sim.sent()))
	}
}

func TestGraphSectionNumbersURLs(t *testing.T) {
	t.Parallel()
	o := newTestOrchestrator(t, Config{MaxRetries: 1}, &fakeAdapter{name: "a"}, &fakeAdapter{name: "b"}, nil)
	refs := []graphs.Reference{
		{Title: "Ventas por Canal", Path: "a.png"},
		{Title: "Top Modelos", Path: "b.png"},
	}
	got := o.graphSection(refs, []string{"https://i/1", "https://i/2"}, false)
	want := graphsHeader + "\n 1. Ventas por Canal: https://i/1\n 2. Top Modelos: https://i/2"
	if got != want {
		t.Fatalf("graphSection = %q, want %q", got, want)
	}
	if sec := o.graphSection(refs, nil, false); sec != graphsLocalNote {
		t.Fatalf("live no-URL section = %q", sec)
	}
}
