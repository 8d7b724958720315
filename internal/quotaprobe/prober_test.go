package quotaprobe_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ladzaretti/codex-switch/internal/quotaprobe"
	"github.com/ladzaretti/codex-switch/internal/store"
)

const testPlaintext = `{"tokens":{"access_token":"tok-123"}}`

func newOpts(primary, secondary, fallback string) quotaprobe.Options {
	opts := quotaprobe.NewOptions()
	opts.Endpoints = quotaprobe.Endpoints{
		PrimaryUsage:   primary,
		SecondaryUsage: secondary,
		FallbackStatus: fallback,
	}
	opts.RequestTimeout = 2 * time.Second
	opts.CacheTTL = 50 * time.Millisecond

	return opts
}

func TestProber_PreciseWinsOverStatus(t *testing.T) {
	precise := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Codex-Remaining", "0.42")
		w.Header().Set("X-Codex-Unit", "requests")
		w.WriteHeader(http.StatusOK)
	}))
	defer precise.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fallback.Close()

	p := quotaprobe.New(nil, newOpts(precise.URL, precise.URL, fallback.URL))

	snap, err := p.Refresh(t.Context(), "acc-1", []byte(testPlaintext), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if snap.Mode != store.ModePrecise || snap.Confidence != quotaprobe.ConfidencePrimaryPrecise {
		t.Errorf("expected primary precise win, got %+v", snap)
	}

	if snap.RemainingValue == nil || *snap.RemainingValue != 0.42 {
		t.Errorf("expected remaining 0.42, got %+v", snap.RemainingValue)
	}
}

func TestProber_FallsBackToStatusWhenPrimaryFails(t *testing.T) {
	precise := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer precise.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer fallback.Close()

	p := quotaprobe.New(nil, newOpts(precise.URL, precise.URL, fallback.URL))

	snap, err := p.Refresh(t.Context(), "acc-1", []byte(testPlaintext), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if snap.Mode != store.ModeStatus || snap.QuotaState != store.StateNearLimit || snap.Confidence != quotaprobe.ConfidenceStatus {
		t.Errorf("expected degraded status near_limit snapshot, got %+v", snap)
	}
}

func TestProber_AllProbesFailDegradesToUnknown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	down.Close() // closed immediately: connection refused on every request

	p := quotaprobe.New(nil, newOpts(down.URL, down.URL, down.URL))

	snap, err := p.Refresh(t.Context(), "acc-1", []byte(testPlaintext), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if snap.Mode != store.ModeUnknown || snap.Confidence != quotaprobe.ConfidenceUnknown || snap.Reason == nil {
		t.Errorf("expected unknown degraded snapshot, got %+v", snap)
	}
}

func TestProber_CachesWithinTTLAndBypassesWhenForced(t *testing.T) {
	var calls int

	precise := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Codex-Remaining", "1.0")
		w.WriteHeader(http.StatusOK)
	}))
	defer precise.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fallback.Close()

	p := quotaprobe.New(nil, newOpts(precise.URL, precise.URL, fallback.URL))

	first, err := p.Refresh(t.Context(), "acc-1", []byte(testPlaintext), false)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	second, err := p.Refresh(t.Context(), "acc-1", []byte(testPlaintext), false)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected cached snapshot id to match, got %q vs %q", second.ID, first.ID)
	}

	third, err := p.Refresh(t.Context(), "acc-1", []byte(testPlaintext), true)
	if err != nil {
		t.Fatalf("forced refresh: %v", err)
	}

	if third.ID == first.ID {
		t.Error("expected forced refresh to produce a new snapshot id")
	}

	if calls < 2 {
		t.Errorf("expected at least 2 primary-endpoint calls (initial + forced), got %d", calls)
	}
}

func TestProber_MissingTokenDegradesWithoutProbing(t *testing.T) {
	called := false

	precise := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer precise.Close()

	p := quotaprobe.New(nil, newOpts(precise.URL, precise.URL, precise.URL))

	snap, err := p.Refresh(t.Context(), "acc-1", []byte(`{}`), false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if snap.Mode != store.ModeUnknown {
		t.Errorf("expected unknown mode for missing token, got %+v", snap)
	}

	if called {
		t.Error("expected no HTTP call when no bearer token is present")
	}
}
