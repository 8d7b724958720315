// Package quotaprobe estimates an account's remaining upstream quota
// by racing a precise primary probe against a coarse status fallback,
// caching the result per account, and bounding overall concurrency
// across a dashboard-wide refresh.
package quotaprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ladzaretti/codex-switch/internal/store"
)

// Confidence values per spec.md §4.6.
const (
	ConfidencePrimaryPrecise   = 90
	ConfidenceSecondaryPrecise = 80
	ConfidenceStatus           = 50
	ConfidenceUnknown          = 0
)

// UserAgent is sent on every probe request. It identifies codex-switch
// itself; it is not the CLI's own UA string.
const UserAgent = "codex-switch/1.0 (+https://github.com/ladzaretti/codex-switch)"

const codexOrigin = "https://chatgpt.com"

// Endpoints is the compatibility-contract set of URLs spec.md §6 binds
// exactly: two primary (precise) endpoints tried in order, and a
// fallback (status) mirror.
type Endpoints struct {
	PrimaryUsage   string
	SecondaryUsage string
	FallbackStatus string
}

// DefaultEndpoints matches spec.md §6 verbatim.
var DefaultEndpoints = Endpoints{
	PrimaryUsage:   "https://chatgpt.com/backend-api/api/codex/usage",
	SecondaryUsage: "https://chatgpt.com/backend-api/wham/usage",
	FallbackStatus: "https://chat.openai.com/backend-api/api/codex/usage",
}

// Headers names the response headers parsed from a precise probe.
// Overridable per ResolvedConfig.Probe.Headers, per spec.md §9's open
// question about header-name drift.
type Headers struct {
	Remaining string
	ResetAt   string
	Unit      string
}

// DefaultHeaders matches spec.md §6 verbatim.
var DefaultHeaders = Headers{
	Remaining: "X-Codex-Remaining",
	ResetAt:   "X-Codex-Reset-At",
	Unit:      "X-Codex-Unit",
}

// Options configures a Prober's endpoints, timeouts, cache TTL, and
// concurrency bound. The zero value is not usable; use NewOptions for
// spec.md §9 defaults.
type Options struct {
	Endpoints      Endpoints
	Headers        Headers
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	MaxConcurrency int64
}

// NewOptions returns spec.md §4.8's documented defaults:
// timeout_ms=8000, cache_ttl_s=60, max_concurrency=4.
func NewOptions() Options {
	return Options{
		Endpoints:      DefaultEndpoints,
		Headers:        DefaultHeaders,
		RequestTimeout: 8 * time.Second,
		CacheTTL:       60 * time.Second,
		MaxConcurrency: 4,
	}
}

// TokenExtractor pulls the bearer token out of an account's decrypted
// live-auth-file plaintext, without the prober ever needing to parse
// the CLI's full auth schema.
type TokenExtractor func(plaintext []byte) (string, error)

// ExtractAccessToken reads the conventional `tokens.access_token`
// field spec.md §6 names, falling back to a bare top-level
// `access_token` field for CLIs that don't nest it.
func ExtractAccessToken(plaintext []byte) (string, error) {
	var doc struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
		AccessToken string `json:"access_token"`
	}

	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return "", fmt.Errorf("parse live auth file: %w", err)
	}

	if doc.Tokens.AccessToken != "" {
		return doc.Tokens.AccessToken, nil
	}

	if doc.AccessToken != "" {
		return doc.AccessToken, nil
	}

	return "", fmt.Errorf("no access token found in live auth file")
}

type cacheEntry struct {
	snapshot store.QuotaSnapshot
	expires  time.Time
}

// Prober races the primary/secondary precise endpoints against the
// status fallback for a single account, grades and caches the result,
// and bounds fan-out across a dashboard-wide refresh with a shared
// semaphore.
type Prober struct {
	httpClient *http.Client
	opts       Options
	extract    TokenExtractor
	sem        *semaphore.Weighted

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New constructs a Prober. httpClient may be nil, in which case a
// client with a pooling transport and no per-client timeout (timeouts
// are applied per request via context) is created.
func New(httpClient *http.Client, opts Options) *Prober {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives:   false,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		}
	}

	return &Prober{
		httpClient: httpClient,
		opts:       opts,
		extract:    ExtractAccessToken,
		sem:        semaphore.NewWeighted(opts.MaxConcurrency),
		cache:      make(map[string]cacheEntry),
	}
}

// WithTokenExtractor overrides how the bearer token is pulled from an
// account's live-auth-file plaintext, for CLIs whose auth schema
// diverges from the conventional tokens.access_token shape.
func (p *Prober) WithTokenExtractor(extract TokenExtractor) {
	p.extract = extract
}

// Refresh produces exactly one QuotaSnapshot for account, consulting
// the TTL cache unless force is true. plaintext is the account's
// already-unwrapped live-auth-file content, used only to extract the
// bearer token; Refresh never touches the live file on disk.
func (p *Prober) Refresh(ctx context.Context, accountID string, plaintext []byte, force bool) (store.QuotaSnapshot, error) {
	if !force {
		if cached, ok := p.cached(accountID); ok {
			return cached, nil
		}
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return store.QuotaSnapshot{}, fmt.Errorf("acquire probe semaphore: %w", err)
	}
	defer p.sem.Release(1)

	token, err := p.extract(plaintext)
	if err != nil {
		snap := p.unknownSnapshot(accountID, "no bearer token in live auth file")
		p.store(accountID, snap)

		return snap, nil
	}

	snap := p.race(ctx, accountID, token)
	p.store(accountID, snap)

	return snap, nil
}

func (p *Prober) cached(accountID string) (store.QuotaSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.cache[accountID]
	if !ok || time.Now().After(entry.expires) {
		return store.QuotaSnapshot{}, false
	}

	return entry.snapshot, true
}

func (p *Prober) store(accountID string, snap store.QuotaSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache[accountID] = cacheEntry{snapshot: snap, expires: time.Now().Add(p.opts.CacheTTL)}
}

// race runs the precise and status probes concurrently; the first
// precise result wins outright, otherwise the higher-confidence
// non-unknown result wins, and an all-failed race degrades to an
// unknown snapshot rather than propagating an error (spec.md §7,
// ProbeFailed "not an operation error").
func (p *Prober) race(ctx context.Context, accountID, token string) store.QuotaSnapshot {
	reqCtx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	var (
		precise store.QuotaSnapshot
		status  store.QuotaSnapshot
		havePrecise, haveStatus bool
	)

	g, gCtx := errgroup.WithContext(reqCtx)

	g.Go(func() error {
		snap, ok := p.probePrecise(gCtx, accountID, token)
		if ok {
			precise = snap
			havePrecise = true
		}

		return nil
	})

	g.Go(func() error {
		snap, ok := p.probeStatus(gCtx, accountID, token)
		if ok {
			status = snap
			haveStatus = true
		}

		return nil
	})

	_ = g.Wait()

	switch {
	case havePrecise:
		return precise
	case haveStatus:
		return status
	default:
		return p.unknownSnapshot(accountID, "all probes failed")
	}
}

func (p *Prober) probePrecise(ctx context.Context, accountID, token string) (store.QuotaSnapshot, bool) {
	for i, url := range []string{p.opts.Endpoints.PrimaryUsage, p.opts.Endpoints.SecondaryUsage} {
		resp, err := p.doRequest(ctx, url, token)
		if err != nil {
			continue
		}

		snap, ok := p.parsePrecise(resp, accountID)
		closeBody(resp)

		if !ok {
			continue
		}

		if i == 0 {
			snap.Confidence = ConfidencePrimaryPrecise
			snap.Source = "primary-precise"
		} else {
			snap.Confidence = ConfidenceSecondaryPrecise
			snap.Source = "secondary-precise"
		}

		return snap, true
	}

	return store.QuotaSnapshot{}, false
}

func (p *Prober) parsePrecise(resp *http.Response, accountID string) (store.QuotaSnapshot, bool) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return store.QuotaSnapshot{}, false
	}

	remainingRaw := resp.Header.Get(p.opts.Headers.Remaining)
	if remainingRaw == "" {
		return store.QuotaSnapshot{}, false
	}

	var remaining float64
	if _, err := fmt.Sscanf(remainingRaw, "%g", &remaining); err != nil {
		return store.QuotaSnapshot{}, false
	}

	snap := store.QuotaSnapshot{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		CreatedAt:      time.Now().UTC(),
		Mode:           store.ModePrecise,
		RemainingValue: &remaining,
		QuotaState:     quotaStateFromRemaining(remaining),
	}

	if unit := resp.Header.Get(p.opts.Headers.Unit); unit != "" {
		snap.RemainingUnit = &unit
	}

	if resetRaw := resp.Header.Get(p.opts.Headers.ResetAt); resetRaw != "" {
		if t, err := time.Parse(time.RFC3339, resetRaw); err == nil {
			snap.ResetAt = &t
		}
	}

	return snap, true
}

func quotaStateFromRemaining(remaining float64) store.QuotaState {
	switch {
	case remaining <= 0:
		return store.StateExhausted
	case remaining < 0.1:
		return store.StateNearLimit
	default:
		return store.StateAvailable
	}
}

func (p *Prober) probeStatus(ctx context.Context, accountID, token string) (store.QuotaSnapshot, bool) {
	resp, err := p.doRequest(ctx, p.opts.Endpoints.FallbackStatus, token)
	if err != nil {
		return store.QuotaSnapshot{}, false
	}
	defer closeBody(resp)

	snap := store.QuotaSnapshot{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		CreatedAt:  time.Now().UTC(),
		Mode:       store.ModeStatus,
		Source:     "fallback-status",
		Confidence: ConfidenceStatus,
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		snap.QuotaState = store.StateAvailable
	case resp.StatusCode == http.StatusPaymentRequired:
		snap.QuotaState = store.StateExhausted
	case resp.StatusCode == http.StatusTooManyRequests:
		snap.QuotaState = store.StateNearLimit
	default:
		reason := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		snap.Mode = store.ModeUnknown
		snap.QuotaState = store.StateUnknown
		snap.Confidence = ConfidenceUnknown
		snap.Reason = &reason

		return snap, true
	}

	return snap, true
}

func (p *Prober) doRequest(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Origin", codexOrigin)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe request: %w", err)
	}

	return resp, nil
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}

func (p *Prober) unknownSnapshot(accountID, reason string) store.QuotaSnapshot {
	return store.QuotaSnapshot{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		CreatedAt:  time.Now().UTC(),
		Mode:       store.ModeUnknown,
		QuotaState: store.StateUnknown,
		Source:     "degraded",
		Confidence: ConfidenceUnknown,
		Reason:     &reason,
	}
}
