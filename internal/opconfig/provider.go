// Package opconfig implements the operator config provider: a cached
// fetch of { system_prompt, vips[], businesses[] } from the operator's
// spreadsheet webhook, with a TTL and a cache-buster query parameter.
// It follows the teacher module's Provider/Option construction pattern
// (callsystem.New, transport.New) adapted to a single long-lived cache
// instead of a per-connection object.
package opconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// VIP is a recognized-caller record, read-only at call scope.
type VIP struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Relationship  string `json:"relationship"`
	VoiceOverride string `json:"voice_override"`
	PersonaNotes  string `json:"persona_notes"`
	Vibe          string `json:"vibe"`
}

// Business is an entry in the operator's business directory, passed
// through to the instruction builder largely opaque to this package.
type Business struct {
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// Snapshot is the fetched (or fallback) configuration document.
type Snapshot struct {
	SystemPrompt string     `json:"system_prompt"`
	VIPs         []VIP      `json:"vips"`
	Businesses   []Business `json:"businesses"`
	FetchedAt    time.Time  `json:"-"`
}

// fallback is served when the upstream fetch fails and there is no
// cached value yet: a config fetch failure must never propagate to the
// call path.
func fallback(assistantName string) Snapshot {
	return Snapshot{
		SystemPrompt: fmt.Sprintf("You are %s.", assistantName),
	}
}

// Option configures the Provider.
type Option func(*options)

type options struct {
	url            string
	ttl            time.Duration
	httpClient     *http.Client
	assistantName  string
}

// WithURL sets the spreadsheet webhook URL.
func WithURL(u string) Option {
	return func(o *options) { o.url = u }
}

// WithTTL overrides the cache TTL (default 20s).
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithHTTPClient overrides the HTTP client used for fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithFallbackAssistantName sets the name used in the minimal fallback
// system prompt when no config has ever been fetched successfully.
func WithFallbackAssistantName(name string) Option {
	return func(o *options) { o.assistantName = name }
}

// Provider is an in-process singleton cache: one writer (the refresher
// triggered by readers past TTL), readers observing a snapshot pointer.
type Provider struct {
	url        string
	ttl        time.Duration
	httpClient *http.Client
	fallback   Snapshot

	mu       sync.RWMutex
	snapshot Snapshot
	fetched  bool
}

// New creates a config Provider.
func New(opts ...Option) *Provider {
	cfg := &options{
		ttl:        20 * time.Second,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Provider{
		url:        cfg.url,
		ttl:        cfg.ttl,
		httpClient: cfg.httpClient,
		fallback:   fallback(cfg.assistantName),
	}
}

// Get returns the cached snapshot, refreshing it first if the cache has
// expired. forceFresh bypasses the cache entirely (used by the outbound
// command FSM when resolving a VIP).
func (p *Provider) Get(ctx context.Context, forceFresh bool) Snapshot {
	p.mu.RLock()
	snap := p.snapshot
	fresh := p.fetched && time.Since(snap.FetchedAt) < p.ttl
	p.mu.RUnlock()

	if fresh && !forceFresh {
		return snap
	}

	fetched, err := p.fetch(ctx)
	if err != nil {
		p.mu.RLock()
		hadPrior := p.fetched
		prior := p.snapshot
		p.mu.RUnlock()
		if hadPrior {
			return prior
		}
		return p.fallback
	}

	fetched.FetchedAt = time.Now()
	p.mu.Lock()
	p.snapshot = fetched
	p.fetched = true
	p.mu.Unlock()
	return fetched
}

// Snapshot returns the cached configuration without ever performing a
// fetch. The call path reads through this instead of Get so a session
// start never blocks on a live HTTP round trip; Refresh is what keeps
// the cache from going stale underneath it.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.fetched {
		return p.snapshot
	}
	return p.fallback
}

// Refresh fetches once immediately and then again every interval until
// ctx is cancelled, meant to run as one background goroutine for the
// process's lifetime so Snapshot's cache never goes stale on the call
// path. forceFresh fetches bypass the TTL check inside Get, so this
// loop's own cadence is what governs freshness instead.
func (p *Provider) Refresh(ctx context.Context, interval time.Duration) {
	p.Get(ctx, true)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Get(ctx, true)
		}
	}
}

// fetch performs the HTTP GET with a cache-buster and no-store hint.
func (p *Provider) fetch(ctx context.Context) (Snapshot, error) {
	if p.url == "" {
		return Snapshot{}, fmt.Errorf("opconfig: no URL configured")
	}

	u, err := url.Parse(p.url)
	if err != nil {
		return Snapshot{}, fmt.Errorf("opconfig: invalid URL: %w", err)
	}
	q := u.Query()
	q.Set("_", strconv.FormatInt(time.Now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Snapshot{}, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("opconfig: fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Snapshot{}, fmt.Errorf("opconfig: fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("opconfig: read body: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("opconfig: decode: %w", err)
	}
	return snap, nil
}
