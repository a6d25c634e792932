// Package vulndb queries an OSV-style vulnerability service for dependency
// advisories, with a TTL cache and an embedded offline dataset used when the
// service cannot be reached.
package vulndb

import (
	"bytes"
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/codescore/pkg/buildinfo"
	"github.com/fulmenhq/codescore/pkg/logger"
)

// Package identifies one dependency release.
type Package struct {
	Name      string `json:"name" yaml:"package"`
	Ecosystem string `json:"ecosystem" yaml:"ecosystem"`
	Version   string `json:"version" yaml:"version"`
}

func (p Package) String() string { return p.Name + "@" + p.Version }

func (p Package) key() string {
	name := p.Name
	if strings.EqualFold(p.Ecosystem, "PyPI") {
		name = strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	}
	return strings.ToLower(p.Ecosystem) + "/" + name + "@" + p.Version
}

// Vulnerability is one advisory affecting a package.
type Vulnerability struct {
	ID       string `json:"id" yaml:"id"`
	Summary  string `json:"summary" yaml:"summary"`
	Severity string `json:"-" yaml:"severity"`
}

// UnmarshalJSON accepts severity as a plain string or as an OSV severity
// array, in which case the first score is used.
func (v *Vulnerability) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID               string          `json:"id"`
		Summary          string          `json:"summary"`
		Severity         json.RawMessage `json:"severity"`
		DatabaseSpecific struct {
			Severity string `json:"severity"`
		} `json:"database_specific"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.ID, v.Summary = raw.ID, raw.Summary
	v.Severity = raw.DatabaseSpecific.Severity

	if len(raw.Severity) > 0 && v.Severity == "" {
		var s string
		if err := json.Unmarshal(raw.Severity, &s); err == nil {
			v.Severity = s
			return nil
		}
		var scored []struct {
			Score string `json:"score"`
		}
		if err := json.Unmarshal(raw.Severity, &scored); err == nil && len(scored) > 0 {
			v.Severity = scored[0].Score
		}
	}
	return nil
}

func (v Vulnerability) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID       string `json:"id"`
		Summary  string `json:"summary"`
		Severity string `json:"severity,omitempty"`
	}
	return json.Marshal(wire{ID: v.ID, Summary: v.Summary, Severity: v.Severity})
}

// ErrRateLimited is reported when the service answers HTTP 429.
var ErrRateLimited = errors.New("vulnerability service rate limited the request")

type cacheEntry struct {
	vulns  []Vulnerability
	expiry time.Time
}

// Cache holds lookup results for a TTL. It is owned by whoever constructs
// it and shared only by explicit reference.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates an empty cache; ttl <= 0 disables expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: map[string]cacheEntry{}, now: time.Now}
}

func (c *Cache) Get(p Package) ([]Vulnerability, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[p.key()]
	if !ok || (c.ttl > 0 && !c.now().Before(e.expiry)) {
		return nil, false
	}
	return e.vulns, true
}

func (c *Cache) Put(p Package, vulns []Vulnerability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.key()] = cacheEntry{vulns: vulns, expiry: c.now().Add(c.ttl)}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

//go:embed data/offline.yaml
var offlineData []byte

type offlineRecord struct {
	Package `yaml:",inline"`
	Vulns   []Vulnerability `yaml:"vulns"`
}

// Offline is an exact-match advisory dataset.
type Offline map[string][]Vulnerability

// LoadOffline parses a YAML dataset in the embedded format.
func LoadOffline(data []byte) (Offline, error) {
	var records []offlineRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse offline dataset: %w", err)
	}
	out := make(Offline, len(records))
	for _, r := range records {
		out[r.key()] = append(out[r.key()], r.Vulns...)
	}
	return out, nil
}

// DefaultOffline returns the embedded dataset.
func DefaultOffline() Offline {
	o, err := LoadOffline(offlineData)
	if err != nil {
		panic(err) // embedded data is validated by tests
	}
	return o
}

func (o Offline) Lookup(p Package) []Vulnerability { return o[p.key()] }

// Options configures a Client. Zero values select defaults.
type Options struct {
	URL           string
	Timeout       time.Duration
	RatePerSecond float64
	OfflineOnly   bool
	Cache         *Cache
	Fetcher       HTTPFetcher
	Offline       Offline
	Logger        *logger.Logger
}

// DefaultURL is the public OSV batch query endpoint.
const DefaultURL = "https://api.osv.dev/v1/querybatch"

// Client performs batched vulnerability lookups.
type Client struct {
	url         string
	timeout     time.Duration
	offlineOnly bool
	limiter     *rate.Limiter
	cache       *Cache
	fetcher     HTTPFetcher
	offline     Offline
	log         *logger.Logger
}

// New creates a Client. The cache is created if opts.Cache is nil and is
// reachable through Cache so its owner can clear it.
func New(opts Options) *Client {
	c := &Client{
		url:         opts.URL,
		timeout:     opts.Timeout,
		offlineOnly: opts.OfflineOnly,
		cache:       opts.Cache,
		fetcher:     opts.Fetcher,
		offline:     opts.Offline,
		log:         opts.Logger,
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.cache == nil {
		c.cache = NewCache(time.Hour)
	}
	if c.fetcher == nil {
		c.fetcher = NewRealHTTPFetcher(&http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		})
	}
	if c.offline == nil {
		c.offline = DefaultOffline()
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	return c
}

// Cache returns the client's cache.
func (c *Client) Cache() *Cache { return c.cache }

// Result is the outcome of one Query. Vulns is parallel to the queried
// packages. Offline is set when the offline dataset answered; FallbackErr
// holds the reason when that was a fallback rather than OfflineOnly.
type Result struct {
	Vulns       [][]Vulnerability
	Offline     bool
	FallbackErr error
}

type batchQuery struct {
	Queries []query `json:"queries"`
}

type query struct {
	Package struct {
		Name      string `json:"name"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Version string `json:"version"`
}

type batchResponse struct {
	Results []struct {
		Vulns []Vulnerability `json:"vulns"`
	} `json:"results"`
}

// Query looks up every package. Cached packages are answered locally; the
// rest go to the service in one batch. Network failures, timeouts and rate
// limiting fall back to the offline dataset and never return an error.
func (c *Client) Query(ctx context.Context, pkgs []Package) Result {
	res := Result{Vulns: make([][]Vulnerability, len(pkgs))}

	var pending []int
	for i, p := range pkgs {
		if v, ok := c.cache.Get(p); ok {
			res.Vulns[i] = v
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return res
	}

	if c.offlineOnly {
		c.log.Debug("Offline mode, using offline dataset", logger.Int("packages", len(pending)))
		c.answerOffline(&res, pkgs, pending)
		return res
	}

	batch := make([]Package, len(pending))
	for n, i := range pending {
		batch[n] = pkgs[i]
	}
	online, err := c.queryBatch(ctx, batch)
	if err != nil {
		c.log.Warn("Vulnerability service unavailable, using offline dataset", logger.Err(err), logger.Int("packages", len(pending)))
		res.FallbackErr = err
		c.answerOffline(&res, pkgs, pending)
		return res
	}

	for n, i := range pending {
		res.Vulns[i] = online[n]
		c.cache.Put(pkgs[i], online[n])
	}
	return res
}

func (c *Client) answerOffline(res *Result, pkgs []Package, pending []int) {
	res.Offline = true
	for _, i := range pending {
		res.Vulns[i] = c.offline.Lookup(pkgs[i])
	}
}

func (c *Client) queryBatch(ctx context.Context, pkgs []Package) ([][]Vulnerability, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var body batchQuery
	for _, p := range pkgs {
		var q query
		q.Package.Name = p.Name
		q.Package.Ecosystem = p.Ecosystem
		q.Version = p.Version
		body.Queries = append(body.Queries, q)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vulnerability query failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("vulnerability service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode vulnerability response: %w", err)
	}
	if len(decoded.Results) != len(pkgs) {
		return nil, fmt.Errorf("vulnerability service returned %d results for %d queries", len(decoded.Results), len(pkgs))
	}

	out := make([][]Vulnerability, len(pkgs))
	for i, r := range decoded.Results {
		out[i] = r.Vulns
	}
	return out, nil
}
