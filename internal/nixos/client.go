package nixos

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"mcp-nixos/internal/cache"
	"mcp-nixos/internal/httpclient"
)

// DefaultSearchLimit bounds search replies when the caller passes no
// limit.
const DefaultSearchLimit = 20

// Client talks to the search backend for one channel at a time. Channel
// switching is serialised; the rest of the client is stateless and safe
// for concurrent use.
type Client struct {
	http   *httpclient.Client
	mem    *cache.Memory
	logger *slog.Logger

	baseURL  string
	user     string
	password string

	mu        sync.Mutex
	channel   string
	index     string
	searchURL string
	countURL  string
}

// Config carries the backend endpoint and credentials.
type Config struct {
	BaseURL  string
	User     string
	Password string
	Channel  string
}

// NewClient builds a Client on the shared HTTP fabric. mem may be nil to
// disable response caching.
func NewClient(cfg Config, hc *httpclient.Client, mem *cache.Memory, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		http:     hc,
		mem:      mem,
		logger:   logger,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		user:     cfg.User,
		password: cfg.Password,
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	c.SetChannel(channel)
	return c
}

// SetChannel resolves name to an index and rebuilds the endpoint URLs.
// Resolving to the already-current index has no observable effect;
// unknown names fall back to the default channel with a warning and the
// caller's request proceeds.
func (c *Client) SetChannel(name string) {
	channel, index, ok := ResolveChannel(name)
	if !ok {
		c.logger.Warn("unknown channel, falling back to default",
			"requested", name, "default", DefaultChannel)
		channel, index, _ = ResolveChannel(DefaultChannel)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if index == c.index {
		return
	}
	c.channel = channel
	c.index = index
	c.searchURL = fmt.Sprintf("%s/%s/_search", c.baseURL, index)
	c.countURL = fmt.Sprintf("%s/%s/_count", c.baseURL, index)
	// Cached responses are keyed by index URL; a real switch drops them
	// so the old channel's results cannot be replayed.
	if c.mem != nil {
		c.mem.Clear()
	}
	c.logger.Info("channel selected", "channel", channel, "index", index)
}

// Channel returns the current channel name.
func (c *Client) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Client) endpoints() (searchURL, countURL, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchURL, c.countURL, c.channel
}

// post sends a query body to url and decodes the Elasticsearch reply.
func (c *Client) post(ctx context.Context, url string, body map[string]any) (*esResponse, *httpclient.Error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &httpclient.Error{Kind: httpclient.KindTransport, Message: fmt.Sprintf("encode query: %v", err)}
	}
	resp, err := c.http.Do(ctx, http.MethodPost, url, payload, httpclient.Options{
		BasicAuthUser:     c.user,
		BasicAuthPassword: c.password,
		MemoryCache:       c.mem,
	})
	if err != nil {
		var herr *httpclient.Error
		if e, ok := err.(*httpclient.Error); ok {
			herr = e
		} else {
			herr = &httpclient.Error{Kind: httpclient.KindTransport, Message: err.Error()}
		}
		return nil, herr
	}
	var es esResponse
	if err := json.Unmarshal(resp.Body, &es); err != nil {
		return nil, &httpclient.Error{Kind: httpclient.KindTransport, Message: fmt.Sprintf("parse backend response: %v", err)}
	}
	return &es, nil
}

// SearchPackages runs the package DSL and projects the hits.
func (c *Client) SearchPackages(ctx context.Context, query string, limit int) PackagesResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	searchURL, _, channel := c.endpoints()
	es, herr := c.post(ctx, searchURL, buildPackagesQuery(query, limit))
	if herr != nil {
		return PackagesResult{Packages: []Package{}, Error: herr.Message}
	}
	packages := make([]Package, 0, len(es.Hits.Hits))
	for _, hit := range es.Hits.Hits {
		if pkg, ok := parsePackageHit(hit, channel); ok {
			packages = append(packages, pkg)
		}
	}
	return PackagesResult{Count: len(packages), Packages: packages}
}

// SearchOptions runs the option DSL and projects the hits, dropping
// non-option documents.
func (c *Client) SearchOptions(ctx context.Context, query string, limit int) OptionsResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	searchURL, _, _ := c.endpoints()
	es, herr := c.post(ctx, searchURL, buildOptionsQuery(query, limit))
	if herr != nil {
		return OptionsResult{Options: []Option{}, Error: herr.Message}
	}
	options := make([]Option, 0, len(es.Hits.Hits))
	for _, hit := range es.Hits.Hits {
		if opt, ok := parseOptionHit(hit); ok {
			options = append(options, opt)
		}
	}
	return OptionsResult{Count: len(options), Options: options}
}

// SearchPrograms searches packages by the programs they install. Each
// returned package's program list is narrowed to entries containing the
// query substring; packages whose index entry lists no programs drop
// out, which diverges from backend ranking but keeps replies on topic.
func (c *Client) SearchPrograms(ctx context.Context, query string, limit int) PackagesResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	searchURL, _, channel := c.endpoints()
	es, herr := c.post(ctx, searchURL, buildProgramsQuery(query, limit))
	if herr != nil {
		return PackagesResult{Packages: []Package{}, Error: herr.Message}
	}
	q := strings.ToLower(query)
	packages := make([]Package, 0, len(es.Hits.Hits))
	for _, hit := range es.Hits.Hits {
		pkg, ok := parsePackageHit(hit, channel)
		if !ok {
			continue
		}
		var matching []string
		for _, prog := range pkg.Programs {
			if strings.Contains(strings.ToLower(prog), q) {
				matching = append(matching, prog)
			}
		}
		if len(matching) == 0 {
			continue
		}
		pkg.Programs = matching
		packages = append(packages, pkg)
	}
	return PackagesResult{Count: len(packages), Packages: packages}
}

// SearchPackagesWithVersion over-fetches twice the limit and keeps
// packages whose version contains pattern as a substring. Over-fetching
// by two is best-effort, not a sufficiency guarantee.
func (c *Client) SearchPackagesWithVersion(ctx context.Context, query, pattern string, limit int) PackagesResult {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	res := c.SearchPackages(ctx, query, 2*limit)
	if res.Error != "" {
		return res
	}
	filtered := make([]Package, 0, limit)
	for _, pkg := range res.Packages {
		if strings.Contains(pkg.Version, pattern) {
			filtered = append(filtered, pkg)
			if len(filtered) == limit {
				break
			}
		}
	}
	return PackagesResult{Count: len(filtered), Packages: filtered}
}

// GetPackage looks up one package by attribute name.
func (c *Client) GetPackage(ctx context.Context, name string) PackageInfo {
	searchURL, _, channel := c.endpoints()
	es, herr := c.post(ctx, searchURL, buildPackageLookupQuery(name))
	if herr != nil {
		return PackageInfo{Package: Package{Name: name}, Error: herr.Message}
	}
	if len(es.Hits.Hits) == 0 {
		return PackageInfo{Package: Package{Name: name}, Error: "Package not found"}
	}
	pkg, ok := parsePackageHit(es.Hits.Hits[0], channel)
	if !ok {
		return PackageInfo{Package: Package{Name: name}, Error: "Package not found"}
	}
	return PackageInfo{Package: pkg, Found: true}
}

// relatedOptionsLimit bounds the sibling discovery query.
const relatedOptionsLimit = 5

// GetOption looks up one option by name. An exact miss on a
// hierarchical name is retried once with a prefix query. Misses under
// services.<svc> return a structured suggestion payload; hits under a
// service path come back with up to five sibling options attached.
func (c *Client) GetOption(ctx context.Context, name string) OptionInfo {
	searchURL, _, _ := c.endpoints()

	es, herr := c.post(ctx, searchURL, buildOptionLookupQuery(name, false))
	if herr != nil {
		return OptionInfo{Option: Option{Name: name}, Error: herr.Message}
	}
	hits := es.Hits.Hits

	if len(hits) == 0 && strings.Contains(name, ".") {
		es, herr = c.post(ctx, searchURL, buildOptionLookupQuery(name, true))
		if herr != nil {
			return OptionInfo{Option: Option{Name: name}, Error: herr.Message}
		}
		hits = es.Hits.Hits
	}

	var opt Option
	found := false
	if len(hits) > 0 {
		opt, found = parseOptionHit(hits[0])
	}
	if !found {
		info := OptionInfo{Option: Option{Name: name}, Error: "Option not found"}
		if svc := serviceName(name); svc != "" {
			info.IsServicePath = true
			info.ServiceName = svc
			info.Error = fmt.Sprintf(
				"Option not found. Try common patterns like services.%s.enable or services.%s.package",
				svc, svc)
		}
		return info
	}

	info := OptionInfo{Option: opt, Found: true}
	if svc := serviceName(opt.Name); svc != "" && strings.HasPrefix(opt.Name, "services."+svc+".") {
		info.IsServicePath = true
		info.ServiceName = svc
		if es, herr := c.post(ctx, searchURL, buildRelatedOptionsQuery(svc, opt.Name, relatedOptionsLimit)); herr == nil {
			for _, hit := range es.Hits.Hits {
				if rel, ok := parseOptionHit(hit); ok {
					info.RelatedOptions = append(info.RelatedOptions, rel)
				}
			}
		} else {
			c.logger.Debug("related options query failed", "service", svc, "error", herr.Message)
		}
	}
	return info
}

// GetPackageStats aggregates channels, licenses and platforms.
func (c *Client) GetPackageStats(ctx context.Context) PackageStats {
	searchURL, _, _ := c.endpoints()
	es, herr := c.post(ctx, searchURL, buildPackageStatsQuery())
	if herr != nil {
		return PackageStats{Error: herr.Message}
	}
	return PackageStats{
		Channels:  parseBuckets(es.Aggregations["channels"]),
		Licenses:  parseBuckets(es.Aggregations["licenses"]),
		Platforms: parseBuckets(es.Aggregations["platforms"]),
	}
}

// CountOptions asks the _count endpoint for the option total.
func (c *Client) CountOptions(ctx context.Context) CountResult {
	_, countURL, _ := c.endpoints()
	payload, err := json.Marshal(buildOptionCountQuery())
	if err != nil {
		return CountResult{Error: fmt.Sprintf("encode query: %v", err)}
	}
	resp, err := c.http.Do(ctx, http.MethodPost, countURL, payload, httpclient.Options{
		BasicAuthUser:     c.user,
		BasicAuthPassword: c.password,
		MemoryCache:       c.mem,
	})
	if err != nil {
		return CountResult{Error: err.Error()}
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return CountResult{Error: fmt.Sprintf("parse count response: %v", err)}
	}
	return CountResult{Count: out.Count}
}

// Stats reports the response cache counters.
func (c *Client) Stats() cache.MemoryStats {
	if c.mem == nil {
		return cache.MemoryStats{}
	}
	return c.mem.Stats()
}
