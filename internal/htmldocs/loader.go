package htmldocs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mcp-nixos/internal/cache"
	"mcp-nixos/internal/httpclient"
)

// Page is one upstream reference page.
type Page struct {
	URL    string
	Source string
}

// DocSet describes one documentation universe: its pages, cache
// identity, and the closed set of top-level categories its options
// list walks.
type DocSet struct {
	Name               string
	CacheID            string
	Pages              []Page
	TopLevelCategories []string
}

// HomeManager covers the three Home Manager pages. Duplicate option
// names across them are expected; Source disambiguates.
var HomeManager = DocSet{
	Name:    "home-manager",
	CacheID: "home_manager_options",
	Pages: []Page{
		{URL: "https://nix-community.github.io/home-manager/options.xhtml", Source: "options"},
		{URL: "https://nix-community.github.io/home-manager/nixos-options.xhtml", Source: "nixos-options"},
		{URL: "https://nix-community.github.io/home-manager/nix-darwin-options.xhtml", Source: "nix-darwin-options"},
	},
	TopLevelCategories: []string{
		"programs", "services", "home", "accounts", "fonts", "gtk",
		"i18n", "launchd", "manual", "news", "nix", "nixpkgs",
		"systemd", "targets", "wayland", "xdg", "xsession",
	},
}

// Darwin covers the nix-darwin manual.
var Darwin = DocSet{
	Name:    "darwin",
	CacheID: "darwin_options",
	Pages: []Page{
		{URL: "https://daiderd.com/nix-darwin/manual/index.html", Source: "darwin-options"},
	},
	TopLevelCategories: []string{
		"documentation", "environment", "fonts", "homebrew", "launchd",
		"networking", "nix", "nixpkgs", "power", "programs", "security",
		"services", "system", "time", "users",
	},
}

// Loader owns the one-shot load of a DocSet. Exactly one load may be in
// flight; concurrent callers wait on the same completion channel. A
// failed load latches its error until ForceRefresh.
type Loader struct {
	set         DocSet
	http        *httpclient.Client
	fs          *cache.Filesystem
	clock       cache.Clock
	readTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	status LoadingStatus
	errMsg string
	snap   *Snapshot
	done   chan struct{}
}

// NewLoader wires a Loader; nothing is fetched until EnsureLoaded.
func NewLoader(set DocSet, hc *httpclient.Client, fs *cache.Filesystem, clock cache.Clock, readTimeout time.Duration, logger *slog.Logger) *Loader {
	if clock == nil {
		clock = cache.RealClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		set:         set,
		http:        hc,
		fs:          fs,
		clock:       clock,
		readTimeout: readTimeout,
		logger:      logger,
		status:      StatusNotStarted,
	}
}

// Set returns the DocSet this loader serves.
func (l *Loader) Set() DocSet { return l.set }

// Snapshot returns the published snapshot and the loader state. Readers
// observe either a fully built snapshot or none; partially built indices
// are never visible.
func (l *Loader) Snapshot() (*Snapshot, LoadingStatus, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap, l.status, l.errMsg
}

// StartBackground kicks off the initial load without blocking.
func (l *Loader) StartBackground() {
	go func() {
		if err := l.EnsureLoaded(context.Background(), false); err != nil {
			l.logger.Error("background load failed", "set", l.set.Name, "error", err)
		}
	}()
}

// EnsureLoaded blocks until the DocSet is loaded, an in-flight load
// finishes, or ctx is cancelled while waiting. With forceRefresh the
// filesystem cache for this identity and its pages is invalidated first
// and a latched error is cleared.
func (l *Loader) EnsureLoaded(ctx context.Context, forceRefresh bool) error {
	if forceRefresh {
		if err := l.reset(ctx); err != nil {
			return err
		}
	}

	for {
		l.mu.Lock()
		switch l.status {
		case StatusLoaded:
			l.mu.Unlock()
			return nil

		case StatusError:
			msg := l.errMsg
			l.mu.Unlock()
			return errors.New(msg)

		case StatusLoading:
			d := l.done
			l.mu.Unlock()
			select {
			case <-d:
			case <-ctx.Done():
				return ctx.Err()
			}

		case StatusNotStarted:
			l.status = StatusLoading
			l.done = make(chan struct{})
			l.mu.Unlock()

			// The load itself is uncancellable: once started it
			// completes or fails on its own timeouts, so a caller's
			// cancellation cannot strand other waiters.
			snap, err := l.load(context.WithoutCancel(ctx))

			l.mu.Lock()
			if err != nil {
				l.status = StatusError
				l.errMsg = err.Error()
				l.logger.Error("load failed", "set", l.set.Name, "error", err)
			} else {
				l.snap = snap
				l.status = StatusLoaded
				l.errMsg = ""
				l.logger.Info("load complete", "set", l.set.Name, "options", snap.TotalOptions)
			}
			close(l.done)
			l.mu.Unlock()
			return err
		}
	}
}

// reset waits out any in-flight load, then invalidates the filesystem
// cache and rearms the state machine.
func (l *Loader) reset(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.status != StatusLoading {
			l.fs.InvalidateData(l.set.CacheID)
			for _, page := range l.set.Pages {
				l.fs.InvalidateHTML(page.URL)
			}
			l.status = StatusNotStarted
			l.errMsg = ""
			l.snap = nil
			l.mu.Unlock()
			return nil
		}
		d := l.done
		l.mu.Unlock()
		select {
		case <-d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// load produces a snapshot: filesystem cache first (gob, then JSON
// records), then the network.
func (l *Loader) load(ctx context.Context) (*Snapshot, error) {
	var cached Snapshot
	if l.fs.GetBinaryData(l.set.CacheID, &cached) && cached.TotalOptions > 0 {
		l.logger.Debug("rehydrated binary snapshot", "set", l.set.Name, "options", cached.TotalOptions)
		return &cached, nil
	}
	var records []Option
	if l.fs.GetData(l.set.CacheID, &records) && len(records) > 0 {
		l.logger.Debug("rebuilt snapshot from cached records", "set", l.set.Name, "records", len(records))
		snap := BuildSnapshot(records, l.clock.Now())
		if err := l.fs.SetBinaryData(l.set.CacheID, snap); err != nil {
			l.logger.Warn("binary snapshot write failed", "set", l.set.Name, "error", err)
		}
		return snap, nil
	}

	records = records[:0]
	for _, page := range l.set.Pages {
		resp, err := l.http.Do(ctx, http.MethodGet, page.URL, nil, httpclient.Options{
			HTMLCache:   l.fs,
			ReadTimeout: l.readTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %s", page.URL, err)
		}
		opts, err := ParseOptions(string(resp.Body), page.Source, page.URL)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %s", page.URL, err)
		}
		l.logger.Debug("page parsed", "set", l.set.Name, "source", page.Source, "options", len(opts))
		records = append(records, opts...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no options parsed from %s documentation", l.set.Name)
	}

	snap := BuildSnapshot(records, l.clock.Now())
	if err := l.fs.SetData(l.set.CacheID, records); err != nil {
		l.logger.Warn("record cache write failed", "set", l.set.Name, "error", err)
	}
	if err := l.fs.SetBinaryData(l.set.CacheID, snap); err != nil {
		l.logger.Warn("binary snapshot write failed", "set", l.set.Name, "error", err)
	}
	return snap, nil
}
