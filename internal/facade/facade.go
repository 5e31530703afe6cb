// Package facade exposes the uniform query shape to collaborators. The
// NixOS façade is a thin pass-through; the Home Manager and Darwin
// façades additionally surface the loader state, short-circuiting while
// documentation is still loading or after a failed load.
package facade

import (
	"context"
	"fmt"

	"mcp-nixos/internal/cache"
	"mcp-nixos/internal/htmldocs"
	"mcp-nixos/internal/nixos"
)

// Status is the health reply shared by all façades.
type Status struct {
	Status       string         `json:"status"`
	Loaded       bool           `json:"loaded"`
	OptionsCount int            `json:"options_count,omitempty"`
	Error        string         `json:"error,omitempty"`
	CacheStats   map[string]any `json:"cache_stats,omitempty"`
}

// NixOS fronts the Elasticsearch-backed client.
type NixOS struct {
	client *nixos.Client
}

// NewNixOS wraps a client.
func NewNixOS(client *nixos.Client) *NixOS {
	return &NixOS{client: client}
}

// SetChannel switches the backing index.
func (f *NixOS) SetChannel(name string) { f.client.SetChannel(name) }

// Channel reports the current channel.
func (f *NixOS) Channel() string { return f.client.Channel() }

// SearchPackages delegates to the client.
func (f *NixOS) SearchPackages(ctx context.Context, query string, limit int) nixos.PackagesResult {
	return f.client.SearchPackages(ctx, query, limit)
}

// SearchOptions delegates to the client.
func (f *NixOS) SearchOptions(ctx context.Context, query string, limit int) nixos.OptionsResult {
	return f.client.SearchOptions(ctx, query, limit)
}

// SearchPrograms delegates to the client.
func (f *NixOS) SearchPrograms(ctx context.Context, query string, limit int) nixos.PackagesResult {
	return f.client.SearchPrograms(ctx, query, limit)
}

// SearchPackagesWithVersion delegates to the client.
func (f *NixOS) SearchPackagesWithVersion(ctx context.Context, query, pattern string, limit int) nixos.PackagesResult {
	return f.client.SearchPackagesWithVersion(ctx, query, pattern, limit)
}

// GetPackage delegates to the client.
func (f *NixOS) GetPackage(ctx context.Context, name string) nixos.PackageInfo {
	return f.client.GetPackage(ctx, name)
}

// GetOption delegates to the client.
func (f *NixOS) GetOption(ctx context.Context, name string) nixos.OptionInfo {
	return f.client.GetOption(ctx, name)
}

// GetPackageStats delegates to the client.
func (f *NixOS) GetPackageStats(ctx context.Context) nixos.PackageStats {
	return f.client.GetPackageStats(ctx)
}

// CountOptions delegates to the client.
func (f *NixOS) CountOptions(ctx context.Context) nixos.CountResult {
	return f.client.CountOptions(ctx)
}

// GetStatus reports backend reachability is not probed; ok means
// configured, with the response-cache counters attached.
func (f *NixOS) GetStatus() Status {
	stats := f.client.Stats()
	return Status{
		Status: "ok",
		Loaded: true,
		CacheStats: map[string]any{
			"memory": stats,
		},
	}
}

// Docs fronts one htmldocs universe (Home Manager or Darwin).
type Docs struct {
	name   string
	loader *htmldocs.Loader
	fs     *cache.Filesystem
}

// NewDocs wraps a loader. fs may be nil; it only feeds GetStatus.
func NewDocs(name string, loader *htmldocs.Loader, fs *cache.Filesystem) *Docs {
	return &Docs{name: name, loader: loader, fs: fs}
}

// Name returns the universe name ("home-manager" or "darwin").
func (f *Docs) Name() string { return f.name }

// StartBackground begins the eager load.
func (f *Docs) StartBackground() { f.loader.StartBackground() }

// EnsureLoaded blocks until loaded or failed.
func (f *Docs) EnsureLoaded(ctx context.Context, forceRefresh bool) error {
	return f.loader.EnsureLoaded(ctx, forceRefresh)
}

// snapshot resolves the loader state into either a usable snapshot or a
// short-circuit reply (loading hint or latched failure).
func (f *Docs) snapshot() (*htmldocs.Snapshot, string, bool) {
	snap, status, errMsg := f.loader.Snapshot()
	switch status {
	case htmldocs.StatusLoaded:
		return snap, "", false
	case htmldocs.StatusError:
		return nil, fmt.Sprintf("Failed to load %s options: %s", f.name, errMsg), false
	default:
		return nil, fmt.Sprintf("%s options are still loading, please retry in a few seconds", f.name), true
	}
}

// SearchOptions serves from the snapshot, or short-circuits.
func (f *Docs) SearchOptions(query string, limit int) htmldocs.OptionsResult {
	snap, errMsg, _ := f.snapshot()
	if snap == nil {
		return htmldocs.OptionsResult{Options: []htmldocs.Option{}, Error: errMsg}
	}
	return snap.Search(query, limit)
}

// GetOption serves from the snapshot, or short-circuits.
func (f *Docs) GetOption(name string) htmldocs.OptionInfo {
	snap, errMsg, loading := f.snapshot()
	if snap == nil {
		return htmldocs.OptionInfo{
			Option:  htmldocs.Option{Name: name},
			Loading: loading,
			Error:   errMsg,
		}
	}
	return snap.GetOption(name)
}

// GetOptionsByPrefix serves from the snapshot, or short-circuits.
func (f *Docs) GetOptionsByPrefix(prefix string) htmldocs.PrefixResult {
	snap, errMsg, loading := f.snapshot()
	if snap == nil {
		return htmldocs.PrefixResult{Prefix: prefix, Loading: loading, Error: errMsg}
	}
	return snap.GetOptionsByPrefix(prefix)
}

// GetOptionsList serves from the snapshot, or short-circuits.
func (f *Docs) GetOptionsList() htmldocs.ListResult {
	snap, errMsg, loading := f.snapshot()
	if snap == nil {
		return htmldocs.ListResult{Loading: loading, Error: errMsg}
	}
	return snap.OptionsList(f.loader.Set().TopLevelCategories)
}

// GetStats serves from the snapshot, or short-circuits.
func (f *Docs) GetStats() htmldocs.Stats {
	snap, errMsg, loading := f.snapshot()
	if snap == nil {
		return htmldocs.Stats{Loading: loading, Error: errMsg}
	}
	return snap.Stats()
}

// GetStatus reports the loader state plus filesystem cache counters.
func (f *Docs) GetStatus() Status {
	snap, status, errMsg := f.loader.Snapshot()
	out := Status{}
	switch status {
	case htmldocs.StatusLoaded:
		out.Status = "ok"
		out.Loaded = true
		if snap != nil {
			out.OptionsCount = snap.TotalOptions
		}
	case htmldocs.StatusError:
		out.Status = "error"
		out.Error = errMsg
	default:
		out.Status = "loading"
	}
	if f.fs != nil {
		out.CacheStats = map[string]any{
			"filesystem": f.fs.Stats(),
			"cache_dir":  f.fs.Dir(),
		}
	}
	return out
}
