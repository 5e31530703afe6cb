// Package mcp provides the MCP tool handlers. They parse tool
// arguments, delegate to the façades, and render replies as Markdown.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-nixos/internal/facade"
	"mcp-nixos/internal/format"
)

// SearchArgs defines the arguments for the nixos_search tool.
type SearchArgs struct {
	Query   string `json:"query" jsonschema_description:"Search query (package name, option path, or free text)"`
	Type    string `json:"type,omitempty" jsonschema_description:"What to search: 'packages' (default), 'options', or 'programs'"`
	Limit   int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (default 20)"`
	Channel string `json:"channel,omitempty" jsonschema_description:"NixOS channel: 'unstable' (default), 'stable', or a version like '24.11'"`
}

// InfoArgs defines the arguments for the nixos_info tool.
type InfoArgs struct {
	Name    string `json:"name" jsonschema_description:"Exact attribute path (package) or option name"`
	Type    string `json:"type,omitempty" jsonschema_description:"'package' (default) or 'option'"`
	Channel string `json:"channel,omitempty" jsonschema_description:"NixOS channel to query"`
}

// VersionSearchArgs defines the arguments for nixos_search_version.
type VersionSearchArgs struct {
	Query   string `json:"query" jsonschema_description:"Package search query"`
	Version string `json:"version" jsonschema_description:"Version substring to filter by (e.g. '3.11')"`
	Limit   int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (default 20)"`
	Channel string `json:"channel,omitempty" jsonschema_description:"NixOS channel to query"`
}

// DocSearchArgs defines the arguments for the Home Manager and Darwin
// search tools.
type DocSearchArgs struct {
	Query string `json:"query" jsonschema_description:"Search query (option path or free text)"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (default 20)"`
}

// DocInfoArgs defines the arguments for the Home Manager and Darwin
// info tools.
type DocInfoArgs struct {
	Name string `json:"name" jsonschema_description:"Exact option name (e.g. programs.git.enable)"`
}

// PrefixArgs defines the arguments for the options-by-prefix tools.
type PrefixArgs struct {
	OptionPrefix string `json:"option_prefix" jsonschema_description:"Dotted option prefix (e.g. programs.git)"`
}

// Handlers wraps the three façades and provides MCP tool handlers.
type Handlers struct {
	nixos       *facade.NixOS
	homeManager *facade.Docs
	darwin      *facade.Docs
	logger      *slog.Logger
}

// NewHandlers creates handlers with the given façades and logger.
func NewHandlers(nix *facade.NixOS, hm, darwin *facade.Docs, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{nixos: nix, homeManager: hm, darwin: darwin, logger: logger}
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

// NixOSSearch handles the nixos_search tool call.
func (h *Handlers) NixOSSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		h.logger.Error("nixos_search: query is required")
		return nil, nil, fmt.Errorf("query is required")
	}
	if args.Channel != "" {
		h.nixos.SetChannel(args.Channel)
	}

	searchType := strings.ToLower(strings.TrimSpace(args.Type))
	h.logger.Debug("nixos_search", "query", query, "type", searchType, "limit", args.Limit)

	var out string
	switch searchType {
	case "options":
		out = format.NixOSOptions(query, h.nixos.SearchOptions(ctx, query, args.Limit))
	case "programs":
		out = format.Packages(query, h.nixos.SearchPrograms(ctx, query, args.Limit))
	case "", "packages":
		out = format.Packages(query, h.nixos.SearchPackages(ctx, query, args.Limit))
	default:
		return nil, nil, fmt.Errorf("unknown search type %q (use packages, options, or programs)", args.Type)
	}
	return textResult(out), nil, nil
}

// NixOSSearchVersion handles the nixos_search_version tool call.
func (h *Handlers) NixOSSearchVersion(ctx context.Context, req *mcp.CallToolRequest, args VersionSearchArgs) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, nil, fmt.Errorf("query is required")
	}
	if args.Version == "" {
		return nil, nil, fmt.Errorf("version is required")
	}
	if args.Channel != "" {
		h.nixos.SetChannel(args.Channel)
	}
	res := h.nixos.SearchPackagesWithVersion(ctx, query, args.Version, args.Limit)
	return textResult(format.Packages(query, res)), nil, nil
}

// NixOSInfo handles the nixos_info tool call.
func (h *Handlers) NixOSInfo(ctx context.Context, req *mcp.CallToolRequest, args InfoArgs) (*mcp.CallToolResult, any, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		h.logger.Error("nixos_info: name is required")
		return nil, nil, fmt.Errorf("name is required")
	}
	if args.Channel != "" {
		h.nixos.SetChannel(args.Channel)
	}

	infoType := strings.ToLower(strings.TrimSpace(args.Type))
	h.logger.Debug("nixos_info", "name", name, "type", infoType)

	var out string
	switch infoType {
	case "option":
		out = format.NixOSOptionInfo(h.nixos.GetOption(ctx, name))
	case "", "package":
		out = format.PackageInfo(h.nixos.GetPackage(ctx, name))
	default:
		return nil, nil, fmt.Errorf("unknown info type %q (use package or option)", args.Type)
	}
	return textResult(out), nil, nil
}

// NixOSStats handles the nixos_stats tool call.
func (h *Handlers) NixOSStats(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	stats := h.nixos.GetPackageStats(ctx)
	count := h.nixos.CountOptions(ctx)

	var sb strings.Builder
	sb.WriteString(format.PackageStats(stats))
	if count.Error != "" {
		fmt.Fprintf(&sb, "\n\nOption count unavailable: %s", count.Error)
	} else {
		fmt.Fprintf(&sb, "\n\nTotal options: %d", count.Count)
	}
	return textResult(sb.String()), nil, nil
}

// docSearch is shared by the Home Manager and Darwin search tools.
func (h *Handlers) docSearch(f *facade.Docs, args DocSearchArgs) (*mcp.CallToolResult, any, error) {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, nil, fmt.Errorf("query is required")
	}
	h.logger.Debug("doc search", "universe", f.Name(), "query", query, "limit", args.Limit)
	res := f.SearchOptions(query, args.Limit)
	return textResult(format.DocOptions(f.Name(), query, res)), nil, nil
}

func (h *Handlers) docInfo(f *facade.Docs, args DocInfoArgs) (*mcp.CallToolResult, any, error) {
	name := strings.TrimSpace(args.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("name is required")
	}
	return textResult(format.DocOptionInfo(f.Name(), f.GetOption(name))), nil, nil
}

func (h *Handlers) docPrefix(f *facade.Docs, args PrefixArgs) (*mcp.CallToolResult, any, error) {
	prefix := strings.TrimSpace(args.OptionPrefix)
	if prefix == "" {
		return nil, nil, fmt.Errorf("option_prefix is required")
	}
	return textResult(format.PrefixResult(f.Name(), f.GetOptionsByPrefix(prefix))), nil, nil
}

func (h *Handlers) docList(f *facade.Docs) (*mcp.CallToolResult, any, error) {
	res := f.GetOptionsList()
	if res.Error != "" {
		return textResult(res.Error), nil, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s option categories\n\n", f.Name())
	for _, category := range sortedKeys(res.Categories) {
		summary := res.Categories[category]
		fmt.Fprintf(&sb, "- %s: %d options", category, summary.Count)
		if len(summary.EnableOptions) > 0 {
			fmt.Fprintf(&sb, " (%d enable toggles)", len(summary.EnableOptions))
		}
		sb.WriteByte('\n')
	}
	return textResult(strings.TrimSpace(sb.String())), nil, nil
}

// HomeManagerSearch handles the home_manager_search tool call.
func (h *Handlers) HomeManagerSearch(ctx context.Context, req *mcp.CallToolRequest, args DocSearchArgs) (*mcp.CallToolResult, any, error) {
	return h.docSearch(h.homeManager, args)
}

// HomeManagerInfo handles the home_manager_info tool call.
func (h *Handlers) HomeManagerInfo(ctx context.Context, req *mcp.CallToolRequest, args DocInfoArgs) (*mcp.CallToolResult, any, error) {
	return h.docInfo(h.homeManager, args)
}

// HomeManagerStats handles the home_manager_stats tool call.
func (h *Handlers) HomeManagerStats(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	return textResult(format.DocStats(h.homeManager.Name(), h.homeManager.GetStats())), nil, nil
}

// HomeManagerListOptions handles the home_manager_list_options tool call.
func (h *Handlers) HomeManagerListOptions(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	return h.docList(h.homeManager)
}

// HomeManagerOptionsByPrefix handles the home_manager_options_by_prefix
// tool call.
func (h *Handlers) HomeManagerOptionsByPrefix(ctx context.Context, req *mcp.CallToolRequest, args PrefixArgs) (*mcp.CallToolResult, any, error) {
	return h.docPrefix(h.homeManager, args)
}

// DarwinSearch handles the darwin_search tool call.
func (h *Handlers) DarwinSearch(ctx context.Context, req *mcp.CallToolRequest, args DocSearchArgs) (*mcp.CallToolResult, any, error) {
	return h.docSearch(h.darwin, args)
}

// DarwinInfo handles the darwin_info tool call.
func (h *Handlers) DarwinInfo(ctx context.Context, req *mcp.CallToolRequest, args DocInfoArgs) (*mcp.CallToolResult, any, error) {
	return h.docInfo(h.darwin, args)
}

// DarwinStats handles the darwin_stats tool call.
func (h *Handlers) DarwinStats(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	return textResult(format.DocStats(h.darwin.Name(), h.darwin.GetStats())), nil, nil
}

// DarwinListOptions handles the darwin_list_options tool call.
func (h *Handlers) DarwinListOptions(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
	return h.docList(h.darwin)
}

// DarwinOptionsByPrefix handles the darwin_options_by_prefix tool call.
func (h *Handlers) DarwinOptionsByPrefix(ctx context.Context, req *mcp.CallToolRequest, args PrefixArgs) (*mcp.CallToolResult, any, error) {
	return h.docPrefix(h.darwin, args)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
