// Package main is the entry point for the mcp-nixos server.
// It wires together all dependencies and starts the MCP server.
//
// This file is intentionally minimal - all business logic lives in internal/.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-nixos/internal/cache"
	"mcp-nixos/internal/config"
	"mcp-nixos/internal/facade"
	"mcp-nixos/internal/htmldocs"
	"mcp-nixos/internal/httpclient"
	mcphandlers "mcp-nixos/internal/mcp"
	"mcp-nixos/internal/nixos"
)

const (
	serverName    = "mcp-nixos"
	serverVersion = "v1.0.0"
)

// setupLogger creates an slog logger that writes to a debug file in the
// cache directory. File format: debug-YYYY-MM-DD.txt
func setupLogger(cacheDir string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(cacheDir, fmt.Sprintf("debug-%s.txt", date))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(handler), file, nil
}

func main() {
	// IMPORTANT: MCP stdio servers must log to stderr only (for standard log package).
	log.SetOutput(os.Stderr)

	// --- 0. Parse flags ---
	configPath := flag.String("config", "", "Optional YAML config file")
	cacheDir := flag.String("cache-dir", "", "Directory for cache and log files (default: platform cache dir)")
	channel := flag.String("channel", "", "NixOS channel to query (unstable, stable, 24.11, ...)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *channel != "" {
		cfg.Channel = *channel
	}

	// --- 1. Setup file-based debug logger ---
	logger, logFile, err := setupLogger(cfg.CacheDir)
	if err != nil {
		log.Printf("Warning: failed to setup file logger: %v", err)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	} else {
		defer logFile.Close()
	}

	logger.Info("server starting",
		"name", serverName,
		"version", serverVersion,
		"cache_dir", cfg.CacheDir,
		"channel", cfg.Channel,
	)

	// --- 2. Create all dependencies ---

	// Filesystem cache: HTML bodies and serialised index snapshots.
	fsCache, err := cache.NewFilesystem(cfg.CacheDir, cfg.FilesystemTTL.Std(), nil)
	if err != nil {
		logger.Error("failed to create filesystem cache", "error", err)
		log.Fatalf("Failed to create filesystem cache: %v", err)
	}

	// Memory cache: backend responses.
	memCache := cache.NewMemory(cfg.MemoryTTL.Std(), cfg.MaxMemoryEntries, nil)

	// HTTP fabric: shared by the search client and the page loaders.
	httpClient := httpclient.New(httpclient.Config{
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay.Std(),
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		ReadTimeout:    cfg.ReadTimeout.Std(),
	}, logger)

	// NixOS search client against the Elasticsearch backend.
	nixosClient := nixos.NewClient(nixos.Config{
		BaseURL:  cfg.ElasticsearchURL,
		User:     cfg.ElasticsearchUser,
		Password: cfg.ElasticsearchPassword,
		Channel:  cfg.Channel,
	}, httpClient, memCache, logger)

	// Documentation loaders: one-shot eager loads in the background.
	hmLoader := htmldocs.NewLoader(htmldocs.HomeManager, httpClient, fsCache, nil, cfg.DocsReadTimeout.Std(), logger)
	darwinLoader := htmldocs.NewLoader(htmldocs.Darwin, httpClient, fsCache, nil, cfg.DocsReadTimeout.Std(), logger)

	// --- 3. Wire up the façades and handlers ---
	nixosFacade := facade.NewNixOS(nixosClient)
	hmFacade := facade.NewDocs("home-manager", hmLoader, fsCache)
	darwinFacade := facade.NewDocs("darwin", darwinLoader, fsCache)

	hmFacade.StartBackground()
	darwinFacade.StartBackground()

	handlers := mcphandlers.NewHandlers(nixosFacade, hmFacade, darwinFacade, logger)

	// --- 4. Create and configure the MCP server ---
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, &mcp.ServerOptions{
		Instructions: "Search and inspect NixOS packages and options, Home Manager options, and nix-darwin options. Results are Markdown.",
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "nixos_search",
		Description: "Search NixOS packages, options, or programs on a chosen channel.",
	}, handlers.NixOSSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "nixos_search_version",
		Description: "Search NixOS packages and filter results by a version substring.",
	}, handlers.NixOSSearchVersion)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "nixos_info",
		Description: "Show one NixOS package or option by exact name, with related options for service paths.",
	}, handlers.NixOSInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "nixos_stats",
		Description: "Aggregate statistics for the current channel: package channels/licenses/platforms and option count.",
	}, handlers.NixOSStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "home_manager_search",
		Description: "Search Home Manager configuration options.",
	}, handlers.HomeManagerSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "home_manager_info",
		Description: "Show one Home Manager option by exact name, with sibling suggestions.",
	}, handlers.HomeManagerInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "home_manager_stats",
		Description: "Statistics over the Home Manager option universe.",
	}, handlers.HomeManagerStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "home_manager_list_options",
		Description: "List the top-level Home Manager option categories with counts.",
	}, handlers.HomeManagerListOptions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "home_manager_options_by_prefix",
		Description: "List all Home Manager options under a dotted prefix (e.g. programs.git).",
	}, handlers.HomeManagerOptionsByPrefix)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "darwin_search",
		Description: "Search nix-darwin (macOS) configuration options.",
	}, handlers.DarwinSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "darwin_info",
		Description: "Show one nix-darwin option by exact name, with sibling suggestions.",
	}, handlers.DarwinInfo)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "darwin_stats",
		Description: "Statistics over the nix-darwin option universe.",
	}, handlers.DarwinStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "darwin_list_options",
		Description: "List the top-level nix-darwin option categories with counts.",
	}, handlers.DarwinListOptions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "darwin_options_by_prefix",
		Description: "List all nix-darwin options under a dotted prefix (e.g. system.defaults).",
	}, handlers.DarwinOptionsByPrefix)

	logger.Info("server ready, waiting for requests")

	// --- 5. Run the server ---
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Error("server error", "error", err)
		log.Fatal(err)
	}
}
