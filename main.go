package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/documenter-search/mcp-server/internal/config"
	"github.com/documenter-search/mcp-server/internal/logging"
	"github.com/documenter-search/mcp-server/internal/watcher"
	"github.com/documenter-search/mcp-server/tools"
)

const (
	version     = "0.1.0"
	serverName  = "documenter-mcp-server"
	description = "MCP server for searching Documenter-generated documentation"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     serverName,
	Short:   description,
	Version: version,
	Long: `Serves a Documenter search_index.js over the Model Context Protocol (stdio).

Tools: search_documentation, refresh_documentation_index, list_pages, get_page,
lookup_records, validate_search_index.

Configuration is read from config.yaml in the data directory
(~/.documenter-mcp by default) and DOCSEARCH_* environment variables.`,
	SilenceUsage: true,
	RunE:         runServer,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.ResolveDataDir(), config.ConfigFileName)
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout carries the protocol
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	log.Infof("%s v%s starting...", serverName, version)
	log.Infof("Data directory: %s", cfg.DataDir)
	tools.Configure(cfg, log)

	server := createMCPServer(log)
	if err := registerTools(server, log); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	tools.RegisterResources(server)
	log.Infof("Resources registered: 2 (%s, %s)", tools.SearchIndexResourceURI, tools.PagesResourceURI)

	defer func() {
		if err := tools.CloseDocSearch(); err != nil {
			log.Errorf("Error closing doc search: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchFile != "" {
		fw, err := startWatcher(ctx, cfg.WatchFile, log)
		if err != nil {
			log.Warnf("Warning: file watching disabled: %v", err)
		} else {
			defer fw.Stop()
		}
	}

	log.Infof("✓ Server ready and waiting for connections")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// createMCPServer initializes the MCP server
func createMCPServer(log *zap.SugaredLogger) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil,
	)

	log.Infof("Server initialized: %s v%s", serverName, version)
	return server
}

// registerTools registers all MCP tools
func registerTools(server *mcp.Server, log *zap.SugaredLogger) error {
	toolCount := 0

	if err := tools.RegisterDocSearchTools(server); err != nil {
		log.Warnf("Warning: Failed to register doc search tools: %v", err)
		log.Warnf("Documentation search will be unavailable")
	} else {
		toolCount += 2
	}

	if err := tools.RegisterPageTools(server); err != nil {
		return fmt.Errorf("failed to register page tools: %w", err)
	}
	toolCount += 3

	if err := tools.RegisterValidationTools(server); err != nil {
		return fmt.Errorf("failed to register validation tools: %w", err)
	}
	toolCount++

	log.Infof("✓ All tools registered: %d tools (search + pages + validation)", toolCount)
	return nil
}

// startWatcher reindexes whenever the local build rewrites search_index.js
func startWatcher(ctx context.Context, path string, log *zap.SugaredLogger) (*watcher.FileWatcher, error) {
	fw, err := watcher.New(path, watcher.DefaultDebounce, tools.ReindexFromFile, log)
	if err != nil {
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		return nil, err
	}
	log.Infof("✓ Watching %s for changes", fw.Path())
	return fw, nil
}
