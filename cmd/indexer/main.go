package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/documenter-search/mcp-server/internal/config"
	"github.com/documenter-search/mcp-server/internal/indexing"
	"github.com/documenter-search/mcp-server/internal/logging"
	"github.com/documenter-search/mcp-server/internal/searchindex"
)

var (
	siteURL  string
	logLevel string
	asJSON   bool

	log *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Build, validate and convert Documenter search indexes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(logLevel)
		if err != nil {
			return err
		}
		log = logger.Sugar()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	SilenceUsage: true,
}

var buildCmd = &cobra.Command{
	Use:   "build <search_index.js> <index-dir>",
	Short: "Build a bleve index from a search_index.js",
	Example: `  indexer build docs/build/search_index.js ~/.documenter-mcp/search/index`,
	Args:  cobra.ExactArgs(2),
	RunE:  runBuild,
}

var validateCmd = &cobra.Command{
	Use:   "validate <search_index.js>...",
	Short: "Check search index files against the record schema",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

var exportCmd = &cobra.Command{
	Use:   "export <in> <out>",
	Short: "Re-encode a search index in the generator layout",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	buildCmd.Flags().StringVar(&siteURL, "site-url", config.DefaultSiteURL, "documentation root record locations resolve against")
	exportCmd.Flags().BoolVar(&asJSON, "json", false, "write the bare {\"docs\":[...]} object")
	rootCmd.AddCommand(buildCmd, validateCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	docsFile, indexDir := args[0], args[1]

	log.Infof("Documenter Search Indexer v%d", indexing.IndexSchemaVersion)
	log.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Infof("Parsing search index: %s", docsFile)
	chunks, err := indexing.ParseDocumentation(docsFile, siteURL)
	if err != nil {
		return err
	}
	avgTokens, oversized := indexing.ChunkStats(chunks)
	log.Infof("✓ Parsed %d chunks (avg: %d tokens, %d oversized)", len(chunks), avgTokens, oversized)

	if err := os.RemoveAll(indexDir); err != nil {
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexDir), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	log.Infof("Creating search index: %s", indexDir)
	err = indexing.CreateIndex(indexDir, chunks, func(done, total int) {
		log.Infof("  Indexed %d/%d chunks...", done, total)
	})
	if err != nil {
		return err
	}
	log.Infof("✓ Indexed %d chunks successfully", len(chunks))

	versionFile := filepath.Join(filepath.Dir(indexDir), ".index_version")
	if err := indexing.WriteVersion(versionFile); err != nil {
		log.Warnf("Warning: Failed to write version file: %v", err)
	} else {
		log.Infof("✓ Index schema version: v%d", indexing.IndexSchemaVersion)
	}

	log.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Infof("Index details:")
	log.Infof("  Location:     %s", indexDir)
	log.Infof("  Total chunks: %d", len(chunks))
	log.Infof("  Avg size:     %d tokens (~%d chars)", avgTokens, avgTokens*indexing.CharsPerToken)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		index, err := searchindex.ReadFile(path)
		if err != nil {
			log.Errorf("✗ %v", err)
			failed++
			continue
		}

		report := index.Validate()
		for _, e := range report.Errors {
			log.Errorf("  %s %s: %s", e.Code, e.Path, e.Message)
		}
		for _, w := range report.Warnings {
			log.Warnf("  %s %s: %s", w.Code, w.Path, w.Message)
		}
		if !report.Valid() {
			log.Errorf("✗ %s: %d errors, %d warnings", path, len(report.Errors), len(report.Warnings))
			failed++
			continue
		}
		log.Infof("✓ %s: %d records, %d pages, %d warnings", path, index.Len(), len(index.Pages()), len(report.Warnings))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, len(args))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	index, err := searchindex.ReadFile(in)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	if asJSON {
		err = index.EncodeJSON(f)
	} else {
		err = index.Encode(f)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	log.Infof("✓ Wrote %d records to %s", index.Len(), out)
	return nil
}
