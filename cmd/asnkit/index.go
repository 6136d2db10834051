// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkovacs/asnkit/internal/embed"
	"github.com/mkovacs/asnkit/internal/index"
	"github.com/mkovacs/asnkit/internal/mapping"
	"github.com/mkovacs/asnkit/internal/secrets"
	"github.com/mkovacs/asnkit/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the retrieval index (store, retrieve, export)",
	Long: `Index manages a local SQLite index built from the mapping manifest and
the per-section files. Use subcommands to ingest chunks, query them, or
export the index.`,
}

// --- store subcommand ---

var indexStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Ingest mapped sections into the retrieval index",
	Long: `Store reads the mapping manifest, pairs each ASN.1 message with the
content of its section files, and ingests the chunks into a SQLite
database with FTS5 indexing. Messages whose section files are unchanged
are skipped on subsequent runs.

With --embed, chunks that do not yet carry an embedding are sent to the
embeddings API so retrieve --semantic can rank them.`,
	RunE: runIndexStore,
}

func runIndexStore(cmd *cobra.Command, args []string) error {
	cfg := indexConfig(cmd)

	manifest, err := mapping.Load(cfg.Mapping)
	if err != nil {
		return err
	}

	store, err := index.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(context.Background(), manifest, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d message(s) failed indexing", summary.Failed)
	}

	if doEmbed, _ := cmd.Flags().GetBool("embed"); doEmbed {
		embedCfg, err := embedConfig(cmd)
		if err != nil {
			return err
		}
		n, err := store.EmbedChunks(context.Background(), embed.NewClient(embedCfg), embedCfg.Model, embedCfg.BatchSize)
		if err != nil {
			return err
		}
		fmt.Printf("embedded %d chunk(s)\n", n)
	}

	return nil
}

// --- retrieve subcommand ---

var indexRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Query the index with full-text search and filters",
	Long: `Retrieve searches the index using FTS5 full-text search, structured
filters (message, source file), or a combination of both. With
--semantic the query is embedded and chunks are ranked by cosine
similarity instead.

Use --trace with a chunk ID to view the source section file.`,
	RunE: runIndexRetrieve,
}

func runIndexRetrieve(cmd *cobra.Command, args []string) error {
	cfg := indexConfig(cmd)
	store, err := index.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Trace mode: show the source section for a specific chunk.
	if traceID, _ := cmd.Flags().GetString("trace"); traceID != "" {
		text, err := store.Trace(context.Background(), traceID)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	opts := queryOptsFromFlags(cmd, args)

	if semantic, _ := cmd.Flags().GetBool("semantic"); semantic {
		if opts.Query == "" {
			return fmt.Errorf("--semantic requires a query")
		}
		embedCfg, err := embedConfig(cmd)
		if err != nil {
			return err
		}
		results, err := store.SemanticRetrieve(context.Background(),
			embed.NewClient(embedCfg), embedCfg.Model, opts.Query, opts.MaxResults)
		if err != nil {
			return err
		}
		return formatRetrieveOutput(results, jsonOutput)
	}

	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --message, or --source")
	}

	results, err := store.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}
	return formatRetrieveOutput(results, jsonOutput)
}

func formatRetrieveOutput(results []index.QueryResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-24s  %-34s  %s\n",
		"Rank", "Message", "Source", "Content")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for i, r := range results {
		content := firstLine(r.Content)
		if len(content) > 44 {
			content = content[:41] + "..."
		}
		message := r.Message
		if len(message) > 24 {
			message = message[:21] + "..."
		}
		source := r.SourceFile
		if len(source) > 34 {
			source = source[:31] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-24s  %-34s  %s\n", i+1, message, source, content)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// --- export subcommand ---

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the index to YAML or JSON",
	Long: `Export writes the full index (or a filtered subset) to export.yaml or
export.json in the index directory. Supports the same filter flags as
retrieve for partial exports.`,
	RunE: runIndexExport,
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg := indexConfig(cmd)
	store, err := index.NewStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background(), opts); err != nil {
			return err
		}
		fmt.Printf("Exported to %s/export.yaml\n", cfg.IndexDir)
	case "json":
		if err := store.ExportJSON(context.Background(), opts); err != nil {
			return err
		}
		fmt.Printf("Exported to %s/export.json\n", cfg.IndexDir)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- shared helpers ---

func indexConfig(cmd *cobra.Command) types.IndexConfig {
	indexDir, _ := cmd.Flags().GetString("index-dir")
	sectionsDir, _ := cmd.Flags().GetString("sections-dir")
	mappingPath, _ := cmd.Flags().GetString("mapping")
	spec, _ := cmd.Flags().GetString("spec")
	specVersion, _ := cmd.Flags().GetString("spec-version")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return types.IndexConfig{
		IndexDir:    indexDir,
		SectionsDir: sectionsDir,
		Mapping:     mappingPath,
		Spec:        spec,
		Version:     specVersion,
		MaxResults:  maxResults,
	}
}

func embedConfig(cmd *cobra.Command) (types.EmbedConfig, error) {
	model, _ := cmd.Flags().GetString("embed-model")
	batchSize, _ := cmd.Flags().GetInt("embed-batch")

	cfg := types.EmbedConfig{
		Model:      model,
		APIKey:     secrets.Resolve(loadedSecrets, secrets.KeyOpenAI, viper.GetString("embed.api_key")),
		BaseURL:    viper.GetString("embed.base_url"),
		BatchSize:  batchSize,
		MaxRetries: viper.GetInt("embed.max_retries"),
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return cfg, fmt.Errorf("no embeddings API key: add .secrets/%s or set embed.base_url for a local backend", secrets.KeyOpenAI)
	}
	return cfg, nil
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) index.QueryOptions {
	query := strings.Join(args, " ")
	message, _ := cmd.Flags().GetString("message")
	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("max-results")

	return index.QueryOptions{
		Query:      query,
		Message:    message,
		SourceFile: source,
		MaxResults: limit,
	}
}

func init() {
	for _, c := range []*cobra.Command{indexStoreCmd, indexRetrieveCmd, indexExportCmd} {
		c.Flags().String("index-dir", "index", "directory for the SQLite database and exports")
		c.Flags().String("sections-dir", "asn1_sections", "directory of per-section files")
		c.Flags().Int("max-results", 20, "maximum number of query results")
	}

	indexStoreCmd.Flags().String("mapping", "mapping.json", "mapping manifest path")
	indexStoreCmd.Flags().String("spec", "", "specification number recorded in chunk metadata (e.g. 36331)")
	indexStoreCmd.Flags().String("spec-version", "", "specification version recorded in chunk metadata (e.g. j00)")
	indexStoreCmd.Flags().Bool("embed", false, "compute embeddings for new chunks after ingestion")

	indexRetrieveCmd.Flags().String("message", "", "filter by ASN.1 message name")
	indexRetrieveCmd.Flags().String("source", "", "filter by section filename")
	indexRetrieveCmd.Flags().Bool("semantic", false, "rank by embedding similarity instead of full-text match")
	indexRetrieveCmd.Flags().Bool("json", false, "output results as JSON")
	indexRetrieveCmd.Flags().String("trace", "", "show the source section file for a chunk ID")

	indexExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	indexExportCmd.Flags().String("message", "", "filter by ASN.1 message name")
	indexExportCmd.Flags().String("source", "", "filter by section filename")

	for _, c := range []*cobra.Command{indexStoreCmd, indexRetrieveCmd} {
		c.Flags().String("embed-model", "text-embedding-3-small", "embeddings model identifier")
		c.Flags().Int("embed-batch", 64, "chunk texts per embeddings request")
	}

	indexCmd.AddCommand(indexStoreCmd)
	indexCmd.AddCommand(indexRetrieveCmd)
	indexCmd.AddCommand(indexExportCmd)
	rootCmd.AddCommand(indexCmd)
}
