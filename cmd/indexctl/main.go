// Package main is the entry point for the indexctl ingestion CLI.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"selfrag-orchestrator/internal/adapter/ollama"
	"selfrag-orchestrator/internal/adapter/pgstore"
	"selfrag-orchestrator/internal/domain"
	"selfrag-orchestrator/internal/infra"
	"selfrag-orchestrator/internal/infra/config"
	"selfrag-orchestrator/internal/infra/httpclient"
	"selfrag-orchestrator/internal/infra/logger"
	"selfrag-orchestrator/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "indexctl",
	Short: "Manage the passage index",
	Long: `indexctl loads documents into the passage index and removes them again.

Configuration comes from the same environment variables the server reads
(DB_HOST, OLLAMA_URL, EMBEDDING_MODEL, ...).

Example usage:
  indexctl load ./docs            # Chunk, embed and index every .txt/.md file
  indexctl purge --source faq.md  # Remove one source from the index
  indexctl stats                  # Show passage count`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var loadCmd = &cobra.Command{
	Use:   "load <dir>",
	Short: "Index every .txt and .md file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove all passages for one source",
	RunE:  runPurge,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show passage count",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(statsCmd)

	purgeCmd.Flags().String("source", "", "source name to purge")
	_ = purgeCmd.MarkFlagRequired("source")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

type toolbox struct {
	indexUsecase usecase.IndexDocumentUsecase
	passageRepo  domain.PassageRepository
	close        func()
}

func buildToolbox(ctx context.Context) (*toolbox, error) {
	cfg := config.Load()
	log := logger.New()

	pool, err := infra.NewPostgresDB(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	ollamaHTTP := httpclient.NewPooledClient(cfg.OllamaTimeout)
	embedder := ollama.NewEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, ollamaHTTP, log)

	passageRepo := pgstore.NewPassageRepository(pool)
	txManager := pgstore.NewPostgresTransactionManager(pool)
	chunker := domain.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)

	// No query path in this process, so there is no retrieval cache to drop.
	return &toolbox{
		indexUsecase: usecase.NewIndexDocumentUsecase(passageRepo, txManager, chunker, embedder, nil, log),
		passageRepo:  passageRepo,
		close:        pool.Close,
	}, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	tb, err := buildToolbox(ctx)
	if err != nil {
		return err
	}
	defer tb.close()

	root := args[0]
	var loaded int
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		source := filepath.Base(path)
		if err := tb.indexUsecase.Upsert(ctx, source, string(body)); err != nil {
			return fmt.Errorf("failed to index %s: %w", source, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", source)
		loaded++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "done: %d documents indexed\n", loaded)
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	tb, err := buildToolbox(ctx)
	if err != nil {
		return err
	}
	defer tb.close()

	if err := tb.indexUsecase.Purge(ctx, source); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", source)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tb, err := buildToolbox(ctx)
	if err != nil {
		return err
	}
	defer tb.close()

	count, err := tb.passageRepo.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "passages: %d\n", count)
	return nil
}
