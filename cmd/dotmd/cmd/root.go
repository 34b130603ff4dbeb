// Package cmd provides the dotmd CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/inventivepotter/dotmd/internal/config"
	"github.com/inventivepotter/dotmd/internal/embed"
	"github.com/inventivepotter/dotmd/internal/logging"
	"github.com/inventivepotter/dotmd/internal/search"
	"github.com/inventivepotter/dotmd/internal/store"
	"github.com/inventivepotter/dotmd/pkg/service"
)

var debugMode bool

// NewRootCmd creates the root command for the dotmd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dotmd",
		Short: "Hybrid markdown knowledge-base search",
		Long: `dotmd indexes a directory of markdown notes and answers queries over
them with a fusion of dense vector search, BM25 keyword search, and
knowledge-graph traversal.

Run 'dotmd index' once, then 'dotmd search "<query>"'.`,
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging() func() {
	return setupLoggingTo("")
}

// setupLoggingTo routes this process's logs to filePath (empty means the
// default CLI log) and installs the logger as the slog default so every
// package's slog calls land in the file.
func setupLoggingTo(filePath string) func() {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	if filePath != "" {
		logCfg.FilePath = filePath
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// storePaths centralizes the on-disk layout under a Config's IndexDir.
type storePaths struct {
	vector   string
	bm25     string
	graph    string
	metadata string
}

func pathsFor(cfg *config.Config) storePaths {
	return storePaths{
		vector:   filepath.Join(cfg.IndexDir, "vectors.hnsw"),
		bm25:     filepath.Join(cfg.IndexDir, "bm25.bleve"),
		graph:    filepath.Join(cfg.IndexDir, "graph.kuzu"),
		metadata: filepath.Join(cfg.IndexDir, "metadata.db"),
	}
}

// openStores opens (and, for the vector store, loads) the four concrete
// backends behind the storage protocols. Callers must call closeStores.
func openStores(cfg *config.Config) (service.Stores, func(), error) {
	paths := pathsFor(cfg)

	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return service.Stores{}, nil, fmt.Errorf("create index directory: %w", err)
	}

	metadataStore, err := store.OpenSQLiteMetadataStore(paths.metadata, cfg.ReadOnly)
	if err != nil {
		return service.Stores{}, nil, fmt.Errorf("open metadata store: %w", err)
	}

	bm25Store, err := store.OpenBleveBM25Index(paths.bm25)
	if err != nil {
		metadataStore.Close()
		return service.Stores{}, nil, fmt.Errorf("open bm25 index: %w", err)
	}

	graphStore, err := store.OpenKuzuGraphStore(paths.graph, cfg.ReadOnly)
	if err != nil {
		metadataStore.Close()
		bm25Store.Close()
		return service.Stores{}, nil, fmt.Errorf("open graph store: %w", err)
	}

	vectorStore := store.NewHNSWVectorStore(cfg.EmbeddingDim)
	if err := vectorStore.Load(paths.vector); err != nil {
		metadataStore.Close()
		bm25Store.Close()
		graphStore.Close()
		return service.Stores{}, nil, fmt.Errorf("load vector store: %w", err)
	}

	stores := service.Stores{
		Metadata: metadataStore,
		Vector:   vectorStore,
		BM25:     bm25Store,
		Graph:    graphStore,
	}

	closeFn := func() {
		if !cfg.ReadOnly {
			if err := vectorStore.Save(paths.vector); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to save vector store: %v\n", err)
			}
		}
		metadataStore.Close()
		bm25Store.Close()
		graphStore.Close()
		vectorStore.Close()
	}

	return stores, closeFn, nil
}

func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvedConfig loads config from dir and anchors DataDir/IndexDir to it,
// mirroring how every subcommand's --dir flag is interpreted.
func resolvedConfig(dir string, readOnly bool) (*config.Config, error) {
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	cfg.ReadOnly = readOnly
	cfg.DataDir = dir
	if !filepath.IsAbs(cfg.IndexDir) {
		cfg.IndexDir = filepath.Join(dir, cfg.IndexDir)
	}
	return cfg, nil
}

func newServiceForCmd(ctx context.Context, dir string, readOnly bool) (*service.Service, func(), error) {
	cfg, err := resolvedConfig(dir, readOnly)
	if err != nil {
		return nil, nil, err
	}

	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderType(""), cfg.EmbeddingModel)
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("create embedder: %w", err)
	}

	svc := service.New(cfg, stores, embedder, &search.NoOpReranker{})
	return svc, closeStores, nil
}
