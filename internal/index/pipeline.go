// Package index orchestrates the indexing pipeline: discover markdown
// files, chunk them, fan the chunks out to the vector store, the BM25
// index, and the structural/key-term/acronym extractors, then populate the
// knowledge graph and persist aggregate stats. Search-time orchestration
// lives in pkg/service.
package index

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inventivepotter/dotmd/internal/chunk"
	"github.com/inventivepotter/dotmd/internal/config"
	"github.com/inventivepotter/dotmd/internal/embed"
	dotmderrors "github.com/inventivepotter/dotmd/internal/errors"
	"github.com/inventivepotter/dotmd/internal/extract"
	"github.com/inventivepotter/dotmd/internal/model"
	"github.com/inventivepotter/dotmd/internal/scanner"
	"github.com/inventivepotter/dotmd/internal/store"
)

// Dependencies wires the storage protocols and collaborator models the
// pipeline writes through. None are owned by the pipeline; callers open and
// close them.
type Dependencies struct {
	Metadata store.MetadataStore
	Vector   store.VectorStore
	BM25     store.BM25Index
	Graph    store.GraphStore
	Embedder embed.Embedder
}

// Pipeline runs a full reindex. There is no incremental write path; a
// Run rebuilds all three stores from scratch.
type Pipeline struct {
	cfg  *config.Config
	deps Dependencies

	chunker         *chunk.Chunker
	structural      *extract.StructuralExtractor
	keyterm         *extract.KeyTermExtractor
	scanner         *scanner.Scanner
	excludePatterns []string
}

// New constructs a Pipeline from a loaded Config and its Dependencies.
func New(cfg *config.Config, deps Dependencies) (*Pipeline, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, dotmderrors.Wrap(dotmderrors.ErrCodeInternal, err)
	}

	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		chunker: chunk.New(chunk.Options{
			MaxTokens:     cfg.MaxChunkTokens,
			OverlapTokens: cfg.ChunkOverlapTokens,
		}),
		structural: extract.NewStructuralExtractor(),
		keyterm: extract.NewKeyTermExtractor(extract.KeyTermConfig{
			MinDF:         cfg.MinDF,
			MaxDFRatio:    cfg.MaxDFRatio,
			TopKPerChunk:  cfg.TopKPerChunk,
			TopPercentile: cfg.TopPercentile,
		}),
		scanner:         sc,
		excludePatterns: defaultExcludePatterns,
	}, nil
}

var defaultExcludePatterns = []string{
	".git/*", "node_modules/*", ".dotmd/*", "*.min.md",
}

// Result is the outcome of a successful Run: the stats persisted to the
// metadata store plus the acronym dictionary, which the caller persists
// as a JSON sidecar.
type Result struct {
	Stats    model.IndexStats
	Acronyms extract.AcronymDictionary
}

// Run executes discover -> chunk -> embed -> BM25 -> extract -> graph in
// order. Indexing failures abort partway through; the only recovery is
// clear() + retry.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	files, err := p.discover(ctx)
	if err != nil {
		return Result{}, err
	}

	var allChunks []model.Chunk
	fileInfos := make([]model.FileInfo, 0, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f.AbsPath)
		if err != nil {
			slog.Warn("index_read_failed", slog.String("path", f.AbsPath), slog.String("error", err.Error()))
			continue
		}

		relPath := f.Path
		chunks := p.chunker.Chunk(relPath, string(content))
		allChunks = append(allChunks, chunks...)

		fileInfos = append(fileInfos, model.FileInfo{
			Path:         relPath,
			Title:        fileTitle(chunks, relPath),
			LastModified: f.ModTime,
			SizeBytes:    f.Size,
			Checksum:     checksum(content),
		})
	}

	slog.Info("index_chunked", slog.Int("files", len(fileInfos)), slog.Int("chunks", len(allChunks)))

	if err := p.deps.Metadata.SaveChunks(ctx, allChunks); err != nil {
		return Result{}, dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}

	if err := p.embedAndIndex(ctx, allChunks); err != nil {
		return Result{}, err
	}

	entities, relations, acronyms, err := p.runExtractors(ctx, allChunks)
	if err != nil {
		return Result{}, err
	}

	if err := p.populateGraph(ctx, fileInfos, allChunks, entities, relations); err != nil {
		return Result{}, err
	}

	stats := model.IndexStats{
		TotalFiles:    len(fileInfos),
		TotalChunks:   len(allChunks),
		TotalEntities: len(entities),
		TotalEdges:    len(relations) + len(allChunks), // relations + CONTAINS edges
		LastIndexed:   start,
	}
	if err := p.deps.Metadata.SaveStats(ctx, stats); err != nil {
		return Result{}, dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}

	slog.Info("index_complete",
		slog.Int("files", stats.TotalFiles),
		slog.Int("chunks", stats.TotalChunks),
		slog.Int("entities", stats.TotalEntities),
		slog.Duration("elapsed", time.Since(start)))

	return Result{Stats: stats, Acronyms: acronyms}, nil
}

// discover scans DataDir for markdown files, respecting gitignore and the
// pipeline's exclude patterns.
func (p *Pipeline) discover(ctx context.Context) ([]scanner.FileInfo, error) {
	info, err := os.Stat(p.cfg.DataDir)
	if err != nil || !info.IsDir() {
		return nil, dotmderrors.New(dotmderrors.ErrCodeSourceDirMissing,
			fmt.Sprintf("data_dir %q is missing or not a directory", p.cfg.DataDir), err)
	}

	results, err := p.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          p.cfg.DataDir,
		ExcludePatterns:  p.excludePatterns,
		RespectGitignore: true,
	})
	if err != nil {
		return nil, dotmderrors.Wrap(dotmderrors.ErrCodeInternal, err)
	}

	var files []scanner.FileInfo
	for r := range results {
		if r.Error != nil {
			slog.Warn("index_scan_error", slog.String("error", r.Error.Error()))
			continue
		}
		if r.File.ContentType != scanner.ContentTypeMarkdown {
			continue
		}
		files = append(files, *r.File)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// embedAndIndex runs the dense encoder over every chunk text and writes
// both the vector store and the BM25 index. The two writes are
// independent, so they run concurrently.
func (p *Pipeline) embedAndIndex(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ChunkID
	}

	g, gctx := errgroup.WithContext(ctx)
	var embeddings [][]float32

	g.Go(func() error {
		vecs, err := p.deps.Embedder.EmbedBatch(gctx, texts)
		if err != nil {
			return dotmderrors.Wrap(dotmderrors.ErrCodeModelLoadFailed, err)
		}
		embeddings = vecs
		return nil
	})

	g.Go(func() error {
		for _, c := range chunks {
			if err := p.deps.BM25.Index(gctx, c.ChunkID, c.Text); err != nil {
				return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.deps.Vector.AddChunks(ctx, ids, embeddings); err != nil {
		return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
	}
	return nil
}

// runExtractors runs the structural and key-term extractors in parallel
// plus the acronym-dictionary pass, then merges entities across both
// extractors by their (lowercase(name), type) dedup key.
func (p *Pipeline) runExtractors(ctx context.Context, chunks []model.Chunk) ([]model.Entity, []model.Relation, extract.AcronymDictionary, error) {
	var structuralResult, keytermResult model.ExtractionResult
	var acronyms extract.AcronymDictionary

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		structuralResult = p.structural.Extract(chunks)
		return nil
	})
	g.Go(func() error {
		keytermResult = p.keyterm.Extract(chunks)
		return nil
	})
	g.Go(func() error {
		acronyms = extract.ExtractAcronymsFromChunks(chunks)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, dotmderrors.Wrap(dotmderrors.ErrCodeExtractionFailed, err)
	}

	entities := mergeEntities(append(append([]model.Entity{}, structuralResult.Entities...), keytermResult.Entities...))
	relations := append(append([]model.Relation{}, structuralResult.Relations...), keytermResult.Relations...)

	return entities, relations, acronyms, nil
}

// mergeEntities unions ChunkIDs for entities sharing the dedup key
// (lowercase(name), type), preserving the first-seen display-case name.
func mergeEntities(entities []model.Entity) []model.Entity {
	type key struct{ name, typ string }
	index := make(map[key]int)
	var out []model.Entity

	for _, e := range entities {
		k := key{strings.ToLower(e.Name), e.Type}
		if idx, ok := index[k]; ok {
			out[idx].ChunkIDs = appendUniqueChunkIDs(out[idx].ChunkIDs, e.ChunkIDs)
			continue
		}
		index[k] = len(out)
		out = append(out, e)
	}
	return out
}

func appendUniqueChunkIDs(existing []string, add []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range add {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			existing = append(existing, id)
		}
	}
	return existing
}

// populateGraph upserts entity and tag nodes first, then file nodes, then
// section nodes, then every relation edge, then CONTAINS edges from each
// file to its chunks, so edges never reference a node that does not exist
// yet.
func (p *Pipeline) populateGraph(ctx context.Context, files []model.FileInfo, chunks []model.Chunk, entities []model.Entity, relations []model.Relation) error {
	for _, e := range entities {
		var err error
		if e.Type == "tag" {
			err = p.deps.Graph.AddTagNode(ctx, e.Name)
		} else {
			err = p.deps.Graph.AddEntityNode(ctx, e.Name, e.Type, e.Source)
		}
		if err != nil {
			return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
		}
	}

	for _, f := range files {
		if err := p.deps.Graph.AddFileNode(ctx, f.Path, f.Title, f.Checksum); err != nil {
			return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
		}
	}

	for _, c := range chunks {
		preview := c.Text
		if len(preview) > 240 {
			preview = preview[:240]
		}
		if err := p.deps.Graph.AddSectionNode(ctx, c.ChunkID, c.Heading(), c.Level, c.FilePath, preview); err != nil {
			return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
		}
	}

	for _, r := range relations {
		if err := p.deps.Graph.AddEdge(ctx, r.SourceID, r.TargetID, r.RelationType, weightOrOne(r.Weight)); err != nil {
			return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
		}
	}

	for _, c := range chunks {
		if err := p.deps.Graph.AddEdge(ctx, c.FilePath, c.ChunkID, model.RelationContains, 1); err != nil {
			return dotmderrors.Wrap(dotmderrors.ErrCodeStorageBackendFailure, err)
		}
	}

	return nil
}

func weightOrOne(w float64) float64 {
	if w <= 0 {
		return 1
	}
	return w
}

// fileTitle returns the first level-1 heading, falling back to the
// filename stem.
func fileTitle(chunks []model.Chunk, relPath string) string {
	for _, c := range chunks {
		if c.Level == 1 {
			return c.Heading()
		}
	}
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func checksum(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
