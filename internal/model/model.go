// Package model holds the domain types shared across the chunker,
// extractors, search engines, and storage protocols: the data that flows
// from a directory of markdown files through indexing into search results.
package model

import "time"

// FileInfo describes a discovered markdown file. It is immutable after
// discovery; re-reading the same path produces a new FileInfo, never a
// mutation of an existing one.
type FileInfo struct {
	Path         string
	Title        string // first "# heading" in the file, or the filename stem
	LastModified time.Time
	SizeBytes    int64
	Checksum     string // content hash (md5 of the raw bytes)
}

// Chunk is a contiguous region of a markdown file, carrying its heading
// ancestry so downstream consumers can reconstruct where it sits in the
// document.
type Chunk struct {
	ChunkID          string
	FilePath         string
	HeadingHierarchy []string // ordered ancestor headings, outermost first
	Level            int      // heading level 1-6, or 0 for pre-heading text
	Text             string   // body with the heading path prepended
	ChunkIndex       int      // 0-based position within the file
	CharOffset       int      // byte offset in the original file
}

// Heading returns the last element of the hierarchy, or "" if the chunk
// precedes any heading.
func (c *Chunk) Heading() string {
	if len(c.HeadingHierarchy) == 0 {
		return ""
	}
	return c.HeadingHierarchy[len(c.HeadingHierarchy)-1]
}

// Entity sources, mirroring the provenance of the extractor that produced
// the entity.
const (
	EntitySourceStructural = "structural"
	EntitySourceKeyterm    = "keyterm"
	EntitySourceNER        = "ner"
)

// Entity is a canonical named thing discovered by an extractor.
// Deduplication key is (lowercase(Name), Type).
type Entity struct {
	Name     string // display form, case-preserved
	Type     string // "link", "tag", "acronym", "heading_term", "key_term", or a frontmatter key
	Source   string // one of the EntitySource* constants
	ChunkIDs []string
}

// Relation types recognized across extractors and the graph store.
const (
	RelationLinksTo        = "LINKS_TO"
	RelationHasTag         = "HAS_TAG"
	RelationHasFrontmatter = "HAS_FRONTMATTER"
	RelationParentOf       = "PARENT_OF"
	RelationContains       = "CONTAINS"
	RelationMentions       = "MENTIONS"
	RelationCoOccurs       = "CO_OCCURS"
)

// Relation is a directed labeled edge between two nodes, identified by
// chunk ID, entity name, or file path depending on RelationType.
type Relation struct {
	SourceID     string
	TargetID     string
	RelationType string
	Weight       float64
	Properties   map[string]string
}

// ExtractionResult is the output of a single extractor pass over a chunk
// list: the entities and relations it found.
type ExtractionResult struct {
	Entities  []Entity
	Relations []Relation
}

// ExpandedQuery is a query after expansion: the original text plus the
// terms discovered by the expander, and their concatenation.
type ExpandedQuery struct {
	Original      string
	ExpandedTerms []string
	ExpandedText  string
}

// SearchResult is a single hydrated, fused (and optionally reranked)
// search hit.
type SearchResult struct {
	ChunkID        string
	FilePath       string
	HeadingPath    string
	Snippet        string
	FusedScore     float64
	SemanticScore  *float64
	BM25Score      *float64
	GraphScore     *float64
	MatchedEngines []string // sorted alphabetically
}

// IndexStats summarizes the current state of an index.
type IndexStats struct {
	TotalFiles    int
	TotalChunks   int
	TotalEntities int
	TotalEdges    int
	LastIndexed   time.Time
}
