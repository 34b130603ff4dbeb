package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"

	dotmderrors "github.com/inventivepotter/dotmd/internal/errors"
)

// schemaStatements creates the node and relationship tables. One relation
// table per (source label, target label) pair is required because Kuzu's
// Cypher dialect needs explicit FROM/TO types on REL TABLE.
var schemaStatements = []string{
	"CREATE NODE TABLE IF NOT EXISTS File(id STRING, title STRING, checksum STRING, PRIMARY KEY (id))",
	"CREATE NODE TABLE IF NOT EXISTS Section(id STRING, heading STRING, level INT64, file_path STRING, text_preview STRING, PRIMARY KEY (id))",
	"CREATE NODE TABLE IF NOT EXISTS Entity(id STRING, type STRING, source STRING, PRIMARY KEY (id))",
	"CREATE NODE TABLE IF NOT EXISTS Tag(id STRING, PRIMARY KEY (id))",
	"CREATE REL TABLE IF NOT EXISTS FILE_SECTION(FROM File TO Section, rel_type STRING, weight DOUBLE)",
	"CREATE REL TABLE IF NOT EXISTS SECTION_SECTION(FROM Section TO Section, rel_type STRING, weight DOUBLE)",
	"CREATE REL TABLE IF NOT EXISTS SECTION_ENTITY(FROM Section TO Entity, rel_type STRING, weight DOUBLE)",
	"CREATE REL TABLE IF NOT EXISTS SECTION_TAG(FROM Section TO Tag, rel_type STRING, weight DOUBLE)",
	"CREATE REL TABLE IF NOT EXISTS ENTITY_ENTITY(FROM Entity TO Entity, rel_type STRING, weight DOUBLE)",
	"CREATE REL TABLE IF NOT EXISTS FILE_TAG(FROM File TO Tag, rel_type STRING, weight DOUBLE)",
	"CREATE REL TABLE IF NOT EXISTS FILE_ENTITY(FROM File TO Entity, rel_type STRING, weight DOUBLE)",
}

var nodeLabels = []string{"File", "Section", "Entity", "Tag"}

// relTableFor maps a (source label, target label) pair to its relation
// table name.
var relTableFor = map[[2]string]string{
	{"File", "Section"}:    "FILE_SECTION",
	{"Section", "Section"}: "SECTION_SECTION",
	{"Section", "Entity"}:  "SECTION_ENTITY",
	{"Section", "Tag"}:     "SECTION_TAG",
	{"Entity", "Entity"}:   "ENTITY_ENTITY",
	{"File", "Tag"}:        "FILE_TAG",
	{"File", "Entity"}:     "FILE_ENTITY",
}

// KuzuGraphStore implements GraphStore against an embedded Kuzu database:
// the knowledge graph of files, sections, entities, and tags.
type KuzuGraphStore struct {
	mu   sync.Mutex
	db   *kuzu.Database
	conn *kuzu.Connection
}

// OpenKuzuGraphStore opens (creating if absent) the graph database
// directory at dbPath and ensures its schema exists. A read-only store
// skips schema creation and opens the database read-only.
func OpenKuzuGraphStore(dbPath string, readOnly bool) (*KuzuGraphStore, error) {
	if !readOnly {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create graph db dir: %w", err)
			}
		}
	}

	systemConfig := kuzu.DefaultSystemConfig()
	systemConfig.ReadOnly = readOnly

	// A concurrent `dotmd index` run can briefly hold the database file lock;
	// retry with backoff instead of failing a `dotmd search` outright.
	retryCfg := dotmderrors.DefaultRetryConfig()
	retryCfg.MaxRetries = 3
	retryCfg.InitialDelay = 200 * time.Millisecond
	db, err := dotmderrors.RetryWithResult(context.Background(), retryCfg, func() (*kuzu.Database, error) {
		return kuzu.OpenDatabase(dbPath, systemConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("open kuzu database: %w", err)
	}

	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open kuzu connection: %w", err)
	}

	s := &KuzuGraphStore{db: db, conn: conn}
	if !readOnly {
		if err := s.initSchema(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *KuzuGraphStore) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.conn.Query(stmt); err != nil {
			return fmt.Errorf("create graph schema: %w", err)
		}
	}
	return nil
}

func (s *KuzuGraphStore) execute(query string, params map[string]any) (*kuzu.QueryResult, error) {
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", query, err)
	}
	defer stmt.Close()

	result, err := s.conn.Execute(stmt, params)
	if err != nil {
		return nil, fmt.Errorf("execute %q: %w", query, err)
	}
	return result, nil
}

func (s *KuzuGraphStore) AddFileNode(ctx context.Context, filePath, title, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.execute(
		"MERGE (f:File {id: $id}) SET f.title = $title, f.checksum = $checksum",
		map[string]any{"id": filePath, "title": title, "checksum": checksum})
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

func (s *KuzuGraphStore) AddSectionNode(ctx context.Context, chunkID, heading string, level int, filePath, textPreview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.execute(
		"MERGE (n:Section {id: $id}) SET n.heading = $heading, n.level = $level, n.file_path = $file_path, n.text_preview = $text_preview",
		map[string]any{
			"id": chunkID, "heading": heading, "level": int64(level),
			"file_path": filePath, "text_preview": textPreview,
		})
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

func (s *KuzuGraphStore) AddEntityNode(ctx context.Context, name, entityType, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.execute(
		"MERGE (e:Entity {id: $id}) SET e.type = $type, e.source = $source",
		map[string]any{"id": name, "type": entityType, "source": source})
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

func (s *KuzuGraphStore) AddTagNode(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.execute("MERGE (t:Tag {id: $id})", map[string]any{"id": name})
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

func (s *KuzuGraphStore) AddEdge(ctx context.Context, sourceID, targetID, relationType string, weight float64) error {
	s.mu.Lock()

	srcLabel, err := s.findNodeLabelLocked(sourceID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	tgtLabel, err := s.findNodeLabelLocked(targetID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if srcLabel == "" || tgtLabel == "" {
		s.mu.Unlock()
		return fmt.Errorf("add edge: node not found (src=%s tgt=%s)", sourceID, targetID)
	}

	relTable, ok := relTableFor[[2]string{srcLabel, tgtLabel}]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("add edge: no relation table for %s -> %s", srcLabel, tgtLabel)
	}

	query := fmt.Sprintf(
		"MATCH (a:%s {id: $src}), (b:%s {id: $tgt}) MERGE (a)-[r:%s]->(b) SET r.rel_type = $rel_type, r.weight = $weight",
		srcLabel, tgtLabel, relTable)

	result, err := s.execute(query, map[string]any{
		"src": sourceID, "tgt": targetID, "rel_type": relationType, "weight": weight,
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

// findNodeLabelLocked returns which node table nodeID belongs to, or "" if
// none. Caller must hold s.mu.
func (s *KuzuGraphStore) findNodeLabelLocked(nodeID string) (string, error) {
	for _, label := range nodeLabels {
		query := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n.id", label)
		result, err := s.execute(query, map[string]any{"id": nodeID})
		if err != nil {
			return "", err
		}
		has := result.HasNext()
		result.Close()
		if has {
			return label, nil
		}
	}
	return "", nil
}

func (s *KuzuGraphStore) GetNeighbors(ctx context.Context, nodeID string, maxHops int) ([]NeighborEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srcLabel, err := s.findNodeLabelLocked(nodeID)
	if err != nil {
		return nil, err
	}
	if srcLabel == "" {
		return nil, nil
	}

	query := fmt.Sprintf(
		"MATCH (a:%s {id: $id})-[r* 1..%d]-(b) RETURN DISTINCT b.id",
		srcLabel, maxHops)

	result, err := s.execute(query, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var out []NeighborEdge
	for result.HasNext() {
		tuple, err := result.Next()
		if err != nil {
			return nil, fmt.Errorf("read neighbor row: %w", err)
		}
		val, err := tuple.GetValue(0)
		if err != nil {
			return nil, fmt.Errorf("read neighbor id: %w", err)
		}
		id, ok := val.(string)
		if !ok || id == nodeID {
			continue
		}
		out = append(out, NeighborEdge{NodeID: id, RelationLabel: "", Weight: 1.0})
	}
	return out, nil
}

func (s *KuzuGraphStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, relTable := range relTableFor {
		result, err := s.execute(fmt.Sprintf("MATCH ()-[r:%s]->() DELETE r", relTable), nil)
		if err != nil {
			return err
		}
		result.Close()
	}
	for _, label := range nodeLabels {
		result, err := s.execute(fmt.Sprintf("MATCH (n:%s) DELETE n", label), nil)
		if err != nil {
			return err
		}
		result.Close()
	}
	return nil
}

func (s *KuzuGraphStore) NodeCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, label := range nodeLabels {
		n, err := s.scalarCountLocked(fmt.Sprintf("MATCH (n:%s) RETURN count(n)", label))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *KuzuGraphStore) EdgeCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, relTable := range relTableFor {
		n, err := s.scalarCountLocked(fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", relTable))
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *KuzuGraphStore) scalarCountLocked(query string) (int, error) {
	result, err := s.execute(query, nil)
	if err != nil {
		return 0, err
	}
	defer result.Close()

	if !result.HasNext() {
		return 0, nil
	}
	tuple, err := result.Next()
	if err != nil {
		return 0, err
	}
	val, err := tuple.GetValue(0)
	if err != nil {
		return 0, err
	}
	switch n := val.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", val)
	}
}

func (s *KuzuGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

var _ GraphStore = (*KuzuGraphStore)(nil)
