// Package store provides SQLite-backed persistence for the memory graph.
// Uses ncruces/go-sqlite3/driver, which provides a database/sql interface,
// plus sqlite-vec-go-bindings for the vec0 vector index.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/stem"
	"github.com/kittclouds/gomemory/internal/textnorm"
)

// SQLiteStore is the SQLite-backed graph+embedding store. Thread-safe for
// the concurrent retrieve/store loops: reads and writes are serialized
// through a single RWMutex guarding one *sql.DB handle.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
	log zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
 id TEXT PRIMARY KEY,
 node_type TEXT NOT NULL,
 subtype TEXT,
 content TEXT NOT NULL,
 salience REAL NOT NULL DEFAULT 1.0,
 confidence REAL NOT NULL DEFAULT 1.0,
 source TEXT NOT NULL,
 created_at INTEGER NOT NULL,
 valid_from INTEGER,
 valid_until INTEGER,
 superseded_by TEXT,
 attributes TEXT NOT NULL DEFAULT '{}',
 can_summarize INTEGER NOT NULL DEFAULT 1,
 scope REAL
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_nodes_subtype ON nodes(subtype);

CREATE TABLE IF NOT EXISTS edges (
 id TEXT PRIMARY KEY,
 source_id TEXT NOT NULL REFERENCES nodes(id),
 target_id TEXT NOT NULL REFERENCES nodes(id),
 edge_type TEXT NOT NULL,
 attributes TEXT NOT NULL DEFAULT '{}',
 created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(edge_type);

CREATE TABLE IF NOT EXISTS embeddings (
 node_id TEXT PRIMARY KEY REFERENCES nodes(id),
 node_type TEXT NOT NULL,
 created_at INTEGER NOT NULL
);
`

// vecSchema creates the vec0 virtual table used for SQL-pushdown KNN search.
// node_type is declared a partition key so a single-type filter ("search
// entity nodes", "search instruction nodes") can be pushed into the MATCH
// query instead of falling back to the brute-force scan in
// internal/vectorindex.
const vecSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
 node_id text primary key,
 node_type text partition key,
 embedding float[1024] distance_metric=cosine
);
`

// NewSQLiteStore opens an in-memory store, primarily for tests.
func NewSQLiteStore(log zerolog.Logger) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:", log)
}

// NewSQLiteStoreWithDSN opens a store at dsn ("" /":memory:" for a
// throwaway store, a file path for the persistent store named by
// config.Config.StorePath).
func NewSQLiteStoreWithDSN(dsn string, log zerolog.Logger) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single-writer store with a long-lived handle;
	// journal_mode=WAL gives the write-ahead journaling that section calls
	// for without needing cross-process coordination.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(vecSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create vec schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log}, nil
}

// Close releases the store's database handle on all exit paths, including
// callers that defer it immediately after open.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle to internal/vectorindex, which needs to
// issue vec0 MATCH queries directly against the same connection.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// =============================================================================
// Node CRUD
// =============================================================================

// CreateNode inserts a node. can_summarize is forced false for
// instruction/plan nodes regardless of caller input, and scope falls back
// to DefaultScope when the caller omits it.
func (s *SQLiteStore) CreateNode(n Node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		return "", fmt.Errorf("create node: id is required")
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().UnixMilli()
	}
	if n.Salience == 0 {
		n.Salience = 1.0
	}
	if n.Confidence == 0 {
		n.Confidence = 1.0
	}

	switch n.NodeType {
	case NodeInstruction, NodePlan:
		n.CanSummarize = false
		if n.Scope == nil {
			n.Scope = DefaultScope(n.NodeType)
		}
	}

	attrsJSON, err := n.AttributesJSON()
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO nodes (id, node_type, subtype, content, salience, confidence,
			source, created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`, n.ID, string(n.NodeType), nullString(n.Subtype), n.Content, n.Salience, n.Confidence,
		string(n.Source), n.CreatedAt, nullInt64Ptr(n.ValidFrom), nullInt64Ptr(n.ValidUntil),
		attrsJSON, boolToInt(n.CanSummarize), nullFloatPtr(n.Scope))
	if err != nil {
		return "", fmt.Errorf("insert node: %w", err)
	}

	s.log.Debug().Str("node_id", n.ID).Str("node_type", string(n.NodeType)).Msg("created node")
	return n.ID, nil
}

// PutEmbedding writes (or replaces) the embedding row for a live node, in
// both the metadata table and the vec0 index.
func (s *SQLiteStore) PutEmbedding(nodeID string, nodeType NodeType, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putEmbeddingLocked(nodeID, nodeType, vector)
}

func (s *SQLiteStore) putEmbeddingLocked(nodeID string, nodeType NodeType, vector []float32) error {
	// The vec0 table is fixed at VectorDimension; shorter vectors are
	// zero-padded (padding leaves cosine similarity unchanged) and longer
	// ones truncated.
	if len(vector) != VectorDimension {
		fixed := make([]float32, VectorDimension)
		copy(fixed, vector)
		vector = fixed
	}
	raw, err := vec.SerializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	now := time.Now().UnixMilli()

	if _, err := s.db.Exec(`
		INSERT INTO embeddings (node_id, node_type, created_at) VALUES (?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET node_type = excluded.node_type
	`, nodeID, string(nodeType), now); err != nil {
		return fmt.Errorf("upsert embedding metadata: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM vec_embeddings WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("clear stale vector: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO vec_embeddings (node_id, node_type, embedding) VALUES (?, ?, ?)
	`, nodeID, string(nodeType), raw); err != nil {
		return fmt.Errorf("insert vector: %w", err)
	}
	return nil
}

// GetNode retrieves a single node by id, including superseded ones (callers
// that must exclude superseded nodes filter explicitly).
func (s *SQLiteStore) GetNode(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT id, node_type, subtype, content, salience, confidence, source,
			created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope
		FROM nodes WHERE id = ?
	`, id)
	return scanNode(row)
}

func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	var subtype, supersededBy sql.NullString
	var validFrom, validUntil sql.NullInt64
	var scope sql.NullFloat64
	var nodeType, source, attrsJSON string
	var canSummarize int

	err := row.Scan(&n.ID, &nodeType, &subtype, &n.Content, &n.Salience, &n.Confidence,
		&source, &n.CreatedAt, &validFrom, &validUntil, &supersededBy, &attrsJSON,
		&canSummarize, &scope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}

	n.NodeType = NodeType(nodeType)
	n.Source = Source(source)
	n.CanSummarize = canSummarize != 0
	if subtype.Valid {
		n.Subtype = subtype.String
	}
	if supersededBy.Valid {
		n.SupersededBy = supersededBy.String
	}
	if validFrom.Valid {
		v := validFrom.Int64
		n.ValidFrom = &v
	}
	if validUntil.Valid {
		v := validUntil.Int64
		n.ValidUntil = &v
	}
	if scope.Valid {
		v := scope.Float64
		n.Scope = &v
	}
	if attrsJSON != "" {
		_ = json.Unmarshal([]byte(attrsJSON), &n.Attributes)
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	defer rows.Close()
	var out []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, *n)
		}
	}
	return out, rows.Err()
}

// FindEntitiesByName does a substring match against entity content and the
// alias list in attributes, ranked by name-match flag then salience,
// stripping common trailing qualifiers (project, account, client, ...)
// first.
func (s *SQLiteStore) FindEntitiesByName(name string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := textnorm.EntityKey(name)
	if key == "" {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT id, node_type, subtype, content, salience, confidence, source,
			created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope
		FROM nodes
		WHERE node_type = 'entity' AND superseded_by IS NULL
		 AND (lower(content) LIKE '%' || ? || '%' OR lower(attributes) LIKE '%' || ? || '%')
	`, key, key)
	if err != nil {
		return nil, fmt.Errorf("find entities by name: %w", err)
	}
	nodes, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		node Node
		nameMatch bool
	}
	out := make([]ranked, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, ranked{node: n, nameMatch: strings.Contains(textnorm.Canonicalize(n.Content), key)})
	}
	sortStable(out, func(a, b ranked) bool {
		if a.nameMatch != b.nameMatch {
			return a.nameMatch
		}
		return a.node.Salience > b.node.Salience
	})

	result := make([]Node, len(out))
	for i, r := range out {
		result[i] = r.node
	}
	return result, nil
}

// sortStable is a small stable insertion sort kept local to avoid
// importing sort.Slice at every call site with a bespoke less-closure.
func sortStable[T any](items []T, less func(a, b T) bool) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// CreateEdge links two existing nodes. Rejects when either endpoint is
// missing; the partial write is not applied.
func (s *SQLiteStore) CreateEdge(id, sourceID, targetID, edgeType string, attrs map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, endpoint := range []string{sourceID, targetID} {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM nodes WHERE id = ?`, endpoint).Scan(&exists)
		if err == sql.ErrNoRows {
			s.log.Warn().Str("endpoint", endpoint).Msg("edge rejected: endpoint missing")
			return "", fmt.Errorf("create edge: endpoint %q does not exist", endpoint)
		}
		if err != nil {
			return "", fmt.Errorf("create edge: %w", err)
		}
	}

	e := Edge{ID: id, SourceID: sourceID, TargetID: targetID, EdgeType: edgeType, Attributes: attrs, CreatedAt: time.Now().UnixMilli()}
	attrsJSON, err := e.AttributesJSON()
	if err != nil {
		return "", fmt.Errorf("marshal edge attributes: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO edges (id, source_id, target_id, edge_type, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.SourceID, e.TargetID, e.EdgeType, attrsJSON, e.CreatedAt); err != nil {
		return "", fmt.Errorf("insert edge: %w", err)
	}
	return e.ID, nil
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		var attrsJSON string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.EdgeType, &attrsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if attrsJSON != "" {
			_ = json.Unmarshal([]byte(attrsJSON), &e.Attributes)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RelatedNode pairs an edge with the node at its other endpoint, for
// getRelationships-style results.
type RelatedNode struct {
	Edge Edge
	Other Node
	Toward bool // true if the edge points away from the queried node
}

// GetRelationships returns both-direction edges for id, excluding edges
// whose other endpoint is superseded.
func (s *SQLiteStore) GetRelationships(id string) ([]RelatedNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, edge_type, attributes, created_at
		FROM edges WHERE source_id = ? OR target_id = ?
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("get relationships: %w", err)
	}
	edges, err := scanEdges(rows)
	if err != nil {
		return nil, err
	}

	out := make([]RelatedNode, 0, len(edges))
	for _, e := range edges {
		otherID := e.TargetID
		toward := true
		if e.TargetID == id {
			otherID = e.SourceID
			toward = false
		}
		row := s.db.QueryRow(`
			SELECT id, node_type, subtype, content, salience, confidence, source,
				created_at, valid_from, valid_until, superseded_by, attributes,
				can_summarize, scope
			FROM nodes WHERE id = ? AND superseded_by IS NULL
		`, otherID)
		other, err := scanNode(row)
		if err != nil {
			return nil, err
		}
		if other == nil {
			continue
		}
		out = append(out, RelatedNode{Edge: e, Other: *other, Toward: toward})
	}
	return out, nil
}

func (s *SQLiteStore) nodesByEdgeFrom(id string, nodeTypes []NodeType, daysWindow *int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(nodeTypes))
	args := []any{id, id, id}
	for i, nt := range nodeTypes {
		placeholders[i] = "?"
		args = append(args, string(nt))
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT n.id, n.node_type, n.subtype, n.content, n.salience, n.confidence,
			n.source, n.created_at, n.valid_from, n.valid_until, n.superseded_by,
			n.attributes, n.can_summarize, n.scope
		FROM nodes n
		JOIN edges e ON (e.source_id = n.id OR e.target_id = n.id)
		WHERE (e.source_id = ? OR e.target_id = ?)
		 AND n.id != ?
		 AND n.superseded_by IS NULL
		 AND n.node_type IN (%s)
	`, strings.Join(placeholders, ","))

	if daysWindow != nil {
		cutoff := time.Now().AddDate(0, 0, -*daysWindow).UnixMilli()
		query += " AND n.created_at >= ?"
		args = append(args, cutoff)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("nodes by edge: %w", err)
	}
	return scanNodes(rows)
}

// GetFactsByEntity returns fact/opinion nodes connected to id by any edge.
func (s *SQLiteStore) GetFactsByEntity(id string) ([]Node, error) {
	return s.nodesByEdgeFrom(id, []NodeType{NodeFact, NodeOpinion}, nil)
}

// GetEventsByEntity returns event/plan nodes connected to id, optionally
// limited to the last `days` days.
func (s *SQLiteStore) GetEventsByEntity(id string, days *int) ([]Node, error) {
	return s.nodesByEdgeFrom(id, []NodeType{NodeEvent, NodePlan}, days)
}

// GetPlansByEntity returns plan nodes connected to id.
func (s *SQLiteStore) GetPlansByEntity(id string) ([]Node, error) {
	return s.nodesByEdgeFrom(id, []NodeType{NodePlan}, nil)
}

// GetInstructionsByEntity returns instruction nodes connected to id.
func (s *SQLiteStore) GetInstructionsByEntity(id string) ([]Node, error) {
	return s.nodesByEdgeFrom(id, []NodeType{NodeInstruction}, nil)
}

// GetInstructions returns instruction nodes. With a topic, it tokenizes
// (>2 chars), stems each token with internal/stem, and matches any stem via
// LIKE, ranked by match_count DESC, salience DESC. Without a topic, it
// returns all instructions ordered by salience.
func (s *SQLiteStore) GetInstructions(topic string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(topic) == "" {
		rows, err := s.db.Query(`
			SELECT id, node_type, subtype, content, salience, confidence, source,
				created_at, valid_from, valid_until, superseded_by, attributes,
				can_summarize, scope
			FROM nodes WHERE node_type = 'instruction' AND superseded_by IS NULL
			ORDER BY salience DESC
		`)
		if err != nil {
			return nil, fmt.Errorf("get instructions: %w", err)
		}
		return scanNodes(rows)
	}

	stems := stem.TopicStems(topic)
	if len(stems) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT id, node_type, subtype, content, salience, confidence, source,
			created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope
		FROM nodes WHERE node_type = 'instruction' AND superseded_by IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("get instructions by topic: %w", err)
	}
	candidates, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		node Node
		count int
	}
	var matched []scored
	for _, n := range candidates {
		lowered := strings.ToLower(n.Content)
		count := 0
		for _, st := range stems {
			if strings.Contains(lowered, st) {
				count++
			}
		}
		if count > 0 {
			matched = append(matched, scored{node: n, count: count})
		}
	}
	sortStable(matched, func(a, b scored) bool {
		if a.count != b.count {
			return a.count > b.count
		}
		return a.node.Salience > b.node.Salience
	})

	out := make([]Node, len(matched))
	for i, m := range matched {
		out[i] = m.node
	}
	return out, nil
}

// GetGlobalInstructions returns instruction nodes with scope >= 0.8, ordered
// by scope DESC, salience DESC, capped at limit.
func (s *SQLiteStore) GetGlobalInstructions(limit int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, node_type, subtype, content, salience, confidence, source,
			created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope
		FROM nodes
		WHERE node_type = 'instruction' AND superseded_by IS NULL AND scope >= 0.8
		ORDER BY scope DESC, salience DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get global instructions: %w", err)
	}
	return scanNodes(rows)
}

// GetRecentEventIds returns ids of event and plan nodes created within the
// last `days` days.
func (s *SQLiteStore) GetRecentEventIds(days int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	rows, err := s.db.Query(`
		SELECT id FROM nodes
		WHERE node_type IN ('event', 'plan') AND superseded_by IS NULL AND created_at >= ?
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get recent event ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsGarbled reports whether content strips (of whitespace/punctuation) to
// less than 30% of its original length -- the shared validation used by
// both supersedeNode and store_memory.
func IsGarbled(content string) bool {
	if len(content) == 0 {
		return true
	}
	total, kept := 0, 0
	for _, r := range content {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			kept++
		}
	}
	return float64(kept)/float64(total) < 0.30
}

// RepeatedWordRatio reports the fraction of words in content that are the
// single most frequent word, used by store_memory's repeated-word test.
func RepeatedWordRatio(content string) float64 {
	words := strings.Fields(strings.ToLower(content))
	if len(words) == 0 {
		return 0
	}
	counts := make(map[string]int, len(words))
	best := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > best {
			best = counts[w]
		}
	}
	return float64(best) / float64(len(words))
}

// SupersedeNode validates newContent, creates a replacement node carrying
// old's metadata, copies old's edges deduplicated by (other_endpoint,
// edge_type), and sets old's superseded_by. Returns the new node's id.
func (s *SQLiteStore) SupersedeNode(oldID, newContent string, newID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, node_type, subtype, content, salience, confidence, source,
			created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope
		FROM nodes WHERE id = ?
	`, oldID)
	old, err := scanNode(row)
	if err != nil {
		return "", err
	}
	if old == nil {
		return "", fmt.Errorf("supersede: node %q not found", oldID)
	}

	if IsGarbled(newContent) {
		return "", fmt.Errorf("supersede: replacement content is garbled")
	}
	if len(newContent) < 10 && old.NodeType != NodeEntity {
		return "", fmt.Errorf("supersede: replacement content too short")
	}

	replacement := *old
	replacement.ID = newID
	replacement.Content = newContent
	replacement.SupersededBy = ""
	replacement.CreatedAt = time.Now().UnixMilli()

	attrsJSON, err := replacement.AttributesJSON()
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO nodes (id, node_type, subtype, content, salience, confidence,
			source, created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`, replacement.ID, string(replacement.NodeType), nullString(replacement.Subtype),
		replacement.Content, replacement.Salience, replacement.Confidence,
		string(replacement.Source), replacement.CreatedAt, nullInt64Ptr(replacement.ValidFrom),
		nullInt64Ptr(replacement.ValidUntil), attrsJSON, boolToInt(replacement.CanSummarize),
		nullFloatPtr(replacement.Scope)); err != nil {
		return "", fmt.Errorf("insert replacement node: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, source_id, target_id, edge_type, attributes, created_at
		FROM edges WHERE source_id = ? OR target_id = ?
	`, oldID, oldID)
	if err != nil {
		return "", fmt.Errorf("load old edges: %w", err)
	}
	oldEdges, err := scanEdges(rows)
	if err != nil {
		return "", err
	}

	type dedupKey struct {
		other string
		edgeType string
	}
	seen := make(map[dedupKey]bool)
	for _, e := range oldEdges {
		var other string
		var fromOld bool
		if e.SourceID == oldID {
			other = e.TargetID
			fromOld = true
		} else {
			other = e.SourceID
			fromOld = false
		}
		key := dedupKey{other: other, edgeType: e.EdgeType}
		if seen[key] {
			continue
		}
		seen[key] = true

		newEdgeID := newID + "-edge-" + other + "-" + e.EdgeType
		sourceID, targetID := replacement.ID, other
		if !fromOld {
			sourceID, targetID = other, replacement.ID
		}
		attrsJSON, err := e.AttributesJSON()
		if err != nil {
			return "", fmt.Errorf("marshal copied edge attributes: %w", err)
		}
		if _, err := s.db.Exec(`
			INSERT INTO edges (id, source_id, target_id, edge_type, attributes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, newEdgeID, sourceID, targetID, e.EdgeType, attrsJSON, time.Now().UnixMilli()); err != nil {
			return "", fmt.Errorf("copy edge: %w", err)
		}
	}

	if _, err := s.db.Exec(`UPDATE nodes SET superseded_by = ? WHERE id = ?`, replacement.ID, oldID); err != nil {
		return "", fmt.Errorf("mark old node superseded: %w", err)
	}

	s.log.Info().Str("old_id", oldID).Str("new_id", replacement.ID).Msg("superseded node")
	return replacement.ID, nil
}

// PromotePlanToEvent changes a plan node's node_type to event and subtype
// to completed_plan in place, idempotently: calling it on an already
// promoted node is a no-op that returns the node unchanged.
func (s *SQLiteStore) PromotePlanToEvent(id string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`
		SELECT id, node_type, subtype, content, salience, confidence, source,
			created_at, valid_from, valid_until, superseded_by, attributes,
			can_summarize, scope
		FROM nodes WHERE id = ?
	`, id)
	n, err := scanNode(row)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	if n.NodeType == NodeEvent && n.Subtype == "completed_plan" {
		return n, nil
	}
	if n.NodeType != NodePlan {
		return nil, fmt.Errorf("promote: node %q is not a plan", id)
	}

	if _, err := s.db.Exec(`UPDATE nodes SET node_type = 'event', subtype = 'completed_plan' WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("promote plan: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE embeddings SET node_type = 'event' WHERE node_id = ?`, id); err != nil {
		return nil, fmt.Errorf("promote plan embedding metadata: %w", err)
	}
	// node_type is a vec0 partition key, which cannot be updated in place;
	// reinsert the vector row under the new type instead.
	var rawVec []byte
	err = s.db.QueryRow(`SELECT embedding FROM vec_embeddings WHERE node_id = ?`, id).Scan(&rawVec)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("promote plan: load vector: %w", err)
	}
	if err == nil {
		if _, err := s.db.Exec(`DELETE FROM vec_embeddings WHERE node_id = ?`, id); err != nil {
			return nil, fmt.Errorf("promote plan: clear vector: %w", err)
		}
		if _, err := s.db.Exec(`
			INSERT INTO vec_embeddings (node_id, node_type, embedding) VALUES (?, 'event', ?)
		`, id, rawVec); err != nil {
			return nil, fmt.Errorf("promote plan: reinsert vector: %w", err)
		}
	}

	n.NodeType = NodeEvent
	n.Subtype = "completed_plan"
	return n, nil
}

// DeleteNode cascades to the node's edges and embedding.
func (s *SQLiteStore) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("delete node edges: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM vec_embeddings WHERE node_id = ?`, id); err != nil {
		return fmt.Errorf("delete node vector: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM embeddings WHERE node_id = ?`, id); err != nil {
		return fmt.Errorf("delete node embedding metadata: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64Ptr(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullFloatPtr(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
