// Package vectorindex implements brute-force-over-filtered-rows cosine
// search, plus a SQL-pushdown fast path over the store's vec0 virtual
// table for the common unfiltered/single-type case.
package vectorindex

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"

	"github.com/kittclouds/gomemory/internal/store"
)

// Result is a node id paired with its similarity-times-salience score, kept
// structured rather than parsed out of formatted text.
type Result struct {
	NodeID string
	Score float64
}

// Index searches the store's embeddings table.
type Index struct {
	db *sql.DB
}

// New wraps the store's shared database handle.
func New(db *sql.DB) *Index {
	return &Index{db: db}
}

// Search returns the top_k highest-scoring live nodes matching filter.
// A node_ids allowlist always takes the brute-force path since it doesn't
// map to a vec0 partition pushdown; an empty filter or a single node_type
// filter uses the vec0 MATCH fast path.
func (idx *Index) Search(query []float32, topK int, filter store.SearchFilter) ([]Result, error) {
	if len(filter.NodeIDs) > 0 {
		return idx.bruteForce(query, topK, filter)
	}
	if len(filter.NodeTypes) <= 1 {
		results, err := idx.vecSearch(query, topK, filter)
		if err == nil {
			return results, nil
		}
		// Fall back rather than fail the whole search if the vec0 path errors.
	}
	return idx.bruteForce(query, topK, filter)
}

func (idx *Index) vecSearch(query []float32, topK int, filter store.SearchFilter) ([]Result, error) {
	raw, err := vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	var rows *sql.Rows
	if len(filter.NodeTypes) == 1 {
		rows, err = idx.db.Query(`
			SELECT node_id, distance FROM vec_embeddings
			WHERE embedding MATCH ? AND node_type = ? AND k = ?
			ORDER BY distance
		`, raw, string(filter.NodeTypes[0]), topK*4)
	} else {
		rows, err = idx.db.Query(`
			SELECT node_id, distance FROM vec_embeddings
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		`, raw, topK*4)
	}
	if err != nil {
		return nil, fmt.Errorf("vec0 search: %w", err)
	}
	defer rows.Close()

	type hit struct {
		nodeID string
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.nodeID, &h.distance); err != nil {
			return nil, fmt.Errorf("scan vec0 hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		salience, superseded, err := idx.nodeSalience(h.nodeID)
		if err != nil {
			return nil, err
		}
		if superseded {
			continue
		}
		// The vec0 table is declared distance_metric=cosine, so distance is
		// cosine distance (1 - similarity).
		cos := 1 - h.distance
		results = append(results, Result{NodeID: h.nodeID, Score: cos * salience})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (idx *Index) nodeSalience(nodeID string) (salience float64, superseded bool, err error) {
	var supersededBy sql.NullString
	row := idx.db.QueryRow(`SELECT salience, superseded_by FROM nodes WHERE id = ?`, nodeID)
	if err := row.Scan(&salience, &supersededBy); err != nil {
		if err == sql.ErrNoRows {
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("load node salience: %w", err)
	}
	return salience, supersededBy.Valid, nil
}

type candidateRow struct {
	nodeID string
	nodeType string
	salience float64
	vector []float32
}

// bruteForce computes cosine(query, stored) * salience over every row
// matching filter, with zero-norm vectors scoring 0 and mismatched lengths
// compared over the shorter one.
func (idx *Index) bruteForce(query []float32, topK int, filter store.SearchFilter) ([]Result, error) {
	rows, err := idx.db.Query(`
		SELECT n.id, n.node_type, n.salience, e.embedding
		FROM nodes n
		JOIN vec_embeddings e ON e.node_id = n.id
		WHERE n.superseded_by IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("brute force scan: %w", err)
	}
	defer rows.Close()

	allowedTypes := make(map[string]bool, len(filter.NodeTypes))
	for _, t := range filter.NodeTypes {
		allowedTypes[string(t)] = true
	}
	allowedIDs := make(map[string]bool, len(filter.NodeIDs))
	for _, id := range filter.NodeIDs {
		allowedIDs[id] = true
	}

	var candidates []candidateRow
	for rows.Next() {
		var c candidateRow
		var rawVec []byte
		if err := rows.Scan(&c.nodeID, &c.nodeType, &c.salience, &rawVec); err != nil {
			return nil, fmt.Errorf("scan brute force row: %w", err)
		}
		if len(allowedIDs) > 0 && !allowedIDs[c.nodeID] {
			continue
		}
		if len(allowedTypes) > 0 && !allowedTypes[c.nodeType] {
			continue
		}
		vector, err := decodeFloat32LE(rawVec)
		if err != nil {
			return nil, err
		}
		c.vector = vector
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		score := cosine(query, c.vector) * c.salience
		results = append(results, Result{NodeID: c.nodeID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosine computes cosine similarity over the minimum of the two vector
// lengths, returning 0 for a zero-norm vector
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func decodeFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("decode vector: invalid byte length %d", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
