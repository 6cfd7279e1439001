// Package tools implements the fixed tool vocabulary exposed to the two
// agent loops, dispatched by name against the store and vector index.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/gateway"
	"github.com/kittclouds/gomemory/internal/store"
	"github.com/kittclouds/gomemory/internal/textnorm"
	"github.com/kittclouds/gomemory/internal/vectorindex"
)

// MaxResultChars is the truncation limit for tool results fed back to the
// model
const MaxResultChars = 4000

const truncationMarker = "\n... [truncated, result exceeds 4000 characters]"

// Truncate caps s at MaxResultChars, appending an explicit marker.
func Truncate(s string) string {
	if len(s) <= MaxResultChars {
		return s
	}
	return s[:MaxResultChars] + truncationMarker
}

// Embedder is the minimal capability the dispatcher needs from the model
// gateway: turn text into query/document vectors.
type Embedder interface {
	Call(ctx context.Context, texts []string, kind gateway.EmbedKind, tag gateway.ChatTag) ([][]float32, error)
}

// Dispatcher implements every tool in both the retrieve-set and store-set
// against a shared store and vector index.
type Dispatcher struct {
	Store *store.SQLiteStore
	Index *vectorindex.Index
	Embed Embedder
	Log zerolog.Logger

	mu sync.Mutex
	entityIDs map[string]string // canonicalized name -> id, discovered this loop
	hits []ScoredHit // every node surfaced by a search_* tool, for the assembler
}

// ScoredHit is a node id paired with the score that surfaced it. Scores
// stay structured here; the text-formatted result line exists only at the
// model boundary.
type ScoredHit struct {
	NodeID string
	Score float64
}

// New builds a Dispatcher. Each loop run should get its own Dispatcher
// (or at least its own entityIDs map) so force-store entity resolution
// only sees this run's discoveries.
func New(s *store.SQLiteStore, idx *vectorindex.Index, embed Embedder, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{Store: s, Index: idx, Embed: embed, Log: log, entityIDs: map[string]string{}}
}

// recordHit logs a surfaced node for the assembler to later dedupe/rank.
func (d *Dispatcher) recordHit(nodeID string, score float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hits = append(d.hits, ScoredHit{NodeID: nodeID, Score: score})
}

// SeenHits returns every node surfaced by a search_* tool call on this
// dispatcher so far.
func (d *Dispatcher) SeenHits() []ScoredHit {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ScoredHit, len(d.hits))
	copy(out, d.hits)
	return out
}

// rememberEntity records a name->id discovery for the force-store safety net.
func (d *Dispatcher) rememberEntity(name, id string) {
	key := textnorm.EntityKey(name)
	if key == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entityIDs[key] = id
}

// KnownEntityID returns the id discovered for name by any search_entity or
// store_memory call on this dispatcher, or "" if none.
func (d *Dispatcher) KnownEntityID(name string) string {
	key := textnorm.EntityKey(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entityIDs[key]
}

// KnownEntityIDs returns a snapshot of every name->id discovery so far.
func (d *Dispatcher) KnownEntityIDs() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.entityIDs))
	for k, v := range d.entityIDs {
		out[k] = v
	}
	return out
}

// embedOne embeds a single piece of text for query purposes.
func (d *Dispatcher) embedOne(ctx context.Context, text string, kind gateway.EmbedKind) ([]float32, error) {
	vecs, err := d.Embed.Call(ctx, []string{text}, kind, gateway.TagL2)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed returned no vectors")
	}
	return vecs[0], nil
}

// formatNode renders a node result line in the
// "[type/subtype] content (id, salience) [score]" shape the system requires
// for search_entity, extended for plain listing by the other search_* tools.
func formatNode(n store.Node, score float64) string {
	subtype := n.Subtype
	if subtype == "" {
		subtype = "-"
	}
	return fmt.Sprintf("[%s/%s] %s (%s, %.2f) [%.3f]", n.NodeType, subtype, n.Content, n.ID, n.Salience, score)
}

func dedupResults(results []vectorindex.Result) []vectorindex.Result {
	seen := make(map[string]bool, len(results))
	out := make([]vectorindex.Result, 0, len(results))
	for _, r := range results {
		if seen[r.NodeID] {
			continue
		}
		seen[r.NodeID] = true
		out = append(out, r)
	}
	return out
}

// liveNode fetches a node and returns nil if it doesn't exist or is
// superseded.
func liveNode(s *store.SQLiteStore, id string) (*store.Node, error) {
	n, err := s.GetNode(id)
	if err != nil {
		return nil, err
	}
	if n == nil || n.SupersededBy != "" {
		return nil, nil
	}
	return n, nil
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// renderScoredNodes resolves each vector-search hit to its live node and
// renders it with formatNode, deduplicating by id.
func (d *Dispatcher) renderScoredNodes(results []vectorindex.Result, notFound string) (string, error) {
	results = dedupResults(results)
	if len(results) == 0 {
		return notFound, nil
	}
	var lines []string
	for _, r := range results {
		n, err := liveNode(d.Store, r.NodeID)
		if err != nil {
			return "", err
		}
		if n == nil {
			continue
		}
		d.recordHit(n.ID, r.Score)
		lines = append(lines, formatNode(*n, r.Score))
	}
	if len(lines) == 0 {
		return notFound, nil
	}
	return Truncate(joinLines(lines)), nil
}
