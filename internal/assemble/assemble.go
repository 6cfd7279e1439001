// Package assemble deduplicates, ranks, and sections the nodes surfaced by
// the agent loops and the safety nets.
package assemble

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/kittclouds/gomemory/internal/store"
)

// Hit is a node id paired with the score that surfaced it -- the structured
// shape shared by tools.ScoredHit and safetynet.Hit so this package doesn't
// need to import either.
type Hit struct {
	NodeID string
	Score float64
}

// EntityItem is an entity node plus its score and capped, salience-ordered
// relationships.
type EntityItem struct {
	Node store.Node
	Score float64
	Relationships []store.RelatedNode
}

// Assembled is the sectioned, capped result ready for curation.
type Assembled struct {
	Entities []EntityItem
	Instructions []store.Node
	Facts []store.Node
	Events []store.Node
	Plans []store.Node
}

const (
	capEntities = 15
	capRelationships = 8
	capInstructions = 15
	capFactsOpinions = 30
	capEvents = 15
	capPlans = 10
)

type scoredNode struct {
	node store.Node
	score float64
	rank float64
}

// Assemble dedupes hits by node id (keeping the max score seen per node),
// excludes superseded nodes, computes rank = salience * max_cosine_score,
// sections by node type, and applies the per-section caps. Plans
// whose valid_from has passed are moved into the events section for this
// turn's context.
func Assemble(s *store.SQLiteStore, hits []Hit, log zerolog.Logger) Assembled {
	maxScore := make(map[string]float64, len(hits))
	for _, h := range hits {
		if existing, ok := maxScore[h.NodeID]; !ok || h.Score > existing {
			maxScore[h.NodeID] = h.Score
		}
	}

	var entities, instructions, facts, events, plans []scoredNode
	now := time.Now().UnixMilli()

	for nodeID, score := range maxScore {
		n, err := s.GetNode(nodeID)
		if err != nil {
			log.Warn().Err(err).Str("node_id", nodeID).Msg("assemble: failed to load node")
			continue
		}
		if n == nil || n.SupersededBy != "" {
			continue
		}
		sn := scoredNode{node: *n, score: score, rank: n.Salience * score}

		switch n.NodeType {
		case store.NodeEntity:
			entities = append(entities, sn)
		case store.NodeInstruction:
			instructions = append(instructions, sn)
		case store.NodeFact, store.NodeOpinion:
			facts = append(facts, sn)
		case store.NodeEvent:
			events = append(events, sn)
		case store.NodePlan:
			if n.ValidFrom != nil && *n.ValidFrom <= now {
				events = append(events, sn)
			} else {
				plans = append(plans, sn)
			}
		}
	}

	sort.SliceStable(entities, func(i, j int) bool { return entities[i].rank > entities[j].rank })
	if len(entities) > capEntities {
		entities = entities[:capEntities]
	}

	sort.SliceStable(instructions, func(i, j int) bool {
		if instructions[i].rank != instructions[j].rank {
			return instructions[i].rank > instructions[j].rank
		}
		return scopeOf(instructions[i].node) > scopeOf(instructions[j].node)
	})
	if len(instructions) > capInstructions {
		instructions = instructions[:capInstructions]
	}

	sort.SliceStable(facts, func(i, j int) bool { return facts[i].rank > facts[j].rank })
	if len(facts) > capFactsOpinions {
		facts = facts[:capFactsOpinions]
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].rank > events[j].rank })
	if len(events) > capEvents {
		events = events[:capEvents]
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return validFromOf(plans[i].node) < validFromOf(plans[j].node)
	})
	if len(plans) > capPlans {
		plans = plans[:capPlans]
	}

	entityItems := make([]EntityItem, 0, len(entities))
	for _, sn := range entities {
		rels, err := s.GetRelationships(sn.node.ID)
		if err != nil {
			log.Warn().Err(err).Str("node_id", sn.node.ID).Msg("assemble: failed to load relationships")
			rels = nil
		}
		sort.SliceStable(rels, func(i, j int) bool { return rels[i].Other.Salience > rels[j].Other.Salience })
		if len(rels) > capRelationships {
			rels = rels[:capRelationships]
		}
		entityItems = append(entityItems, EntityItem{Node: sn.node, Score: sn.rank, Relationships: rels})
	}

	return Assembled{
		Entities: entityItems,
		Instructions: nodesOf(instructions),
		Facts: nodesOf(facts),
		Events: nodesOf(events),
		Plans: nodesOf(plans),
	}
}

func nodesOf(in []scoredNode) []store.Node {
	out := make([]store.Node, len(in))
	for i, sn := range in {
		out[i] = sn.node
	}
	return out
}

func scopeOf(n store.Node) float64 {
	if n.Scope == nil {
		return 0
	}
	return *n.Scope
}

func validFromOf(n store.Node) int64 {
	if n.ValidFrom == nil {
		return 1<<63 - 1 // unscheduled plans sort last
	}
	return *n.ValidFrom
}
