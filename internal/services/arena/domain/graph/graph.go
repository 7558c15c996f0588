// Package graph compiles persisted narrative rows into a directed prompt
// graph with condition-guarded transitions.
package graph

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/condition"
)

// Node is one narrative prompt in the graph.
type Node struct {
	ID           string
	Role         string
	Template     string
	IsStart      bool
	Invisible    bool
	VisibleSlots []int
}

// Bridge is a guarded directed transition between two nodes.
//
// All conditions on a bridge must hold for it to be a candidate. Among
// candidates, non-fallback bridges are preferred, ties break by priority
// descending, and probability acts as an independent firing chance.
type Bridge struct {
	From         string
	To           string
	TriggerWords []string
	Conditions   []condition.Condition
	Priority     int
	Probability  float64
	Fallback     bool
	Action       string
}

// NodeRow is a persisted narrative slot row before compilation.
type NodeRow struct {
	ID           string
	Role         string
	Template     string
	IsStart      bool
	Invisible    bool
	VisibleSlots []int
}

// BridgeRow is a persisted bridge row before compilation.
type BridgeRow struct {
	From         string
	To           string
	TriggerWords []string
	Conditions   []condition.Condition
	Priority     int
	Probability  float64
	Fallback     bool
	Action       string
}

// Graph is a compiled narrative graph.
type Graph struct {
	nodes map[string]Node
	edges map[string][]Bridge
	start string
}

// Rand is the injected entropy source for probability draws.
type Rand interface {
	Float64() float64
}

// Compile builds a graph from persisted slot and bridge rows.
//
// Bridges referencing unknown nodes are dropped; the first row flagged
// IsStart becomes the start node, falling back to the first row.
func Compile(nodeRows []NodeRow, bridgeRows []BridgeRow) (*Graph, error) {
	if len(nodeRows) == 0 {
		return nil, fmt.Errorf("at least one node row is required")
	}

	g := &Graph{
		nodes: make(map[string]Node, len(nodeRows)),
		edges: make(map[string][]Bridge, len(bridgeRows)),
	}
	for _, row := range nodeRows {
		id := strings.TrimSpace(row.ID)
		if id == "" {
			continue
		}
		if _, dup := g.nodes[id]; dup {
			return nil, fmt.Errorf("duplicate node id %q", id)
		}
		g.nodes[id] = Node{
			ID:           id,
			Role:         row.Role,
			Template:     row.Template,
			IsStart:      row.IsStart,
			Invisible:    row.Invisible,
			VisibleSlots: row.VisibleSlots,
		}
		if g.start == "" && row.IsStart {
			g.start = id
		}
	}
	if g.start == "" {
		g.start = strings.TrimSpace(nodeRows[0].ID)
	}

	for _, row := range bridgeRows {
		from := strings.TrimSpace(row.From)
		to := strings.TrimSpace(row.To)
		if _, ok := g.nodes[from]; !ok {
			continue
		}
		if _, ok := g.nodes[to]; !ok {
			continue
		}
		g.edges[from] = append(g.edges[from], Bridge{
			From:         from,
			To:           to,
			TriggerWords: row.TriggerWords,
			Conditions:   row.Conditions,
			Priority:     row.Priority,
			Probability:  clampProbability(row.Probability),
			Fallback:     row.Fallback,
			Action:       row.Action,
		})
	}
	return g, nil
}

// Start returns the start node id.
func (g *Graph) Start() string {
	return g.start
}

// Node returns the node for id.
func (g *Graph) Node(id string) (Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Bridges returns the out-edges of a node.
func (g *Graph) Bridges(from string) []Bridge {
	return g.edges[from]
}

// Visible reports whether the slot at slotIndex may observe the node's
// output. Visible nodes are observable by every slot; invisible nodes only
// by slots listed in VisibleSlots.
func (g *Graph) Visible(nodeID string, slotIndex int) bool {
	node, ok := g.nodes[nodeID]
	if !ok {
		return false
	}
	if !node.Invisible {
		return true
	}
	for _, visible := range node.VisibleSlots {
		if visible == slotIndex {
			return true
		}
	}
	return false
}

// Next resolves the transition out of a node.
//
// Candidates are the out-edges whose conditions all hold. Non-fallback
// candidates are tried first in priority-descending order, each firing
// independently with its probability; if none fires and fallback candidates
// exist, the highest-priority fallback is chosen without a draw.
func (g *Graph) Next(from string, ctx condition.Context, rng Rand) (Bridge, bool) {
	var live, fallback []Bridge
	for _, bridge := range g.edges[from] {
		if !condition.All(bridge.Conditions, ctx) {
			continue
		}
		if bridge.Fallback {
			fallback = append(fallback, bridge)
		} else {
			live = append(live, bridge)
		}
	}

	byPriority(live)
	for _, bridge := range live {
		if fires(bridge.Probability, rng) {
			return bridge, true
		}
	}

	if len(fallback) > 0 {
		byPriority(fallback)
		return fallback[0], true
	}
	return Bridge{}, false
}

func byPriority(bridges []Bridge) {
	sort.SliceStable(bridges, func(i, j int) bool {
		return bridges[i].Priority > bridges[j].Priority
	})
}

func fires(probability float64, rng Rand) bool {
	if probability >= 1.0 {
		return true
	}
	if probability <= 0 || rng == nil {
		return false
	}
	return rng.Float64() < probability
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
