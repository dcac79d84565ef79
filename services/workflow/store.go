package workflow

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store is the authoritative in-memory collection of nodes and edges
// authored on the canvas. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	nodes []Node
	edges []Edge
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{}
}

// AddNode creates an idle node with a fresh id and a random canvas placement.
func (s *Store) AddNode(t NodeType, subType string) Node {
	label := subType
	if label == "" {
		label = "Node " + strings.ToUpper(string(t))
	}
	n := Node{
		ID:       fmt.Sprintf("%s-%s", t, uuid.New().String()),
		Type:     t,
		SubType:  subType,
		Label:    label,
		Position: Position{X: rand.Float64() * 400, Y: rand.Float64() * 400}, // #nosec G404 layout only
		Config:   map[string]any{},
		Status:   StatusIdle,
	}

	s.mu.Lock()
	s.nodes = append(s.nodes, n)
	s.mu.Unlock()
	return copyNode(n)
}

// Connect appends a directed edge. Endpoints are not validated and duplicate
// edges are kept; the engine ignores edges to unknown nodes.
func (s *Store) Connect(sourceID, targetID string) Edge {
	e := Edge{ID: "e-" + uuid.New().String(), Source: sourceID, Target: targetID}

	s.mu.Lock()
	s.edges = append(s.edges, e)
	s.mu.Unlock()
	return e
}

// UpdateNodeConfig merges one key into the node's config. It reports false
// if the node does not exist. Values are validated when the node executes.
func (s *Store) UpdateNodeConfig(nodeID, key string, value any) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.find(nodeID)
	if n == nil {
		return Node{}, false
	}
	if n.Config == nil {
		n.Config = map[string]any{}
	}
	n.Config[key] = value
	return copyNode(*n), true
}

// UpdateNodePosition moves a node on the canvas.
func (s *Store) UpdateNodePosition(nodeID string, pos Position) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.find(nodeID)
	if n == nil {
		return Node{}, false
	}
	n.Position = pos
	return copyNode(*n), true
}

// RemoveNode deletes a node together with every edge touching it.
func (s *Store) RemoveNode(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.nodes {
		if s.nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.nodes = append(s.nodes[:idx], s.nodes[idx+1:]...)

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != nodeID && e.Target != nodeID {
			kept = append(kept, e)
		}
	}
	s.edges = kept
	return true
}

// ResetStatuses sets every node idle and clears its output and error.
func (s *Store) ResetStatuses() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.nodes {
		clearRunState(&s.nodes[i])
	}
}

// Apply records a node event emitted by the engine.
func (s *Store) Apply(ev NodeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.find(ev.NodeID)
	if n == nil {
		return
	}
	switch ev.Status {
	case StatusIdle:
		clearRunState(n)
	case StatusProcessing:
		n.Status = StatusProcessing
	case StatusSuccess:
		n.Status = StatusSuccess
		n.Output = ev.Output
		n.Sources = append([]Source(nil), ev.Sources...)
		n.Error = ""
	case StatusError:
		n.Status = StatusError
		n.Error = ev.Error
	}
}

// Snapshot returns a deep copy of the graph for a run.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Nodes: make([]Node, len(s.nodes)),
		Edges: append([]Edge{}, s.edges...),
	}
	for i, n := range s.nodes {
		snap.Nodes[i] = copyNode(n)
	}
	return snap
}

// Node returns a copy of one node.
func (s *Store) Node(nodeID string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nodes {
		if n.ID == nodeID {
			return copyNode(n), true
		}
	}
	return Node{}, false
}

// Load replaces the whole graph with the blueprint's nodes and edges, all idle.
func (s *Store) Load(bp *Blueprint) {
	nodes := make([]Node, len(bp.Nodes))
	for i, n := range bp.Nodes {
		nodes[i] = copyNode(n)
		clearRunState(&nodes[i])
		if nodes[i].Config == nil {
			nodes[i].Config = map[string]any{}
		}
	}

	s.mu.Lock()
	s.nodes = nodes
	s.edges = append([]Edge{}, bp.Edges...)
	s.mu.Unlock()
}

func (s *Store) find(nodeID string) *Node {
	for i := range s.nodes {
		if s.nodes[i].ID == nodeID {
			return &s.nodes[i]
		}
	}
	return nil
}

func clearRunState(n *Node) {
	n.Status = StatusIdle
	n.Output = ""
	n.Sources = nil
	n.Error = ""
}

func copyNode(n Node) Node {
	if n.Config != nil {
		cfg := make(map[string]any, len(n.Config))
		for k, v := range n.Config {
			cfg[k] = v
		}
		n.Config = cfg
	}
	n.Sources = append([]Source(nil), n.Sources...)
	return n
}
