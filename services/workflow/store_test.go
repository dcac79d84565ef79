package workflow

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddNode(t *testing.T) {
	s := NewStore()

	n := s.AddNode(NodeTool, "Global Search")

	assert.True(t, strings.HasPrefix(n.ID, "tool-"))
	assert.Equal(t, NodeTool, n.Type)
	assert.Equal(t, "Global Search", n.Label)
	assert.Equal(t, StatusIdle, n.Status)
	assert.NotNil(t, n.Config)
	assert.GreaterOrEqual(t, n.Position.X, 0.0)
	assert.Less(t, n.Position.X, 400.0)
	assert.GreaterOrEqual(t, n.Position.Y, 0.0)
	assert.Less(t, n.Position.Y, 400.0)

	other := s.AddNode(NodeAgent, "")
	assert.Equal(t, "Node AGENT", other.Label)
	assert.NotEqual(t, n.ID, other.ID)
	assert.Len(t, s.Snapshot().Nodes, 2)
}

func TestStore_ConnectKeepsDuplicates(t *testing.T) {
	s := NewStore()

	e1 := s.Connect("a", "b")
	e2 := s.Connect("a", "b")
	s.Connect("a", "missing")

	assert.NotEqual(t, e1.ID, e2.ID)
	assert.True(t, strings.HasPrefix(e1.ID, "e-"))
	assert.Len(t, s.Snapshot().Edges, 3)
}

func TestStore_UpdateNodeConfigMerges(t *testing.T) {
	s := NewStore()
	n := s.AddNode(NodeAgent, "")

	_, ok := s.UpdateNodeConfig(n.ID, "model", "gemini-2.5-pro")
	require.True(t, ok)
	updated, ok := s.UpdateNodeConfig(n.ID, "grounding", false)
	require.True(t, ok)

	assert.Equal(t, map[string]any{"model": "gemini-2.5-pro", "grounding": false}, updated.Config)

	_, ok = s.UpdateNodeConfig("missing", "k", "v")
	assert.False(t, ok)
}

func TestStore_UpdateNodePosition(t *testing.T) {
	s := NewStore()
	n := s.AddNode(NodeOutput, "")

	moved, ok := s.UpdateNodePosition(n.ID, Position{X: 12, Y: 34})

	require.True(t, ok)
	assert.Equal(t, Position{X: 12, Y: 34}, moved.Position)

	_, ok = s.UpdateNodePosition("missing", Position{})
	assert.False(t, ok)
}

func TestStore_RemoveNodeDropsIncidentEdges(t *testing.T) {
	s := loadStore(
		[]Node{testNode("a", NodeTrigger), testNode("b", NodeAgent), testNode("c", NodeOutput)},
		[]Edge{testEdge("a", "b"), testEdge("b", "c"), testEdge("a", "c")},
	)

	require.True(t, s.RemoveNode("b"))
	assert.False(t, s.RemoveNode("b"))

	snap := s.Snapshot()
	assert.Len(t, snap.Nodes, 2)
	assert.Equal(t, []Edge{testEdge("a", "c")}, snap.Edges)
}

func TestStore_ApplyAndReset(t *testing.T) {
	s := loadStore([]Node{testNode("a", NodeAgent), testNode("b", NodeTool)}, nil)

	s.Apply(NodeEvent{NodeID: "a", Status: StatusProcessing})
	n, _ := s.Node("a")
	assert.Equal(t, StatusProcessing, n.Status)

	s.Apply(NodeEvent{NodeID: "a", Status: StatusSuccess, Output: "done", Sources: []Source{{Title: "T", URI: "u"}}})
	s.Apply(NodeEvent{NodeID: "b", Status: StatusError, Error: "boom"})
	s.Apply(NodeEvent{NodeID: "missing", Status: StatusSuccess})

	a, _ := s.Node("a")
	assert.Equal(t, StatusSuccess, a.Status)
	assert.Equal(t, "done", a.Output)
	assert.Len(t, a.Sources, 1)
	b, _ := s.Node("b")
	assert.Equal(t, StatusError, b.Status)
	assert.Equal(t, "boom", b.Error)

	s.ResetStatuses()
	first := s.Snapshot()
	s.ResetStatuses()
	second := s.Snapshot()

	assert.Equal(t, first, second)
	for _, n := range second.Nodes {
		assert.Equal(t, StatusIdle, n.Status)
		assert.Empty(t, n.Output)
		assert.Empty(t, n.Error)
		assert.Empty(t, n.Sources)
	}
}

func TestStore_SnapshotIsDeepCopy(t *testing.T) {
	s := NewStore()
	n := s.AddNode(NodeTrigger, "")
	s.UpdateNodeConfig(n.ID, "prompt", "original")

	snap := s.Snapshot()
	snap.Nodes[0].Config["prompt"] = "changed"
	snap.Nodes[0].Status = StatusError

	stored, _ := s.Node(n.ID)
	assert.Equal(t, "original", stored.Config["prompt"])
	assert.Equal(t, StatusIdle, stored.Status)
}

func TestStore_Load(t *testing.T) {
	s := NewStore()
	s.AddNode(NodeMemory, "")

	bp := DefaultBlueprint()
	bp.Nodes[1].Status = StatusSuccess
	bp.Nodes[1].Output = "stale"
	bp.Nodes[2].Config = nil
	s.Load(bp)

	snap := s.Snapshot()
	require.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Edges, 2)
	for _, n := range snap.Nodes {
		assert.Equal(t, StatusIdle, n.Status, n.ID)
		assert.Empty(t, n.Output, n.ID)
		assert.NotNil(t, n.Config, n.ID)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := s.AddNode(NodeAgent, "")
			s.UpdateNodeConfig(n.ID, "model", "m")
			s.Apply(NodeEvent{NodeID: n.ID, Status: StatusSuccess, Output: "x"})
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Len(t, s.Snapshot().Nodes, 20)
}
