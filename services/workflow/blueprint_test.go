package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const researchBlueprint = `
id: research
name: Research
nodes:
  - id: start
    type: trigger
    label: User Intent
    position: {x: 10, y: 20}
    config:
      prompt: Summarize AI trends
  - id: agent
    type: agent
    label: Analyst
    config:
      grounding: false
  - id: out
    type: output
    label: Report
edges:
  - {id: e1, source: start, target: agent}
  - {id: e2, source: agent, target: out}
`

func TestParseBlueprint(t *testing.T) {
	bp, err := ParseBlueprint([]byte(researchBlueprint))

	require.NoError(t, err)
	assert.Equal(t, "research", bp.ID)
	require.Len(t, bp.Nodes, 3)
	assert.Equal(t, NodeTrigger, bp.Nodes[0].Type)
	assert.Equal(t, Position{X: 10, Y: 20}, bp.Nodes[0].Position)
	assert.Equal(t, "Summarize AI trends", bp.Nodes[0].Config["prompt"])
	assert.Equal(t, false, bp.Nodes[1].Config["grounding"])
	assert.Len(t, bp.Edges, 2)
}

func TestParseBlueprint_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "nodes: [", "decode blueprint"},
		{"missing id", "id: x\nnodes:\n  - type: agent\n", "node without id"},
		{"duplicate id", "id: x\nnodes:\n  - {id: a, type: agent}\n  - {id: a, type: tool}\n", "duplicate node id"},
		{"unknown type", "id: x\nnodes:\n  - {id: a, type: webhook}\n", "unknown type"},
		{"dangling edge", "id: x\nnodes:\n  - {id: a, type: agent}\nedges:\n  - {id: e, source: a, target: b}\n", "unknown node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBlueprint([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadBlueprintFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "research.yaml")
	require.NoError(t, os.WriteFile(path, []byte(researchBlueprint), 0o600))

	bp, err := LoadBlueprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Research", bp.Name)

	_, err = LoadBlueprintFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultBlueprint(t *testing.T) {
	bp := DefaultBlueprint()

	require.NoError(t, bp.Validate())
	assert.Equal(t, DefaultBlueprintID, bp.ID)
	assert.Equal(t, []string{"trigger-1", "agent-1", "tool-1"}, []string{bp.Nodes[0].ID, bp.Nodes[1].ID, bp.Nodes[2].ID})
	assert.Equal(t, "Analyze high-limit AI trends.", bp.Nodes[0].Config["prompt"])
}

func TestStaticBlueprints(t *testing.T) {
	repo := StaticBlueprints{DefaultBlueprintID: DefaultBlueprint()}

	bp, err := repo.Get(context.Background(), DefaultBlueprintID)
	require.NoError(t, err)
	assert.NotNil(t, bp)

	bp, err = repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, bp)
}
