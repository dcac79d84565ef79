package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Blueprint is a stored workflow definition used to seed the canvas.
type Blueprint struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Validate checks node types, id uniqueness and edge endpoints.
func (b *Blueprint) Validate() error {
	ids := make(map[string]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		if n.ID == "" {
			return fmt.Errorf("blueprint %q: node without id", b.ID)
		}
		if ids[n.ID] {
			return fmt.Errorf("blueprint %q: duplicate node id %q", b.ID, n.ID)
		}
		if !n.Type.Valid() {
			return fmt.Errorf("blueprint %q: node %q has unknown type %q", b.ID, n.ID, n.Type)
		}
		ids[n.ID] = true
	}
	for _, e := range b.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			return fmt.Errorf("blueprint %q: edge %q references unknown node", b.ID, e.ID)
		}
	}
	return nil
}

// LoadBlueprintFile reads a YAML blueprint from disk.
func LoadBlueprintFile(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	return ParseBlueprint(data)
}

// ParseBlueprint decodes and validates a YAML blueprint.
func ParseBlueprint(data []byte) (*Blueprint, error) {
	var bp Blueprint
	if err := yaml.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	return &bp, nil
}

// StaticBlueprints is an in-memory BlueprintRepo, used when no database is configured.
type StaticBlueprints map[string]*Blueprint

// Get returns the blueprint with the given id, or nil, nil if there is none.
func (s StaticBlueprints) Get(_ context.Context, id string) (*Blueprint, error) {
	return s[id], nil
}

// DefaultBlueprintID identifies the seed graph shown when the studio opens.
const DefaultBlueprintID = "550e8400-e29b-41d4-a716-446655440000"

// DefaultBlueprint returns the seed graph: a trigger feeding an agent that
// feeds a web search tool.
func DefaultBlueprint() *Blueprint {
	return &Blueprint{
		ID:   DefaultBlueprintID,
		Name: "Research Agent",
		Nodes: []Node{
			{
				ID: "trigger-1", Type: NodeTrigger, Label: "User Intent",
				Position: Position{X: 400, Y: 50},
				Config:   map[string]any{"prompt": "Analyze high-limit AI trends."},
			},
			{
				ID: "agent-1", Type: NodeAgent, Label: "Flash Orchestrator",
				Position: Position{X: 400, Y: 300},
				Config:   map[string]any{},
			},
			{
				ID: "tool-1", Type: NodeTool, SubType: "Global Search", Label: "Web Intelligence",
				Position: Position{X: 750, Y: 300},
				Config:   map[string]any{},
			},
		},
		Edges: []Edge{
			{ID: "e1-2", Source: "trigger-1", Target: "agent-1"},
			{ID: "e2-3", Source: "agent-1", Target: "tool-1"},
		},
	}
}
