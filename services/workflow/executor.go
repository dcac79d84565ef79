package workflow

import (
	"context"

	"heliex-studio/api/pkg/gemini"
)

// ModelClient is the remote generative capability nodes call into.
type ModelClient interface {
	Invoke(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// NodeInput is everything a node executor may read during a run.
type NodeInput struct {
	// Input is the resolved input: joined parent outputs or the global input.
	Input   string
	Context *WorkflowContext
}

// NodeResult is the output of executing a single node.
type NodeResult struct {
	Output  string
	Sources []Source
}

// NodeExecutor defines the interface for executing a single node type.
type NodeExecutor interface {
	Execute(ctx context.Context, node Node, in NodeInput) (*NodeResult, error)
}

// Registry maps node types to their executor implementation.
type Registry map[NodeType]NodeExecutor

// NewRegistry creates a registry populated with all built-in executor types.
func NewRegistry(client ModelClient) Registry {
	return Registry{
		NodeTrigger: &TriggerExecutor{},
		NodeAgent:   &AgentExecutor{client: client},
		NodeTool:    &ToolExecutor{client: client},
		NodeOutput:  &OutputExecutor{},
		NodeMemory:  &PassThroughExecutor{},
		NodeLogic:   &PassThroughExecutor{},
	}
}
