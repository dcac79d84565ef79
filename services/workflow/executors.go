package workflow

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"heliex-studio/api/pkg/gemini"
)

const (
	emptyTriggerOutput  = "No signal defined."
	emptyTerminalOutput = "Sequence terminal reached."

	defaultAgentInstruction = "You are an autonomous workflow agent. Execute the task precisely and concisely."
	retrievalInstruction    = "Retrieve current, factual information from the web for the request. Cite what you find."
)

// TriggerConfig is the config schema of a trigger node.
type TriggerConfig struct {
	Prompt string `mapstructure:"prompt"`
}

// AgentConfig is the config schema of an agent node.
type AgentConfig struct {
	SystemInstruction string `mapstructure:"systemInstruction"`
	Model             string `mapstructure:"model"`
	Grounding         bool   `mapstructure:"grounding"`
}

// ToolConfig is the config schema of a tool node.
type ToolConfig struct {
	Model     string `mapstructure:"model"`
	Grounding bool   `mapstructure:"grounding"`
}

// decodeConfig decodes a node's free-form config into its typed schema.
// Input is weakly typed since the canvas submits every value as a string.
func decodeConfig(node Node, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(node.Config); err != nil {
		return fmt.Errorf("invalid %s config: %w", node.Type, err)
	}
	return nil
}

// TriggerExecutor handles the "trigger" node type. Its output is the configured prompt.
type TriggerExecutor struct{}

func (e *TriggerExecutor) Execute(_ context.Context, node Node, _ NodeInput) (*NodeResult, error) {
	var cfg TriggerConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return nil, err
	}
	if cfg.Prompt == "" {
		return &NodeResult{Output: emptyTriggerOutput}, nil
	}
	return &NodeResult{Output: cfg.Prompt}, nil
}

// AgentExecutor handles the "agent" node type. It asks the model to perform
// the resolved input as a task, with the global input as context.
type AgentExecutor struct {
	client ModelClient
}

func (e *AgentExecutor) Execute(ctx context.Context, node Node, in NodeInput) (*NodeResult, error) {
	cfg := AgentConfig{Grounding: true}
	if err := decodeConfig(node, &cfg); err != nil {
		return nil, err
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = defaultAgentInstruction
	}

	resp, err := e.client.Invoke(ctx, gemini.Request{
		Task:              in.Input,
		Context:           in.Context.GlobalInput,
		GroundingEnabled:  cfg.Grounding,
		SystemInstruction: cfg.SystemInstruction,
		Model:             cfg.Model,
		Mode:              gemini.ModeTask,
	})
	if err != nil {
		return nil, err
	}
	return toNodeResult(resp), nil
}

// ToolExecutor handles the "tool" node type. It runs a retrieval-oriented
// model call over the resolved input.
type ToolExecutor struct {
	client ModelClient
}

func (e *ToolExecutor) Execute(ctx context.Context, node Node, in NodeInput) (*NodeResult, error) {
	cfg := ToolConfig{Grounding: true}
	if err := decodeConfig(node, &cfg); err != nil {
		return nil, err
	}

	resp, err := e.client.Invoke(ctx, gemini.Request{
		Task:              in.Input,
		GroundingEnabled:  cfg.Grounding,
		SystemInstruction: retrievalInstruction,
		Model:             cfg.Model,
		Mode:              gemini.ModeRetrieval,
	})
	if err != nil {
		return nil, err
	}
	return toNodeResult(resp), nil
}

// OutputExecutor handles the "output" node type, a pass-through sink.
type OutputExecutor struct{}

func (e *OutputExecutor) Execute(_ context.Context, _ Node, in NodeInput) (*NodeResult, error) {
	if in.Input == "" {
		return &NodeResult{Output: emptyTerminalOutput}, nil
	}
	return &NodeResult{Output: in.Input}, nil
}

// PassThroughExecutor forwards its resolved input unchanged. Used for
// "memory" and "logic" nodes, which have no dispatch behavior of their own.
type PassThroughExecutor struct{}

func (e *PassThroughExecutor) Execute(_ context.Context, _ Node, in NodeInput) (*NodeResult, error) {
	return &NodeResult{Output: in.Input}, nil
}

func toNodeResult(resp *gemini.Response) *NodeResult {
	res := &NodeResult{Output: resp.Text}
	for _, s := range resp.Sources {
		res.Sources = append(res.Sources, Source{Title: s.Title, URI: s.URI})
	}
	return res
}
