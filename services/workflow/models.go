package workflow

import "time"

// NodeType selects how a node is dispatched during a run.
type NodeType string

const (
	NodeTrigger NodeType = "trigger"
	NodeAgent   NodeType = "agent"
	NodeTool    NodeType = "tool"
	NodeOutput  NodeType = "output"
	NodeMemory  NodeType = "memory"
	NodeLogic   NodeType = "logic"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTrigger, NodeAgent, NodeTool, NodeOutput, NodeMemory, NodeLogic:
		return true
	}
	return false
}

// NodeStatus is the per-node run state: idle -> processing -> success|error.
type NodeStatus string

const (
	StatusIdle       NodeStatus = "idle"
	StatusProcessing NodeStatus = "processing"
	StatusSuccess    NodeStatus = "success"
	StatusError      NodeStatus = "error"
)

// Node represents a single unit of work on the agent-builder canvas.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     NodeType       `json:"type" yaml:"type"`
	SubType  string         `json:"subType,omitempty" yaml:"subType,omitempty"`
	Label    string         `json:"label" yaml:"label"`
	Position Position       `json:"position" yaml:"position"`
	Config   map[string]any `json:"config" yaml:"config,omitempty"`
	Status   NodeStatus     `json:"status" yaml:"-"`
	Output   string         `json:"output,omitempty" yaml:"-"`
	Sources  []Source       `json:"sources,omitempty" yaml:"-"`
	Error    string         `json:"error,omitempty" yaml:"-"`
}

// Position holds x/y coordinates for rendering the node on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Edge represents a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Source is a web reference returned by a grounded model call.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Snapshot is an immutable copy of the graph taken at run start.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// WorkflowContext is the state threaded between nodes during one run.
type WorkflowContext struct {
	GlobalInput string            `json:"globalInput"`
	NodeOutputs map[string]string `json:"nodeOutputs"`
	Memory      map[string]any    `json:"memory"` // reserved, no node type writes it yet
}

func newWorkflowContext() *WorkflowContext {
	return &WorkflowContext{
		NodeOutputs: make(map[string]string),
		Memory:      make(map[string]any),
	}
}

// NodeEvent is a status transition emitted by the engine for one node.
type NodeEvent struct {
	RunID   string     `json:"runId"`
	NodeID  string     `json:"nodeId"`
	Status  NodeStatus `json:"status"`
	Output  string     `json:"output,omitempty"`
	Sources []Source   `json:"sources,omitempty"`
	Error   string     `json:"error,omitempty"`
	At      time.Time  `json:"at"`
}

// EventSink receives node events in the order they happen.
type EventSink interface {
	Apply(NodeEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(NodeEvent)

func (f EventSinkFunc) Apply(e NodeEvent) { f(e) }

// Run outcomes written to the run log and results.
const (
	RunSynchronized = "synchronized"
	RunInterrupted  = "interrupted"
)

// ExecutionResults is the top-level response returned after a run.
type ExecutionResults struct {
	ExecutionID   string           `json:"executionId"`
	Status        string           `json:"status"`
	StartTime     string           `json:"startTime"`
	EndTime       string           `json:"endTime"`
	TotalDuration int64            `json:"totalDuration"`
	Steps         []ExecutionStep  `json:"steps"`
	Context       *WorkflowContext `json:"context"`
	QuotaExceeded bool             `json:"quotaExceeded,omitempty"`
}

// ExecutionStep represents the result of executing a single node.
type ExecutionStep struct {
	StepNumber int        `json:"stepNumber"`
	NodeID     string     `json:"nodeId"`
	NodeType   NodeType   `json:"nodeType"`
	Label      string     `json:"label"`
	Input      string     `json:"input"`
	Status     NodeStatus `json:"status"`
	Duration   int64      `json:"duration"`
	Output     string     `json:"output,omitempty"`
	Sources    []Source   `json:"sources,omitempty"`
	Timestamp  string     `json:"timestamp"`
	Error      string     `json:"error,omitempty"`
}
