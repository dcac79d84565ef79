package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// inputSeparator joins the outputs of several parents into one input.
const inputSeparator = "\n---\n"

// Engine walks a workflow graph from its trigger and executes each node in sequence.
type Engine struct {
	registry  Registry
	logger    *slog.Logger
	runLog    *RunLog
	metrics   *Metrics
	traversal Traversal
	nodeDelay time.Duration
	onQuota   func(context.Context, *QuotaExceededError)

	executing atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithRunLog sets the rolling run log the engine writes telemetry to.
func WithRunLog(l *RunLog) EngineOption {
	return func(e *Engine) { e.runLog = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithTraversal selects the walk order. Depth-first is the default.
func WithTraversal(t Traversal) EngineOption {
	return func(e *Engine) { e.traversal = t }
}

// WithNodeDelay paces execution so status transitions stay visible on the canvas.
func WithNodeDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.nodeDelay = d }
}

// WithQuotaHandler registers a callback invoked once per run when the remote
// service reports quota exhaustion, so callers can offer another credential.
func WithQuotaHandler(fn func(context.Context, *QuotaExceededError)) EngineOption {
	return func(e *Engine) { e.onQuota = fn }
}

// NewEngine creates an Engine with the given executor registry.
func NewEngine(registry Registry, opts ...EngineOption) *Engine {
	e := &Engine{registry: registry, traversal: TraversalDepthFirst}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.runLog == nil {
		e.runLog = NewRunLog(DefaultLogSize)
	}
	return e
}

// Executing reports whether a run is in progress.
func (e *Engine) Executing() bool { return e.executing.Load() }

// RunLog returns the engine's rolling telemetry log.
func (e *Engine) RunLog() *RunLog { return e.runLog }

// Run executes the graph in snap, starting at its trigger node. Node status
// transitions are emitted to sink as they happen; the snapshot is never mutated.
//
// Node failures do not make Run return an error: they are recorded on the
// node and the run ends with status "interrupted". Run returns an error only
// when the run cannot start (ErrRunInProgress, ErrNoEntryPoint) or ctx is
// cancelled, in which case partial results are returned as well.
func (e *Engine) Run(ctx context.Context, snap Snapshot, sink EventSink) (*ExecutionResults, error) {
	if !e.executing.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer e.executing.Store(false)

	if sink == nil {
		sink = EventSinkFunc(func(NodeEvent) {})
	}

	r := newRun(e, snap, sink)
	e.runLog.Clear()
	e.runLog.Add("--- RUN %s STARTED ---", r.id[:8])

	trigger := findTrigger(snap.Nodes)
	if trigger == nil {
		e.runLog.Add("No entry point: add a trigger node")
		e.runLog.Add("--- FLOW %s ---", strings.ToUpper(RunInterrupted))
		e.metrics.observeRun(RunInterrupted)
		e.logger.Warn("Workflow run rejected", "run_id", r.id, "error", ErrNoEntryPoint)
		return nil, ErrNoEntryPoint
	}

	e.logger.Info("Workflow run started", "run_id", r.id, "nodes", len(snap.Nodes), "edges", len(snap.Edges), "traversal", e.traversal)
	r.reset()

	var runErr error
	if res, err := r.execute(ctx, trigger); err == nil {
		r.wctx.GlobalInput = res.Output
		r.wctx.NodeOutputs[trigger.ID] = res.Output

		switch e.traversal {
		case TraversalTopological:
			runErr = r.walkTopological(ctx, trigger.ID)
		default:
			runErr = r.walkDepthFirst(ctx, trigger.ID)
		}
	}
	// cancellation during the last node's call or pacing is not seen by the walk
	if runErr == nil {
		runErr = ctx.Err()
	}

	results := r.results()
	if runErr != nil {
		results.Status = RunInterrupted
	}
	e.runLog.Add("--- FLOW %s ---", strings.ToUpper(results.Status))
	e.metrics.observeRun(results.Status)
	e.logger.Info("Workflow run finished", "run_id", r.id, "status", results.Status, "steps", len(results.Steps), "duration_ms", results.TotalDuration)

	return results, runErr
}

// run holds the state of one execution. It is owned by a single Run call.
type run struct {
	engine    *Engine
	id        string
	sink      EventSink
	snap      Snapshot
	nodes     map[string]*Node
	outgoing  map[string][]Edge
	incoming  map[string][]Edge
	wctx      *WorkflowContext
	steps     []ExecutionStep
	startTime time.Time
	failed    bool
	quotaHit  bool
}

func newRun(e *Engine, snap Snapshot, sink EventSink) *run {
	r := &run{
		engine:    e,
		id:        uuid.New().String(),
		sink:      sink,
		snap:      snap,
		nodes:     make(map[string]*Node, len(snap.Nodes)),
		outgoing:  make(map[string][]Edge),
		incoming:  make(map[string][]Edge),
		wctx:      newWorkflowContext(),
		startTime: time.Now(),
	}
	for i := range snap.Nodes {
		r.nodes[snap.Nodes[i].ID] = &snap.Nodes[i]
	}
	for _, edge := range snap.Edges {
		r.outgoing[edge.Source] = append(r.outgoing[edge.Source], edge)
		r.incoming[edge.Target] = append(r.incoming[edge.Target], edge)
	}
	return r
}

func findTrigger(nodes []Node) *Node {
	for i := range nodes {
		if nodes[i].Type == NodeTrigger {
			return &nodes[i]
		}
	}
	return nil
}

func (r *run) emit(nodeID string, status NodeStatus, res *NodeResult, err error) {
	ev := NodeEvent{RunID: r.id, NodeID: nodeID, Status: status, At: time.Now()}
	if res != nil {
		ev.Output = res.Output
		ev.Sources = res.Sources
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.sink.Apply(ev)
}

// reset returns every node to idle before the first node executes.
func (r *run) reset() {
	for _, n := range r.snap.Nodes {
		r.emit(n.ID, StatusIdle, nil, nil)
	}
}

// resolveInput joins the outputs already produced by the node's parents, in
// edge order. A node with no produced parent output gets the global input.
func (r *run) resolveInput(nodeID string) string {
	var parts []string
	for _, edge := range r.incoming[nodeID] {
		if out, ok := r.wctx.NodeOutputs[edge.Source]; ok && out != "" {
			parts = append(parts, out)
		}
	}
	if len(parts) == 0 {
		return r.wctx.GlobalInput
	}
	return strings.Join(parts, inputSeparator)
}

// execute runs one node through idle -> processing -> success|error.
func (r *run) execute(ctx context.Context, node *Node) (*NodeResult, error) {
	e := r.engine
	label := displayLabel(node)
	input := r.resolveInput(node.ID)

	r.emit(node.ID, StatusProcessing, nil, nil)
	e.runLog.Add("Initiating [%s]", label)

	start := time.Now()
	res, err := r.dispatch(ctx, node, input)
	duration := time.Since(start)

	step := ExecutionStep{
		StepNumber: len(r.steps) + 1,
		NodeID:     node.ID,
		NodeType:   node.Type,
		Label:      label,
		Input:      input,
		Duration:   duration.Milliseconds(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	if err != nil {
		err = nodeError(*node, err)
		r.failed = true
		step.Status = StatusError
		step.Error = err.Error()
		r.steps = append(r.steps, step)

		r.emit(node.ID, StatusError, nil, err)
		e.runLog.Add("Failure at [%s]: %v", label, err)
		e.metrics.observeNode(node.Type, StatusError, duration)
		e.logger.Error("Node execution failed", "run_id", r.id, "node_id", node.ID, "type", node.Type, "error", err)
		r.handleQuota(ctx, err)
		return nil, err
	}

	r.wctx.NodeOutputs[node.ID] = res.Output
	step.Status = StatusSuccess
	step.Output = res.Output
	step.Sources = res.Sources
	r.steps = append(r.steps, step)

	r.emit(node.ID, StatusSuccess, res, nil)
	e.metrics.observeNode(node.Type, StatusSuccess, duration)
	e.logger.Debug("Node executed", "run_id", r.id, "node_id", node.ID, "type", node.Type, "duration_ms", step.Duration)
	return res, nil
}

func (r *run) dispatch(ctx context.Context, node *Node, input string) (*NodeResult, error) {
	executor, ok := r.engine.registry[node.Type]
	if !ok {
		return nil, fmt.Errorf("no executor registered for node type %q", node.Type)
	}
	if err := r.engine.pace(ctx); err != nil {
		return nil, err
	}
	return executor.Execute(ctx, *node, NodeInput{Input: input, Context: r.wctx})
}

func (r *run) handleQuota(ctx context.Context, err error) {
	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		return
	}
	r.engine.metrics.observeQuota()
	if r.quotaHit {
		return
	}
	r.quotaHit = true
	r.engine.runLog.Add("Shared quota reached: a personal API key offers higher limits")
	if r.engine.onQuota != nil {
		r.engine.onQuota(ctx, quotaErr)
	}
}

func (e *Engine) pace(ctx context.Context) error {
	if e.nodeDelay <= 0 {
		return nil
	}
	t := time.NewTimer(e.nodeDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *run) results() *ExecutionResults {
	endTime := time.Now()
	status := RunSynchronized
	if r.failed {
		status = RunInterrupted
	}
	return &ExecutionResults{
		ExecutionID:   r.id,
		Status:        status,
		StartTime:     r.startTime.UTC().Format(time.RFC3339),
		EndTime:       endTime.UTC().Format(time.RFC3339),
		TotalDuration: endTime.Sub(r.startTime).Milliseconds(),
		Steps:         r.steps,
		Context:       r.wctx,
		QuotaExceeded: r.quotaHit,
	}
}

func displayLabel(n *Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}
