package workflow

import (
	"context"
	"fmt"
)

// Traversal selects the order in which downstream nodes are executed.
type Traversal string

const (
	// TraversalDepthFirst resolves each branch fully before its next sibling.
	// A fan-in node only sees parents on branches already walked.
	TraversalDepthFirst Traversal = "depth-first"
	// TraversalTopological executes reachable nodes in dependency order, so a
	// fan-in node sees every parent. Nodes on a cycle never become ready.
	TraversalTopological Traversal = "topological"
)

// ParseTraversal maps a config value to a Traversal.
func ParseTraversal(s string) (Traversal, error) {
	switch Traversal(s) {
	case "", TraversalDepthFirst:
		return TraversalDepthFirst, nil
	case TraversalTopological:
		return TraversalTopological, nil
	}
	return "", fmt.Errorf("unknown traversal %q", s)
}

type frame struct {
	nodeID string
	next   int
}

// walkDepthFirst visits every node reachable from root at most once. A node
// that fails is not descended into; its siblings still run.
func (r *run) walkDepthFirst(ctx context.Context, root string) error {
	visited := map[string]bool{root: true}
	stack := []frame{{nodeID: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := r.outgoing[top.nodeID]
		if top.next >= len(edges) {
			stack = stack[:len(stack)-1]
			continue
		}
		target := edges[top.next].Target
		top.next++

		node, ok := r.nodes[target]
		if !ok || visited[target] {
			continue
		}
		if err := ctx.Err(); err != nil {
			r.engine.runLog.Add("Run cancelled before [%s]", displayLabel(node))
			return err
		}

		visited[target] = true
		if _, err := r.execute(ctx, node); err != nil {
			continue
		}
		stack = append(stack, frame{nodeID: target})
	}
	return nil
}

// walkTopological executes the nodes reachable from root in Kahn order.
// Nodes downstream of a failure are left idle.
func (r *run) walkTopological(ctx context.Context, root string) error {
	reachable := r.reachableFrom(root)

	indegree := make(map[string]int, len(reachable))
	for id := range reachable {
		for _, edge := range r.outgoing[id] {
			if reachable[edge.Target] && edge.Target != root {
				indegree[edge.Target]++
			}
		}
	}

	blocked := make(map[string]bool)
	var queue []string
	release := func(id string) {
		for _, edge := range r.outgoing[id] {
			t := edge.Target
			if !reachable[t] || t == root {
				continue
			}
			indegree[t]--
			if indegree[t] == 0 {
				queue = append(queue, t)
			}
		}
	}
	release(root)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if r.hasBlockedParent(id, blocked) {
			blocked[id] = true
			release(id)
			continue
		}

		node := r.nodes[id]
		if err := ctx.Err(); err != nil {
			r.engine.runLog.Add("Run cancelled before [%s]", displayLabel(node))
			return err
		}
		if _, err := r.execute(ctx, node); err != nil {
			blocked[id] = true
		}
		release(id)
	}
	return nil
}

func (r *run) hasBlockedParent(id string, blocked map[string]bool) bool {
	for _, edge := range r.incoming[id] {
		if blocked[edge.Source] {
			return true
		}
	}
	return false
}

func (r *run) reachableFrom(root string) map[string]bool {
	seen := map[string]bool{root: true}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, edge := range r.outgoing[id] {
			if _, ok := r.nodes[edge.Target]; !ok || seen[edge.Target] {
				continue
			}
			seen[edge.Target] = true
			stack = append(stack, edge.Target)
		}
	}
	return seen
}
