// Package graph implements a small directed control-flow engine with
// conditional branching, per-node checkpointing, and resumable interrupts.
//
// Execution walks named nodes starting at the entry node. A node may suspend
// the walk by returning NodeContext.Suspend(payload); the engine checkpoints
// the thread and returns the payload to the caller. Resume re-executes the
// suspended node with the caller's resume value available through
// NodeContext.Resume. Because every step is persisted through a Saver,
// resumption works from a fresh Runner (or a fresh process, given a durable
// Saver) as long as the same thread ID is supplied.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// End is the terminal pseudo-node. Branches return it to stop the walk.
const End = "__end__"

var (
	// ErrPendingInterrupt reports an Invoke on a thread that is suspended
	// and must be resumed (or reset) first.
	ErrPendingInterrupt = errors.New("graph: thread has a pending interrupt")

	// ErrNoPendingInterrupt reports a Resume on a thread with nothing to resume.
	ErrNoPendingInterrupt = errors.New("graph: thread has no pending interrupt")

	// ErrMaxSteps reports that a single run exceeded the configured step ceiling.
	ErrMaxSteps = errors.New("graph: max steps exceeded")
)

// Checkpoint is the persisted snapshot of one thread. Node and Interrupt are
// set only while the thread is suspended; Node names the node to re-execute
// on resume.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	State     json.RawMessage `json:"state"`
	Node      string          `json:"node,omitempty"`
	Interrupt json.RawMessage `json:"interrupt,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Saver persists checkpoints keyed by thread ID. Implementations must return
// (nil, nil) from Get when the thread has no checkpoint.
type Saver interface {
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	Put(ctx context.Context, cp *Checkpoint) error
	Delete(ctx context.Context, threadID string) error
}

// Interrupt is the error value a node returns to suspend execution.
// Construct it through NodeContext.Suspend.
type Interrupt struct {
	Value json.RawMessage
}

func (i *Interrupt) Error() string {
	return "graph: execution interrupted"
}

// NodeContext carries resume data into the node being re-executed after a
// suspension.
type NodeContext struct {
	resume   json.RawMessage
	resuming bool
}

// Resume decodes the resume payload into v. It returns false when the
// current node execution is not a resumption.
func (nc *NodeContext) Resume(v any) (bool, error) {
	if !nc.resuming {
		return false, nil
	}
	if err := json.Unmarshal(nc.resume, v); err != nil {
		return false, fmt.Errorf("graph: decode resume payload: %w", err)
	}
	return true, nil
}

// Suspend returns the interrupt error carrying value. The engine checkpoints
// the thread before the node's effects and hands value to the caller.
func (nc *NodeContext) Suspend(value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("graph: marshal interrupt payload: %w", err)
	}
	return &Interrupt{Value: raw}
}

// NodeFunc executes one node, returning the updated state.
type NodeFunc[S any] func(ctx context.Context, nc *NodeContext, state S) (S, error)

// BranchFunc selects the next node (or End) after its source node ran.
type BranchFunc[S any] func(state S) string

// Graph is a mutable graph definition. Compile it into a Runner to execute.
type Graph[S any] struct {
	entry    string
	nodes    map[string]NodeFunc[S]
	edges    map[string]string
	branches map[string]BranchFunc[S]
}

// New creates an empty graph definition.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:    make(map[string]NodeFunc[S]),
		edges:    make(map[string]string),
		branches: make(map[string]BranchFunc[S]),
	}
}

// AddNode registers a named node.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) {
	g.nodes[name] = fn
}

// AddEdge registers an unconditional edge. to may be End.
func (g *Graph[S]) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddBranch registers a conditional edge selector for from.
func (g *Graph[S]) AddBranch(from string, fn BranchFunc[S]) {
	g.branches[from] = fn
}

// SetEntry sets the node execution starts at.
func (g *Graph[S]) SetEntry(name string) {
	g.entry = name
}

// Option configures a compiled Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	maxSteps int
}

// WithMaxSteps bounds the number of node executions in a single Invoke or
// Resume. Zero disables the ceiling.
func WithMaxSteps(n int) Option {
	return func(o *runnerOptions) { o.maxSteps = n }
}

// DefaultMaxSteps bounds runaway model/tool loops within one run.
const DefaultMaxSteps = 50

// Compile validates the definition and returns a Runner bound to the saver.
func (g *Graph[S]) Compile(saver Saver, opts ...Option) (*Runner[S], error) {
	if saver == nil {
		return nil, errors.New("graph: saver is required")
	}
	if g.entry == "" {
		return nil, errors.New("graph: entry node not set")
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph: entry node %q not registered", g.entry)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unknown node %q", from)
		}
		if _, ok := g.branches[from]; ok {
			return nil, fmt.Errorf("graph: node %q has both an edge and a branch", from)
		}
		if to != End {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("graph: edge from %q to unknown node %q", from, to)
			}
		}
	}
	for from := range g.branches {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: branch from unknown node %q", from)
		}
	}

	options := runnerOptions{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&options)
	}
	return &Runner[S]{graph: g, saver: saver, maxSteps: options.maxSteps}, nil
}

// Runner executes a compiled graph against checkpointed threads.
type Runner[S any] struct {
	graph    *Graph[S]
	saver    Saver
	maxSteps int
}

// Result is the outcome of one Invoke or Resume: the state as of the last
// completed node, plus the interrupt payload when the run suspended.
type Result[S any] struct {
	State     S
	Interrupt json.RawMessage
}

// Suspended reports whether the run stopped at an interrupt.
func (r *Result[S]) Suspended() bool {
	return r.Interrupt != nil
}

// Invoke loads the thread's checkpoint (zero state when absent), applies the
// caller's state update, and walks the graph from the entry node until End
// or a suspension. Invoking a suspended thread is ErrPendingInterrupt.
func (r *Runner[S]) Invoke(ctx context.Context, threadID string, apply func(S) S) (*Result[S], error) {
	cp, err := r.saver.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var state S
	if cp != nil {
		if cp.Node != "" {
			return nil, ErrPendingInterrupt
		}
		if err := json.Unmarshal(cp.State, &state); err != nil {
			return nil, fmt.Errorf("decode checkpoint state: %w", err)
		}
	}
	if apply != nil {
		state = apply(state)
	}
	return r.run(ctx, threadID, state, r.graph.entry, nil)
}

// Resume re-executes the suspended node with the given resume value and
// continues the walk. Resuming a thread without a pending interrupt is
// ErrNoPendingInterrupt.
func (r *Runner[S]) Resume(ctx context.Context, threadID string, resume any) (*Result[S], error) {
	cp, err := r.saver.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil || cp.Node == "" {
		return nil, ErrNoPendingInterrupt
	}
	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint state: %w", err)
	}
	raw, err := json.Marshal(resume)
	if err != nil {
		return nil, fmt.Errorf("marshal resume value: %w", err)
	}
	return r.run(ctx, threadID, state, cp.Node, raw)
}

// Pending returns the interrupt payload of a suspended thread, if any.
func (r *Runner[S]) Pending(ctx context.Context, threadID string) (json.RawMessage, bool, error) {
	cp, err := r.saver.Get(ctx, threadID)
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil || cp.Node == "" {
		return nil, false, nil
	}
	return cp.Interrupt, true, nil
}

// Reset discards the thread's checkpoint entirely.
func (r *Runner[S]) Reset(ctx context.Context, threadID string) error {
	return r.saver.Delete(ctx, threadID)
}

func (r *Runner[S]) run(ctx context.Context, threadID string, state S, node string, resume json.RawMessage) (*Result[S], error) {
	steps := 0
	for node != End {
		if r.maxSteps > 0 && steps >= r.maxSteps {
			return nil, fmt.Errorf("%w (%d node executions)", ErrMaxSteps, steps)
		}
		steps++

		fn, ok := r.graph.nodes[node]
		if !ok {
			return nil, fmt.Errorf("graph: unknown node %q", node)
		}

		nc := &NodeContext{resume: resume, resuming: resume != nil}
		resume = nil // only the first node of a resumed run sees the payload

		next, err := fn(ctx, nc, state)
		var intr *Interrupt
		if errors.As(err, &intr) {
			if err := r.save(ctx, threadID, state, node, intr.Value); err != nil {
				return nil, err
			}
			return &Result[S]{State: state, Interrupt: intr.Value}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node, err)
		}
		state = next

		if err := r.save(ctx, threadID, state, "", nil); err != nil {
			return nil, err
		}

		node, err = r.next(node, state)
		if err != nil {
			return nil, err
		}
	}
	return &Result[S]{State: state}, nil
}

// next selects the following node: branch first, then edge, End otherwise.
func (r *Runner[S]) next(node string, state S) (string, error) {
	if br, ok := r.graph.branches[node]; ok {
		selected := br(state)
		if selected != End {
			if _, ok := r.graph.nodes[selected]; !ok {
				return "", fmt.Errorf("graph: branch from %q selected unknown node %q", node, selected)
			}
		}
		return selected, nil
	}
	if to, ok := r.graph.edges[node]; ok {
		return to, nil
	}
	return End, nil
}

func (r *Runner[S]) save(ctx context.Context, threadID string, state S, node string, interrupt json.RawMessage) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint state: %w", err)
	}
	cp := &Checkpoint{
		ThreadID:  threadID,
		State:     raw,
		Node:      node,
		Interrupt: interrupt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.saver.Put(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
