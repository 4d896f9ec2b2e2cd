// Package agent wires the approval-gated conversation workflow: a model
// turn, a human approval gate suspending execution before any tool runs, a
// tool-execution step, and a rejection-feedback step looping back to the
// model. Conversation state is checkpointed per thread through a graph.Saver,
// so suspended threads can be resumed later, from another driver, or (with a
// durable saver) from another process.
package agent

import (
	"context"
	"fmt"

	"github.com/user/gatekeep/internal/graph"
	"github.com/user/gatekeep/internal/tool"
	"github.com/user/gatekeep/pkg/llm"
)

// Agent runs approval-gated conversations keyed by thread ID.
type Agent struct {
	runner *graph.Runner[State]
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	systemPrompt string
	maxSteps     int
	window       *window
	windowErr    error
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithMaxSteps bounds node executions per turn. Zero disables the ceiling.
func WithMaxSteps(n int) Option {
	return func(o *options) { o.maxSteps = n }
}

// WithTokenWindow trims history to maxTokens-reserve tokens (counted with
// the tokenizer for model) before each model call.
func WithTokenWindow(model string, maxTokens, reserve int) Option {
	return func(o *options) {
		o.window, o.windowErr = newWindow(model, maxTokens, reserve)
	}
}

// New builds the workflow graph and compiles it against the saver.
func New(provider llm.Provider, registry *tool.Registry, saver graph.Saver, opts ...Option) (*Agent, error) {
	o := options{
		systemPrompt: DefaultSystemPrompt,
		maxSteps:     graph.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.windowErr != nil {
		return nil, fmt.Errorf("token window: %w", o.windowErr)
	}

	n := &nodes{
		provider:     provider,
		registry:     registry,
		window:       o.window,
		systemPrompt: o.systemPrompt,
	}

	g := graph.New[State]()
	g.AddNode(nodeAgent, n.agent)
	g.AddNode(nodeApproval, n.approval)
	g.AddNode(nodeTools, n.tools)
	g.AddNode(nodeRejected, n.rejected)
	g.SetEntry(nodeAgent)
	g.AddBranch(nodeAgent, shouldContinue)
	g.AddBranch(nodeApproval, checkApproval)
	g.AddEdge(nodeTools, nodeAgent)
	g.AddEdge(nodeRejected, nodeAgent)

	runner, err := g.Compile(saver, graph.WithMaxSteps(o.maxSteps))
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}
	return &Agent{runner: runner}, nil
}

// Turn is the outcome of one Send or Decide: either a final reply, or a
// pending approval the driver must collect a decision for.
type Turn struct {
	Reply   string
	Pending *ApprovalRequest
}

// Send appends a user message to the thread and runs the workflow until it
// answers or suspends for approval. Sending to a suspended thread returns
// graph.ErrPendingInterrupt.
func (a *Agent) Send(ctx context.Context, threadID, text string) (*Turn, error) {
	res, err := a.runner.Invoke(ctx, threadID, func(st State) State {
		st.Messages = append(st.Messages, llm.User(text))
		st.Approved = false
		st.Feedback = ""
		return st
	})
	if err != nil {
		return nil, err
	}
	return turnFrom(res)
}

// Decide resumes a suspended thread with the human's decision.
func (a *Agent) Decide(ctx context.Context, threadID string, decision Decision) (*Turn, error) {
	res, err := a.runner.Resume(ctx, threadID, decision)
	if err != nil {
		return nil, err
	}
	return turnFrom(res)
}

// PendingApproval returns the approval request a suspended thread is waiting
// on. The second return is false when the thread is not suspended. A
// suspension that is not an approval request is UnrecognizedInterruptError.
func (a *Agent) PendingApproval(ctx context.Context, threadID string) (*ApprovalRequest, bool, error) {
	payload, pending, err := a.runner.Pending(ctx, threadID)
	if err != nil || !pending {
		return nil, false, err
	}
	req, ok := DecodeApprovalRequest(payload)
	if !ok {
		return nil, true, &UnrecognizedInterruptError{Payload: payload}
	}
	return req, true, nil
}

// Reset discards the thread entirely. Equivalent to abandoning the thread ID.
func (a *Agent) Reset(ctx context.Context, threadID string) error {
	return a.runner.Reset(ctx, threadID)
}

func turnFrom(res *graph.Result[State]) (*Turn, error) {
	if res.Suspended() {
		req, ok := DecodeApprovalRequest(res.Interrupt)
		if !ok {
			return nil, &UnrecognizedInterruptError{Payload: res.Interrupt}
		}
		return &Turn{Pending: req}, nil
	}
	turn := &Turn{}
	if last := lastMessage(res.State); last != nil && last.Role == llm.RoleAssistant {
		turn.Reply = last.Content
	}
	return turn, nil
}
