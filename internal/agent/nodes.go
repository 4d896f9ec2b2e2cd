package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/gatekeep/internal/graph"
	"github.com/user/gatekeep/internal/tool"
	"github.com/user/gatekeep/pkg/llm"
)

// Graph node names.
const (
	nodeAgent    = "agent"
	nodeApproval = "approval"
	nodeTools    = "tools"
	nodeRejected = "rejected"
)

// nodes bundles the dependencies the node functions close over.
type nodes struct {
	provider     llm.Provider
	registry     *tool.Registry
	window       *window
	systemPrompt string
}

// agent invokes the model with the full history. It maintains the invariant
// that the history starts with exactly one system message, and performs the
// single degenerate-response retry: an empty response after tool results
// gets one summarize nudge and one more model call, never further recursion.
func (n *nodes) agent(ctx context.Context, _ *graph.NodeContext, st State) (State, error) {
	if len(st.Messages) == 0 || st.Messages[0].Role != llm.RoleSystem {
		st.Messages = append([]llm.Message{llm.System(n.systemPrompt)}, st.Messages...)
	}

	prompt := st.Messages
	if n.window != nil {
		prompt = n.window.Trim(prompt)
	}

	resp, err := n.provider.Complete(ctx, prompt, n.registry.AsLLMTools())
	if err != nil {
		return st, fmt.Errorf("model call: %w", err)
	}
	reply := assistantMessage(resp)

	if resp.Content == "" && len(resp.ToolCalls) == 0 && hasToolResult(st.Messages) {
		nudge := llm.User(summarizeNudge)
		retryPrompt := make([]llm.Message, 0, len(prompt)+2)
		retryPrompt = append(retryPrompt, prompt...)
		retryPrompt = append(retryPrompt, reply, nudge)

		retry, err := n.provider.Complete(ctx, retryPrompt, n.registry.AsLLMTools())
		if err != nil {
			return st, fmt.Errorf("model retry: %w", err)
		}
		st.Messages = append(st.Messages, reply, nudge, assistantMessage(retry))
		st.Approved = false
		return st, nil
	}

	st.Messages = append(st.Messages, reply)
	st.Approved = false
	return st, nil
}

// approval suspends execution until the human decides. On resume it records
// the decision in the control fields; rejection without feedback gets the
// fixed default text.
func (n *nodes) approval(_ context.Context, nc *graph.NodeContext, st State) (State, error) {
	last := lastMessage(st)
	if last == nil || len(last.ToolCalls) == 0 {
		st.Approved = false
		st.Feedback = ""
		return st, nil
	}

	var decision Decision
	resumed, err := nc.Resume(&decision)
	if err != nil {
		return st, err
	}
	if !resumed {
		return st, nc.Suspend(approvalRequestFor(last.ToolCalls))
	}

	if decision.Approved {
		st.Approved = true
		st.Feedback = ""
		return st, nil
	}
	st.Approved = false
	if fb := strings.TrimSpace(decision.Feedback); fb != "" {
		st.Feedback = fb
	} else {
		st.Feedback = DefaultRejectionFeedback
	}
	return st, nil
}

// tools executes every pending call of the approved batch, in issue order.
// Failures become result text; a tool call always produces a tool message.
func (n *nodes) tools(ctx context.Context, _ *graph.NodeContext, st State) (State, error) {
	last := lastMessage(st)
	if last == nil || len(last.ToolCalls) == 0 {
		return st, nil
	}
	for _, tc := range last.ToolCalls {
		st.Messages = append(st.Messages, llm.ToolResult(tc.ID, n.execute(ctx, tc)))
	}
	return st, nil
}

func (n *nodes) execute(ctx context.Context, tc llm.ToolCall) string {
	t, ok := n.registry.Get(tc.Function.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", tc.Function.Name)
	}
	result, err := t.Execute(ctx, tc.Function.Arguments)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return result
}

// rejected injects the human's feedback as a user message so the model can
// revise its approach on the next turn of the loop.
func (n *nodes) rejected(_ context.Context, _ *graph.NodeContext, st State) (State, error) {
	fb := st.Feedback
	if fb == "" {
		fb = DefaultRejectionFeedback
	}
	st.Messages = append(st.Messages, llm.User(fb))
	st.Approved = false
	return st, nil
}

// shouldContinue routes the agent node's output: pending tool calls go to
// the approval gate, a plain answer ends the turn.
func shouldContinue(st State) string {
	if last := lastMessage(st); last != nil && last.Role == llm.RoleAssistant && len(last.ToolCalls) > 0 {
		return nodeApproval
	}
	return graph.End
}

// checkApproval routes the approval node's output by the human's decision.
func checkApproval(st State) string {
	if st.Approved {
		return nodeTools
	}
	return nodeRejected
}

func assistantMessage(resp *llm.Response) llm.Message {
	return llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}
}
