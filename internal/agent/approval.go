package agent

import (
	"encoding/json"
	"fmt"

	"github.com/user/gatekeep/pkg/llm"
)

// DefaultRejectionFeedback is injected when a rejection arrives without
// feedback text.
const DefaultRejectionFeedback = "The user rejected the tool call. Please revise your approach."

// approvalMessage is the human-readable note attached to every approval
// suspension payload.
const approvalMessage = "Tool call(s) require approval"

// ToolCallView is the driver-facing rendering of one pending tool call.
type ToolCallView struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
}

// ApprovalRequest is the suspension payload raised by the approval node.
// The tool_calls key is the discriminator drivers use to recognize it.
type ApprovalRequest struct {
	ToolCalls []ToolCallView `json:"tool_calls"`
	Message   string         `json:"message"`
}

// Decision is the resume payload: approve the whole batch, or reject it with
// optional feedback for the model.
type Decision struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

func approvalRequestFor(calls []llm.ToolCall) *ApprovalRequest {
	views := make([]ToolCallView, 0, len(calls))
	for _, tc := range calls {
		args := map[string]any{}
		if len(tc.Function.Arguments) > 0 {
			if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil {
				args = map[string]any{"raw": string(tc.Function.Arguments)}
			}
		}
		views = append(views, ToolCallView{
			Name: tc.Function.Name,
			Args: args,
			ID:   tc.ID,
		})
	}
	return &ApprovalRequest{ToolCalls: views, Message: approvalMessage}
}

// DecodeApprovalRequest reports whether raw is an approval suspension
// payload. A payload without a tool_calls key is a different interrupt kind.
func DecodeApprovalRequest(raw json.RawMessage) (*ApprovalRequest, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false
	}
	if _, ok := probe["tool_calls"]; !ok {
		return nil, false
	}
	var req ApprovalRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false
	}
	return &req, true
}

// UnrecognizedInterruptError reports a suspension payload no driver code
// understands. The thread stays suspended; a later, compatible resumption
// may still pick it up.
type UnrecognizedInterruptError struct {
	Payload json.RawMessage
}

func (e *UnrecognizedInterruptError) Error() string {
	return fmt.Sprintf("unrecognized interrupt payload: %s", string(e.Payload))
}
