package agent

import "github.com/user/gatekeep/pkg/llm"

// State is the checkpointed conversation state of one thread.
//
// Messages is append-only: turns are never mutated or deleted once added.
// Approved and Feedback are control scratch fields that ferry the human's
// decision from the approval suspension to the branch that consumes it; they
// are reset at the start of every user turn.
type State struct {
	Messages []llm.Message `json:"messages"`
	Approved bool          `json:"approved"`
	Feedback string        `json:"feedback"`
}

func lastMessage(st State) *llm.Message {
	if len(st.Messages) == 0 {
		return nil
	}
	return &st.Messages[len(st.Messages)-1]
}

func hasToolResult(msgs []llm.Message) bool {
	for _, m := range msgs {
		if m.Role == llm.RoleTool {
			return true
		}
	}
	return false
}
