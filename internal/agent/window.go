package agent

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/gatekeep/pkg/llm"
)

// window trims conversation history to a token budget before model calls.
// The system message is always kept; after it, the most recent messages that
// fit the budget survive, oldest dropped first.
type window struct {
	tokenizer *tiktoken.Tiktoken
	budget    int
}

// newWindow builds a window for the given model. maxTokens is the model's
// context size, reserve the tokens held back for the response.
func newWindow(model string, maxTokens, reserve int) (*window, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback for models tiktoken does not know about.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	budget := maxTokens - reserve
	if budget <= 0 {
		return nil, fmt.Errorf("token budget %d is not positive", budget)
	}
	return &window{tokenizer: enc, budget: budget}, nil
}

func (w *window) count(msg llm.Message) int {
	n := len(w.tokenizer.Encode(msg.Content, nil, nil))
	for _, tc := range msg.ToolCalls {
		n += len(w.tokenizer.Encode(tc.Function.Name, nil, nil))
		n += len(w.tokenizer.Encode(string(tc.Function.Arguments), nil, nil))
	}
	return n
}

// Trim returns the suffix of msgs that fits the budget, preserving the
// leading system message. The newest message is always included even when it
// alone exceeds the budget.
func (w *window) Trim(msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return msgs
	}

	var system *llm.Message
	rest := msgs
	used := 0
	if msgs[0].Role == llm.RoleSystem {
		system = &msgs[0]
		rest = msgs[1:]
		used = w.count(msgs[0])
	}

	// Walk backwards to find the oldest message that still fits.
	start := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		used += w.count(rest[i])
		if used > w.budget && start < len(rest) {
			break
		}
		start = i
	}

	if system == nil {
		return rest[start:]
	}
	out := make([]llm.Message, 0, 1+len(rest)-start)
	out = append(out, *system)
	out = append(out, rest[start:]...)
	return out
}
