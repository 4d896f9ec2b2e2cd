package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gatekeep/internal/agent"
)

// chatThreadID is fixed so a durable checkpoint driver resumes the same
// conversation across process restarts.
const chatThreadID = "cli-session"

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive terminal session",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no model API key configured; set OPENAI_API_KEY or llm.api_key in the config file")
	}

	a, closer, err := buildAgent(cfg)
	if err != nil {
		return err
	}
	defer closer()

	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Human-in-the-Loop Agent (terminal)")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("\nAll tool calls require your approval before execution.")
	fmt.Println("Reject with feedback to steer the agent.")
	fmt.Println("\nType 'quit' or 'exit' to stop.")
	fmt.Println()

	ctx := cmd.Context()
	scanner := bufio.NewScanner(os.Stdin)

	// A durable saver may have left this thread suspended mid-approval.
	if req, pending, err := a.PendingApproval(ctx, chatThreadID); err == nil && pending {
		fmt.Println("Resuming a pending approval from a previous session.")
		resolveApprovals(ctx, a, scanner, &agent.Turn{Pending: req})
	} else if err != nil {
		reportTurnError(err)
	}

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			fmt.Println("\nGoodbye!")
			return nil
		case "":
			continue
		}

		turn, err := a.Send(ctx, chatThreadID, input)
		if err != nil {
			reportTurnError(err)
			continue
		}
		resolveApprovals(ctx, a, scanner, turn)
	}
}

// resolveApprovals loops decision prompts until the turn completes. A
// suspension the driver doesn't recognize halts the loop, leaving the
// session suspended.
func resolveApprovals(ctx context.Context, a *agent.Agent, scanner *bufio.Scanner, turn *agent.Turn) {
	for turn.Pending != nil {
		decision := promptDecision(scanner, turn.Pending)
		next, err := a.Decide(ctx, chatThreadID, decision)
		if err != nil {
			reportTurnError(err)
			return
		}
		turn = next
	}
	fmt.Printf("\nAgent: %s\n\n", turn.Reply)
}

func promptDecision(scanner *bufio.Scanner, req *agent.ApprovalRequest) agent.Decision {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("TOOL CALL APPROVAL REQUIRED")
	fmt.Println(strings.Repeat("=", 60))
	for i, tc := range req.ToolCalls {
		fmt.Printf("\nTool Call #%d:\n", i+1)
		fmt.Printf("  Tool: %s\n", tc.Name)
		fmt.Printf("  Arguments: %v\n", tc.Args)
	}
	fmt.Println("\n" + strings.Repeat("-", 60))

	fmt.Print("Approve these tool calls? (yes/no): ")
	answer := ""
	if scanner.Scan() {
		answer = strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
	if answer == "yes" || answer == "y" {
		fmt.Println("✓ Approved")
		return agent.Decision{Approved: true}
	}

	fmt.Print("Provide feedback for the agent: ")
	feedback := ""
	if scanner.Scan() {
		feedback = strings.TrimSpace(scanner.Text())
	}
	if feedback == "" {
		feedback = agent.DefaultRejectionFeedback
	}
	fmt.Printf("✗ Rejected with feedback: %s\n", feedback)
	return agent.Decision{Approved: false, Feedback: feedback}
}

func reportTurnError(err error) {
	var unrec *agent.UnrecognizedInterruptError
	if errors.As(err, &unrec) {
		fmt.Printf("\nUnknown interrupt type: %s\n\n", string(unrec.Payload))
		return
	}
	fmt.Printf("\nError: %v\n\n", err)
}
