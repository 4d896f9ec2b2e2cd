// Package telegram is a chat front end for the approval loop: pending tool
// calls are rendered with an inline approve/reject keyboard, and free text
// sent while an approval is pending becomes rejection feedback.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/user/gatekeep/internal/agent"
)

const maxTelegramMessage = 4096

// Conversation is the slice of the agent the adapter needs.
type Conversation interface {
	Send(ctx context.Context, threadID, text string) (*agent.Turn, error)
	Decide(ctx context.Context, threadID string, decision agent.Decision) (*agent.Turn, error)
}

// Adapter bridges Telegram chats to agent threads. Each chat maps to one
// thread ID; /new abandons it for a fresh one.
type Adapter struct {
	bot  *tgbotapi.BotAPI
	conv Conversation

	mu      sync.Mutex
	threads map[int64]string
	pending map[int64]bool
}

// New creates a Telegram adapter.
func New(token string, conv Conversation) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:     bot,
		conv:    conv,
		threads: make(map[int64]string),
		pending: make(map[int64]bool),
	}, nil
}

// Start begins long-polling for updates until ctx is done.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	for {
		select {
		case update := <-updates:
			switch {
			case update.CallbackQuery != nil:
				a.handleCallback(ctx, update.CallbackQuery)
			case update.Message != nil && update.Message.Text != "":
				a.handleMessage(ctx, update.Message)
			}
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.IsCommand() {
		a.handleCommand(chatID, msg.Command())
		return
	}

	threadID := a.threadFor(chatID)
	if a.isPending(chatID) {
		// Free text during a pending approval is rejection feedback.
		a.finishTurn(chatID, a.decide(ctx, chatID, threadID, agent.Decision{Approved: false, Feedback: msg.Text}))
		return
	}

	turn, err := a.conv.Send(ctx, threadID, msg.Text)
	a.finishTurn(chatID, turnOutcome{turn: turn, err: err})
}

func (a *Adapter) handleCommand(chatID int64, command string) {
	switch command {
	case "start":
		a.send(chatID, "Hello! I'm a search assistant. Every tool call I make needs your approval first. Send me a question to begin.")
	case "new":
		a.mu.Lock()
		a.threads[chatID] = uuid.New().String()
		a.pending[chatID] = false
		a.mu.Unlock()
		a.send(chatID, "Started a new session.")
	default:
		a.send(chatID, "Unknown command. Available: /start, /new")
	}
}

func (a *Adapter) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	a.bot.Request(tgbotapi.NewCallback(cb.ID, ""))

	if !a.isPending(chatID) {
		a.send(chatID, "No approval is pending.")
		return
	}

	threadID := a.threadFor(chatID)
	switch cb.Data {
	case "approve":
		a.finishTurn(chatID, a.decide(ctx, chatID, threadID, agent.Decision{Approved: true}))
	case "reject":
		// Button rejection uses the default feedback; send text instead to
		// supply your own.
		a.finishTurn(chatID, a.decide(ctx, chatID, threadID, agent.Decision{Approved: false}))
	}
}

type turnOutcome struct {
	turn *agent.Turn
	err  error
}

func (a *Adapter) decide(ctx context.Context, chatID int64, threadID string, decision agent.Decision) turnOutcome {
	a.setPending(chatID, false)
	turn, err := a.conv.Decide(ctx, threadID, decision)
	return turnOutcome{turn: turn, err: err}
}

func (a *Adapter) finishTurn(chatID int64, out turnOutcome) {
	if out.err != nil {
		var unrec *agent.UnrecognizedInterruptError
		if errors.As(out.err, &unrec) {
			slog.Error("unrecognized interrupt", "chat", chatID, "payload", string(unrec.Payload))
			a.send(chatID, "I hit an interrupt I don't understand; the session is paused.")
			return
		}
		slog.Error("turn failed", "chat", chatID, "error", out.err)
		a.send(chatID, "Sorry, I encountered an error processing your message.")
		return
	}

	if out.turn.Pending != nil {
		a.setPending(chatID, true)
		a.sendApproval(chatID, out.turn.Pending)
		return
	}
	a.send(chatID, out.turn.Reply)
}

func (a *Adapter) sendApproval(chatID int64, req *agent.ApprovalRequest) {
	var sb strings.Builder
	sb.WriteString("Tool call approval required:\n")
	for i, tc := range req.ToolCalls {
		args, _ := json.Marshal(tc.Args)
		fmt.Fprintf(&sb, "\n%d. %s %s", i+1, tc.Name, string(args))
	}
	sb.WriteString("\n\nApprove, or reply with feedback to reject.")

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject"),
		),
	)
	if _, err := a.bot.Send(msg); err != nil {
		slog.Error("send approval failed", "chat", chatID, "error", err)
	}
}

func (a *Adapter) send(chatID int64, text string) {
	if text == "" {
		text = "(no reply)"
	}
	for _, chunk := range splitMessage(text, maxTelegramMessage) {
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			slog.Error("send failed", "chat", chatID, "error", err)
			return
		}
	}
}

func (a *Adapter) threadFor(chatID int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.threads[chatID]
	if !ok {
		id = uuid.New().String()
		a.threads[chatID] = id
	}
	return id
}

func (a *Adapter) isPending(chatID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[chatID]
}

func (a *Adapter) setPending(chatID int64, v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending[chatID] = v
}

// splitMessage chunks text at the Telegram message size limit, preferring
// newline boundaries.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
