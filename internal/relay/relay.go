// Package relay turns one inbound user text into one streamed assistant
// reply: it assembles the prompt from session state, streams the completion,
// and edits a single outbound message in place as fragments arrive.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quibblebot/quibble/internal/session"
	"github.com/quibblebot/quibble/llm"
)

const (
	SystemPrompt = "You are a helpful assistant."

	// DocContextLimit caps how much extracted document text enters the
	// prompt. Truncation is positional and silent.
	DocContextLimit = 4000

	docContextPrefix = "Use the following content from a PDF to answer: "
)

// Outbox is the messaging surface the relay needs: send one placeholder and
// keep overwriting it.
type Outbox interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

type Relay struct {
	Client      llm.Client
	Store       *session.Store
	Out         Outbox
	Model       string
	Placeholder string
	// EditInterval throttles streaming edits; zero edits on every fragment.
	EditInterval time.Duration
	Logger       *slog.Logger
}

// Respond runs one turn for the user. History gains exactly two entries on
// success; on any failure it is left untouched and the error is returned for
// the handler to translate into a user-facing notice.
func (r *Relay) Respond(ctx context.Context, chatID, userID int64, userText string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	turnID := uuid.New().String()
	start := time.Now()

	var (
		history  []llm.Message
		docText  string
		imageB64 string
	)
	version := r.Store.Mutate(userID, start.UTC(), func(s *session.Session) {
		history = append([]llm.Message(nil), s.History...)
		docText = s.DocumentText
		imageB64 = s.ImageBase64
		// A pending image is consumed by the turn that uses it; document
		// text persists until replaced or reset.
		s.ImageBase64 = ""
	})

	messages := make([]llm.Message, 0, len(history)+3)
	messages = append(messages, llm.Text(llm.RoleSystem, SystemPrompt))
	messages = append(messages, history...)

	mode := "text"
	switch {
	case imageB64 != "":
		mode = "image"
		messages = append(messages, llm.ImageQuestion(userText, imageB64))
	case docText != "":
		mode = "document"
		messages = append(messages, llm.Text(llm.RoleSystem, docContextPrefix+truncateRunes(docText, DocContextLimit)))
		messages = append(messages, llm.Text(llm.RoleUser, userText))
	default:
		messages = append(messages, llm.Text(llm.RoleUser, userText))
	}

	logger.Info("relay_turn_start",
		"turn_id", turnID,
		"chat_id", chatID,
		"user_id", userID,
		"mode", mode,
		"history_len", len(history),
		"text_len", len(userText),
	)

	placeholder := r.Placeholder
	if placeholder == "" {
		placeholder = "..."
	}
	messageID, err := r.Out.SendMessage(ctx, chatID, placeholder)
	if err != nil {
		return fmt.Errorf("send placeholder: %w", err)
	}

	var full, edited string
	lastEdit := time.Time{}
	res, err := r.Client.ChatStream(ctx, llm.Request{Model: r.Model, Messages: messages}, func(delta string) error {
		full += delta
		if r.EditInterval > 0 && time.Since(lastEdit) < r.EditInterval {
			return nil
		}
		if err := r.Out.EditMessageText(ctx, chatID, messageID, full); err != nil {
			return fmt.Errorf("edit streamed message: %w", err)
		}
		edited = full
		lastEdit = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("stream completion: %w", err)
	}
	full = res.Text
	if full != edited && full != "" {
		// Flush fragments the edit throttle held back.
		if err := r.Out.EditMessageText(ctx, chatID, messageID, full); err != nil {
			return fmt.Errorf("edit final message: %w", err)
		}
	}

	applied := r.Store.MutateIfCurrent(userID, version, func(s *session.Session) {
		s.History = append(s.History,
			llm.Text(llm.RoleUser, userText),
			llm.Text(llm.RoleAssistant, full),
		)
	})
	if !applied {
		logger.Debug("relay_turn_discarded", "turn_id", turnID, "user_id", userID, "reason", "session_reset_mid_turn")
	}

	logger.Info("relay_turn_done",
		"turn_id", turnID,
		"chat_id", chatID,
		"mode", mode,
		"reply_len", len(full),
		"duration", time.Since(start).String(),
	)
	return nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
