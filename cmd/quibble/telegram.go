package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quibblebot/quibble/internal/i18n"
	"github.com/quibblebot/quibble/internal/logutil"
	"github.com/quibblebot/quibble/internal/relay"
	"github.com/quibblebot/quibble/internal/session"
	"github.com/quibblebot/quibble/internal/telegram"
	"github.com/quibblebot/quibble/providers/openai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type eventKind string

const (
	eventCommand  eventKind = "command"
	eventText     eventKind = "text"
	eventDocument eventKind = "document"
	eventPhoto    eventKind = "photo"
)

// inboundEvent is the closed set of update shapes the bot reacts to.
type inboundEvent struct {
	Kind      eventKind
	Command   string
	ChatID    int64
	UserID    int64
	MessageID int64
	Lang      string
	Text      string
	Document  *telegram.Document
	Photo     *telegram.PhotoSize
}

type eventHandler func(ctx context.Context, ev inboundEvent)

// classifyUpdate maps a raw update onto the event set, dropping anything the
// bot does not handle (bot messages, stickers, empty text, ...).
func classifyUpdate(u telegram.Update) (inboundEvent, bool) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return inboundEvent{}, false
	}
	ev := inboundEvent{ChatID: msg.Chat.ID, MessageID: msg.MessageID}
	if msg.From != nil {
		if msg.From.IsBot {
			return inboundEvent{}, false
		}
		ev.UserID = msg.From.ID
		ev.Lang = msg.From.LanguageCode
	}
	if ev.UserID == 0 {
		ev.UserID = ev.ChatID
	}

	switch {
	case msg.Document != nil:
		ev.Kind = eventDocument
		ev.Document = msg.Document
		return ev, true
	case len(msg.Photo) > 0:
		// The largest resolution variant is last.
		p := msg.Photo[len(msg.Photo)-1]
		ev.Kind = eventPhoto
		ev.Photo = &p
		return ev, true
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return inboundEvent{}, false
	}
	if strings.HasPrefix(text, "/") {
		word, _, _ := strings.Cut(text, " ")
		ev.Kind = eventCommand
		ev.Command = normalizeSlashCommand(word)
		return ev, true
	}
	ev.Kind = eventText
	ev.Text = text
	return ev, true
}

// normalizeSlashCommand lowercases a command word and strips an @botname
// suffix ("/reset@quibble_bot" -> "/reset").
func normalizeSlashCommand(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if i := strings.Index(word, "@"); i >= 0 {
		word = word[:i]
	}
	return word
}

type chatWorker struct {
	Jobs chan inboundEvent
}

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram relay bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or QUIBBLE_TELEGRAM_BOT_TOKEN)")
			}
			apiKey := strings.TrimSpace(flagOrViperString(cmd, "openai-api-key", "llm.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing llm.api_key (set via --openai-api-key or QUIBBLE_LLM_API_KEY)")
			}

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			baseURL := strings.TrimRight(strings.TrimSpace(viper.GetString("telegram.base_url")), "/")

			allowed := make(map[int64]bool)
			for _, s := range flagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				id, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid telegram.allowed_chat_ids entry %q: %w", s, err)
				}
				allowed[id] = true
			}

			model := strings.TrimSpace(viper.GetString("llm.model"))
			client := openai.New(viper.GetString("llm.endpoint"), apiKey, viper.GetDuration("llm.request_timeout"))

			pollTimeout := flagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout")
			if pollTimeout <= 0 {
				pollTimeout = 30 * time.Second
			}
			taskTimeout := flagOrViperDuration(cmd, "telegram-task-timeout", "telegram.task_timeout")
			if taskTimeout <= 0 {
				taskTimeout = 10 * time.Minute
			}
			maxConc := flagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency")
			if maxConc <= 0 {
				maxConc = 3
			}
			idleTimeout := viper.GetDuration("session.idle_timeout")
			if idleTimeout <= 0 {
				idleTimeout = 10 * time.Minute
			}
			typingInterval := viper.GetDuration("telegram.typing_interval")
			editInterval := viper.GetDuration("telegram.stream_edit_interval")

			httpClient := &http.Client{Timeout: 60 * time.Second}
			api := telegram.New(httpClient, baseURL, token)

			me, err := api.GetMe(context.Background())
			if err != nil {
				return err
			}
			if err := api.SetMyCommands(context.Background(), []telegram.BotCommand{
				{Command: "start", Description: "Start the bot"},
				{Command: "help", Description: "Get help on how to use the bot"},
				{Command: "reset", Description: "Reset the conversation"},
			}); err != nil {
				logger.Warn("telegram_set_commands_error", "error", err.Error())
			}

			store := session.NewStore()
			rly := &relay.Relay{
				Client:       client,
				Store:        store,
				Out:          api,
				Model:        model,
				Placeholder:  i18n.T(i18n.DefaultLang, i18n.KeyThinking),
				EditInterval: editInterval,
				Logger:       logger,
			}

			disp := &dispatcher{
				store:       store,
				relay:       rly,
				api:         api,
				logger:      logger,
				idleTimeout: idleTimeout,
				typing: func(ctx context.Context, chatID int64) func() {
					return telegram.StartTypingTicker(ctx, api, chatID, "typing", typingInterval)
				},
			}
			// Routing table over the closed event set, built once at startup.
			handlers := disp.handlers()

			sem := make(chan struct{}, maxConc)
			var (
				mu      sync.Mutex
				workers = make(map[int64]*chatWorker)
			)

			getOrStartWorkerLocked := func(userID int64) *chatWorker {
				if w, ok := workers[userID]; ok && w != nil {
					return w
				}
				w := &chatWorker{Jobs: make(chan inboundEvent, 16)}
				workers[userID] = w

				go func() {
					for ev := range w.Jobs {
						// Global concurrency limit.
						sem <- struct{}{}
						func() {
							defer func() { <-sem }()
							ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
							defer cancel()
							handlers[ev.Kind](ctx, ev)
						}()
					}
				}()

				return w
			}

			logger.Info("telegram_start",
				"base_url", baseURL,
				"bot_username", me.Username,
				"bot_id", me.ID,
				"model", model,
				"poll_timeout", pollTimeout.String(),
				"task_timeout", taskTimeout.String(),
				"max_concurrency", maxConc,
				"idle_timeout", idleTimeout.String(),
			)

			pollCtx := cmd.Context()
			if pollCtx == nil {
				pollCtx = context.Background()
			}
			var offset int64
			for {
				updates, nextOffset, err := api.GetUpdates(pollCtx, offset, pollTimeout)
				if err != nil {
					if errors.Is(err, context.Canceled) || pollCtx.Err() != nil {
						logger.Info("telegram_stop", "reason", "context_canceled")
						return nil
					}
					if telegram.IsPollTimeoutError(err) {
						logger.Debug("telegram_get_updates_timeout", "error", err.Error())
					} else {
						logger.Warn("telegram_get_updates_error", "error", err.Error())
					}
					time.Sleep(1 * time.Second)
					continue
				}
				offset = nextOffset

				for _, u := range updates {
					ev, ok := classifyUpdate(u)
					if !ok {
						continue
					}
					if len(allowed) > 0 && !allowed[ev.ChatID] {
						logger.Warn("telegram_unauthorized_chat", "chat_id", ev.ChatID)
						continue
					}

					// Commands run inline so /reset takes effect even while a
					// turn is streaming; everything else is serialized on the
					// user's worker.
					if ev.Kind == eventCommand {
						cmdCtx, cancel := context.WithTimeout(pollCtx, 30*time.Second)
						handlers[eventCommand](cmdCtx, ev)
						cancel()
						continue
					}

					mu.Lock()
					w := getOrStartWorkerLocked(ev.UserID)
					mu.Unlock()

					logger.Info("telegram_task_enqueued",
						"kind", string(ev.Kind),
						"chat_id", ev.ChatID,
						"user_id", ev.UserID,
						"text_len", len(ev.Text),
					)
					select {
					case w.Jobs <- ev:
					default:
						logger.Warn("telegram_worker_queue_full", "user_id", ev.UserID)
						disp.notify(pollCtx, ev, i18n.KeyError)
					}
				}
			}
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token (or QUIBBLE_TELEGRAM_BOT_TOKEN).")
	cmd.Flags().String("openai-api-key", "", "Completion API key (or QUIBBLE_LLM_API_KEY).")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Restrict the bot to these chat IDs (repeatable).")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long-poll timeout for getUpdates.")
	cmd.Flags().Duration("telegram-task-timeout", 10*time.Minute, "Per-turn timeout.")
	cmd.Flags().Int("telegram-max-concurrency", 3, "Max concurrently running turns across all users.")

	return cmd
}
