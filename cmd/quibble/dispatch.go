package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quibblebot/quibble/internal/i18n"
	"github.com/quibblebot/quibble/internal/ingest"
	"github.com/quibblebot/quibble/internal/session"
	"github.com/quibblebot/quibble/internal/telegram"
)

// conversationResponder runs one relay turn.
type conversationResponder interface {
	Respond(ctx context.Context, chatID, userID int64, userText string) error
}

// botOutbox is the slice of the Bot API the handlers need.
type botOutbox interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	SendMessageMarkdown(ctx context.Context, chatID int64, text string) (int64, error)
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	Download(ctx context.Context, filePath string, maxBytes int64) ([]byte, error)
}

// dispatcher holds the per-event handlers behind the routing table.
type dispatcher struct {
	store       *session.Store
	relay       conversationResponder
	api         botOutbox
	logger      *slog.Logger
	idleTimeout time.Duration

	// typing, when set, starts a presence ticker and returns its stop func.
	typing func(ctx context.Context, chatID int64) func()
	// now is swapped out in tests.
	now func() time.Time
}

func (d *dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now().UTC()
}

// handlers builds the routing table over the closed event set.
func (d *dispatcher) handlers() map[eventKind]eventHandler {
	return map[eventKind]eventHandler{
		eventCommand:  d.handleCommand,
		eventText:     d.handleText,
		eventDocument: d.handleDocument,
		eventPhoto:    d.handlePhoto,
	}
}

func (d *dispatcher) notify(ctx context.Context, ev inboundEvent, key string) {
	if _, err := d.api.SendMessage(ctx, ev.ChatID, i18n.T(ev.Lang, key)); err != nil {
		d.logger.Warn("telegram_send_error", "chat_id", ev.ChatID, "error", err.Error())
	}
}

func (d *dispatcher) handleCommand(ctx context.Context, ev inboundEvent) {
	now := d.clock()
	switch ev.Command {
	case "/start":
		d.store.Reset(ev.UserID, now)
		d.notify(ctx, ev, i18n.KeyWelcome)
	case "/help":
		if _, err := d.api.SendMessageMarkdown(ctx, ev.ChatID, i18n.T(ev.Lang, i18n.KeyHelp)); err != nil {
			d.logger.Warn("telegram_send_error", "chat_id", ev.ChatID, "error", err.Error())
		}
	case "/reset":
		d.store.Reset(ev.UserID, now)
		d.notify(ctx, ev, i18n.KeyReset)
	default:
		d.logger.Debug("telegram_unknown_command", "chat_id", ev.ChatID, "command", ev.Command)
	}
}

func (d *dispatcher) handleText(ctx context.Context, ev inboundEvent) {
	now := d.clock()
	// The idle check runs only on text turns; attachment updates never
	// trigger it.
	if d.store.ResetIfIdle(ev.UserID, d.idleTimeout, now) {
		d.logger.Info("session_idle_reset", "user_id", ev.UserID, "idle_timeout", d.idleTimeout.String())
		d.notify(ctx, ev, i18n.KeyReset)
	}
	d.store.Touch(ev.UserID, now)

	if d.typing != nil {
		stop := d.typing(ctx, ev.ChatID)
		defer stop()
	}

	if err := d.relay.Respond(ctx, ev.ChatID, ev.UserID, ev.Text); err != nil {
		d.logger.Error("relay_turn_error", "chat_id", ev.ChatID, "user_id", ev.UserID, "error", err.Error())
		d.notify(context.Background(), ev, i18n.KeyError)
	}
}

func (d *dispatcher) handleDocument(ctx context.Context, ev inboundEvent) {
	doc := ev.Document
	// Rejection happens before any download or session write, so a pending
	// attachment from an earlier update stays in place.
	if err := ingest.ValidateDocument(doc.MimeType, doc.FileSize); err != nil {
		d.logger.Info("document_rejected", "chat_id", ev.ChatID, "mime", doc.MimeType, "size", doc.FileSize, "error", err.Error())
		switch {
		case errors.Is(err, ingest.ErrUnsupportedType):
			d.notify(ctx, ev, i18n.KeyUnsupported)
		case errors.Is(err, ingest.ErrTooLarge):
			d.notify(ctx, ev, i18n.KeyPDFTooLarge)
		default:
			d.notify(ctx, ev, i18n.KeyError)
		}
		return
	}

	text, err := d.fetchAndExtract(ctx, doc.FileID, doc.MimeType, doc.FileSize)
	if err != nil {
		d.logger.Error("document_ingest_error", "chat_id", ev.ChatID, "error", err.Error())
		d.notify(ctx, ev, i18n.KeyError)
		return
	}
	d.store.Mutate(ev.UserID, d.clock(), func(s *session.Session) {
		s.SetDocument(text)
	})
	d.logger.Info("document_ingested", "chat_id", ev.ChatID, "user_id", ev.UserID, "text_len", len(text))
	d.notify(ctx, ev, i18n.KeyPDFReceived)
}

func (d *dispatcher) handlePhoto(ctx context.Context, ev inboundEvent) {
	photo := ev.Photo
	if err := ingest.ValidateImage(photo.FileSize); err != nil {
		d.logger.Info("photo_rejected", "chat_id", ev.ChatID, "size", photo.FileSize, "error", err.Error())
		d.notify(ctx, ev, i18n.KeyImageTooLarge)
		return
	}

	f, err := d.api.GetFile(ctx, photo.FileID)
	if err != nil {
		d.logger.Error("photo_ingest_error", "chat_id", ev.ChatID, "error", err.Error())
		d.notify(ctx, ev, i18n.KeyError)
		return
	}
	data, err := d.api.Download(ctx, f.FilePath, ingest.MaxImageBytes)
	if err != nil {
		d.logger.Error("photo_ingest_error", "chat_id", ev.ChatID, "error", err.Error())
		d.notify(ctx, ev, i18n.KeyError)
		return
	}
	payload, err := ingest.Image(data, photo.FileSize)
	if err != nil {
		d.logger.Error("photo_ingest_error", "chat_id", ev.ChatID, "error", err.Error())
		d.notify(ctx, ev, i18n.KeyError)
		return
	}
	d.store.Mutate(ev.UserID, d.clock(), func(s *session.Session) {
		s.SetImage(payload)
	})
	d.logger.Info("photo_ingested", "chat_id", ev.ChatID, "user_id", ev.UserID, "payload_len", len(payload))
	d.notify(ctx, ev, i18n.KeyImageReceived)
}

func (d *dispatcher) fetchAndExtract(ctx context.Context, fileID, mimeType string, declaredSize int64) (string, error) {
	f, err := d.api.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	data, err := d.api.Download(ctx, f.FilePath, ingest.MaxDocumentBytes)
	if err != nil {
		return "", err
	}
	return ingest.Document(data, mimeType, declaredSize)
}
