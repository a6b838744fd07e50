package main

import (
	"testing"

	"github.com/quibblebot/quibble/internal/telegram"
)

func TestNormalizeSlashCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"/reset", "/reset"},
		{"/Reset", "/reset"},
		{"/reset@quibble_bot", "/reset"},
		{"  /HELP@SomeBot  ", "/help"},
	}
	for _, c := range cases {
		if got := normalizeSlashCommand(c.in); got != c.want {
			t.Fatalf("normalizeSlashCommand(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestClassifyUpdateText(t *testing.T) {
	t.Parallel()

	u := telegram.Update{Message: &telegram.Message{
		MessageID: 5,
		Chat:      &telegram.Chat{ID: 100},
		From:      &telegram.User{ID: 7, LanguageCode: "zh"},
		Text:      "  hello there  ",
	}}
	ev, ok := classifyUpdate(u)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Kind != eventText {
		t.Fatalf("kind = %q, want %q", ev.Kind, eventText)
	}
	if ev.Text != "hello there" {
		t.Fatalf("text = %q", ev.Text)
	}
	if ev.ChatID != 100 || ev.UserID != 7 || ev.Lang != "zh" {
		t.Fatalf("unexpected envelope: %+v", ev)
	}
}

func TestClassifyUpdateCommand(t *testing.T) {
	t.Parallel()

	u := telegram.Update{Message: &telegram.Message{
		Chat: &telegram.Chat{ID: 1},
		From: &telegram.User{ID: 1},
		Text: "/Reset@quibble_bot now please",
	}}
	ev, ok := classifyUpdate(u)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Kind != eventCommand {
		t.Fatalf("kind = %q, want %q", ev.Kind, eventCommand)
	}
	if ev.Command != "/reset" {
		t.Fatalf("command = %q, want %q", ev.Command, "/reset")
	}
}

func TestClassifyUpdatePhotoPicksLargest(t *testing.T) {
	t.Parallel()

	u := telegram.Update{Message: &telegram.Message{
		Chat: &telegram.Chat{ID: 1},
		From: &telegram.User{ID: 1},
		Photo: []telegram.PhotoSize{
			{FileID: "small", Width: 90},
			{FileID: "medium", Width: 320},
			{FileID: "large", Width: 1280},
		},
	}}
	ev, ok := classifyUpdate(u)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Kind != eventPhoto {
		t.Fatalf("kind = %q, want %q", ev.Kind, eventPhoto)
	}
	if ev.Photo.FileID != "large" {
		t.Fatalf("photo file_id = %q, want %q", ev.Photo.FileID, "large")
	}
}

func TestClassifyUpdateDocumentWinsOverCaption(t *testing.T) {
	t.Parallel()

	u := telegram.Update{Message: &telegram.Message{
		Chat:     &telegram.Chat{ID: 1},
		From:     &telegram.User{ID: 1},
		Text:     "ignored caption",
		Document: &telegram.Document{FileID: "doc1", MimeType: "application/pdf"},
	}}
	ev, ok := classifyUpdate(u)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Kind != eventDocument {
		t.Fatalf("kind = %q, want %q", ev.Kind, eventDocument)
	}
	if ev.Document.FileID != "doc1" {
		t.Fatalf("document file_id = %q", ev.Document.FileID)
	}
}

func TestClassifyUpdateDrops(t *testing.T) {
	t.Parallel()

	drops := []telegram.Update{
		{},
		{Message: &telegram.Message{Chat: &telegram.Chat{ID: 1}}},
		{Message: &telegram.Message{Chat: &telegram.Chat{ID: 1}, Text: "   "}},
		{Message: &telegram.Message{
			Chat: &telegram.Chat{ID: 1},
			From: &telegram.User{ID: 2, IsBot: true},
			Text: "from a bot",
		}},
	}
	for i, u := range drops {
		if _, ok := classifyUpdate(u); ok {
			t.Fatalf("case %d: expected update to be dropped", i)
		}
	}
}

func TestClassifyUpdateUserFallsBackToChat(t *testing.T) {
	t.Parallel()

	u := telegram.Update{Message: &telegram.Message{
		Chat: &telegram.Chat{ID: 42},
		Text: "channel style message",
	}}
	ev, ok := classifyUpdate(u)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.UserID != 42 {
		t.Fatalf("user_id = %d, want 42", ev.UserID)
	}
}
