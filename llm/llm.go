package llm

import (
	"context"
	"encoding/json"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPart is one element of a multimodal message body. Plain text turns
// use Message.Content instead; Parts is only populated for mixed content
// (e.g. a question about an inline image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// MarshalJSON emits content as a plain string for text-only messages and as a
// part array for multimodal ones, matching the chat-completions wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	}
	w := wire{Role: m.Role, Content: m.Content}
	if len(m.Parts) > 0 {
		w.Content = m.Parts
	}
	return json.Marshal(w)
}

func Text(role, content string) Message {
	return Message{Role: role, Content: content}
}

// ImageQuestion builds a user message pairing a text prompt with an inline
// base64 JPEG payload.
func ImageQuestion(text, imageBase64 string) Message {
	return Message{
		Role: RoleUser,
		Parts: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + imageBase64}},
		},
	}
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model    string
	Messages []Message
}

// StreamHandler receives each incremental text fragment of a streamed
// completion. Returning an error aborts the stream.
type StreamHandler func(delta string) error

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
	ChatStream(ctx context.Context, req Request, onDelta StreamHandler) (Result, error)
}
