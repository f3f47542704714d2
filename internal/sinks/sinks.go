// Package sinks defines the external log-sink interface structured
// transcripts and recordings are dispatched to, and two
// implementations: a chat-messenger sink and a no-op sink for when no
// sink is configured.
package sinks

import (
	"context"
	"fmt"

	"github.com/agentplexus/voicegateway/internal/chatbot"
)

// Sink receives best-effort, fire-and-forget call artifacts. A failed
// Sink call is logged by the caller and never propagates to the call
// path.
type Sink interface {
	Transcript(ctx context.Context, callID, rendered string) error
	Recording(ctx context.Context, callID string, audio []byte, ext string) error
}

// Void is a Sink that discards everything, used when no operator log
// destination is configured.
type Void struct{}

func (Void) Transcript(ctx context.Context, callID, rendered string) error { return nil }
func (Void) Recording(ctx context.Context, callID string, audio []byte, ext string) error {
	return nil
}

// Chat is a Sink backed by a chat-bot client, the teacher module's two
// "Telegram tokens" (inbound log sink, outbound command bot) collapsed
// here into the inbound role: it only posts, it never issues commands.
type Chat struct {
	client *chatbot.Client
	chatID string
}

// NewChat builds a chat-backed sink.
func NewChat(client *chatbot.Client, chatID string) *Chat {
	return &Chat{client: client, chatID: chatID}
}

func (c *Chat) Transcript(ctx context.Context, callID, rendered string) error {
	return c.client.SendMessage(ctx, c.chatID, fmt.Sprintf("Call %s transcript:\n\n%s", callID, rendered))
}

// Recording posts a short notice (call id, size, extension) rather than
// the raw bytes; the audio itself is not uploaded anywhere.
func (c *Chat) Recording(ctx context.Context, callID string, audio []byte, ext string) error {
	return c.client.SendMessage(ctx, c.chatID, fmt.Sprintf("Call %s recording ready (%d bytes, %s)", callID, len(audio), ext))
}
