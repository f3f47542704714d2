// Package chatbot implements a hand-rolled REST client for the
// chat-messenger bot API used both by the outbound command FSM (to
// reply to the operator) and by the log sink (to post transcripts and
// recordings). It follows the same Config/New/do shape as the
// teacher module's internal/client.Client, adapted from basic-auth
// call-control to bot-token bearer messaging.
package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxMessageChars is the chunking boundary replies are split at.
const MaxMessageChars = 3800

// Client is a bot-API client scoped to one bot token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// New builds a chat-bot client. baseURL defaults to the standard
// Telegram Bot API origin if empty.
func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// SendMessage posts text to chatID, chunking at MaxMessageChars so a
// long transcript never exceeds the provider's message-size limit.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	for _, chunk := range chunk(text, MaxMessageChars) {
		if err := c.sendChunk(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func chunk(s string, size int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	out = append(out, s)
	return out
}

type sendMessagePayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (c *Client) sendChunk(ctx context.Context, chatID, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	body, err := json.Marshal(sendMessagePayload{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chatbot: send failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chatbot: send returned status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Update is the subset of an inbound bot webhook payload this module
// reads: the originating chat id and the message text.
type Update struct {
	ChatID string
	Text   string
}

type wireUpdate struct {
	Message *struct {
		Chat struct {
			ID json.Number `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// ParseUpdate decodes one inbound webhook body.
func ParseUpdate(body []byte) (Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(body, &w); err != nil {
		return Update{}, err
	}
	if w.Message == nil {
		return Update{}, fmt.Errorf("chatbot: update has no message")
	}
	return Update{ChatID: w.Message.Chat.ID.String(), Text: w.Message.Text}, nil
}
