package model

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/voicegateway/internal/codec"
)

// SessionConfig is the subset of session.update fields the bridge
// drives per call: instructions, voice, and temperature. The VAD mode
// and the wire audio format are fixed in UpdateSession (always G.711
// μ-law to match the telephony side exactly, so no resampling happens
// on the steady-state path).
type SessionConfig struct {
	Instructions string
	Voice        string
	Temperature  float64
}

type sessionUpdatePayload struct {
	Type    string      `json:"type"`
	Session sessionBody `json:"session"`
}

// VADThreshold is the fixed server-side voice-activity-detection
// threshold sent on every session.update.
const VADThreshold = 0.55

type sessionBody struct {
	TurnDetection     map[string]any `json:"turn_detection"`
	InputAudioFormat  string             `json:"input_audio_format"`
	OutputAudioFormat string             `json:"output_audio_format"`
	Voice             string             `json:"voice"`
	Instructions      string             `json:"instructions"`
	Modalities        []string           `json:"modalities"`
	Temperature       float64            `json:"temperature"`
	InputAudioTranscription map[string]string `json:"input_audio_transcription"`
}

// Client is one dialed realtime session. The dial/header shape and the
// session.update envelope are grounded on the realtime-caller example's
// dialWs function, extended with the full message set this bridge
// needs (clear, response.create/cancel, output buffer control).
type Client struct {
	ws  *websocket.Conn
	mu  sync.Mutex
	done chan struct{}
	closeOnce sync.Once
}

// Dial opens a realtime session against the given model, authenticating
// with the bearer API key and the realtime beta header.
func Dial(ctx context.Context, wsURL, apiKey string) (*Client, error) {
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+apiKey)
	headers.Add("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("model: dial failed: %w", err)
	}
	return &Client{ws: conn, done: make(chan struct{})}, nil
}

// Events returns a channel of decoded server events. The returned
// channel is closed when the connection ends.
func (c *Client) Events() <-chan Event {
	out := make(chan Event, 100)
	go func() {
		defer close(out)
		for {
			msgType, raw, err := c.ws.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				if !c.emitBinaryAudio(out, raw) {
					return
				}
				continue
			}
			evt, err := ParseEvent(raw)
			if err != nil {
				continue
			}
			select {
			case out <- evt:
			case <-c.done:
				return
			}
		}
	}()
	return out
}

// emitBinaryAudio handles the model's binary-audio fallback transport:
// a raw PCM16@16kHz frame sent as a WebSocket binary message instead of
// a base64-encoded response.audio.delta event. It downsamples and
// μ-law-encodes the frame to match the telephony side's wire format,
// splits it into 20ms slices, and emits one EventAudioDelta per slice.
// Returns false if the caller should stop reading (done closed).
func (c *Client) emitBinaryAudio(out chan<- Event, raw []byte) bool {
	mulaw := codec.PCM16At16kToMulaw8k(raw)
	for _, frame := range codec.FrameMulaw(mulaw) {
		select {
		case out <- Event{Kind: EventAudioDelta, AudioDelta: frame}:
		case <-c.done:
			return false
		}
	}
	return true
}

// UpdateSession sends session.update with the bridge's fixed G.711
// μ-law wire format and server-side VAD, and the per-call instructions
// and voice the instruction builder and voice selector produced.
func (c *Client) UpdateSession(cfg SessionConfig) error {
	payload := sessionUpdatePayload{
		Type: "session.update",
		Session: sessionBody{
			TurnDetection:     map[string]any{"type": "server_vad", "threshold": VADThreshold},
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
			Voice:             cfg.Voice,
			Instructions:      cfg.Instructions,
			Modalities:        []string{"text", "audio"},
			Temperature:       cfg.Temperature,
			InputAudioTranscription: map[string]string{"model": "whisper-1"},
		},
	}
	return c.sendJSON(payload)
}

// AppendAudio sends one input_audio_buffer.append frame of base64 μ-law
// audio captured from the caller.
func (c *Client) AppendAudio(mulaw []byte) error {
	return c.sendJSON(map[string]string{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(mulaw),
	})
}

// ClearInputBuffer discards any buffered, not-yet-committed caller
// audio. Sent on number-mode entry so partial utterances never reach
// the model mid-digit-recitation.
func (c *Client) ClearInputBuffer() error {
	return c.sendJSON(map[string]string{"type": "input_audio_buffer.clear"})
}

// CreateResponse requests the model start speaking an unscripted turn
// whose wording is left to the model. The idle watchdog's goodbye and
// the greeting go through Say instead.
func (c *Client) CreateResponse() error {
	return c.sendJSON(map[string]string{"type": "response.create"})
}

// Say requests a response whose spoken content is pinned to text via a
// per-turn instructions override, used to deliver the fixed greeting
// lines and the idle goodbye line verbatim rather than leaving their
// wording to the model.
func (c *Client) Say(text string) error {
	return c.sendJSON(map[string]any{
		"type": "response.create",
		"response": map[string]string{
			"instructions": text,
		},
	})
}

// CancelResponse asks the model to stop the in-flight response, the
// second step of the barge-in sequence (telephony clear -> cancel ->
// clear output buffer).
func (c *Client) CancelResponse() error {
	return c.sendJSON(map[string]string{"type": "response.cancel"})
}

// ClearOutputAudioBuffer discards any audio the model already queued
// for playback, the final step of the barge-in sequence.
func (c *Client) ClearOutputAudioBuffer() error {
	return c.sendJSON(map[string]string{"type": "output_audio_buffer.clear"})
}

func (c *Client) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Close ends the session.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
