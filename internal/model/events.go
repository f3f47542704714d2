// Package model implements the downstream half of the bridge: the
// speech model's realtime WebSocket session. The dial/header shape is
// grounded on the realtime-caller example's dialWs and on the
// openai-realtime websocket client bundled in the retrieved examples;
// the event envelope follows the same server-event naming.
package model

import "encoding/json"

// EventKind is a closed variant over the realtime session's server
// events. Event names this module does not recognize are reported as
// EventOther with Raw populated, rather than dropped silently, so a
// caller can log unrecognized event types without the decoder needing
// to know every one of them up front.
type EventKind int

const (
	EventOther EventKind = iota
	EventSessionCreated
	EventSessionUpdated
	EventSpeechStarted
	EventSpeechStopped
	EventAudioDelta
	EventAudioDone
	EventResponseDone
	EventOutputAudioBufferCleared
	EventOutputAudioBufferStopped
	EventTranscriptionDelta
	EventTranscriptionCompleted
	EventTranscriptionFailed
	EventError
)

// Event is the tagged variant for one server event. Only the field(s)
// matching Kind are meaningful.
type Event struct {
	Kind        EventKind
	ResponseID  string
	ItemID      string
	AudioDelta  []byte // decoded from base64, EventAudioDelta only
	Transcript  string
	ErrorMessage string
	Raw         json.RawMessage
}

type wireEvent struct {
	Type       string          `json:"type"`
	ResponseID string          `json:"response_id,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Error      *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
}

// ParseEvent decodes one server event frame.
func ParseEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, err
	}

	base := Event{ResponseID: w.ResponseID, ItemID: w.ItemID, Raw: json.RawMessage(raw)}

	switch w.Type {
	case "session.created":
		base.Kind = EventSessionCreated
	case "session.updated":
		base.Kind = EventSessionUpdated
	case "input_audio_buffer.speech_started":
		base.Kind = EventSpeechStarted
	case "input_audio_buffer.speech_stopped":
		base.Kind = EventSpeechStopped
	case "response.audio.delta", "response.output_audio.delta":
		base.Kind = EventAudioDelta
		decoded, err := decodeBase64(w.Delta)
		if err != nil {
			return Event{}, err
		}
		base.AudioDelta = decoded
	case "response.audio.done", "response.output_audio.done":
		base.Kind = EventAudioDone
	case "response.done", "response.completed":
		base.Kind = EventResponseDone
	case "output_audio_buffer.cleared":
		base.Kind = EventOutputAudioBufferCleared
	case "output_audio_buffer.stopped":
		base.Kind = EventOutputAudioBufferStopped
	case "conversation.item.input_audio_transcription.delta":
		base.Kind = EventTranscriptionDelta
		base.Transcript = w.Delta
	case "conversation.item.input_audio_transcription.completed":
		base.Kind = EventTranscriptionCompleted
		base.Transcript = w.Transcript
	case "conversation.item.input_audio_transcription.failed":
		base.Kind = EventTranscriptionFailed
	case "error":
		base.Kind = EventError
		if w.Error != nil {
			base.ErrorMessage = w.Error.Message
		}
	default:
		base.Kind = EventOther
	}
	return base, nil
}
