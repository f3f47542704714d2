package model

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventAudioDelta(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	evt, err := ParseEvent([]byte(`{"type":"response.audio.delta","delta":"` + payload + `"}`))
	require.NoError(t, err)
	assert.Equal(t, EventAudioDelta, evt.Kind)
	assert.Equal(t, []byte{1, 2, 3}, evt.AudioDelta)
}

func TestParseEventSpeechStarted(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"type":"input_audio_buffer.speech_started"}`))
	require.NoError(t, err)
	assert.Equal(t, EventSpeechStarted, evt.Kind)
}

func TestParseEventError(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"type":"error","error":{"message":"bad request"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventError, evt.Kind)
	assert.Equal(t, "bad request", evt.ErrorMessage)
}

func TestParseEventUnknownFallsBackToOther(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"type":"rate_limits.updated"}`))
	require.NoError(t, err)
	assert.Equal(t, EventOther, evt.Kind)
}

func TestParseEventTranscriptionCompleted(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hello there"}`))
	require.NoError(t, err)
	assert.Equal(t, EventTranscriptionCompleted, evt.Kind)
	assert.Equal(t, "hello there", evt.Transcript)
}
