package chatbot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkSplitsLongText(t *testing.T) {
	text := strings.Repeat("a", 9000)
	chunks := chunk(text, MaxMessageChars)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], MaxMessageChars)
}

func TestChunkShortTextIsOneChunk(t *testing.T) {
	chunks := chunk("hello", MaxMessageChars)
	assert.Equal(t, []string{"hello"}, chunks)
}

func TestParseUpdate(t *testing.T) {
	body := []byte(`{"message": {"chat": {"id": 12345}, "text": "/help"}}`)
	u, err := ParseUpdate(body)
	require.NoError(t, err)
	assert.Equal(t, "12345", u.ChatID)
	assert.Equal(t, "/help", u.Text)
}

func TestParseUpdateNoMessage(t *testing.T) {
	_, err := ParseUpdate([]byte(`{}`))
	assert.Error(t, err)
}
