package sinks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voicegateway/internal/chatbot"
)

func TestChatTranscriptPosts(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := chatbot.New("tok123", srv.URL)
	sink := NewChat(client, "555")

	err := sink.Transcript(context.Background(), "call-1", "caller:\nhello")
	require.NoError(t, err)
	assert.Equal(t, "/bottok123/sendMessage", gotPath)
}

func TestVoidSinkDoesNothing(t *testing.T) {
	var v Void
	assert.NoError(t, v.Transcript(context.Background(), "call-1", "text"))
	assert.NoError(t, v.Recording(context.Background(), "call-1", nil, "mp3"))
}
