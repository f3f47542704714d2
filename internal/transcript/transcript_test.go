package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentplexus/voicegateway/internal/callstate"
)

func TestParseContentPrefersStructuredPayload(t *testing.T) {
	text := ParseContent(`{"text":"hello from json"}`, "fallback text")
	assert.Equal(t, "hello from json", text)
}

func TestParseContentFallsBackToPlainText(t *testing.T) {
	text := ParseContent("", "fallback text")
	assert.Equal(t, "fallback text", text)
}

func TestTrackRole(t *testing.T) {
	assert.Equal(t, callstate.RoleAssistant, TrackRole("outbound_track"))
	assert.Equal(t, callstate.RoleCaller, TrackRole("inbound_track"))
}

func TestIngestDropsGreetingEcho(t *testing.T) {
	state := &callstate.CallState{}
	Ingest(state, callstate.RoleAssistant, "This is Trinity, Dan's VIP Assistant", time.Unix(0, 0))

	state.Lock()
	n := len(state.Events)
	skipped := state.Greeting.SkippedUpstreamGreeting
	state.Unlock()

	assert.Equal(t, 0, n)
	assert.True(t, skipped)
}

func TestIngestKeepsSubsequentAssistantLines(t *testing.T) {
	state := &callstate.CallState{}
	Ingest(state, callstate.RoleAssistant, "This is Trinity, Dan's VIP Assistant", time.Unix(0, 0))
	Ingest(state, callstate.RoleAssistant, "How can I help you today?", time.Unix(1, 0))

	state.Lock()
	n := len(state.Events)
	state.Unlock()
	assert.Equal(t, 1, n)
}

func TestRenderCoalescesWithinWindow(t *testing.T) {
	events := []callstate.Event{
		{Role: callstate.RoleCaller, Text: "hello", TS: time.Unix(0, 0)},
		{Role: callstate.RoleCaller, Text: "there", TS: time.Unix(1, 0)},
		{Role: callstate.RoleAssistant, Text: "hi!", TS: time.Unix(5, 0)},
	}
	rendered := Render(events)
	assert.Equal(t, "Caller:\nhello there\n\nAssistant:\nhi!", rendered)
}

func TestRenderSplitsBeyondWindow(t *testing.T) {
	events := []callstate.Event{
		{Role: callstate.RoleCaller, Text: "hello", TS: time.Unix(0, 0)},
		{Role: callstate.RoleCaller, Text: "again later", TS: time.Unix(10, 0)},
	}
	rendered := Render(events)
	assert.Equal(t, "Caller:\nhello\n\nCaller:\nagain later", rendered)
}
