package autopress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voicegateway/internal/callstate"
)

func TestClassifyStrongRemovalPhrase(t *testing.T) {
	c := Classify("press nine to be removed", "")
	assert.True(t, c.Found)
	assert.Equal(t, "9", c.Digit)
	assert.Equal(t, 0.97, c.Confidence)
}

func TestClassifyRemovalKeyword(t *testing.T) {
	c := Classify("press 2 to unsubscribe", "")
	assert.Equal(t, "2", c.Digit)
	assert.Equal(t, 0.94, c.Confidence)
}

func TestClassifySpamCallerName(t *testing.T) {
	c := Classify("press 3 now", "SPAM Likely")
	assert.Equal(t, 0.90, c.Confidence)
}

func TestClassifyNoDigitFound(t *testing.T) {
	c := Classify("hello there", "")
	assert.False(t, c.Found)
}

func TestRateLimiterSuppressesWithinWindow(t *testing.T) {
	rl := NewRateLimiter(time.Hour)
	now := time.Unix(0, 0)
	assert.True(t, rl.Allow("5551234567", "9", now))
	assert.False(t, rl.Allow("5551234567", "9", now.Add(time.Minute)))
	assert.True(t, rl.Allow("5551234567", "9", now.Add(2*time.Hour)))
}

type fakeREST struct {
	redirected []string
}

func (f *fakeREST) Redirect(ctx context.Context, callSID, twimlURL string) error {
	f.redirected = append(f.redirected, callSID)
	return nil
}

func TestEngineIngestFiresAboveThreshold(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	rest := &fakeREST{}
	limiter := NewRateLimiter(time.Hour)
	eng := New(state, rest, limiter, 0.90, "https://gw.example/autopress", "Goodbye.", 1500*time.Millisecond, 700*time.Millisecond)

	err := eng.Ingest(context.Background(), "press nine to be removed", "5551234567", "", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"call-1"}, rest.redirected)

	state.Lock()
	attempted := state.DNC.Attempted
	state.Unlock()
	assert.True(t, attempted)
}

func TestEngineIngestSkipsBelowThreshold(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	rest := &fakeREST{}
	limiter := NewRateLimiter(time.Hour)
	eng := New(state, rest, limiter, 0.90, "https://gw.example/autopress", "Goodbye.", 1500*time.Millisecond, 700*time.Millisecond)

	err := eng.Ingest(context.Background(), "press nine now", "5551234567", "", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Empty(t, rest.redirected)
}

func TestEngineIngestSkipsWhenDNCAlreadyAttempted(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	state.DNC.Attempted = true
	rest := &fakeREST{}
	limiter := NewRateLimiter(time.Hour)
	eng := New(state, rest, limiter, 0.90, "https://gw.example/autopress", "Goodbye.", 1500*time.Millisecond, 700*time.Millisecond)

	err := eng.Ingest(context.Background(), "press nine to be removed", "5551234567", "", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Empty(t, rest.redirected)
}

func TestEngineHandleRedirectRendersTwiML(t *testing.T) {
	eng := New(&callstate.CallState{}, &fakeREST{}, NewRateLimiter(time.Hour), 0.90, "https://gw.example/autopress", "You have been removed. Goodbye.", 1500*time.Millisecond, 700*time.Millisecond)

	doc := eng.HandleRedirect("9")
	assert.Contains(t, doc, `digits="9"`)
	assert.Contains(t, doc, "You have been removed. Goodbye.")
	assert.Contains(t, doc, "<Hangup")
}
