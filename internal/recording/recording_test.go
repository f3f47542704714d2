package recording

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voicegateway/internal/clock"
	"github.com/agentplexus/voicegateway/internal/sinks"
)

// instantClock fires AfterFunc callbacks synchronously on registration
// instead of waiting for an Advance call. It exercises the retry/
// fallback decision logic without needing a second goroutine to drive
// a fake clock in lockstep with the code under test.
type instantClock struct{ now time.Time }

func (c *instantClock) Now() time.Time { return c.now }
func (c *instantClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.now = c.now.Add(d)
	f()
	return instantTimer{}
}

type instantTimer struct{}

func (instantTimer) Stop() bool            { return true }
func (instantTimer) Reset(time.Duration) bool { return true }

type fakeDownloader struct {
	failUntil map[string]int
	calls     map[string]int
}

func newFakeDownloader(failUntil map[string]int) *fakeDownloader {
	return &fakeDownloader{failUntil: failUntil, calls: map[string]int{}}
}

func (f *fakeDownloader) DownloadRecording(ctx context.Context, mediaURL string) ([]byte, error) {
	f.calls[mediaURL]++
	if f.calls[mediaURL] <= f.failUntil[mediaURL] {
		return nil, fmt.Errorf("not ready yet")
	}
	return []byte("audio-bytes"), nil
}

type recordingSink struct {
	calls int
	ext   string
}

func (s *recordingSink) Transcript(ctx context.Context, callID, rendered string) error { return nil }
func (s *recordingSink) Recording(ctx context.Context, callID string, audio []byte, ext string) error {
	s.calls++
	s.ext = ext
	return nil
}

func TestFetchSucceedsAfterRetries(t *testing.T) {
	dl := newFakeDownloader(map[string]int{"https://example.com/rec.mp3": 2})
	sink := &recordingSink{}
	clk := &instantClock{now: time.Unix(0, 0)}

	err := Fetch(context.Background(), clk, dl, sink, "call-1", "https://example.com/rec")
	require.NoError(t, err)
	assert.Equal(t, 1, sink.calls)
	assert.Equal(t, "mp3", sink.ext)
	assert.Equal(t, 3, dl.calls["https://example.com/rec.mp3"])
}

func TestFetchFallsBackToWav(t *testing.T) {
	dl := newFakeDownloader(map[string]int{
		"https://example.com/rec.mp3": len(RetrySchedule) + 1,
		"https://example.com/rec.wav": 0,
	})
	sink := &recordingSink{}
	clk := &instantClock{now: time.Unix(0, 0)}

	err := Fetch(context.Background(), clk, dl, sink, "call-1", "https://example.com/rec")
	require.NoError(t, err)
	assert.Equal(t, "wav", sink.ext)
	assert.Equal(t, len(RetrySchedule), dl.calls["https://example.com/rec.mp3"])
	assert.Equal(t, 1, dl.calls["https://example.com/rec.wav"])
}

func TestFetchExhaustsBothExtensions(t *testing.T) {
	dl := newFakeDownloader(map[string]int{
		"https://example.com/rec.mp3": len(RetrySchedule) + 1,
		"https://example.com/rec.wav": len(RetrySchedule) + 1,
	})
	sink := &recordingSink{}
	clk := &instantClock{now: time.Unix(0, 0)}

	err := Fetch(context.Background(), clk, dl, sink, "call-1", "https://example.com/rec")
	assert.Error(t, err)
	assert.Equal(t, 0, sink.calls)
}

var _ sinks.Sink = (*recordingSink)(nil)
