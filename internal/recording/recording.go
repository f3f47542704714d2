// Package recording fetches a finished call recording with an
// exponential retry schedule and a .mp3-then-.wav extension fallback,
// then hands the bytes to a log sink. It is deliberately decoupled
// from the call task's lifetime: the call may already be DONE and
// removed from the store by the time the provider's media file is
// ready to download.
package recording

import (
	"context"
	"fmt"
	"time"

	"github.com/agentplexus/voicegateway/internal/clock"
	"github.com/agentplexus/voicegateway/internal/sinks"
)

// RetrySchedule is the fixed exponential backoff waited before each
// download attempt; one attempt per entry.
var RetrySchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

// Downloader is the subset of the call-control REST client recording
// needs.
type Downloader interface {
	DownloadRecording(ctx context.Context, mediaURL string) ([]byte, error)
}

// Fetch downloads baseURL+".mp3", falling back to baseURL+".wav" on
// failure, retrying each according to RetrySchedule, then dispatches
// the bytes to sink. It returns as soon as one download succeeds;
// otherwise it returns an error only after every attempt across both
// extensions has failed. Logs are the caller's responsibility — Fetch
// itself returns the terminal error so the caller can log it.
func Fetch(ctx context.Context, clk clock.Clock, dl Downloader, sink sinks.Sink, callID, baseURL string) error {
	for _, ext := range []string{"mp3", "wav"} {
		audio, err := fetchWithRetry(ctx, clk, dl, fmt.Sprintf("%s.%s", baseURL, ext))
		if err == nil {
			return sink.Recording(ctx, callID, audio, ext)
		}
	}
	return fmt.Errorf("recording: exhausted mp3 and wav attempts for call %s", callID)
}

func fetchWithRetry(ctx context.Context, clk clock.Clock, dl Downloader, url string) ([]byte, error) {
	var lastErr error
	for _, wait := range RetrySchedule {
		if !sleep(ctx, clk, wait) {
			return nil, ctx.Err()
		}
		audio, err := dl.DownloadRecording(ctx, url)
		if err == nil {
			return audio, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// sleep blocks until wait elapses on clk or ctx is cancelled, reporting
// which happened first.
func sleep(ctx context.Context, clk clock.Clock, wait time.Duration) bool {
	done := make(chan struct{})
	timer := clk.AfterFunc(wait, func() { close(done) })
	select {
	case <-done:
		return true
	case <-ctx.Done():
		timer.Stop()
		return false
	}
}
