// Package bargein implements caller-speech-interrupts-assistant
// handling: debounced assertion on speech-started, ordered
// clear/cancel/clear on assertion, and a debounced release on
// speech-stopped.
package bargein

import (
	"context"
	"time"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
)

const (
	// AssertDebounce is the minimum gap between two barge-in assertions.
	AssertDebounce = 250 * time.Millisecond
	// ReleaseDebounce is how long speech-stopped waits before release.
	ReleaseDebounce = 200 * time.Millisecond
)

// Telephony is the subset of the media-socket client barge-in needs.
type Telephony interface {
	SendClear(ctx context.Context) error
}

// Model is the subset of the realtime-session client barge-in needs.
type Model interface {
	CancelResponse() error
	ClearOutputAudioBuffer() error
}

// Controller wires a CallState to its telephony and model sockets and
// the call's clock, grounded on the teacher module's Option-configured
// provider shape.
type Controller struct {
	state     *callstate.CallState
	telephony Telephony
	model     Model
	clock     clock.Clock
}

// New builds a barge-in controller for one call.
func New(state *callstate.CallState, telephony Telephony, model Model, clk clock.Clock) *Controller {
	return &Controller{state: state, telephony: telephony, model: model, clock: clk}
}

// SpeechStarted handles input_audio_buffer.speech_started. It returns
// false if the event was ignored as a debounce bounce.
func (c *Controller) SpeechStarted(ctx context.Context) (bool, error) {
	c.state.Lock()
	now := c.clock.Now()
	last := c.state.BargeIn.LastEventAt
	if !last.IsZero() && now.Sub(last) < AssertDebounce {
		c.state.Unlock()
		return false, nil
	}
	c.state.BargeIn.LastEventAt = now
	c.state.MuteBus.BargeInActive = true
	c.state.Unlock()

	// Clear the telephony side before touching the model, so the caller
	// never hears buffered audio survive into the cancellation.
	if err := c.telephony.SendClear(ctx); err != nil {
		return true, err
	}
	if err := c.model.CancelResponse(); err != nil {
		return true, err
	}
	if err := c.model.ClearOutputAudioBuffer(); err != nil {
		return true, err
	}
	return true, nil
}

// SpeechStopped schedules a release AssertDebounce-independent delay
// later, honored only if nothing re-asserted in the meantime.
func (c *Controller) SpeechStopped() {
	c.state.Lock()
	assertedAt := c.state.BargeIn.LastEventAt
	c.state.Unlock()

	c.clock.AfterFunc(ReleaseDebounce, func() {
		c.state.Lock()
		defer c.state.Unlock()
		if c.state.BargeIn.LastEventAt != assertedAt {
			return // a newer assertion superseded this release
		}
		if c.state.MuteBus.NumberModeActive {
			return // number-mode asserted in the meantime; leave the bit alone
		}
		c.state.MuteBus.BargeInActive = false
	})
}
