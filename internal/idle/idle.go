// Package idle implements the per-call activity watchdog: any audio,
// transcript, or control event bumps a single timer; on fire, the call
// is ended unless the do-not-call latch has already taken ownership of
// ending the call.
package idle

import (
	"context"
	"time"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
)

// DefaultTimeout is the silence window before the watchdog fires.
const DefaultTimeout = 180 * time.Second

// DefaultGoodbyeWait is how long the watchdog waits after sending a
// goodbye utterance before hanging up regardless of whether the model
// has finished speaking.
const DefaultGoodbyeWait = 1500 * time.Millisecond

// Model is the subset of the realtime-session client the watchdog uses
// to speak a goodbye line before hanging up.
type Model interface {
	Say(text string) error
}

// Hangup is the subset of the call-control REST client the watchdog
// needs to terminate the call.
type Hangup interface {
	Hangup(ctx context.Context, callSID string) error
}

// Watchdog owns the single idle timer for one call.
type Watchdog struct {
	state   *callstate.CallState
	clk     clock.Clock
	model   Model
	rest    Hangup
	timeout time.Duration

	sendGoodbye bool
	goodbyeWait time.Duration
	goodbyeLine string

	timer clock.Timer
}

// New builds an idle watchdog for one call and arms its timer. Firing
// is handled internally (goodbye via the model, then rest.Hangup);
// callers only need to call Bump on activity and Stop on call end.
func New(state *callstate.CallState, clk clock.Clock, m Model, rest Hangup, timeout time.Duration, sendGoodbye bool, goodbyeWait time.Duration, goodbyeLine string) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if goodbyeWait <= 0 {
		goodbyeWait = DefaultGoodbyeWait
	}
	w := &Watchdog{
		state:       state,
		clk:         clk,
		model:       m,
		rest:        rest,
		timeout:     timeout,
		sendGoodbye: sendGoodbye,
		goodbyeWait: goodbyeWait,
		goodbyeLine: goodbyeLine,
	}
	w.timer = clk.AfterFunc(timeout, w.fire)
	return w
}

// Bump resets the idle deadline. Called on every audio frame, transcript
// line, and control event.
func (w *Watchdog) Bump() {
	if w.timer != nil {
		w.timer.Reset(w.timeout)
	}
}

// Stop cancels the idle timer; called once the call reaches DONE.
func (w *Watchdog) Stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watchdog) fire() {
	w.state.Lock()
	attempted := w.state.DNC.Attempted
	callSID := w.state.CallID
	w.state.Unlock()

	if attempted {
		// the do-not-call latch already owns ending this call
		return
	}

	if w.sendGoodbye {
		_ = w.model.Say(w.goodbyeLine)
		w.clk.AfterFunc(w.goodbyeWait, func() {
			_ = w.rest.Hangup(context.Background(), callSID)
		})
		return
	}
	_ = w.rest.Hangup(context.Background(), callSID)
}
