// Package clock provides a testable substitute for wall-clock time.
//
// The per-call timer-driven control loops (barge-in debounce, idle
// watchdog, number-mode release, greeting fallback), the auto-press
// rate-limit check, and the recording retry waits read the current time
// and schedule callbacks through a Clock rather than calling
// time.Now/time.AfterFunc directly, so tests can advance a fake clock
// instead of sleeping. The outbound-code store instead takes an explicit
// time, which the chat-bot handler supplies from time.Now.
package clock

import "time"

// Clock abstracts time so tests can control it deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run after d and returns a Timer that can
	// cancel the pending call. Mirrors time.AfterFunc's contract.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer the gateway depends on.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Real is the production Clock backed by the standard library.
type Real struct{}

// New returns the production clock.
func New() Clock { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool                 { return r.t.Stop() }
func (r realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
