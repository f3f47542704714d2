// Package autopress classifies caller utterances for "press N to be
// removed" spam-opt-out intent and, above a confidence threshold,
// redirects the call to a TwiML document that plays the digit and
// hangs up.
package autopress

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/telephony"
)

// DefaultConfidenceThreshold is the minimum classifier confidence
// required before a redirect fires.
const DefaultConfidenceThreshold = 0.90

// DefaultRateLimitWindow is how long a (caller, digit) pair is
// suppressed after it fires.
const DefaultRateLimitWindow = 6 * time.Hour

var pressVerbRE = regexp.MustCompile(`(?i)\b(press|dial|hit|enter|push|tap)\s+(\d|zero|one|two|three|four|five|six|seven|eight|nine)\b`)

var wordDigits = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
}

var strongRemovalRE = regexp.MustCompile(`(?i)(to\s+be\s+removed|opt[\s-]?out|unsubscribe|do\s+not\s+call)`)
var removalKeywordRE = regexp.MustCompile(`(?i)\b(remove|removed|opt[\s-]?out|unsubscribe|stop\s+calling|do\s+not\s+call)\b`)
var spamNameRE = regexp.MustCompile(`(?i)spam|scam`)

// Classification is the result of classifying one caller utterance.
type Classification struct {
	Digit      string
	Confidence float64
	Found      bool
}

// Classify implements the confidence ladder: 0.97 for a strong removal
// phrase, 0.94 for any removal keyword, 0.90 if the caller name looks
// like spam/scam, and 0.35 when only the press-digit was found. An
// utterance with no press-digit returns Found=false and confidence 0.
func Classify(utterance, callerName string) Classification {
	m := pressVerbRE.FindStringSubmatch(utterance)
	if m == nil {
		return Classification{}
	}
	digit := m[2]
	if d, ok := wordDigits[digit]; ok {
		digit = d
	}

	switch {
	case strongRemovalRE.MatchString(utterance):
		return Classification{Digit: digit, Confidence: 0.97, Found: true}
	case removalKeywordRE.MatchString(utterance):
		return Classification{Digit: digit, Confidence: 0.94, Found: true}
	case spamNameRE.MatchString(callerName):
		return Classification{Digit: digit, Confidence: 0.90, Found: true}
	default:
		return Classification{Digit: digit, Confidence: 0.35, Found: true}
	}
}

// RateLimiter tracks the last fire time per (caller_last10, digit).
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewRateLimiter builds a rate limiter with the given suppression
// window.
func NewRateLimiter(window time.Duration) *RateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	return &RateLimiter{window: window, last: make(map[string]time.Time)}
}

func key(callerLast10, digit string) string {
	return callerLast10 + "|" + digit
}

// Allow reports whether a fire for (callerLast10, digit) is permitted
// at time now, and records the attempt regardless of the caller's
// subsequent success — matching the observed behavior where a
// rate-limit record survives even a failed downstream REST call.
func (r *RateLimiter) Allow(callerLast10, digit string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(callerLast10, digit)
	if last, ok := r.last[k]; ok && now.Sub(last) < r.window {
		return false
	}
	r.last[k] = now
	return true
}

// REST is the subset of the call-control REST client auto-press needs.
type REST interface {
	Redirect(ctx context.Context, callSID, twimlURL string) error
}

// Engine ties the classifier and rate limiter to one call's state and
// its call-control client.
type Engine struct {
	state           *callstate.CallState
	rest            REST
	limiter         *RateLimiter
	threshold       float64
	redirectBaseURL string
	sayLine         string
	hangupAfter     time.Duration
	digitGap        time.Duration
}

// New builds an auto-press engine for one call.
func New(state *callstate.CallState, rest REST, limiter *RateLimiter, threshold float64, redirectBaseURL, sayLine string, hangupAfter, digitGap time.Duration) *Engine {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Engine{state: state, rest: rest, limiter: limiter, threshold: threshold, redirectBaseURL: redirectBaseURL, sayLine: sayLine, hangupAfter: hangupAfter, digitGap: digitGap}
}

// HandleRedirect renders the TwiML document served at the auto-press
// redirect URL, called by the HTTP handler the call-control provider
// fetches after Ingest or DefaultDigitsFire issues a Redirect.
func (e *Engine) HandleRedirect(digits string) string {
	return RenderRedirect(digits, e.sayLine, e.hangupAfter)
}

// RenderRedirect builds the auto-press hand-off TwiML document from
// process-wide configuration alone, for webhook handlers that serve the
// redirect URL without needing a call-bound Engine.
func RenderRedirect(digits, sayLine string, hangupAfter time.Duration) string {
	return telephony.BuildAutoPressHangupTwiML(digits, sayLine, hangupAfter)
}

// Ingest classifies one caller utterance and fires a redirect if
// warranted. It never fires twice for a call (DNC.Attempted guards
// that), never fires below threshold, and never fires within the
// rate-limit window for the same (caller, digit).
func (e *Engine) Ingest(ctx context.Context, utterance, callerLast10, callerName string, now time.Time) error {
	c := Classify(utterance, callerName)
	if !c.Found || c.Confidence < e.threshold {
		return nil
	}

	e.state.Lock()
	attempted := e.state.DNC.Attempted
	e.state.Unlock()
	if attempted {
		return nil
	}

	if !e.limiter.Allow(callerLast10, c.Digit, now) {
		return nil
	}

	e.state.Lock()
	e.state.SetDNC("auto-press")
	callSID := e.state.CallID
	e.state.Unlock()

	url := telephony.AutoPressRedirectURL(e.redirectBaseURL, telephony.FormatPlayDigits(c.Digit, e.digitGap))
	return e.rest.Redirect(ctx, callSID, url)
}

// DefaultDigitsFire fires the CNAM-spam default-digits variant on
// stream start, before any transcript has been observed. It shares the
// rate-limit namespace key "default" with real digit fires.
func (e *Engine) DefaultDigitsFire(ctx context.Context, callerName, defaultDigits string, now time.Time) error {
	if !spamNameRE.MatchString(callerName) {
		return nil
	}
	if !e.limiter.Allow(callerNameKey(callerName), "default", now) {
		return nil
	}

	e.state.Lock()
	e.state.SetDNC("auto-press-default")
	callSID := e.state.CallID
	e.state.Unlock()

	url := telephony.AutoPressRedirectURL(e.redirectBaseURL, telephony.FormatPlayDigits(defaultDigits, e.digitGap))
	return e.rest.Redirect(ctx, callSID, url)
}

func callerNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
