// Package numbermode mutes the assistant while the caller is in the
// middle of reciting a phone number, so the model's TTS never talks
// over a string of digits.
package numbermode

import (
	"regexp"
	"strings"
	"time"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
)

// DefaultSilenceGrace is how long the controller waits after the last
// digit before exiting number-mode on silence alone.
const DefaultSilenceGrace = 2500 * time.Millisecond

// DefaultMinDigits is the digit count that exits number-mode outright.
const DefaultMinDigits = 10

var spokenDigits = map[string]byte{
	"zero": '0', "oh": '0', "o": '0',
	"one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
}

var punctuationRE = regexp.MustCompile(`[-()]`)

// ExtractDigits pulls digits out of a transcript line, recognizing both
// numeral characters and the spoken-word table.
func ExtractDigits(line string) string {
	var b strings.Builder
	for _, tok := range strings.Fields(strings.ToLower(line)) {
		tok = strings.Trim(tok, ".,!?")
		if d, ok := spokenDigits[tok]; ok {
			b.WriteByte(d)
			continue
		}
		for _, r := range tok {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Model is the subset of the realtime-session client number-mode needs.
type Model interface {
	ClearInputBuffer() error
}

// Controller tracks in-progress digit recitation for one call.
type Controller struct {
	state         *callstate.CallState
	clk           clock.Clock
	modelClient   Model
	silenceGrace  time.Duration
	minDigits     int

	releaseTimer clock.Timer
}

// New builds a number-mode controller for one call.
func New(state *callstate.CallState, clk clock.Clock, m Model, silenceGrace time.Duration, minDigits int) *Controller {
	if silenceGrace <= 0 {
		silenceGrace = DefaultSilenceGrace
	}
	if minDigits <= 0 {
		minDigits = DefaultMinDigits
	}
	return &Controller{state: state, clk: clk, modelClient: m, silenceGrace: silenceGrace, minDigits: minDigits}
}

// Ingest processes one caller transcript line. It enters number-mode on
// ≥3 digits or phone punctuation, extends the silence timer on further
// digits, and exits once minDigits is reached.
func (c *Controller) Ingest(line string) {
	digits := ExtractDigits(line)
	hasPunct := punctuationRE.MatchString(line)

	c.state.Lock()
	entering := !c.state.MuteBus.NumberModeActive && (len(digits) >= 3 || hasPunct)
	if entering {
		c.state.MuteBus.NumberModeActive = true
	}
	active := c.state.MuteBus.NumberModeActive
	if active && digits != "" {
		c.state.NumberMode.DigitsCollected += len(digits)
		c.state.NumberMode.LastDigitAt = c.clk.Now()
	}
	total := c.state.NumberMode.DigitsCollected
	c.state.Unlock()

	if !active {
		return
	}

	if entering {
		_ = c.modelClient.ClearInputBuffer()
	}

	if total >= c.minDigits {
		c.exit()
		return
	}
	c.rearmSilenceTimer()
}

func (c *Controller) rearmSilenceTimer() {
	if c.releaseTimer != nil {
		c.releaseTimer.Stop()
	}
	c.releaseTimer = c.clk.AfterFunc(c.silenceGrace, func() {
		c.exit()
	})
}

// exit clears number-mode. The barge-in bit, if set, is left untouched;
// it has its own release path.
func (c *Controller) exit() {
	c.state.Lock()
	defer c.state.Unlock()
	c.state.MuteBus.NumberModeActive = false
	c.state.NumberMode.DigitsCollected = 0
}

// OnCallEnd cancels any pending silence timer so it never fires after
// cleanup.
func (c *Controller) OnCallEnd() {
	if c.releaseTimer != nil {
		c.releaseTimer.Stop()
	}
}
