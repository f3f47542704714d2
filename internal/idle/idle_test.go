package idle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
)

type fakeModel struct {
	creates int
	said    string
}

func (f *fakeModel) Say(text string) error { f.creates++; f.said = text; return nil }

type fakeHangup struct{ calls []string }

func (f *fakeHangup) Hangup(ctx context.Context, callSID string) error {
	f.calls = append(f.calls, callSID)
	return nil
}

func TestWatchdogFiresAfterTimeout(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	clk := clock.NewFake(time.Unix(0, 0))
	m := &fakeModel{}
	rest := &fakeHangup{}

	_ = New(state, clk, m, rest, 180*time.Second, false, 0, "")
	clk.Advance(180 * time.Second)

	assert.Equal(t, []string{"call-1"}, rest.calls)
}

func TestWatchdogBumpDelaysFire(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	clk := clock.NewFake(time.Unix(0, 0))
	m := &fakeModel{}
	rest := &fakeHangup{}

	wd := New(state, clk, m, rest, 180*time.Second, false, 0, "")
	clk.Advance(170 * time.Second)
	wd.Bump()
	clk.Advance(170 * time.Second)
	assert.Empty(t, rest.calls)
	clk.Advance(10 * time.Second)
	assert.Equal(t, []string{"call-1"}, rest.calls)
}

func TestWatchdogSkipsWhenDNCAttempted(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	state.DNC.Attempted = true
	clk := clock.NewFake(time.Unix(0, 0))
	m := &fakeModel{}
	rest := &fakeHangup{}

	_ = New(state, clk, m, rest, 180*time.Second, false, 0, "")
	clk.Advance(180 * time.Second)

	assert.Empty(t, rest.calls)
}

func TestWatchdogSendsGoodbyeThenHangsUpAfterWait(t *testing.T) {
	state := &callstate.CallState{CallID: "call-1"}
	clk := clock.NewFake(time.Unix(0, 0))
	m := &fakeModel{}
	rest := &fakeHangup{}

	_ = New(state, clk, m, rest, 180*time.Second, true, 1500*time.Millisecond, "I haven't heard from you, goodbye.")
	clk.Advance(180 * time.Second)
	assert.Equal(t, 1, m.creates)
	assert.Equal(t, "I haven't heard from you, goodbye.", m.said)
	assert.Empty(t, rest.calls)

	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"call-1"}, rest.calls)
}
