package bargein

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
)

type fakeTelephony struct{ clears int }

func (f *fakeTelephony) SendClear(ctx context.Context) error {
	f.clears++
	return nil
}

type fakeModel struct {
	tel     *fakeTelephony
	cancels int
	clears  int
	// clearsAtCancel is the telephony clear count seen by the first
	// CancelResponse, when tel is set.
	clearsAtCancel int
}

func (f *fakeModel) CancelResponse() error {
	if f.cancels == 0 && f.tel != nil {
		f.clearsAtCancel = f.tel.clears
	}
	f.cancels++
	return nil
}
func (f *fakeModel) ClearOutputAudioBuffer() error { f.clears++; return nil }

func TestSpeechStartedOrdering(t *testing.T) {
	state := &callstate.CallState{}
	tel := &fakeTelephony{}
	mdl := &fakeModel{tel: tel}
	clk := clock.NewFake(time.Unix(0, 0))

	ctrl := New(state, tel, mdl, clk)
	asserted, err := ctrl.SpeechStarted(context.Background())
	require.NoError(t, err)
	assert.True(t, asserted)
	assert.Equal(t, 1, tel.clears)
	assert.Equal(t, 1, mdl.clearsAtCancel) // telephony clear went out before the cancel
	assert.Equal(t, 1, mdl.cancels)
	assert.Equal(t, 1, mdl.clears)
	assert.True(t, state.MuteBus.BargeInActive)
}

func TestSpeechStartedDebounced(t *testing.T) {
	state := &callstate.CallState{}
	tel := &fakeTelephony{}
	mdl := &fakeModel{}
	clk := clock.NewFake(time.Unix(0, 0))
	ctrl := New(state, tel, mdl, clk)

	_, err := ctrl.SpeechStarted(context.Background())
	require.NoError(t, err)

	asserted, err := ctrl.SpeechStarted(context.Background())
	require.NoError(t, err)
	assert.False(t, asserted)
	assert.Equal(t, 1, tel.clears) // second call was debounced, no new clear
}

func TestSpeechStoppedReleasesAfterDebounce(t *testing.T) {
	state := &callstate.CallState{}
	tel := &fakeTelephony{}
	mdl := &fakeModel{}
	clk := clock.NewFake(time.Unix(0, 0))
	ctrl := New(state, tel, mdl, clk)

	_, err := ctrl.SpeechStarted(context.Background())
	require.NoError(t, err)

	ctrl.SpeechStopped()
	clk.Advance(ReleaseDebounce)

	state.Lock()
	released := !state.MuteBus.BargeInActive
	state.Unlock()
	assert.True(t, released)
}

func TestSpeechStoppedDoesNotReleaseIfNumberModeAsserted(t *testing.T) {
	state := &callstate.CallState{}
	tel := &fakeTelephony{}
	mdl := &fakeModel{}
	clk := clock.NewFake(time.Unix(0, 0))
	ctrl := New(state, tel, mdl, clk)

	_, err := ctrl.SpeechStarted(context.Background())
	require.NoError(t, err)

	ctrl.SpeechStopped()

	state.Lock()
	state.MuteBus.NumberModeActive = true
	state.Unlock()

	clk.Advance(ReleaseDebounce)

	state.Lock()
	stillActive := state.MuteBus.BargeInActive
	state.Unlock()
	assert.True(t, stillActive)
}
