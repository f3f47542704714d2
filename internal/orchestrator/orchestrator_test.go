package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
	"github.com/agentplexus/voicegateway/internal/opconfig"
)

func TestGreetingForOutbound(t *testing.T) {
	text := greetingFor("Trinity", nil, callstate.Outbound{IsOutbound: true, RecipientName: "Sam", Theme: "the dentist reminder"})
	assert.Contains(t, text, "Sam")
	assert.Contains(t, text, "dentist")
}

func TestGreetingForInboundVIP(t *testing.T) {
	vip := &opconfig.VIP{Name: "Jordan Lee"}
	text := greetingFor("Trinity", vip, callstate.Outbound{})
	assert.Contains(t, text, "Jordan")
}

func TestGreetingForInboundStranger(t *testing.T) {
	text := greetingFor("Trinity", nil, callstate.Outbound{})
	assert.NotEmpty(t, text)
	assert.NotContains(t, text, "Jordan")
}

func TestDecodeMediaPayload(t *testing.T) {
	raw, err := decodeMediaPayload("AAEC")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x02}, raw)

	_, err = decodeMediaPayload("not-base64!!")
	assert.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	state := &callstate.CallState{}
	s := New(Deps{}, state, nil)
	assert.NotNil(t, s.deps.Clock)
	assert.NotNil(t, s.deps.Log)
	assert.NotNil(t, s.modelReady)
}

func TestNewKeepsSuppliedClock(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	state := &callstate.CallState{}
	s := New(Deps{Clock: fc}, state, nil)
	assert.Same(t, fc, s.deps.Clock)
}

func TestIngestTranscriptLineAppendsEventWithoutCollaborators(t *testing.T) {
	state := &callstate.CallState{}
	s := New(Deps{}, state, nil)

	s.IngestTranscriptLine(context.Background(), callstate.RoleCaller, "hello there", time.Now())

	state.Lock()
	defer state.Unlock()
	require.Len(t, state.Events, 1)
	assert.Equal(t, "hello there", state.Events[0].Text)
}

func TestFinalizeTranscriptWithoutSink(t *testing.T) {
	state := &callstate.CallState{}
	s := New(Deps{}, state, nil)
	state.AppendEvent(callstate.RoleCaller, "hi", time.Now())

	require.NoError(t, s.FinalizeTranscript(context.Background()))
}

type fakeSink struct {
	callID   string
	rendered string
}

func (f *fakeSink) Transcript(ctx context.Context, callID, rendered string) error {
	f.callID = callID
	f.rendered = rendered
	return nil
}

func TestFinalizeTranscriptDispatchesToSink(t *testing.T) {
	state := &callstate.CallState{CallID: "CA123"}
	sink := &fakeSink{}
	s := New(Deps{Sink: sink}, state, nil)
	state.AppendEvent(callstate.RoleCaller, "hi there", time.Now())

	require.NoError(t, s.FinalizeTranscript(context.Background()))
	assert.Equal(t, "CA123", sink.callID)
	assert.Contains(t, sink.rendered, "hi there")
}

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()
	s := &Session{}

	_, ok := r.Get("CA1")
	assert.False(t, ok)

	r.Put("CA1", s)
	got, ok := r.Get("CA1")
	require.True(t, ok)
	assert.Same(t, s, got)

	r.Remove("CA1")
	_, ok = r.Get("CA1")
	assert.False(t, ok)
}
