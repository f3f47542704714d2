// Package orchestrator runs the per-call control loop: it dials the
// model socket on "connected", applies session configuration and
// instructions on "start", schedules the greeting, and fans audio and
// control events between the telephony socket and the model socket for
// the life of the call. It follows the teacher module's per-connection
// goroutine-group shape (transport.Connection's readLoop/writeLoop
// pair), generalized to two sockets under one errgroup the way the
// retrieved websocket-executor example supervises its connect and
// listen goroutines together.
package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentplexus/voicegateway/internal/autopress"
	"github.com/agentplexus/voicegateway/internal/bargein"
	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/clock"
	"github.com/agentplexus/voicegateway/internal/codec"
	"github.com/agentplexus/voicegateway/internal/idle"
	"github.com/agentplexus/voicegateway/internal/instructions"
	"github.com/agentplexus/voicegateway/internal/model"
	"github.com/agentplexus/voicegateway/internal/numbermode"
	"github.com/agentplexus/voicegateway/internal/opconfig"
	"github.com/agentplexus/voicegateway/internal/phone"
	"github.com/agentplexus/voicegateway/internal/telephony"
	"github.com/agentplexus/voicegateway/internal/transcript"
)

// GreetingFallback is how long the orchestrator waits after the
// immediate greeting attempt before forcing a second try.
const GreetingFallback = 6 * time.Second

// Sink is the subset of sinks.Sink the orchestrator dispatches a
// finished call's rendered transcript to.
type Sink interface {
	Transcript(ctx context.Context, callID, rendered string) error
}

// Deps bundles everything a Session needs that is shared across calls
// on this process, the orchestrator's analogue of the teacher module's
// Provider construction.
type Deps struct {
	Config   *opconfig.Provider
	Voices   instructions.VoiceRules
	REST     *telephony.RESTClient
	Sink     Sink
	Registry *Registry

	ModelWSURL  string
	ModelAPIKey string

	AutoPressLimiter        *autopress.RateLimiter
	AutoPressThreshold      float64
	AutoPressRedirectBaseURL string
	AutoPressSayLine        string
	AutoPressHangupAfter    time.Duration
	AutoPressDigitGap       time.Duration
	AutoDNCEnable           bool
	AutoDNCOnCNAM           bool
	AutoDNCOnlyOnPhrase     bool
	AutoDNCDigits           string

	IdleTimeout     time.Duration
	IdleGoodbye     bool
	IdleGoodbyeWait time.Duration
	IdleGoodbyeLine string

	SessionErrorRedirectURL string

	NumberSilenceGrace time.Duration
	NumberMinDigits    int

	Clock clock.Clock
	Log   *slog.Logger
}

// Session is one call's live control loop. Phase/Greeting/Voice/
// SessionReady on the bound CallState are mutated only from this
// struct's own goroutines.
type Session struct {
	deps  Deps
	state *callstate.CallState
	conn  *telephony.Conn

	model       *model.Client
	modelEvents <-chan model.Event
	modelReady  chan struct{}

	bargeIn    *bargein.Controller
	numberMode *numbermode.Controller
	watchdog   *idle.Watchdog
	autoPress  *autopress.Engine

	greetingText string
}

// New constructs a Session bound to one telephony connection. The model
// socket is not dialed yet; Run dials it as soon as "connected" arrives.
func New(deps Deps, state *callstate.CallState, conn *telephony.Conn) *Session {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Session{deps: deps, state: state, conn: conn, modelReady: make(chan struct{})}
}

// Run drives the call to completion: it blocks until the telephony
// socket closes, the model socket errors out, or the context is
// cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.teardown()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runTelephonyLoop(gCtx) })
	g.Go(func() error { return s.runModelLoop(gCtx) })
	return g.Wait()
}

func (s *Session) runTelephonyLoop(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-s.conn.Events:
			if !ok {
				return nil
			}
			if err := s.handleTelephonyEvent(ctx, evt); err != nil {
				return err
			}
			if evt.Kind == telephony.EventStop {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) handleTelephonyEvent(ctx context.Context, evt telephony.Event) error {
	switch evt.Kind {
	case telephony.EventConnected:
		return s.onConnected(ctx)
	case telephony.EventStart:
		return s.onStart(ctx, evt.Start)
	case telephony.EventMedia:
		s.onCallerMedia(ctx, evt.MediaPayload)
	case telephony.EventDTMF:
		s.bumpActivity()
	case telephony.EventStop:
		s.transitionDone()
	}
	return nil
}

func (s *Session) onConnected(ctx context.Context) error {
	cli, err := model.Dial(ctx, s.deps.ModelWSURL, s.deps.ModelAPIKey)
	if err != nil {
		return fmt.Errorf("orchestrator: dial model: %w", err)
	}
	s.model = cli
	s.modelEvents = cli.Events()
	close(s.modelReady)
	return nil
}

func (s *Session) onStart(ctx context.Context, p telephony.StartParams) error {
	s.state.Lock()
	s.state.CallID = p.CallSID
	s.state.StreamID = p.StreamSID
	s.state.Meta.From = p.From
	s.state.Meta.To = p.To
	s.state.Meta.CallerName = p.CallerName
	if p.Reason != "" || p.Theme != "" {
		s.state.Meta.Outbound = callstate.Outbound{IsOutbound: true, Reason: p.Reason, Theme: p.Theme, RecipientName: p.RecipientName}
	}
	transitioned := s.state.CanTransition(callstate.PhaseStreamStarted)
	if transitioned {
		s.state.Phase = callstate.PhaseStreamStarted
	}
	outbound := s.state.Meta.Outbound
	s.state.Unlock()
	if !transitioned {
		return fmt.Errorf("orchestrator: illegal phase transition on start")
	}
	if s.deps.Registry != nil && p.CallSID != "" {
		s.deps.Registry.Put(p.CallSID, s)
	}

	select {
	case <-s.modelReady:
	case <-ctx.Done():
		return ctx.Err()
	}

	snap := s.deps.Config.Snapshot()
	var matchedVIP *opconfig.VIP
	last10 := phone.Last10(p.From)
	for i := range snap.VIPs {
		if phone.Last10(snap.VIPs[i].Phone) == last10 {
			matchedVIP = &snap.VIPs[i]
			break
		}
	}

	override := ""
	if matchedVIP != nil {
		override = matchedVIP.VoiceOverride
	}
	voice, assistantName := s.deps.Voices.SelectVoice(override)

	s.state.Lock()
	s.state.Voice = callstate.Voice{Selected: voice, AssistantName: assistantName}
	s.state.Unlock()

	cc := instructions.CallContext{
		CallerIDAvailable:     p.From != "",
		CallerIDLast10:        last10,
		CallerIDLast4Verified: phone.Last4(p.From),
		MatchedVIP:            matchedVIP,
		Outbound: instructions.OutboundContext{
			IsOutbound: outbound.IsOutbound,
			Reason:     outbound.Reason,
			Theme:      outbound.Theme,
		},
	}
	doc := instructions.Build(snap.SystemPrompt, snap.VIPs, assistantName, cc, 0)

	if err := s.model.UpdateSession(model.SessionConfig{Instructions: doc, Voice: voice, Temperature: 0.8}); err != nil {
		s.redirectToSessionError(ctx, p.CallSID)
		return fmt.Errorf("orchestrator: session update: %w", err)
	}
	_ = s.model.ClearInputBuffer()

	s.bargeIn = bargein.New(s.state, s.conn, s.model, s.deps.Clock)
	s.numberMode = numbermode.New(s.state, s.deps.Clock, s.model, s.deps.NumberSilenceGrace, s.deps.NumberMinDigits)
	s.watchdog = idle.New(s.state, s.deps.Clock, s.model, s.deps.REST, s.deps.IdleTimeout, s.deps.IdleGoodbye, s.deps.IdleGoodbyeWait, s.deps.IdleGoodbyeLine)
	if s.deps.AutoDNCEnable && s.deps.REST != nil {
		s.autoPress = autopress.New(s.state, s.deps.REST, s.deps.AutoPressLimiter, s.deps.AutoPressThreshold, s.deps.AutoPressRedirectBaseURL, s.deps.AutoPressSayLine, s.deps.AutoPressHangupAfter, s.deps.AutoPressDigitGap)
	}

	s.scheduleGreeting(assistantName, matchedVIP, outbound)

	if s.deps.AutoDNCEnable && s.deps.AutoDNCOnCNAM && !s.deps.AutoDNCOnlyOnPhrase && s.autoPress != nil {
		_ = s.autoPress.DefaultDigitsFire(ctx, p.CallerName, s.deps.AutoDNCDigits, s.deps.Clock.Now())
	}
	return nil
}

// redirectToSessionError hands the call off to a spoken apology and a
// hangup when the model session could not be configured, rather than
// leaving the caller on a silent, stuck line until the socket eventually
// times out. It is best-effort: a failed redirect here still lets the
// caller's onStart error tear the session down.
func (s *Session) redirectToSessionError(ctx context.Context, callSID string) {
	if s.deps.REST == nil || s.deps.SessionErrorRedirectURL == "" || callSID == "" {
		return
	}
	if err := s.deps.REST.Redirect(ctx, callSID, s.deps.SessionErrorRedirectURL); err != nil {
		s.deps.Log.Warn("session error redirect failed", "call_sid", callSID, "err", err)
	}
}

// scheduleGreeting picks the greeting line for this call's context and
// fires the immediate attempt plus the +6s fallback. For outbound calls
// the attempt ignores session-ready, matching the rule that callees
// typically speak first if the gateway waits.
func (s *Session) scheduleGreeting(assistantName string, vip *opconfig.VIP, outbound callstate.Outbound) {
	s.greetingText = greetingFor(assistantName, vip, outbound)

	s.state.Lock()
	s.state.Greeting.Pending = true
	s.state.Greeting.FallbackDeadline = s.deps.Clock.Now().Add(GreetingFallback)
	s.state.Unlock()

	s.attemptGreeting(outbound.IsOutbound)
	s.deps.Clock.AfterFunc(GreetingFallback, func() { s.attemptGreeting(true) })
}

// greetingFor picks the fixed greeting line for a call's context: the
// outbound script if the gateway placed the call, the VIP-aware line if
// the caller matched a known contact, otherwise the stranger line.
func greetingFor(assistantName string, vip *opconfig.VIP, outbound callstate.Outbound) string {
	switch {
	case outbound.IsOutbound:
		return instructions.GreetingOutbound(assistantName, outbound.RecipientName, outbound.Theme)
	case vip != nil:
		return instructions.GreetingInboundVIP(assistantName, instructions.FirstName(vip.Name))
	default:
		return instructions.GreetingInboundStranger(assistantName)
	}
}

// attemptGreeting sends the greeting at most once per call. force skips
// the session-ready gate, used for outbound calls and the fallback
// timer, both of which must not wait indefinitely on session.updated.
func (s *Session) attemptGreeting(force bool) {
	s.state.Lock()
	if s.state.Greeting.Sent {
		s.state.Unlock()
		return
	}
	ready := s.state.SessionReady || force
	if !ready {
		s.state.Unlock()
		return
	}
	s.state.Greeting.Sent = true
	s.state.Greeting.Pending = false
	s.state.Unlock()

	if err := s.model.Say(s.greetingText); err != nil {
		s.deps.Log.Warn("orchestrator: greeting send failed", "call_id", s.state.CallID, "err", err)
	}
}

func (s *Session) runModelLoop(ctx context.Context) error {
	select {
	case <-s.modelReady:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case evt, ok := <-s.modelEvents:
			if !ok {
				return nil
			}
			if err := s.handleModelEvent(ctx, evt); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) handleModelEvent(ctx context.Context, evt model.Event) error {
	s.bumpActivity()

	switch evt.Kind {
	case model.EventSessionUpdated:
		s.state.Lock()
		s.state.SessionReady = true
		if s.state.CanTransition(callstate.PhaseSessionReady) {
			s.state.Phase = callstate.PhaseSessionReady
		}
		s.state.Unlock()
		s.attemptGreeting(false)

	case model.EventSpeechStarted:
		if s.bargeIn != nil {
			_, _ = s.bargeIn.SpeechStarted(ctx)
		}

	case model.EventSpeechStopped:
		if s.bargeIn != nil {
			s.bargeIn.SpeechStopped()
		}

	case model.EventAudioDelta:
		s.forwardAssistantAudio(ctx, evt.AudioDelta)

	case model.EventResponseDone, model.EventAudioDone:
		s.state.Lock()
		if s.state.CanTransition(callstate.PhaseActive) {
			s.state.Phase = callstate.PhaseActive
		} else if s.state.CanTransition(callstate.PhaseGreeted) {
			s.state.Phase = callstate.PhaseGreeted
		}
		s.state.Unlock()

	case model.EventError:
		s.deps.Log.Warn("orchestrator: model error event", "call_id", s.state.CallID, "message", evt.ErrorMessage)
	}
	return nil
}

// forwardAssistantAudio reframes one audio delta into 20ms μ-law frames
// and sends each downstream, unless the mute bus is asserted.
func (s *Session) forwardAssistantAudio(ctx context.Context, audio []byte) {
	s.state.Lock()
	muted := s.state.MuteBus.Asserted()
	s.state.Unlock()
	if muted || len(audio) == 0 {
		return
	}

	for _, frame := range codec.FrameMulaw(audio) {
		if err := s.conn.SendMedia(ctx, frame); err != nil {
			s.deps.Log.Warn("orchestrator: forward assistant audio failed", "call_id", s.state.CallID, "err", err)
			return
		}
	}
}

// onCallerMedia decodes one inbound base64 μ-law frame and appends it
// to the model's input audio buffer.
func (s *Session) onCallerMedia(ctx context.Context, payload string) {
	s.bumpActivity()
	if s.model == nil || payload == "" {
		return
	}
	raw, err := decodeMediaPayload(payload)
	if err != nil {
		s.deps.Log.Warn("orchestrator: decode caller media failed", "call_id", s.state.CallID, "err", err)
		return
	}
	if err := s.model.AppendAudio(raw); err != nil {
		s.deps.Log.Warn("orchestrator: append caller audio failed", "call_id", s.state.CallID, "err", err)
	}
}

func (s *Session) bumpActivity() {
	if s.watchdog != nil {
		s.watchdog.Bump()
	}
}

func (s *Session) transitionDone() {
	s.state.Lock()
	s.state.Phase = callstate.PhaseDone
	s.state.Unlock()
}

func decodeMediaPayload(payload string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(payload)
}

// IngestTranscriptLine is the transcription webhook's entry point for
// one decoded utterance. Caller lines additionally drive number-mode
// and the auto-press engine; both read the line independently of the
// transcript log.
func (s *Session) IngestTranscriptLine(ctx context.Context, role callstate.Role, text string, ts time.Time) {
	transcript.Ingest(s.state, role, text, ts)
	s.bumpActivity()

	if role != callstate.RoleCaller {
		return
	}
	if s.numberMode != nil {
		s.numberMode.Ingest(text)
	}
	if s.autoPress != nil {
		s.state.Lock()
		last10 := phone.Last10(s.state.Meta.From)
		callerName := s.state.Meta.CallerName
		s.state.Unlock()
		if err := s.autoPress.Ingest(ctx, text, last10, callerName, s.deps.Clock.Now()); err != nil {
			s.deps.Log.Warn("orchestrator: auto-press ingest failed", "call_id", s.state.CallID, "err", err)
		}
	}
}

// FinalizeTranscript renders the call's accumulated transcript and
// dispatches it to the configured sink. Called by the transcription
// webhook's terminal event (stopped/error).
func (s *Session) FinalizeTranscript(ctx context.Context) error {
	if s.deps.Sink == nil {
		return nil
	}
	s.state.Lock()
	events := make([]callstate.Event, len(s.state.Events))
	copy(events, s.state.Events)
	callID := s.state.CallID
	s.state.Unlock()

	rendered := transcript.Render(events)
	if rendered == "" {
		return nil
	}
	return s.deps.Sink.Transcript(ctx, callID, rendered)
}

func (s *Session) teardown() {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	if s.numberMode != nil {
		s.numberMode.OnCallEnd()
	}
	if s.model != nil {
		_ = s.model.Close()
	}
	_ = s.conn.Close()

	s.state.Lock()
	callID := s.state.CallID
	s.state.Unlock()
	if s.deps.Registry != nil && callID != "" {
		s.deps.Registry.Remove(callID)
	}
}
