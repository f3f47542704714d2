package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentplexus/voicegateway/internal/autopress"
	"github.com/agentplexus/voicegateway/internal/chatbot"
	"github.com/agentplexus/voicegateway/internal/clock"
	"github.com/agentplexus/voicegateway/internal/orchestrator"
	"github.com/agentplexus/voicegateway/internal/recording"
	"github.com/agentplexus/voicegateway/internal/telephony"
	"github.com/agentplexus/voicegateway/internal/transcript"
)

// registerRoutes wires HTTP routes to handlers. Keep this file free of
// business logic; handlers delegate to internal modules and this
// command's own gateway struct only assembles requests/responses.
func registerRoutes(mux *http.ServeMux, gw *gateway) {
	mux.HandleFunc("/healthz", gw.handleHealthz)
	mux.HandleFunc("/media", gw.handleMedia)
	mux.HandleFunc("/voice/connect", gw.handleVoiceConnect)
	mux.HandleFunc("/voice/autopress", gw.handleAutoPressRedirect)
	mux.HandleFunc("/voice/sessionerror", gw.handleSessionErrorRedirect)
	mux.HandleFunc("/voice/status", gw.handleStatusCallback)
	mux.HandleFunc("/voice/transcription", gw.handleTranscription)
	mux.HandleFunc("/voice/recording", gw.handleRecording)

	if gw.outbound != nil {
		mux.HandleFunc(gw.settings.TelegramOutboundWebhookPath, gw.handleOutboundWebhook)
	}
}

func (gw *gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"calls":  gw.store.Len(),
	})
}

// handleMedia upgrades the inbound media WebSocket, assigns a
// provisional call id (the real CallSid only arrives on the socket's
// "start" event), and blocks running the call's control loop for the
// life of the connection. Upgrade hijacks the underlying TCP connection,
// so this handler owns that connection's lifetime and must not return
// until the call is over — returning early would let net/http cancel
// r.Context() out from under the still-live session.
func (gw *gateway) handleMedia(w http.ResponseWriter, r *http.Request) {
	conn, err := telephony.Upgrade(w, r, gw.log)
	if err != nil {
		gw.log.Warn("media upgrade failed", "err", err)
		return
	}

	provisionalID := uuid.NewString()
	state := gw.store.Create(provisionalID, time.Now())
	session := orchestrator.New(gw.orchDeps, state, conn)

	if err := session.Run(context.Background()); err != nil {
		gw.log.Info("call ended", "call_id", state.CallID, "err", err)
	}
	if err := session.FinalizeTranscript(context.Background()); err != nil {
		gw.log.Warn("finalize transcript on socket close failed", "call_id", state.CallID, "err", err)
	}
	gw.store.Remove(provisionalID)
}

// handleVoiceConnect serves the media-stream connect TwiML, shared by
// Twilio's inbound voice webhook and the outbound command FSM's
// PlaceCallParams.URL target. Twilio echoes the caller-id add-on's
// CallerName and, for outbound legs, the query parameters the outbound
// handler attached to this URL.
func (gw *gateway) handleVoiceConnect(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	params := telephony.StreamParams{
		From:                     r.FormValue("From"),
		To:                       r.FormValue("To"),
		CallerName:               r.FormValue("CallerName"),
		Theme:                    r.FormValue("outbound_theme"),
		RecipientName:            r.FormValue("outbound_recipient"),
		RecordingCallbackURL:     gw.recordingCallbackURL,
		TranscriptionCallbackURL: gw.transcriptionCallbackURL,
	}
	if params.Theme != "" || params.RecipientName != "" {
		params.Reason = "outbound"
	}

	doc := telephony.BuildMediaStreamTwiML(gw.mediaStreamURL, params)
	writeTwiML(w, doc)
}

// handleAutoPressRedirect serves the TwiML the call-control client
// redirected the call to: play the classified digit, pause, optionally
// speak the removal line, hang up. It renders from process-wide
// configuration alone — no call-state lookup — since the redirecting
// Engine already latched DNC.Attempted before issuing the redirect.
func (gw *gateway) handleAutoPressRedirect(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	digits := r.FormValue("digits")
	if digits == "" {
		digits = gw.settings.AutoDNCDigits
	}
	doc := autopress.RenderRedirect(digits, gw.settings.DNCSayLine, gw.settings.DNCHangupAfter)
	writeTwiML(w, doc)
}

// handleSessionErrorRedirect serves the TwiML a call is redirected to
// when the model session could not be configured: speak the apology
// line and hang up, so the caller hears something instead of dead air.
func (gw *gateway) handleSessionErrorRedirect(w http.ResponseWriter, r *http.Request) {
	doc := telephony.BuildSayAndHangupTwiML(gw.settings.SessionErrorLine)
	writeTwiML(w, doc)
}

// handleStatusCallback logs the provider's call-status transitions;
// this gateway has no additional action tied to ringing/answered/
// completed beyond what the media socket's own stop event already
// drives.
func (gw *gateway) handleStatusCallback(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	gw.log.Info("call status callback",
		"call_sid", r.FormValue("CallSid"),
		"call_status", r.FormValue("CallStatus"))
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscription ingests one real-time transcription event. Only
// "transcription-content" events carry text; "transcription-stopped"
// instead triggers the finished call's transcript dispatch to the
// configured sink.
func (gw *gateway) handleTranscription(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	callSID := r.FormValue("CallSid")
	event := r.FormValue("TranscriptionEvent")

	session, ok := gw.registry.Get(callSID)
	if !ok {
		gw.log.Warn("transcription event for unknown call", "call_sid", callSID, "event", event)
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event {
	case "transcription-content":
		text := transcript.ParseContent(r.FormValue("TranscriptionData"), r.FormValue("TranscriptionText"))
		if text == "" {
			break
		}
		role := transcript.TrackRole(r.FormValue("Track"))
		ts := parseTimestamp(r.FormValue("Timestamp"))
		session.IngestTranscriptLine(r.Context(), role, text, ts)
	case "transcription-stopped", "transcription-error":
		if err := session.FinalizeTranscript(r.Context()); err != nil {
			gw.log.Warn("finalize transcript failed", "call_sid", callSID, "err", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// handleRecording fetches the finished call's recording once the
// provider reports it complete. Fetch retries with backoff, so it runs
// in its own goroutine rather than holding the webhook response open.
func (gw *gateway) handleRecording(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	status := r.FormValue("RecordingStatus")
	callSID := r.FormValue("CallSid")
	recordingURL := r.FormValue("RecordingUrl")
	w.WriteHeader(http.StatusOK)

	if status != "completed" || recordingURL == "" {
		return
	}
	// The handler has already responded; r.Context() is cancelled the
	// moment this function returns, so the retrying fetch below needs a
	// context detached from the request rather than r.Context().
	go func() {
		if err := recording.Fetch(context.Background(), clock.New(), gw.rest, gw.sink, callSID, recordingURL); err != nil {
			gw.log.Warn("recording fetch failed", "call_sid", callSID, "err", err)
		}
	}()
}

// handleOutboundWebhook parses an inbound chat-bot update and dispatches
// it to the outbound command FSM: /call, YES <code>, /cancel <code>.
// Rejects unless the update's chat id matches the configured allow-list
// and, if a secret is configured, the secret header matches — the
// chat-id check always runs, the secret header check only when set.
func (gw *gateway) handleOutboundWebhook(w http.ResponseWriter, r *http.Request) {
	if gw.outboundWebhookSecret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != gw.outboundWebhookSecret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	update, err := chatbot.ParseUpdate(body)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if update.ChatID != gw.settings.TelegramOutboundAllowedChatID {
		gw.log.Warn("outbound webhook from unlisted chat id", "chat_id", update.ChatID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := gw.outbound.Handle(r.Context(), update); err != nil {
		gw.log.Warn("outbound command handling failed", "err", err)
	}
	w.WriteHeader(http.StatusOK)
}

func writeTwiML(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(doc))
}

// parseTimestamp parses the provider's millisecond-epoch Timestamp
// field, falling back to the receipt time when absent or malformed —
// ordering transcript lines by arrival is an acceptable approximation
// when the provider omits a usable timestamp.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	var ms int64
	if _, err := fmt.Sscanf(raw, "%d", &ms); err != nil || ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
