// Command gateway runs the voice bridge HTTP/WebSocket process: the
// telephony media socket, the call-control and chat-bot webhooks, and
// graceful shutdown on SIGINT/SIGTERM. Wiring follows the same
// signal-driven shutdown and fail-fast dependency construction the
// retrieved telecom-platform API command uses, adapted from gin to a
// bare net/http.ServeMux since this module carries no web framework
// dependency.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agentplexus/voicegateway/internal/autopress"
	"github.com/agentplexus/voicegateway/internal/callstate"
	"github.com/agentplexus/voicegateway/internal/chatbot"
	"github.com/agentplexus/voicegateway/internal/env"
	"github.com/agentplexus/voicegateway/internal/instructions"
	"github.com/agentplexus/voicegateway/internal/opconfig"
	"github.com/agentplexus/voicegateway/internal/orchestrator"
	"github.com/agentplexus/voicegateway/internal/outbound"
	"github.com/agentplexus/voicegateway/internal/sinks"
	"github.com/agentplexus/voicegateway/internal/telephony"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	settings := env.Load()
	if settings.OpenAIAPIKey == "" {
		logger.Error("missing required OPENAI_API_KEY")
		os.Exit(1)
	}
	if settings.TwilioAccountSID == "" || settings.TwilioAuthToken == "" {
		logger.Error("missing required TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN")
		os.Exit(1)
	}

	gw := buildGateway(settings, logger)

	// The call path reads configuration through Provider.Snapshot, which
	// never fetches; this loop is the only thing that keeps that cache
	// warm, so a session start never blocks on a live config round trip.
	go gw.orchDeps.Config.Refresh(rootCtx, settings.ConfigTTL)

	mux := http.NewServeMux()
	registerRoutes(mux, gw)

	// ReadTimeout/WriteTimeout are deliberately unset: /media hijacks its
	// connection for the life of a call, which can run far longer than any
	// sensible timeout for the webhook routes. ReadHeaderTimeout still
	// bounds a slow-header attacker on every route, hijacked or not.
	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "port", settings.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "err", err)
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

// gateway bundles every process-wide dependency the HTTP handlers in
// routes.go need, the command's analogue of orchestrator.Deps one layer
// up the call stack.
type gateway struct {
	settings env.Settings
	log      *slog.Logger

	store    *callstate.Store
	registry *orchestrator.Registry
	orchDeps orchestrator.Deps

	rest   *telephony.RESTClient
	sink   sinks.Sink
	outbound *outbound.Handler

	mediaStreamURL           string
	connectURL               string
	autoPressURL             string
	statusURL                string
	sessionErrorURL          string
	recordingCallbackURL     string
	transcriptionCallbackURL string

	outboundWebhookSecret string
}

func buildGateway(s env.Settings, logger *slog.Logger) *gateway {
	configProvider := opconfig.New(
		opconfig.WithURL(s.GoogleConfigURL),
		opconfig.WithTTL(s.ConfigTTL),
		opconfig.WithFallbackAssistantName("Trinity"),
	)

	rest := telephony.NewRESTClient(s.TwilioAccountSID, s.TwilioAuthToken)
	store := callstate.New()
	registry := orchestrator.NewRegistry()
	limiter := autopress.NewRateLimiter(s.AutoPressRateLimit)

	base := strings.TrimSuffix(s.WebhookURL, "/")

	var sink sinks.Sink = sinks.Void{}
	if s.TelegramBotToken != "" && s.TelegramChatID != "" {
		sink = sinks.NewChat(chatbot.New(s.TelegramBotToken, ""), s.TelegramChatID)
	}

	var outHandler *outbound.Handler
	if s.TelegramOutboundBotToken != "" {
		outboundBot := chatbot.New(s.TelegramOutboundBotToken, "")
		outStore := outbound.NewStore(s.OutboundCodeTTL)
		outHandler = outbound.NewHandler(outStore, configProvider, rest, outboundBot,
			base+"/voice/connect", s.TwilioOutboundFrom, base+"/voice/status")
	}

	voices := instructions.VoiceRules{
		DefaultVoice: s.DefaultVoice,
		MaleVoice:    s.MaleVoice,
		FemaleVoice:  s.FemaleVoice,
	}

	gw := &gateway{
		settings: s,
		log:      logger,
		store:    store,
		registry: registry,
		rest:     rest,
		sink:     sink,
		outbound: outHandler,

		mediaStreamURL:           websocketOrigin(base) + "/media",
		connectURL:               base + "/voice/connect",
		autoPressURL:             base + "/voice/autopress",
		statusURL:                base + "/voice/status",
		sessionErrorURL:          base + "/voice/sessionerror",
		recordingCallbackURL:     base + "/voice/recording",
		transcriptionCallbackURL: base + "/voice/transcription",

		outboundWebhookSecret: s.TelegramOutboundWebhookSecret,
	}

	gw.orchDeps = orchestrator.Deps{
		Config:   configProvider,
		Voices:   voices,
		REST:     rest,
		Sink:     sink,
		Registry: registry,

		ModelWSURL:  realtimeWSURL(s.OpenAIRealtimeModel),
		ModelAPIKey: s.OpenAIAPIKey,

		AutoPressLimiter:         limiter,
		AutoPressThreshold:       s.AutoPressConfidence,
		AutoPressRedirectBaseURL: gw.autoPressURL,
		AutoPressSayLine:         s.DNCSayLine,
		AutoPressHangupAfter:     s.DNCHangupAfter,
		AutoPressDigitGap:        time.Duration(s.AutoDNCGapMS) * time.Millisecond,
		AutoDNCEnable:            s.AutoDNCEnable,
		AutoDNCOnCNAM:            s.AutoDNCOnCNAM,
		AutoDNCOnlyOnPhrase:      s.AutoDNCOnlyOnPhrase,
		AutoDNCDigits:            s.AutoDNCDigits,

		IdleTimeout:     s.IdleHangupTimeout,
		IdleGoodbye:     s.IdleSendGoodbye,
		IdleGoodbyeWait: 0,
		IdleGoodbyeLine: s.IdleGoodbyeLine,

		SessionErrorRedirectURL: gw.sessionErrorURL,

		NumberSilenceGrace: s.NumberSilenceGrace,
		NumberMinDigits:    s.NumberMinDigits,

		Log: logger,
	}

	return gw
}

// realtimeWSURL builds the model's realtime session endpoint, grounded
// on the retrieved realtime-caller example's fixed query-string model
// selector.
func realtimeWSURL(model string) string {
	return fmt.Sprintf("wss://api.openai.com/v1/realtime?model=%s", model)
}

// websocketOrigin turns an https:// webhook base into its wss://
// counterpart for the media-stream URL Twilio dials.
func websocketOrigin(httpsBase string) string {
	switch {
	case strings.HasPrefix(httpsBase, "https://"):
		return "wss://" + strings.TrimPrefix(httpsBase, "https://")
	case strings.HasPrefix(httpsBase, "http://"):
		return "ws://" + strings.TrimPrefix(httpsBase, "http://")
	default:
		return httpsBase
	}
}
