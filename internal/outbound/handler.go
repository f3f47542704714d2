package outbound

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/agentplexus/voicegateway/internal/chatbot"
	"github.com/agentplexus/voicegateway/internal/opconfig"
	"github.com/agentplexus/voicegateway/internal/phone"
	"github.com/agentplexus/voicegateway/internal/telephony"
)

// Caller places outbound calls on confirmation; satisfied by
// telephony.RESTClient.
type Caller interface {
	PlaceCall(ctx context.Context, p telephony.PlaceCallParams) (*telephony.Call, error)
}

// Notifier replies to the requesting chat; satisfied by chatbot.Client.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// ConfigSource resolves VIPs for name-based /call commands.
type ConfigSource interface {
	Get(ctx context.Context, forceFresh bool) opconfig.Snapshot
}

// Handler wires the command parser, the pending-code store, and the
// call-placement/notification clients into one webhook entry point, the
// chat-bot analogue of the orchestrator's per-call control loop.
type Handler struct {
	store    *Store
	config   ConfigSource
	caller   Caller
	notifier Notifier

	mediaStreamURL string
	callerID       string
	statusCallback string
}

// NewHandler builds an outbound command Handler.
func NewHandler(store *Store, config ConfigSource, caller Caller, notifier Notifier, mediaStreamURL, callerID, statusCallback string) *Handler {
	return &Handler{
		store:          store,
		config:         config,
		caller:         caller,
		notifier:       notifier,
		mediaStreamURL: mediaStreamURL,
		callerID:       callerID,
		statusCallback: statusCallback,
	}
}

// Handle dispatches one parsed chat-bot update.
func (h *Handler) Handle(ctx context.Context, update chatbot.Update) error {
	cmd := ParseCommand(update.Text)
	switch cmd.Kind {
	case CommandHelp:
		return h.notifier.SendMessage(ctx, update.ChatID, HelpText)
	case CommandCallByName:
		return h.handleCallByName(ctx, update, cmd)
	case CommandCallByPhone:
		return h.handleCallByPhone(ctx, update, cmd)
	case CommandConfirm:
		return h.handleConfirm(ctx, update, cmd)
	case CommandCancel:
		return h.handleCancel(ctx, update, cmd)
	default:
		return h.notifier.SendMessage(ctx, update.ChatID, "Unrecognized command.\n\n"+HelpText)
	}
}

func (h *Handler) handleCallByName(ctx context.Context, update chatbot.Update, cmd Command) error {
	snap := h.config.Get(ctx, true)
	vip, ok := ResolveByName(snap.VIPs, cmd.Name, cmd.Last4)
	if !ok {
		return h.notifier.SendMessage(ctx, update.ChatID, fmt.Sprintf("No VIP match for %q ending %s.", cmd.Name, cmd.Last4))
	}
	dest := phone.NormalizeE164US(vip.Phone)
	if dest == "" {
		return h.notifier.SendMessage(ctx, update.ChatID, fmt.Sprintf("VIP %s has no usable phone number on file.", vip.Name))
	}
	return h.issueAndPrompt(ctx, update.ChatID, dest, vip.Name, cmd.Theme)
}

func (h *Handler) handleCallByPhone(ctx context.Context, update chatbot.Update, cmd Command) error {
	dest := phone.NormalizeE164US(cmd.Phone)
	if dest == "" {
		return h.notifier.SendMessage(ctx, update.ChatID, fmt.Sprintf("Could not parse %q as a US phone number.", cmd.Phone))
	}
	return h.issueAndPrompt(ctx, update.ChatID, dest, dest, cmd.Theme)
}

func (h *Handler) issueAndPrompt(ctx context.Context, chatID, destE164, display, theme string) error {
	code := h.store.Issue(Pending{
		DestinationE164: destE164,
		Display:         display,
		Theme:           theme,
		RecipientName:   display,
		RequesterChatID: chatID,
	}, time.Now())
	return h.notifier.SendMessage(ctx, chatID, fmt.Sprintf("Call %s about %q?\nReply: YES %s (expires in %s)", display, theme, code, h.store.ttl))
}

func (h *Handler) handleConfirm(ctx context.Context, update chatbot.Update, cmd Command) error {
	p, err := h.store.Confirm(cmd.Code, time.Now())
	if err != nil {
		return h.notifier.SendMessage(ctx, update.ChatID, "That confirmation code is unknown or expired.")
	}

	call, err := h.caller.PlaceCall(ctx, telephony.PlaceCallParams{
		To:             p.DestinationE164,
		From:           h.callerID,
		URL:            outboundConnectURL(h.mediaStreamURL, p.Theme, p.RecipientName),
		StatusCallback: h.statusCallback,
		CustomParameters: map[string]string{
			"outbound_theme":     p.Theme,
			"outbound_recipient": p.RecipientName,
		},
	})
	if err != nil {
		return h.notifier.SendMessage(ctx, update.ChatID, fmt.Sprintf("Failed to place the call: %v", err))
	}
	return h.notifier.SendMessage(ctx, update.ChatID, fmt.Sprintf("Calling %s now (call %s).", p.Display, call.SID))
}

// outboundConnectURL appends the outbound theme/recipient as query
// parameters on the connect webhook URL: the provider fetches that exact
// URL when dialing the leg, so values set only as call-creation form
// fields (CustomParameters above) never reach it, but query parameters
// do.
func outboundConnectURL(base, theme, recipientName string) string {
	if base == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("outbound_theme", theme)
	q.Set("outbound_recipient", recipientName)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) handleCancel(ctx context.Context, update chatbot.Update, cmd Command) error {
	if err := h.store.Cancel(cmd.Code); err != nil {
		return h.notifier.SendMessage(ctx, update.ChatID, "That confirmation code is unknown or already expired.")
	}
	return h.notifier.SendMessage(ctx, update.ChatID, "Cancelled.")
}
