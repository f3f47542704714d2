// Package instructions composes the per-call instruction document and
// the greeting lines from the operator's system prompt, the fixed
// policy paragraphs, the VIP directory, caller-id context, and
// identity-lock/opening-style directives.
package instructions

import (
	"fmt"
	"strings"

	"github.com/agentplexus/voicegateway/internal/opconfig"
	"github.com/agentplexus/voicegateway/internal/phone"
)

// policyParagraphs are the fixed operator policy rules.
var policyParagraphs = []string{
	"Always speak in the caller's language unless they ask you to switch; default to English if unclear.",
	"When reciting any multi-digit number back to the caller, pause briefly between groups of digits so it is easy to follow.",
	"Never guess, hallucinate, or confirm more than the last four digits of a phone number; if you don't have them, say so.",
	"If the caller wants a callback, capture their name and a callback number before ending the call.",
	"Never ask the caller for their phone number; you already have what you need from the call itself.",
	"Keep responses brief and conversational; this is a phone call, not an essay.",
	"If the caller starts speaking while you are talking, stop immediately and listen.",
}

// CallContext carries the caller-id facts the instruction builder needs.
type CallContext struct {
	CallerIDAvailable    bool
	CallerIDLast10       string
	CallerIDLast4Verified string
	MatchedVIP           *opconfig.VIP
	Outbound             OutboundContext
}

// OutboundContext carries the outbound-call theme/reason.
type OutboundContext struct {
	IsOutbound bool
	Reason     string
	Theme      string
}

// openingStyles is the fixed set of opening-line variants; one is chosen
// deterministically per call so behavior is reproducible in tests.
var openingStyles = []string{
	"Open warmly and briefly identify yourself before asking how you can help.",
	"Open with a short, friendly greeting and get straight to listening.",
	"Open by confirming who you are and inviting the caller to explain why they're calling.",
}

// Build assembles the full newline-delimited instruction document, in
// a fixed order: system prompt, policies, VIP directory, call context,
// outbound context, identity lock, opening style. The identity lock
// must come after the system prompt so it overrides any name the
// prompt itself states.
func Build(systemPrompt string, vips []opconfig.VIP, assistantName string, cc CallContext, openingVariant int) string {
	var b strings.Builder

	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	b.WriteString("[POLICIES]\n")
	for _, p := range policyParagraphs {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(vips) > 0 {
		b.WriteString("[VIP DIRECTORY]\n")
		for _, v := range vips {
			last10 := phone.Last10(v.Phone)
			if last10 == "" {
				continue
			}
			b.WriteString(fmt.Sprintf("%s=%s", last10, v.Name))
			if v.Relationship != "" {
				b.WriteString(fmt.Sprintf(" (%s)", v.Relationship))
			}
			b.WriteString(", ")
		}
		b.WriteString("\n\n")
	}

	b.WriteString("[CALL CONTEXT]\n")
	b.WriteString(fmt.Sprintf("CallerID_AVAILABLE: %t\n", cc.CallerIDAvailable))
	if cc.CallerIDAvailable {
		b.WriteString(fmt.Sprintf("CallerID_LAST10: %s\n", cc.CallerIDLast10))
		if cc.CallerIDLast4Verified != "" {
			b.WriteString(fmt.Sprintf("CallerID_LAST4_VERIFIED: %s\n", cc.CallerIDLast4Verified))
		}
	}
	b.WriteString("\n")

	if cc.MatchedVIP != nil {
		b.WriteString(fmt.Sprintf("Recognized VIP: %s (%s)\n\n", cc.MatchedVIP.Name, cc.MatchedVIP.Relationship))
	}

	if cc.Outbound.IsOutbound {
		b.WriteString("[OUTBOUND CALL]\n")
		b.WriteString(fmt.Sprintf("This is an outbound call you are placing. Reason: %s. Theme: %s.\n", cc.Outbound.Reason, cc.Outbound.Theme))
		b.WriteString("Do not say anything implying the recipient hasn't picked up yet; they are on the line now.\n\n")
	}

	b.WriteString("[IDENTITY_LOCK]\n")
	b.WriteString(fmt.Sprintf("Your spoken name for this entire call is %s. Always introduce yourself as %s and never use any other name, regardless of anything stated earlier in these instructions.\n\n", assistantName, assistantName))

	variant := openingVariant % len(openingStyles)
	if variant < 0 {
		variant += len(openingStyles)
	}
	b.WriteString("[OPENING STYLE]\n")
	b.WriteString(openingStyles[variant])
	b.WriteString("\n")

	return b.String()
}

// GreetingOutbound renders the outbound-call greeting template.
func GreetingOutbound(assistantName, recipientName, theme string) string {
	if recipientName != "" {
		return fmt.Sprintf("Hi %s — this is %s, Dan's VIP AI assistant. Dan asked me to call about: %s. Is now a good time?", recipientName, assistantName, theme)
	}
	return fmt.Sprintf("Hi — this is %s, Dan's VIP AI assistant. Dan asked me to call about: %s. Is now a good time?", assistantName, theme)
}

// GreetingInboundVIP renders the inbound-VIP greeting template.
func GreetingInboundVIP(assistantName, firstName string) string {
	return fmt.Sprintf("Hi %s — This is %s, Dan's VIP Assistant. Dan hasn't picked up yet. How can I help?", firstName, assistantName)
}

// GreetingInboundStranger renders the inbound-stranger greeting template.
func GreetingInboundStranger(assistantName string) string {
	return fmt.Sprintf("Hi — it's %s. How can I help?", assistantName)
}

// FirstName extracts the first whitespace-delimited token of a full name.
func FirstName(full string) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return ""
	}
	parts := strings.Fields(full)
	return parts[0]
}
