// Package transcript ingests timestamped per-track utterances from the
// telephony provider's transcription webhook, classifies them by
// track, drops the greeting echo, and renders the interleaved timeline
// once the call ends.
package transcript

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentplexus/voicegateway/internal/callstate"
)

// CoalesceWindow is the maximum gap between same-role entries that are
// still joined into a single rendered turn.
const CoalesceWindow = 2 * time.Second

// greetingPrefixes are normalized substrings that flag the first
// assistant utterance as an echo of the gateway's own greeting rather
// than a new turn worth keeping.
var greetingPrefixes = []string{
	"this is trinity",
	"dan hasn't picked up",
	"dan asked me to call",
}

// StructuredPayload is the optional JSON-string transcription payload;
// when absent the webhook's plain-text field is used instead.
type StructuredPayload struct {
	Text string `json:"text"`
}

// ParseContent extracts the utterance text from either the structured
// JSON payload or a plain-text fallback field.
func ParseContent(jsonPayload, plainText string) string {
	if jsonPayload != "" {
		var p StructuredPayload
		if err := json.Unmarshal([]byte(jsonPayload), &p); err == nil && p.Text != "" {
			return p.Text
		}
	}
	return plainText
}

// TrackRole maps the telephony provider's track names to this module's
// caller/assistant roles.
func TrackRole(track string) callstate.Role {
	if track == "outbound_track" {
		return callstate.RoleAssistant
	}
	return callstate.RoleCaller
}

// isGreetingEcho reports whether text looks like the gateway's own
// greeting being echoed back by the transcription service.
func isGreetingEcho(text string) bool {
	norm := strings.ToLower(text)
	for _, p := range greetingPrefixes {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

// Ingest appends one transcription-content event to the call's
// transcript, dropping the first assistant utterance if it echoes the
// greeting.
func Ingest(state *callstate.CallState, role callstate.Role, text string, ts time.Time) {
	state.Lock()
	defer state.Unlock()

	if role == callstate.RoleAssistant && !state.Greeting.SkippedUpstreamGreeting && isGreetingEcho(text) {
		first := true
		for _, e := range state.Events {
			if e.Role == callstate.RoleAssistant {
				first = false
				break
			}
		}
		if first {
			state.Greeting.SkippedUpstreamGreeting = true
			return
		}
	}
	state.AppendEvent(role, text, ts)
}

// Render sorts events by timestamp and coalesces adjacent same-role
// entries within CoalesceWindow into <Role>:\n<text> blocks separated
// by a blank line.
func Render(events []callstate.Event) string {
	sorted := make([]callstate.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TS.Before(sorted[j].TS)
	})

	type turn struct {
		role callstate.Role
		text strings.Builder
		last time.Time
	}

	var turns []*turn
	for _, e := range sorted {
		if len(turns) > 0 {
			cur := turns[len(turns)-1]
			if cur.role == e.Role && e.TS.Sub(cur.last) <= CoalesceWindow {
				sep := " "
				existing := cur.text.String()
				if strings.HasSuffix(existing, "-") {
					sep = ""
				}
				cur.text.WriteString(sep)
				cur.text.WriteString(e.Text)
				cur.last = e.TS
				continue
			}
		}
		t := &turn{role: e.Role, last: e.TS}
		t.text.WriteString(e.Text)
		turns = append(turns, t)
	}

	blocks := make([]string, 0, len(turns))
	for _, t := range turns {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s", roleLabel(t.role), t.text.String()))
	}
	return strings.Join(blocks, "\n\n")
}

func roleLabel(r callstate.Role) string {
	switch r {
	case callstate.RoleCaller:
		return "Caller"
	case callstate.RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}
