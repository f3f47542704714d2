// Package telephony implements the upstream half of the bridge: the
// telephony provider's media WebSocket and its call-control REST API.
// The socket handling is adapted from the teacher module's
// transport/provider.go Connection type; the REST client is adapted
// from internal/client/client.go.
package telephony

import "encoding/json"

// EventKind is a closed variant over the telephony socket's inbound
// message types.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventConnected
	EventStart
	EventMedia
	EventStop
	EventDTMF
)

// StartParams carries the custom parameters the telephony provider
// attaches to the "start" event.
type StartParams struct {
	StreamSID    string
	CallSID      string
	From         string
	To           string
	CallerName   string
	Reason       string
	Theme        string
	RecipientName string
}

// Event is the tagged variant for one inbound telephony message. Only
// the field matching Kind is meaningful.
type Event struct {
	Kind        EventKind
	Start       StartParams
	MediaPayload string // base64 mu-law, EventMedia only
	DTMFDigit   string
}

// wireMessage mirrors the teacher's mediaMessage/startMessage/mediaPayload
// structs, extended with the custom parameters that carry call context
// (caller name, outbound reason/theme/recipient) across the stream start.
type wireMessage struct {
	Event string          `json:"event"`
	Start *wireStart       `json:"start,omitempty"`
	Media *wireMedia       `json:"media,omitempty"`
	DTMF  *wireDTMF        `json:"dtmf,omitempty"`
}

type wireStart struct {
	StreamSID    string            `json:"streamSid"`
	CallSID      string            `json:"callSid"`
	CustomParams map[string]string `json:"customParameters"`
}

type wireMedia struct {
	Payload string `json:"payload"`
}

type wireDTMF struct {
	Digit string `json:"digit"`
}

// ParseEvent decodes one inbound telephony socket message. Malformed
// JSON and start/media/dtmf events missing their body are reported via
// the error return so the caller can drop them and count them; an
// unrecognized event name returns EventUnknown with a nil error.
func ParseEvent(raw []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, err
	}

	switch msg.Event {
	case "connected":
		return Event{Kind: EventConnected}, nil
	case "start":
		if msg.Start == nil {
			return Event{}, errMalformed("start")
		}
		p := msg.Start.CustomParams
		return Event{
			Kind: EventStart,
			Start: StartParams{
				StreamSID:     msg.Start.StreamSID,
				CallSID:       msg.Start.CallSID,
				From:          p["from"],
				To:            p["to"],
				CallerName:    p["callerName"],
				Reason:        p["reason"],
				Theme:         p["theme"],
				RecipientName: p["recipientName"],
			},
		}, nil
	case "media":
		if msg.Media == nil {
			return Event{}, errMalformed("media")
		}
		return Event{Kind: EventMedia, MediaPayload: msg.Media.Payload}, nil
	case "stop":
		return Event{Kind: EventStop}, nil
	case "dtmf":
		if msg.DTMF == nil {
			return Event{}, errMalformed("dtmf")
		}
		return Event{Kind: EventDTMF, DTMFDigit: msg.DTMF.Digit}, nil
	default:
		return Event{Kind: EventUnknown}, nil
	}
}

type malformedError string

func (e malformedError) Error() string { return "telephony: malformed " + string(e) + " event" }

func errMalformed(kind string) error { return malformedError(kind) }
