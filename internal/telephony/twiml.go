package telephony

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// TwiML element structs, adapted from the teacher module's stt/tts
// GatherElement/SayElement/ResponseElement pattern: the document is
// built as a typed tree and marshaled with encoding/xml rather than
// assembled by string concatenation.

type startElement struct {
	XMLName       xml.Name             `xml:"Start"`
	Record        *recordElement       `xml:",omitempty"`
	Transcription *transcriptionElement `xml:",omitempty"`
}

type recordElement struct {
	XMLName                  xml.Name `xml:"Record"`
	RecordingStatusCallback  string   `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingChannels        string   `xml:"recordingChannels,attr,omitempty"`
}

type transcriptionElement struct {
	XMLName         xml.Name `xml:"Transcription"`
	StatusCallbackURL string `xml:"statusCallbackUrl,attr,omitempty"`
	Track           string   `xml:"track,attr,omitempty"`
}

type connectElement struct {
	XMLName xml.Name      `xml:"Connect"`
	Stream  *streamElement `xml:",omitempty"`
}

type streamElement struct {
	XMLName xml.Name     `xml:"Stream"`
	URL     string       `xml:"url,attr"`
	Params  []paramElement `xml:"Parameter"`
}

type paramElement struct {
	XMLName xml.Name `xml:"Parameter"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

type sayElement struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type redirectElement struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type playElement struct {
	XMLName xml.Name `xml:"Play"`
	Digits  string   `xml:"digits,attr,omitempty"`
}

type pauseElement struct {
	XMLName xml.Name `xml:"Pause"`
	Length  string   `xml:"length,attr,omitempty"`
}

type hangupElement struct {
	XMLName xml.Name `xml:"Hangup"`
}

type responseElement struct {
	XMLName  xml.Name         `xml:"Response"`
	Start    *startElement    `xml:",omitempty"`
	Connect  *connectElement  `xml:",omitempty"`
	Play     *playElement     `xml:",omitempty"`
	Pause    *pauseElement    `xml:",omitempty"`
	Say      *sayElement      `xml:",omitempty"`
	Redirect *redirectElement `xml:",omitempty"`
	Hangup   *hangupElement   `xml:",omitempty"`
}

// StreamParams are the custom parameters attached to the media-stream
// connect document, echoed back verbatim on the "start" event.
type StreamParams struct {
	From          string
	To            string
	CallerName    string
	Reason        string
	Theme         string
	RecipientName string

	// RecordingCallbackURL and TranscriptionCallbackURL, when set, make
	// the document open dual-channel recording and both-track
	// transcription (via <Start>) before connecting the media socket, so
	// the provider has somewhere to post recording/transcription events
	// for this call. Left empty, no <Start> element is emitted.
	RecordingCallbackURL      string
	TranscriptionCallbackURL string
}

func render(r *responseElement) string {
	b, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
	}
	return xml.Header + string(b)
}

// BuildMediaStreamTwiML builds the inbound/outbound connect document
// that opens the bidirectional media WebSocket, carrying caller
// context as custom stream parameters so the "start" event delivers
// them without a second round trip.
func BuildMediaStreamTwiML(streamURL string, p StreamParams) string {
	params := []paramElement{
		{Name: "from", Value: p.From},
		{Name: "to", Value: p.To},
	}
	if p.CallerName != "" {
		params = append(params, paramElement{Name: "callerName", Value: p.CallerName})
	}
	if p.Reason != "" {
		params = append(params, paramElement{Name: "reason", Value: p.Reason})
	}
	if p.Theme != "" {
		params = append(params, paramElement{Name: "theme", Value: p.Theme})
	}
	if p.RecipientName != "" {
		params = append(params, paramElement{Name: "recipientName", Value: p.RecipientName})
	}

	resp := &responseElement{
		Start:   buildStartElement(p),
		Connect: &connectElement{
			Stream: &streamElement{URL: streamURL, Params: params},
		},
	}
	return render(resp)
}

// buildStartElement builds the <Start><Record/><Transcription/></Start>
// pair that must precede <Connect> for the provider to record and
// transcribe a call the gateway itself puts on the media socket — there
// is no other point in the call's lifecycle where recording or
// transcription gets turned on. Returns nil when neither callback URL is
// configured, so calls that don't want either leave <Start> out entirely.
func buildStartElement(p StreamParams) *startElement {
	if p.RecordingCallbackURL == "" && p.TranscriptionCallbackURL == "" {
		return nil
	}
	start := &startElement{}
	if p.RecordingCallbackURL != "" {
		start.Record = &recordElement{
			RecordingStatusCallback: p.RecordingCallbackURL,
			RecordingChannels:       "dual",
		}
	}
	if p.TranscriptionCallbackURL != "" {
		start.Transcription = &transcriptionElement{
			StatusCallbackURL: p.TranscriptionCallbackURL,
			Track:             "both_tracks",
		}
	}
	return start
}

// BuildRedirectTwiML builds a hand-off document that points the call at
// a new URL, used for generic call-flow redirects where the next step
// is itself described by TwiML at another endpoint.
func BuildRedirectTwiML(redirectURL string) string {
	resp := &responseElement{
		Redirect: &redirectElement{Method: "POST", URL: redirectURL},
	}
	return render(resp)
}

// FormatPlayDigits converts a comma-separated digit list (the operator's
// AUTO_DNC_DIGITS setting, e.g. "9,8" for a two-level IVR removal menu)
// into the Play verb's digits syntax, inserting "w" half-second-pause
// characters between groups so a multi-digit sequence lands with a gap
// instead of firing back-to-back.
func FormatPlayDigits(rawDigits string, gap time.Duration) string {
	groups := strings.Split(rawDigits, ",")
	for i, g := range groups {
		groups[i] = strings.TrimSpace(g)
	}
	return strings.Join(groups, strings.Repeat("w", wCount(gap)))
}

func wCount(gap time.Duration) int {
	n := int(gap / (500 * time.Millisecond))
	if n < 1 {
		n = 1
	}
	return n
}

// AutoPressRedirectURL builds the URL the auto-press engine hands to the
// call-control REST client's Redirect call: the provider fetches this
// URL for new instructions, carrying the classified DTMF digits as a
// query parameter so the handler that serves it needs no call state.
func AutoPressRedirectURL(base, digits string) string {
	if digits == "" {
		return base
	}
	return fmt.Sprintf("%s?digits=%s", base, digits)
}

// BuildAutoPressHangupTwiML builds the document served at the auto-press
// redirect URL: it plays the classified digit as a DTMF tone (the Play
// verb's "digits" attribute emits tones without an audio file), pauses,
// optionally speaks a removal line, then hangs up.
func BuildAutoPressHangupTwiML(digits, sayLine string, pause time.Duration) string {
	resp := &responseElement{
		Play:   &playElement{Digits: digits},
		Pause:  &pauseElement{Length: fmt.Sprintf("%d", pauseSeconds(pause))},
		Hangup: &hangupElement{},
	}
	if sayLine != "" {
		resp.Say = &sayElement{Text: sayLine}
	}
	return render(resp)
}

func pauseSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// BuildSayAndHangupTwiML builds a hand-off document that speaks one line
// and hangs up immediately, used when the gateway itself (rather than
// the model) must end the call without a TwiML-level DTMF step.
func BuildSayAndHangupTwiML(line string) string {
	resp := &responseElement{
		Say:    &sayElement{Text: line},
		Hangup: &hangupElement{},
	}
	return render(resp)
}
