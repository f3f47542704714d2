package telephony

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildMediaStreamTwiMLIncludesParams(t *testing.T) {
	doc := BuildMediaStreamTwiML("wss://gateway.example/media", StreamParams{
		From:  "+15551234567",
		To:    "+15557654321",
		Theme: "invoice follow-up",
	})
	assert.Contains(t, doc, `<Stream url="wss://gateway.example/media">`)
	assert.Contains(t, doc, `name="theme"`)
	assert.Contains(t, doc, `value="invoice follow-up"`)
}

func TestBuildMediaStreamTwiMLWithoutCallbacksOmitsStart(t *testing.T) {
	doc := BuildMediaStreamTwiML("wss://gateway.example/media", StreamParams{From: "+15551234567", To: "+15557654321"})
	assert.NotContains(t, doc, "<Start>")
}

func TestBuildMediaStreamTwiMLStartsRecordingAndTranscriptionBeforeConnect(t *testing.T) {
	doc := BuildMediaStreamTwiML("wss://gateway.example/media", StreamParams{
		From:                     "+15551234567",
		To:                       "+15557654321",
		RecordingCallbackURL:     "https://gateway.example/voice/recording",
		TranscriptionCallbackURL: "https://gateway.example/voice/transcription",
	})
	assert.Contains(t, doc, `recordingStatusCallback="https://gateway.example/voice/recording"`)
	assert.Contains(t, doc, `recordingChannels="dual"`)
	assert.Contains(t, doc, `statusCallbackUrl="https://gateway.example/voice/transcription"`)
	assert.Contains(t, doc, `track="both_tracks"`)
	assert.Less(t, strings.Index(doc, "<Start>"), strings.Index(doc, "<Connect>"))
}

func TestBuildRedirectTwiML(t *testing.T) {
	doc := BuildRedirectTwiML("https://gateway.example/twiml/next")
	assert.Contains(t, doc, "<Redirect")
	assert.Contains(t, doc, "https://gateway.example/twiml/next")
}

func TestAutoPressRedirectURLWithDigits(t *testing.T) {
	assert.Equal(t, "https://gateway.example/autopress?digits=98", AutoPressRedirectURL("https://gateway.example/autopress", "98"))
}

func TestBuildAutoPressHangupTwiMLWithSayLine(t *testing.T) {
	doc := BuildAutoPressHangupTwiML("9", "You have been removed. Goodbye.", 1500*time.Millisecond)
	assert.Contains(t, doc, `digits="9"`)
	assert.Contains(t, doc, `length="2"`)
	assert.Contains(t, doc, "<Say>You have been removed. Goodbye.</Say>")
	assert.Contains(t, doc, "<Hangup")
}

func TestBuildAutoPressHangupTwiMLWithoutSayLine(t *testing.T) {
	doc := BuildAutoPressHangupTwiML("9", "", time.Second)
	assert.NotContains(t, doc, "<Say>")
	assert.Contains(t, doc, `digits="9"`)
}

func TestFormatPlayDigitsSingle(t *testing.T) {
	assert.Equal(t, "9", FormatPlayDigits("9", 700*time.Millisecond))
}

func TestFormatPlayDigitsMultiInsertsGap(t *testing.T) {
	assert.Equal(t, "9w8", FormatPlayDigits("9,8", 700*time.Millisecond))
}

func TestBuildSayAndHangupTwiML(t *testing.T) {
	doc := BuildSayAndHangupTwiML("Goodbye.")
	assert.Contains(t, doc, "<Say>Goodbye.</Say>")
	assert.Contains(t, doc, "<Hangup")
}
