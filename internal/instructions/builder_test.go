package instructions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectVoiceDefault(t *testing.T) {
	rules := VoiceRules{DefaultVoice: "trinity", MaleVoice: "ballad", FemaleVoice: "shimmer"}
	voice, name := rules.SelectVoice("")
	assert.Equal(t, "trinity", voice)
	assert.Equal(t, "Trinity", name)
}

func TestSelectVoiceNamedOverride(t *testing.T) {
	rules := VoiceRules{DefaultVoice: "trinity", MaleVoice: "ballad", FemaleVoice: "shimmer"}
	voice, name := rules.SelectVoice("ballad")
	assert.Equal(t, "ballad", voice)
	assert.Equal(t, "Ballad", name)
}

func TestSelectVoiceLegacyMaleFemale(t *testing.T) {
	rules := VoiceRules{DefaultVoice: "trinity", MaleVoice: "ballad", FemaleVoice: "shimmer"}

	voice, name := rules.SelectVoice("male")
	assert.Equal(t, "ballad", voice)
	assert.Equal(t, "Ballad", name)

	voice, name = rules.SelectVoice("female")
	assert.Equal(t, "shimmer", voice)
	assert.Equal(t, "Shimmer", name)
}

func TestSelectVoiceUnrecognizedFallsBackToDefault(t *testing.T) {
	rules := VoiceRules{DefaultVoice: "trinity", MaleVoice: "ballad", FemaleVoice: "shimmer"}
	voice, name := rules.SelectVoice("not-a-real-voice")
	assert.Equal(t, "trinity", voice)
	assert.Equal(t, "Trinity", name)
}

func TestGreetingInboundVIP(t *testing.T) {
	got := GreetingInboundVIP("Trinity", "Jeff")
	assert.Equal(t, "Hi Jeff — This is Trinity, Dan's VIP Assistant. Dan hasn't picked up yet. How can I help?", got)
}

func TestGreetingOutbound(t *testing.T) {
	got := GreetingOutbound("Ballad", "Maria", "invoice follow-up")
	assert.Equal(t, "Hi Maria — this is Ballad, Dan's VIP AI assistant. Dan asked me to call about: invoice follow-up. Is now a good time?", got)
}

func TestBuildContainsIdentityLockAfterPrompt(t *testing.T) {
	doc := Build("You are the operator assistant.", nil, "Ballad", CallContext{}, 0)
	promptIdx := indexOf(doc, "You are the operator assistant.")
	lockIdx := indexOf(doc, "[IDENTITY_LOCK]")
	assert.GreaterOrEqual(t, lockIdx, 0)
	assert.Less(t, promptIdx, lockIdx)
	assert.Contains(t, doc, "Ballad")
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
