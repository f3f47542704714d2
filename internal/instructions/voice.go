package instructions

import "strings"

// allowedVoices is the closed set of voice names the operator may select
// from.
var allowedVoices = map[string]bool{
	"trinity": true,
	"ballad":  true,
	"shimmer": true,
	"ash":     true,
	"verse":   true,
	"sage":    true,
	"coral":   true,
}

// VoiceRules carries the operator's configured defaults for voice
// selection.
type VoiceRules struct {
	DefaultVoice string
	MaleVoice    string
	FemaleVoice  string
}

// SelectVoice resolves the voice name and displayed assistant name for a
// call, applying this precedence:
//  1. VIP override (named voice from the allowed set, or legacy male/female)
//  2. operator default
//  3. unrecognized override values fall back to the default
//
// The displayed assistant name is "Trinity" unless the VIP supplied a
// recognized override, in which case it is the title-cased voice name
// that override resolved to — the name tracks whether an override was
// *honored*, not which voice ends up selected.
func (r VoiceRules) SelectVoice(vipOverride string) (voice, assistantName string) {
	def := r.DefaultVoice
	if !allowedVoices[def] {
		def = "trinity"
	}

	override := strings.ToLower(strings.TrimSpace(vipOverride))
	switch {
	case override == "":
		return def, "Trinity"
	case override == "male":
		v := r.MaleVoice
		if !allowedVoices[v] {
			return def, "Trinity"
		}
		return v, titleCase(v)
	case override == "female":
		v := r.FemaleVoice
		if !allowedVoices[v] {
			return def, "Trinity"
		}
		return v, titleCase(v)
	case allowedVoices[override]:
		return override, titleCase(override)
	default:
		return def, "Trinity"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
