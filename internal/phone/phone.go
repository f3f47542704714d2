// Package phone implements the caller-id normalization rules the rest
// of this module depends on: last-10-digit matching for VIP lookup and
// the DNC rate-limit key, and last-4 for the only digits the model may
// confirm aloud.
package phone

import "strings"

// Digits strips everything but [0-9] from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Last10 returns the last ten digits of the digit string extracted from
// p, or empty when p has no digits.
func Last10(p string) string {
	d := Digits(p)
	if len(d) <= 10 {
		return d
	}
	return d[len(d)-10:]
}

// Last4 returns the last four digits, the only digits the model is
// permitted to confirm aloud.
func Last4(p string) string {
	d := Digits(p)
	if len(d) <= 4 {
		return d
	}
	return d[len(d)-4:]
}

// NormalizeE164US normalizes a phone string to E.164 with a US default
// country code, for the direct-phone outbound-call path. Returns "" for
// anything that isn't exactly 10 digits, 11 digits starting with "1", or
// already "+"-prefixed — a call must never be placed against a number
// this function could only guess at.
func NormalizeE164US(raw string) string {
	d := Digits(raw)
	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	case strings.HasPrefix(raw, "+") && d != "":
		return "+" + d
	default:
		return ""
	}
}
