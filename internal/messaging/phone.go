package messaging

import "strings"

// NormalizeE164 is the single canonical form for caller identity: a leading
// "+" followed by digits only. An international "00" prefix is folded into the
// "+". Returns "" when the value holds no digits.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if !strings.HasPrefix(value, "+") && strings.HasPrefix(digits, "00") {
		digits = strings.TrimLeft(digits, "0")
	}
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
