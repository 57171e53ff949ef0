package practice

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
	if digits == "" {
		return ""
	}
	return "+" + digits
}
