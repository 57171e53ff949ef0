package nlu

import "strings"

// Affirmation detection is deliberately a crude keyword gate, isolated here
// so it can be replaced with a real classifier without touching the dialog
// state machines.

var affirmativeWords = []string{
	"yes", "yeah", "yep", "yup", "correct", "right", "that's it",
	"exactly", "sure", "affirmative", "sounds good", "perfect",
}

var negativeWords = []string{
	"no", "nope", "nah", "wrong", "incorrect", "not right",
	"that's not", "negative",
}

// IsAffirmative reports whether the utterance confirms the previous prompt.
func IsAffirmative(utterance string) bool {
	lower := " " + strings.ToLower(strings.TrimSpace(utterance)) + " "
	for _, w := range affirmativeWords {
		if strings.Contains(lower, " "+w+" ") || strings.Contains(lower, " "+w+",") || strings.Contains(lower, " "+w+".") {
			return true
		}
	}
	return false
}

// IsNegative reports whether the utterance rejects the previous prompt.
// An utterance that is neither affirmative nor negative is treated as
// unrecognized by callers, which re-prompt.
func IsNegative(utterance string) bool {
	lower := " " + strings.ToLower(strings.TrimSpace(utterance)) + " "
	for _, w := range negativeWords {
		if strings.Contains(lower, " "+w+" ") || strings.Contains(lower, " "+w+",") || strings.Contains(lower, " "+w+".") {
			return true
		}
	}
	return false
}
