package dialog

import (
	"fmt"
	"strings"
	"time"
)

// Everything returned to the caller platform is spoken aloud. No error
// codes, stack traces, or JSON may ever appear in these strings.

const (
	msgDidNotCatch    = "I'm sorry, I didn't catch that. Could you say it again?"
	msgTechnicalIssue = "I'm sorry, we're having a technical issue on our end. Could you try again in a moment?"
	msgContactOffice  = "I'm sorry, I'm not able to finish scheduling over the phone right now. Please give our office a call during business hours and our staff will take care of you."

	msgAskName       = "May I have your full name, please?"
	msgAskDOB        = "Thank you. What is your date of birth?"
	msgRepromptDOB   = "I'm sorry, I couldn't make out that date. Could you give me your date of birth again, with the month, day, and year?"
	msgAskPhone      = "Got it. What's the best phone number to reach you?"
	msgRepromptPhone = "I'm sorry, I didn't get a full phone number. Could you say it again, digit by digit?"
	msgAskEmail      = "And what's your email address?"
	msgRepromptEmail = "I'm sorry, I didn't catch a valid email address. Could you spell it out for me?"

	msgIdentityAmbiguous = "I found more than one patient matching that name and date of birth, so to protect your privacy I can't book this over the phone. Please call our office directly and our staff will help you."
	msgCreateFailed      = "I wasn't able to set up your patient record just now. Please call our office directly and our staff will get you registered."

	msgAskService     = "What can we help you with today?"
	msgClarifyService = "I'm sorry, I'm not sure which of our services that would be. Could you describe what you need in a different way?"

	msgAskDay      = "What day would you like to come in?"
	msgRepromptDay = "I'm sorry, I couldn't work out which day you meant. Could you give me a day, like a date or something like next Tuesday?"

	msgBookingFailed = "I'm sorry, I wasn't able to finish booking that appointment. Our staff will follow up with you, or you can call the office directly."
)

// dayPart buckets for coarse time-of-day filtering.
const (
	dayPartMorning   = "morning"
	dayPartAfternoon = "afternoon"
	dayPartEvening   = "evening"
)

func confirmNamePrompt(name string) string {
	return fmt.Sprintf("I have your name as %s. Is that right?", name)
}

func confirmPhonePrompt(digits string) string {
	return fmt.Sprintf("I have your phone number as %s. Is that correct?", speakDigits(digits))
}

func confirmEmailPrompt(email string) string {
	return fmt.Sprintf("I have your email as %s. Is that correct?", email)
}

// speakDigits spaces out a number so TTS reads it digit by digit.
func speakDigits(digits string) string {
	runes := strings.Split(digits, "")
	return strings.Join(runes, " ")
}

func summaryFallback(c CollectedFields) string {
	return fmt.Sprintf(
		"Let me make sure I have everything. Your name is %s, date of birth %s, phone %s, and email %s. Is all of that correct?",
		c.Name, spokenDate(c.DateOfBirth), speakDigits(c.Phone), c.Email,
	)
}

func spokenDate(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("January 2, 2006")
}

// slotDisplay renders one candidate slot the way it is spoken to the
// caller. Selection later matches against this exact string.
func slotDisplay(start time.Time, providerName string) string {
	s := fmt.Sprintf("%s at %s", start.Format("Monday, January 2"), start.Format("3:04 PM"))
	if providerName != "" {
		s += " with " + providerName
	}
	return s
}

// formatOffer builds the spoken presentation of the offered slots.
func formatOffer(spokenService string, slots []OfferedSlot) string {
	var sb strings.Builder
	if spokenService != "" {
		fmt.Fprintf(&sb, "For %s, here's what I have: ", spokenService)
	} else {
		sb.WriteString("Here's what I have: ")
	}
	for i, slot := range slots {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "option %d, %s", i+1, slot.Display)
	}
	sb.WriteString(". Which of those works best for you?")
	return sb.String()
}

func slotTakenMessage(slots []OfferedSlot) string {
	return "I'm so sorry, it looks like that time was just taken. " +
		formatOffer("", slots) +
		" Or I can look at a different day for you."
}

func bookedMessage(slot OfferedSlot) string {
	return fmt.Sprintf("You're all set. I've booked you for %s. We look forward to seeing you!", slot.Display)
}

func noSlotsMessage(date string) string {
	return fmt.Sprintf("I'm sorry, I don't see any openings on %s. Would another day work?", spokenDate(date))
}
