package dialog

import (
	"context"
	"strings"

	"github.com/clinicvoice/frontdesk/internal/ehr"
	"github.com/clinicvoice/frontdesk/internal/nlu"
	"github.com/clinicvoice/frontdesk/internal/practice"
)

// HandleIdentify drives the patient identification sub-machine one turn
// forward. It returns the next state and the text to speak; all failures
// are converted into speakable re-prompts.
func (e *Engine) HandleIdentify(ctx context.Context, state *ConversationState, cfg *practice.Config, utterance string) (*ConversationState, string) {
	next := state.Clone()

	switch next.Patient.Status {
	case PatientIdentified:
		return next, e.afterIdentified(next)

	case PatientFailed:
		return next, msgContactOffice

	case PatientAwaitingIdentifier:
		// The very first turn always asks for identity; caller
		// recognition, if any, happens upstream of this core.
		next.Patient.Status = PatientCollectingInfo
		next.Patient.NextField = FieldName
		next.Patient.Confirming = false
		return next, msgAskName

	case PatientCollectingInfo:
		return e.collectField(ctx, next, utterance)

	case PatientConfirmingInfo:
		return e.confirmSummary(ctx, next, cfg, utterance)

	default:
		e.logger.Warn("unknown patient status", "call_id", next.CallID, "status", next.Patient.Status)
		next.Patient = PatientState{Status: PatientAwaitingIdentifier}
		return next, msgAskName
	}
}

// collectField handles one turn of the field collection sub-sequence:
// name, confirm name, date of birth, phone, confirm phone, email,
// confirm email. A denied confirmation clears only the field being
// confirmed and re-asks for it.
func (e *Engine) collectField(ctx context.Context, next *ConversationState, utterance string) (*ConversationState, string) {
	p := &next.Patient

	if p.Confirming {
		// A denial wins even when the phrasing also contains an
		// affirmative word ("no, that's not right").
		if nlu.IsNegative(utterance) || !nlu.IsAffirmative(utterance) {
			clearField(&p.Collected, p.NextField)
			p.Confirming = false
			return next, askFieldPrompt(p.NextField)
		}
		p.Confirming = false
		switch p.NextField {
		case FieldName:
			p.NextField = FieldDOB
			return next, msgAskDOB
		case FieldPhone:
			p.NextField = FieldEmail
			return next, msgAskEmail
		case FieldEmail:
			p.Status = PatientConfirmingInfo
			p.NextField = ""
			return next, e.collectedSummary(ctx, p.Collected)
		default:
			return next, askFieldPrompt(p.NextField)
		}
	}

	switch p.NextField {
	case FieldName:
		name := cleanName(utterance)
		if name == "" {
			return next, msgDidNotCatch + " " + msgAskName
		}
		p.Collected.Name = name
		p.Confirming = true
		return next, confirmNamePrompt(name)

	case FieldDOB:
		dob, err := e.nlu.NormalizeBirthDate(ctx, utterance)
		if err != nil {
			e.logger.Error("birth date normalization failed", "call_id", next.CallID, "error", err)
			return next, msgRepromptDOB
		}
		if dob == "" {
			return next, msgRepromptDOB
		}
		// No spoken confirmation for the date of birth: the value is
		// already validated, and it is recited in the final summary.
		p.Collected.DateOfBirth = dob
		p.NextField = FieldPhone
		return next, msgAskPhone

	case FieldPhone:
		digits := extractDigits(utterance)
		if len(digits) < 10 {
			return next, msgRepromptPhone
		}
		p.Collected.Phone = digits
		p.Confirming = true
		return next, confirmPhonePrompt(digits)

	case FieldEmail:
		email := normalizeSpokenEmail(utterance)
		if !plausibleEmail(email) {
			return next, msgRepromptEmail
		}
		p.Collected.Email = email
		p.Confirming = true
		return next, confirmEmailPrompt(email)

	default:
		p.NextField = FieldName
		return next, msgAskName
	}
}

// confirmSummary handles the final full-record confirmation. A negative
// answer resets the whole sub-record and restarts collection; anything
// else re-reads the summary.
func (e *Engine) confirmSummary(ctx context.Context, next *ConversationState, cfg *practice.Config, utterance string) (*ConversationState, string) {
	switch {
	case nlu.IsNegative(utterance):
		next.Patient = PatientState{
			Status:    PatientCollectingInfo,
			NextField: FieldName,
		}
		return next, "No problem, let's start over. " + msgAskName

	case nlu.IsAffirmative(utterance):
		return e.resolveInEHR(ctx, next)

	default:
		return next, e.collectedSummary(ctx, next.Patient.Collected)
	}
}

// resolveInEHR searches the scheduling system by name and filters by an
// exact date-of-birth match. Zero matches registers a new patient; one
// match identifies; two or more is terminal, because ambiguous identity
// over voice is a privacy boundary rather than a disambiguation prompt.
func (e *Engine) resolveInEHR(ctx context.Context, next *ConversationState) (*ConversationState, string) {
	p := &next.Patient
	first, last := splitName(p.Collected.Name)

	p.Status = PatientSearchingEHR
	results, err := e.ehr.SearchPatients(ctx, ehr.PatientSearchQuery{FirstName: first, LastName: last})
	if err != nil {
		e.logger.Error("patient search failed", "call_id", next.CallID, "error", err)
		p.Status = PatientConfirmingInfo
		return next, msgTechnicalIssue
	}

	var matched []ehr.Patient
	for _, r := range results {
		if r.DateOfBirth == p.Collected.DateOfBirth {
			matched = append(matched, r)
		}
	}

	switch len(matched) {
	case 0:
		p.Status = PatientCreatingInEHR
		created, err := e.ehr.CreatePatient(ctx, ehr.Patient{
			FirstName:   first,
			LastName:    last,
			DateOfBirth: p.Collected.DateOfBirth,
			Phone:       p.Collected.Phone,
			Email:       p.Collected.Email,
		})
		if err != nil {
			e.logger.Error("patient create failed", "call_id", next.CallID, "error", err)
			p.Status = PatientFailed
			return next, msgCreateFailed
		}
		p.Status = PatientIdentified
		p.ResolvedPatientID = created.ID
		return next, "You're all set, I've got your details. " + e.afterIdentified(next)

	case 1:
		p.Status = PatientIdentified
		p.ResolvedPatientID = matched[0].ID
		return next, "Thank you, I found your record. " + e.afterIdentified(next)

	default:
		p.Status = PatientFailed
		p.ResolvedPatientID = ""
		return next, msgIdentityAmbiguous
	}
}

// afterIdentified picks the next prompt once identification is done.
func (e *Engine) afterIdentified(next *ConversationState) string {
	if next.Booking.AppointmentTypeID == "" {
		return msgAskService
	}
	if next.Booking.Stage == BookingAwaitingSelection && len(next.Booking.OfferedSlots) > 0 {
		return formatOffer(next.Booking.SpokenName, next.Booking.OfferedSlots)
	}
	return msgAskDay
}

func askFieldPrompt(f PatientField) string {
	switch f {
	case FieldName:
		return msgAskName
	case FieldDOB:
		return msgAskDOB
	case FieldPhone:
		return msgAskPhone
	case FieldEmail:
		return msgAskEmail
	default:
		return msgAskName
	}
}

func clearField(c *CollectedFields, f PatientField) {
	switch f {
	case FieldName:
		c.Name = ""
	case FieldDOB:
		c.DateOfBirth = ""
	case FieldPhone:
		c.Phone = ""
	case FieldEmail:
		c.Email = ""
	}
}

// collectedSummary recites everything collected and asks for one final
// yes/no. Generation is delegated to the language model with a canned
// fallback, so a model outage never blocks identification.
func (e *Engine) collectedSummary(ctx context.Context, c CollectedFields) string {
	text, err := e.nlu.ConfirmationText(ctx, nlu.ConfirmationContext{
		Purpose: "patient info summary",
		Facts: []string{
			"name: " + c.Name,
			"date of birth: " + spokenDate(c.DateOfBirth),
			"phone: " + speakDigits(c.Phone),
			"email: " + c.Email,
		},
	})
	if err != nil || strings.TrimSpace(text) == "" {
		return summaryFallback(c)
	}
	return text
}

func cleanName(utterance string) string {
	name := strings.TrimSpace(utterance)
	name = strings.TrimSuffix(name, ".")
	for _, prefix := range []string{"my name is ", "this is ", "it's ", "i'm ", "i am "} {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
		}
	}
	return name
}

// splitName breaks a spoken full name into first and last. Everything
// after the first token is the last name; a single token is treated as a
// last name, since that is what the scheduling search keys on.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func extractDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()
	// Strip a leading country code so ten-digit US numbers compare stably.
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// normalizeSpokenEmail undoes the common transcription of "at" and "dot".
func normalizeSpokenEmail(utterance string) string {
	s := strings.ToLower(strings.TrimSpace(utterance))
	s = strings.TrimSuffix(s, ".")
	s = strings.ReplaceAll(s, " at ", "@")
	s = strings.ReplaceAll(s, " dot ", ".")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

func plausibleEmail(s string) bool {
	at := strings.Index(s, "@")
	if at < 1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
