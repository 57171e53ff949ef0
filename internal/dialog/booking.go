package dialog

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/clinicvoice/frontdesk/internal/ehr"
	"github.com/clinicvoice/frontdesk/internal/nlu"
	"github.com/clinicvoice/frontdesk/internal/practice"
)

const maxNoteTranscriptChars = 1500

// HandleSelectSlot matches the caller's utterance against the stored
// offer and attempts the booking. A conflict (the slot was taken between
// offer and confirmation) re-offers the same stored list; any other
// failure apologizes and leaves the state safely unchanged.
func (e *Engine) HandleSelectSlot(ctx context.Context, state *ConversationState, cfg *practice.Config, utterance string) (*ConversationState, string) {
	next := state.Clone()
	b := &next.Booking

	if b.Stage == BookingConfirmed && b.SelectedSlot != nil {
		return next, bookedMessage(*b.SelectedSlot)
	}
	if b.Stage != BookingAwaitingSelection || len(b.OfferedSlots) == 0 {
		if b.AppointmentTypeID == "" {
			return next, msgAskService
		}
		return next, msgAskDay
	}
	// Booking may not advance past the offer until the caller is
	// identified; the offer itself stays on the state.
	if next.Patient.Status != PatientIdentified {
		return next, "Before I lock that in, I just need to verify a few details. " + msgAskName
	}

	displays := make([]string, len(b.OfferedSlots))
	for i, s := range b.OfferedSlots {
		displays[i] = s.Display
	}
	idx, err := e.nlu.MatchSlot(ctx, utterance, displays)
	if err != nil {
		e.logger.Error("slot match failed", "call_id", next.CallID, "error", err)
		return next, msgTechnicalIssue
	}
	if idx == nlu.NoMatch {
		return next, "I'm sorry, I wasn't sure which time you meant. " + formatOffer("", b.OfferedSlots)
	}

	slot := b.OfferedSlots[idx]

	// Best effort; a missing transcript degrades the note, never the booking.
	transcript := fetchTranscriptWithRetry(ctx, e.transcripts, next.CallID, e.transcriptRetryDelay)

	// End time comes from the duration recorded at type resolution, which
	// is authoritative over anything the slot feed reported.
	end := slot.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)

	appt, err := e.ehr.CreateAppointment(ctx, ehr.AppointmentRequest{
		PatientID:   next.Patient.ResolvedPatientID,
		ProviderID:  slot.ProviderID,
		OperatoryID: slot.OperatoryID,
		StartTime:   slot.StartTime,
		EndTime:     end,
		Note:        bookingNote(b.AppointmentTypeName, transcript),
	})
	if err != nil {
		if ehr.IsConflict(err) {
			e.logger.Warn("slot taken between offer and confirmation",
				"call_id", next.CallID, "start", slot.StartTime, "provider_id", slot.ProviderID)
			return next, slotTakenMessage(b.OfferedSlots)
		}
		e.logger.Error("appointment create failed", "call_id", next.CallID, "error", err)
		return next, msgBookingFailed
	}

	b.Stage = BookingConfirmed
	b.SelectedSlot = &slot
	b.AppointmentID = appt.ID
	return next, bookedMessage(slot)
}

func bookingNote(typeName, transcript string) string {
	note := "Booked by phone assistant"
	if typeName != "" {
		note += ": " + typeName
	}
	if transcript != "" {
		if len(transcript) > maxNoteTranscriptChars {
			cut := maxNoteTranscriptChars
			// Back up to a rune boundary so the note stays valid UTF-8.
			for cut > 0 && !utf8.RuneStart(transcript[cut]) {
				cut--
			}
			transcript = transcript[:cut]
		}
		note += "\n\nCall transcript:\n" + transcript
	}
	return note
}
