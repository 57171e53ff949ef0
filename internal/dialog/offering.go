package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/clinicvoice/frontdesk/internal/nlu"
	"github.com/clinicvoice/frontdesk/internal/practice"
)

// HandleFindAppointmentType matches the caller's request against the
// practice's service catalog and records the resolved offering on the
// booking sub-record. The recorded duration is the authoritative value
// for all later end-time math.
func (e *Engine) HandleFindAppointmentType(ctx context.Context, state *ConversationState, cfg *practice.Config, utterance string) (*ConversationState, string) {
	next := state.Clone()

	if strings.TrimSpace(utterance) == "" {
		return next, msgAskService
	}

	offerings := cfg.ActiveOfferings()
	if len(offerings) == 0 {
		return next, msgContactOffice
	}

	catalog := make([]nlu.CatalogEntry, len(offerings))
	for i, o := range offerings {
		catalog[i] = nlu.CatalogEntry{Name: o.Name, Keywords: o.Keywords}
	}

	idx, err := e.nlu.MatchOffering(ctx, utterance, catalog)
	if err != nil {
		e.logger.Error("offering match failed", "call_id", next.CallID, "error", err)
		return next, msgTechnicalIssue
	}
	if idx == nlu.NoMatch {
		return next, msgClarifyService
	}

	matched := offerings[idx]
	if matched.ID != next.Booking.AppointmentTypeID {
		// A new service invalidates any slots offered for the old one.
		next.Booking = BookingState{Stage: BookingIdle}
	}
	next.Booking.AppointmentTypeID = matched.ID
	next.Booking.AppointmentTypeName = matched.Name
	next.Booking.SpokenName = matched.Spoken()
	next.Booking.DurationMinutes = matched.DurationMinutes

	reply := fmt.Sprintf("Of course, I can get you scheduled for %s.", matched.Spoken())
	if next.Patient.Status == PatientIdentified {
		reply += " " + msgAskDay
	}
	return next, reply
}
