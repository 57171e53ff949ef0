// Package dialog implements the conversation orchestration core for the
// voice booking assistant. Each tool invocation arrives with no execution
// context; all dialogue progress is reconstructed from persisted state.
package dialog

import "time"

// PatientStatus tracks the identification sub-machine.
type PatientStatus string

const (
	PatientAwaitingIdentifier PatientStatus = "awaiting_identifier"
	PatientCollectingInfo     PatientStatus = "collecting_new_patient_info"
	PatientConfirmingInfo     PatientStatus = "confirming_collected_info"
	PatientSearchingEHR       PatientStatus = "searching_ehr"
	PatientCreatingInEHR      PatientStatus = "creating_in_ehr"
	PatientIdentified         PatientStatus = "identified"
	PatientFailed             PatientStatus = "failed"
)

// Terminal reports whether the identification sub-machine is done.
func (s PatientStatus) Terminal() bool {
	return s == PatientIdentified || s == PatientFailed
}

// PatientField names one independently collectable identifying field.
type PatientField string

const (
	FieldName  PatientField = "name"
	FieldDOB   PatientField = "dob"
	FieldPhone PatientField = "phone"
	FieldEmail PatientField = "email"
)

// CollectedFields holds the partially collected patient identity. Each
// field is independently settable and clearable.
type CollectedFields struct {
	Name        string `json:"name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"` // normalized "2006-01-02"
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// PatientState is the identification sub-record.
type PatientState struct {
	Status    PatientStatus   `json:"status"`
	Collected CollectedFields `json:"collected"`
	// NextField is the field the assistant will ask for (or is confirming).
	NextField PatientField `json:"next_field,omitempty"`
	// Confirming is true while the just-collected NextField awaits a
	// yes/no from the caller.
	Confirming bool `json:"confirming,omitempty"`
	// ResolvedPatientID is set only on successful identify/create.
	ResolvedPatientID string `json:"resolved_patient_id,omitempty"`
}

// BookingStage tracks the booking sub-machine.
type BookingStage string

const (
	BookingIdle              BookingStage = "idle"
	BookingPresentingSlots   BookingStage = "presenting_slots"
	BookingAwaitingSelection BookingStage = "awaiting_slot_confirmation"
	BookingConfirmed         BookingStage = "confirmed"
)

// OfferedSlot is one candidate slot as presented to the caller. The
// Display string is what was spoken; selection matches against it.
type OfferedSlot struct {
	Display      string    `json:"display"`
	StartTime    time.Time `json:"start_time"`
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name,omitempty"`
	OperatoryID  string    `json:"operatory_id,omitempty"`
}

// BookingState is the booking sub-record.
type BookingState struct {
	AppointmentTypeID   string       `json:"appointment_type_id,omitempty"`
	AppointmentTypeName string       `json:"appointment_type_name,omitempty"`
	SpokenName          string       `json:"spoken_name,omitempty"`
	DurationMinutes     int          `json:"duration_minutes,omitempty"`
	Stage               BookingStage `json:"stage"`
	// RequestedDate is the normalized target date "2006-01-02".
	RequestedDate string `json:"requested_date,omitempty"`
	// DayPart is the requested coarse bucket: morning, afternoon, evening.
	DayPart string `json:"day_part,omitempty"`
	// OfferedSlots is the snapshot presented to the caller. Immutable once
	// produced for a discovery turn; selection references these entries
	// only, never a freshly re-derived list.
	OfferedSlots []OfferedSlot `json:"offered_slots,omitempty"`
	SelectedSlot *OfferedSlot  `json:"selected_slot,omitempty"`
	// AppointmentID is set once the EHR accepts the booking.
	AppointmentID string `json:"appointment_id,omitempty"`
}

// ConversationState is the durable per-call record of dialogue progress.
type ConversationState struct {
	CallID string `json:"call_id"`
	// PracticeID is set on the first tool invocation, immutable after.
	PracticeID string       `json:"practice_id,omitempty"`
	Patient    PatientState `json:"patient"`
	Booking    BookingState `json:"booking"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// DefaultState returns the initial state for a new call id.
func DefaultState(callID string) *ConversationState {
	return &ConversationState{
		CallID: callID,
		Patient: PatientState{
			Status: PatientAwaitingIdentifier,
		},
		Booking: BookingState{
			Stage: BookingIdle,
		},
	}
}

// Clone returns a deep copy. Handlers derive their next state from a clone
// and never mutate the loaded snapshot in place.
func (s *ConversationState) Clone() *ConversationState {
	out := *s
	if s.Booking.OfferedSlots != nil {
		out.Booking.OfferedSlots = make([]OfferedSlot, len(s.Booking.OfferedSlots))
		copy(out.Booking.OfferedSlots, s.Booking.OfferedSlots)
	}
	if s.Booking.SelectedSlot != nil {
		sel := *s.Booking.SelectedSlot
		out.Booking.SelectedSlot = &sel
	}
	return &out
}

// Done reports whether the conversation has reached a terminal outcome.
func (s *ConversationState) Done() bool {
	return s.Booking.Stage == BookingConfirmed || s.Patient.Status == PatientFailed
}
