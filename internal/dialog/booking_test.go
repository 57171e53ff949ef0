package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicvoice/frontdesk/internal/ehr"
)

func offeredState(t *testing.T) *ConversationState {
	t.Helper()
	loc := chicago(t)
	state := identifiedState("call-1")
	state.Booking.RequestedDate = "2026-03-10"
	state.Booking.Stage = BookingAwaitingSelection
	state.Booking.OfferedSlots = []OfferedSlot{
		{
			Display:      "Tuesday, March 10 at 9:00 AM with Dr. Alvarez",
			StartTime:    time.Date(2026, 3, 10, 9, 0, 0, 0, loc),
			ProviderID:   "prov-1",
			ProviderName: "Dr. Alvarez",
			OperatoryID:  "op-1",
		},
		{
			Display:      "Tuesday, March 10 at 10:30 AM with Dr. Alvarez",
			StartTime:    time.Date(2026, 3, 10, 10, 30, 0, 0, loc),
			ProviderID:   "prov-1",
			ProviderName: "Dr. Alvarez",
			OperatoryID:  "op-1",
		},
	}
	return state
}

func TestSelectSlotBooksFirstOption(t *testing.T) {
	ehrClient := &fakeEHR{}
	e := newTestEngine(ehrClient, &fakeNLU{})
	state := offeredState(t)

	next, reply := e.HandleSelectSlot(context.Background(), state, testPracticeConfig(), "the first one")

	require.Equal(t, BookingConfirmed, next.Booking.Stage)
	require.NotNil(t, next.Booking.SelectedSlot)
	assert.Equal(t, state.Booking.OfferedSlots[0].Display, next.Booking.SelectedSlot.Display)
	assert.Equal(t, "appt-1", next.Booking.AppointmentID)
	assert.Contains(t, reply, "Tuesday, March 10 at 9:00 AM")

	require.Equal(t, 1, ehrClient.bookCalls)
	assert.Equal(t, "pat-77", ehrClient.lastBooking.PatientID)
	assert.Equal(t, "prov-1", ehrClient.lastBooking.ProviderID)
	assert.Equal(t, "op-1", ehrClient.lastBooking.OperatoryID)
}

func TestSelectSlotEndTimeComesFromOfferingDuration(t *testing.T) {
	ehrClient := &fakeEHR{}
	e := newTestEngine(ehrClient, &fakeNLU{})
	state := offeredState(t)
	// The offering duration recorded at resolution time wins even when
	// the slot feed reported a different window.
	state.Booking.DurationMinutes = 45

	_, _ = e.HandleSelectSlot(context.Background(), state, testPracticeConfig(), "the second one")

	require.Equal(t, 1, ehrClient.bookCalls)
	start := state.Booking.OfferedSlots[1].StartTime
	assert.True(t, ehrClient.lastBooking.StartTime.Equal(start))
	assert.True(t, ehrClient.lastBooking.EndTime.Equal(start.Add(45*time.Minute)))
}

func TestSelectSlotConflictReoffersSameSnapshot(t *testing.T) {
	ehrClient := &fakeEHR{bookErr: ehr.NewError(ehr.KindConflict, "slot no longer available", nil)}
	e := newTestEngine(ehrClient, &fakeNLU{})
	state := offeredState(t)

	next, reply := e.HandleSelectSlot(context.Background(), state, testPracticeConfig(), "the first one")

	assert.Equal(t, BookingAwaitingSelection, next.Booking.Stage)
	assert.Nil(t, next.Booking.SelectedSlot)
	assert.Empty(t, next.Booking.AppointmentID)
	// The same stored offer is re-read, never a fresh query.
	assert.Equal(t, state.Booking.OfferedSlots, next.Booking.OfferedSlots)
	assert.Zero(t, ehrClient.slotCalls)
	assert.Contains(t, reply, "just taken")
	assert.Contains(t, reply, "Tuesday, March 10 at 9:00 AM")
	assert.Contains(t, reply, "Tuesday, March 10 at 10:30 AM")
}

func TestSelectSlotConflictByMessagePhrase(t *testing.T) {
	ehrClient := &fakeEHR{bookErr: errors.New("appointment slot is already booked")}
	e := newTestEngine(ehrClient, &fakeNLU{})

	next, reply := e.HandleSelectSlot(context.Background(), offeredState(t), testPracticeConfig(), "option 2")

	assert.Equal(t, BookingAwaitingSelection, next.Booking.Stage)
	assert.Contains(t, reply, "just taken")
}

func TestSelectSlotOtherFailureDoesNotRetry(t *testing.T) {
	ehrClient := &fakeEHR{bookErr: ehr.NewError(ehr.KindTransient, "upstream 500", nil)}
	e := newTestEngine(ehrClient, &fakeNLU{})

	next, reply := e.HandleSelectSlot(context.Background(), offeredState(t), testPracticeConfig(), "the first one")

	assert.Equal(t, BookingAwaitingSelection, next.Booking.Stage)
	assert.Equal(t, msgBookingFailed, reply)
	// A blind retry risks a duplicate booking.
	assert.Equal(t, 1, ehrClient.bookCalls)
}

func TestSelectSlotNoMatchKeepsOffer(t *testing.T) {
	ehrClient := &fakeEHR{}
	e := newTestEngine(ehrClient, &fakeNLU{})
	state := offeredState(t)

	next, reply := e.HandleSelectSlot(context.Background(), state, testPracticeConfig(), "hmm what about Friday at midnight")

	assert.Equal(t, BookingAwaitingSelection, next.Booking.Stage)
	assert.Equal(t, state.Booking.OfferedSlots, next.Booking.OfferedSlots)
	assert.Zero(t, ehrClient.bookCalls)
	assert.Contains(t, reply, "option 1")
}

func TestSelectSlotRequiresIdentification(t *testing.T) {
	ehrClient := &fakeEHR{}
	e := newTestEngine(ehrClient, &fakeNLU{})
	state := offeredState(t)
	state.Patient = PatientState{Status: PatientAwaitingIdentifier}

	next, reply := e.HandleSelectSlot(context.Background(), state, testPracticeConfig(), "the first one")

	assert.Equal(t, BookingAwaitingSelection, next.Booking.Stage)
	assert.Zero(t, ehrClient.bookCalls)
	assert.Contains(t, reply, msgAskName)
	// The offer survives the identity detour.
	assert.Len(t, next.Booking.OfferedSlots, 2)
}

func TestSelectSlotWithoutOfferAsksForDay(t *testing.T) {
	e := newTestEngine(&fakeEHR{}, &fakeNLU{})

	_, reply := e.HandleSelectSlot(context.Background(), identifiedState("call-1"), testPracticeConfig(), "the first one")

	assert.Equal(t, msgAskDay, reply)
}

func TestSelectSlotAlreadyConfirmedIsIdempotent(t *testing.T) {
	ehrClient := &fakeEHR{}
	e := newTestEngine(ehrClient, &fakeNLU{})
	state := offeredState(t)
	state.Booking.Stage = BookingConfirmed
	sel := state.Booking.OfferedSlots[0]
	state.Booking.SelectedSlot = &sel
	state.Booking.AppointmentID = "appt-9"

	next, reply := e.HandleSelectSlot(context.Background(), state, testPracticeConfig(), "yes the first one")

	assert.Equal(t, "appt-9", next.Booking.AppointmentID)
	assert.Zero(t, ehrClient.bookCalls)
	assert.Contains(t, reply, "You're all set")
}

func TestSelectSlotIncludesTranscriptInNote(t *testing.T) {
	ehrClient := &fakeEHR{}
	transcripts := &fakeTranscripts{texts: []string{"Caller: I need an appointment."}}
	e := NewEngine(EngineConfig{
		EHR:                  ehrClient,
		NLU:                  &fakeNLU{},
		Transcripts:          transcripts,
		TranscriptRetryDelay: time.Millisecond,
	})

	_, _ = e.HandleSelectSlot(context.Background(), offeredState(t), testPracticeConfig(), "the first one")

	require.Equal(t, 1, ehrClient.bookCalls)
	assert.Contains(t, ehrClient.lastBooking.Note, "Emergency Exam")
	assert.Contains(t, ehrClient.lastBooking.Note, "Caller: I need an appointment.")
	assert.Equal(t, 1, transcripts.calls)
}

func TestSelectSlotRetriesEmptyTranscriptOnce(t *testing.T) {
	ehrClient := &fakeEHR{}
	transcripts := &fakeTranscripts{texts: []string{"", "Caller: hello."}}
	e := NewEngine(EngineConfig{
		EHR:                  ehrClient,
		NLU:                  &fakeNLU{},
		Transcripts:          transcripts,
		TranscriptRetryDelay: time.Millisecond,
	})

	_, _ = e.HandleSelectSlot(context.Background(), offeredState(t), testPracticeConfig(), "the first one")

	assert.Equal(t, 2, transcripts.calls)
	assert.Contains(t, ehrClient.lastBooking.Note, "Caller: hello.")
}

func TestBookingNoteTruncatesLongTranscript(t *testing.T) {
	long := make([]byte, maxNoteTranscriptChars+500)
	for i := range long {
		long[i] = 'a'
	}
	note := bookingNote("Cleaning", string(long))
	assert.LessOrEqual(t, len(note), maxNoteTranscriptChars+200)
	assert.Contains(t, note, "Cleaning")
}

func TestBookingNoteTruncatesOnRuneBoundary(t *testing.T) {
	// Fill so a multi-byte rune straddles the cut point.
	transcript := strings.Repeat("a", maxNoteTranscriptChars-1) + strings.Repeat("é", 300)
	note := bookingNote("Cleaning", transcript)

	assert.True(t, utf8.ValidString(note))
	assert.LessOrEqual(t, len(note), maxNoteTranscriptChars+200)
}
