package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clinicvoice/frontdesk/internal/ehr"
	"github.com/clinicvoice/frontdesk/internal/nlu"
	"github.com/clinicvoice/frontdesk/internal/practice"
)

// fakeEHR scripts the scheduling adapter per test.
type fakeEHR struct {
	searchResults []ehr.Patient
	searchErr     error
	searchCalls   int

	createdPatient *ehr.Patient
	createErr      error
	createCalls    int
	lastCreate     ehr.Patient

	slots      []ehr.Slot
	slotsErr   error
	slotCalls  int
	lastQuery  ehr.SlotQuery

	appointment *ehr.Appointment
	bookErr     error
	bookCalls   int
	lastBooking ehr.AppointmentRequest
}

func (f *fakeEHR) SearchPatients(_ context.Context, q ehr.PatientSearchQuery) ([]ehr.Patient, error) {
	f.searchCalls++
	return f.searchResults, f.searchErr
}

func (f *fakeEHR) CreatePatient(_ context.Context, p ehr.Patient) (*ehr.Patient, error) {
	f.createCalls++
	f.lastCreate = p
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createdPatient != nil {
		return f.createdPatient, nil
	}
	created := p
	created.ID = "pat-new"
	return &created, nil
}

func (f *fakeEHR) QueryOpenSlots(_ context.Context, q ehr.SlotQuery) ([]ehr.Slot, error) {
	f.slotCalls++
	f.lastQuery = q
	return f.slots, f.slotsErr
}

func (f *fakeEHR) CreateAppointment(_ context.Context, req ehr.AppointmentRequest) (*ehr.Appointment, error) {
	f.bookCalls++
	f.lastBooking = req
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	if f.appointment != nil {
		return f.appointment, nil
	}
	return &ehr.Appointment{ID: "appt-1", StartTime: req.StartTime, EndTime: req.EndTime}, nil
}

// fakeNLU is a deterministic stand-in for the language model.
type fakeNLU struct {
	dates      map[string]string // utterance -> iso date
	birthDates map[string]string
	nluErr     error
}

func (f *fakeNLU) MatchOffering(_ context.Context, utterance string, catalog []nlu.CatalogEntry) (int, error) {
	if f.nluErr != nil {
		return nlu.NoMatch, f.nluErr
	}
	lower := strings.ToLower(utterance)
	for i, entry := range catalog {
		if strings.Contains(lower, strings.ToLower(entry.Name)) {
			return i, nil
		}
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return i, nil
			}
		}
	}
	return nlu.NoMatch, nil
}

func (f *fakeNLU) NormalizeDate(_ context.Context, utterance, _ string, _ time.Time) (string, error) {
	if f.nluErr != nil {
		return "", f.nluErr
	}
	if d, ok := f.dates[strings.ToLower(strings.TrimSpace(utterance))]; ok {
		return d, nil
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(utterance)); err == nil {
		return strings.TrimSpace(utterance), nil
	}
	return "", nil
}

func (f *fakeNLU) NormalizeBirthDate(_ context.Context, utterance string) (string, error) {
	if f.nluErr != nil {
		return "", f.nluErr
	}
	if d, ok := f.birthDates[strings.ToLower(strings.TrimSpace(utterance))]; ok {
		return d, nil
	}
	return "", nil
}

func (f *fakeNLU) MatchSlot(_ context.Context, utterance string, offers []string) (int, error) {
	if f.nluErr != nil {
		return nlu.NoMatch, f.nluErr
	}
	lower := strings.ToLower(utterance)
	ordinals := []string{"first", "second", "third", "fourth", "fifth"}
	for i, word := range ordinals {
		if i < len(offers) && strings.Contains(lower, word) {
			return i, nil
		}
	}
	for i := range offers {
		if strings.Contains(lower, fmt.Sprintf("option %d", i+1)) {
			return i, nil
		}
	}
	for i, offer := range offers {
		if strings.Contains(strings.ToLower(offer), lower) {
			return i, nil
		}
	}
	return nlu.NoMatch, nil
}

func (f *fakeNLU) ConfirmationText(_ context.Context, _ nlu.ConfirmationContext) (string, error) {
	// Empty forces the canned fallback summary.
	return "", nil
}

// fakeTranscripts returns a scripted transcript sequence.
type fakeTranscripts struct {
	texts []string
	calls int
}

func (f *fakeTranscripts) Fetch(_ context.Context, _ string) (string, error) {
	f.calls++
	if len(f.texts) == 0 {
		return "", nil
	}
	text := f.texts[0]
	if len(f.texts) > 1 {
		f.texts = f.texts[1:]
	}
	return text, nil
}

func testPracticeConfig() *practice.Config {
	return &practice.Config{
		PracticeID: "prac-1",
		Name:       "Lakeside Dental",
		Phone:      "+15550001111",
		Timezone:   "America/Chicago",
		Offerings: []practice.Offering{
			{
				ID:              "off-exam",
				Name:            "Emergency Exam",
				SpokenName:      "an emergency exam",
				DurationMinutes: 30,
				Keywords:        []string{"toothache", "pain", "broken tooth"},
				Active:          true,
			},
			{
				ID:              "off-cleaning",
				Name:            "Cleaning",
				SpokenName:      "a cleaning",
				DurationMinutes: 60,
				Keywords:        []string{"cleaning", "checkup"},
				Active:          true,
			},
		},
		Providers: []practice.Provider{
			{ID: "prov-1", Name: "Dr. Alvarez", Active: true},
			{ID: "prov-2", Name: "Dr. Chen", Active: true, AcceptedOfferingIDs: []string{"off-cleaning"}},
		},
		OperatoryIDs: []string{"op-1"},
		BlackoutWindows: []practice.BlackoutWindow{
			{Start: "13:00", End: "14:00", Label: "lunch"},
		},
	}
}

func newTestEngine(ehrClient *fakeEHR, nluSvc *fakeNLU) *Engine {
	return NewEngine(EngineConfig{
		EHR:                  ehrClient,
		NLU:                  nluSvc,
		TranscriptRetryDelay: time.Millisecond,
		Now: func() time.Time {
			return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		},
	})
}

// identifiedState returns a state past identification with a resolved
// offering, ready for availability discovery.
func identifiedState(callID string) *ConversationState {
	s := DefaultState(callID)
	s.PracticeID = "prac-1"
	s.Patient = PatientState{
		Status:            PatientIdentified,
		ResolvedPatientID: "pat-77",
		Collected: CollectedFields{
			Name:        "Jamie Rivera",
			DateOfBirth: "1990-04-15",
			Phone:       "5551234567",
			Email:       "jamie@example.com",
		},
	}
	s.Booking = BookingState{
		AppointmentTypeID:   "off-exam",
		AppointmentTypeName: "Emergency Exam",
		SpokenName:          "an emergency exam",
		DurationMinutes:     30,
		Stage:               BookingIdle,
	}
	return s
}
