// Package ehr defines the interface the booking core uses to talk to a
// practice's scheduling/EHR system. Concrete clients live in subpackages.
package ehr

import (
	"context"
	"time"
)

// Client defines the scheduling/EHR operations the booking core needs.
type Client interface {
	// SearchPatients finds patient records matching a full name.
	SearchPatients(ctx context.Context, query PatientSearchQuery) ([]Patient, error)

	// CreatePatient registers a new patient record.
	CreatePatient(ctx context.Context, patient Patient) (*Patient, error)

	// QueryOpenSlots returns open slots for the given providers and date.
	QueryOpenSlots(ctx context.Context, req SlotQuery) ([]Slot, error)

	// CreateAppointment books an appointment.
	CreateAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error)
}

// PatientSearchQuery represents search criteria for finding patients.
type PatientSearchQuery struct {
	FirstName string
	LastName  string
}

// Patient represents a patient record in the EHR.
type Patient struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string // E.164 recommended
	DateOfBirth string // "2006-01-02"
}

// SlotQuery represents a request for open appointment slots.
type SlotQuery struct {
	ProviderIDs     []string
	OperatoryIDs    []string
	Date            string // "2006-01-02" in the practice timezone
	DurationMinutes int
}

// Slot represents an open appointment time window.
type Slot struct {
	StartTime   time.Time
	EndTime     time.Time
	ProviderID  string
	OperatoryID string
}

// AppointmentRequest represents a request to book an appointment.
type AppointmentRequest struct {
	PatientID   string
	ProviderID  string
	OperatoryID string
	StartTime   time.Time
	EndTime     time.Time
	Note        string
}

// Appointment represents a booked appointment.
type Appointment struct {
	ID          string
	PatientID   string
	ProviderID  string
	OperatoryID string
	StartTime   time.Time
	EndTime     time.Time
	CreatedAt   time.Time
}
