// Package nexhealth implements the ehr.Client interface against a
// NexHealth-style scheduling REST API.
package nexhealth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clinicvoice/frontdesk/internal/ehr"
)

// Client implements ehr.Client over HTTP with a shared bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
}

// Config holds configuration for the NexHealth client.
type Config struct {
	BaseURL string
	Tokens  *TokenCache
	Timeout time.Duration
}

// New creates a NexHealth scheduling client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("nexhealth: BaseURL is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("nexhealth: Tokens is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     cfg.Tokens,
	}, nil
}

var _ ehr.Client = (*Client)(nil)

type patientPayload struct {
	ID          string `json:"id,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

type slotPayload struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	ProviderID  string    `json:"provider_id"`
	OperatoryID string    `json:"operatory_id,omitempty"`
}

type appointmentPayload struct {
	ID          string    `json:"id,omitempty"`
	PatientID   string    `json:"patient_id"`
	ProviderID  string    `json:"provider_id"`
	OperatoryID string    `json:"operatory_id,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// SearchPatients finds patients by name.
// GET /patients?first_name={first}&last_name={last}
func (c *Client) SearchPatients(ctx context.Context, query ehr.PatientSearchQuery) ([]ehr.Patient, error) {
	if query.FirstName == "" && query.LastName == "" {
		return nil, ehr.NewError(ehr.KindFatal, "patient search requires a name", nil)
	}

	params := url.Values{}
	if query.FirstName != "" {
		params.Set("first_name", query.FirstName)
	}
	if query.LastName != "" {
		params.Set("last_name", query.LastName)
	}

	var out struct {
		Patients []patientPayload `json:"patients"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/patients?"+params.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("nexhealth: search patients: %w", err)
	}

	patients := make([]ehr.Patient, 0, len(out.Patients))
	for _, p := range out.Patients {
		patients = append(patients, ehr.Patient{
			ID:          p.ID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Email:       p.Email,
			Phone:       p.Phone,
			DateOfBirth: p.DateOfBirth,
		})
	}
	return patients, nil
}

// CreatePatient registers a new patient record.
// POST /patients
func (c *Client) CreatePatient(ctx context.Context, patient ehr.Patient) (*ehr.Patient, error) {
	body := patientPayload{
		FirstName:   patient.FirstName,
		LastName:    patient.LastName,
		Email:       patient.Email,
		Phone:       patient.Phone,
		DateOfBirth: patient.DateOfBirth,
	}

	var created patientPayload
	if err := c.doJSON(ctx, http.MethodPost, "/patients", body, &created); err != nil {
		return nil, fmt.Errorf("nexhealth: create patient: %w", err)
	}

	patient.ID = created.ID
	return &patient, nil
}

// QueryOpenSlots returns open slots for the given providers on a date.
// GET /appointment_slots?provider_ids={csv}&date={date}&duration={mins}
func (c *Client) QueryOpenSlots(ctx context.Context, req ehr.SlotQuery) ([]ehr.Slot, error) {
	params := url.Values{}
	params.Set("provider_ids", strings.Join(req.ProviderIDs, ","))
	params.Set("date", req.Date)
	params.Set("duration", fmt.Sprintf("%d", req.DurationMinutes))
	if len(req.OperatoryIDs) > 0 {
		params.Set("operatory_ids", strings.Join(req.OperatoryIDs, ","))
	}

	var out struct {
		Slots []slotPayload `json:"slots"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/appointment_slots?"+params.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("nexhealth: query slots: %w", err)
	}

	slots := make([]ehr.Slot, 0, len(out.Slots))
	for _, s := range out.Slots {
		slots = append(slots, ehr.Slot{
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
			ProviderID:  s.ProviderID,
			OperatoryID: s.OperatoryID,
		})
	}
	return slots, nil
}

// CreateAppointment books an appointment.
// POST /appointments
func (c *Client) CreateAppointment(ctx context.Context, req ehr.AppointmentRequest) (*ehr.Appointment, error) {
	body := appointmentPayload{
		PatientID:   req.PatientID,
		ProviderID:  req.ProviderID,
		OperatoryID: req.OperatoryID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Note:        req.Note,
	}

	var created appointmentPayload
	if err := c.doJSON(ctx, http.MethodPost, "/appointments", body, &created); err != nil {
		return nil, fmt.Errorf("nexhealth: create appointment: %w", err)
	}

	return &ehr.Appointment{
		ID:          created.ID,
		PatientID:   req.PatientID,
		ProviderID:  req.ProviderID,
		OperatoryID: req.OperatoryID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		CreatedAt:   created.CreatedAt,
	}, nil
}

// doJSON performs an authenticated request. A 401 invalidates the cached
// token and retries exactly once with fresh credentials.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	status, respBody, err := c.attempt(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		status, respBody, err = c.attempt(ctx, method, path, body)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ehr.NewError(ehr.KindTransient, "authentication rejected after refresh", nil)
		}
	}

	if status >= 400 {
		return classifyStatus(status, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return ehr.NewError(ehr.KindFatal, "failed to decode response", err)
		}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, path string, body any) (int, []byte, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return 0, nil, ehr.NewError(ehr.KindTransient, "authentication failed", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, ehr.NewError(ehr.KindFatal, "failed to marshal request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, ehr.NewError(ehr.KindFatal, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, ehr.NewError(ehr.KindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, respBody, nil
}

// classifyStatus maps an HTTP failure onto a typed ehr error. The body text
// is still consulted because some deployments report conflicts as plain 400s.
func classifyStatus(status int, body []byte) error {
	msg := fmt.Sprintf("API error (status %d): %s", status, string(body))
	switch {
	case status == http.StatusConflict:
		return ehr.NewError(ehr.KindConflict, msg, nil)
	case status == http.StatusNotFound:
		return ehr.NewError(ehr.KindNotFound, msg, nil)
	case status >= 500:
		return ehr.NewError(ehr.KindTransient, msg, nil)
	default:
		return ehr.NewError(ehr.ClassifyMessage(string(body)), msg, nil)
	}
}
