// Package practice provides practice-level scheduling configuration.
// The booking core only reads this data; it is maintained by the
// administrative surface, which is outside this repository.
package practice

import (
	"strings"
	"time"
)

// Offering is a bookable service/appointment type.
type Offering struct {
	ID string `json:"id"`
	// Name is the display name shown in admin tooling.
	Name string `json:"name"`
	// SpokenName is what the assistant says aloud; falls back to Name.
	SpokenName      string `json:"spoken_name,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	// Keywords drive intent matching, e.g. ["toothache", "pain"] for an
	// emergency exam. Internal ids are never exposed to the matcher.
	Keywords []string `json:"keywords,omitempty"`
	Active   bool     `json:"active"`
}

// Spoken returns the name the assistant should say for this offering.
func (o Offering) Spoken() string {
	if strings.TrimSpace(o.SpokenName) != "" {
		return o.SpokenName
	}
	return o.Name
}

// Provider is a clinician who can be booked.
type Provider struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	// AcceptedOfferingIDs restricts which offerings this provider takes.
	// An empty list means the provider accepts everything; older practice
	// records predate per-provider configuration.
	AcceptedOfferingIDs []string `json:"accepted_offering_ids,omitempty"`
}

// Accepts reports whether the provider takes the given offering.
func (p Provider) Accepts(offeringID string) bool {
	if len(p.AcceptedOfferingIDs) == 0 {
		return true
	}
	for _, id := range p.AcceptedOfferingIDs {
		if id == offeringID {
			return true
		}
	}
	return false
}

// BlackoutWindow is a daily non-bookable interval, e.g. a lunch break.
// Times are "HH:MM" in the practice's local timezone.
type BlackoutWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label,omitempty"`
}

// Config holds practice-specific scheduling configuration.
type Config struct {
	PracticeID string `json:"practice_id"`
	Name       string `json:"name"`
	// Phone is the inbound number patients call (E.164). Used to resolve
	// the practice from a voice webhook.
	Phone    string `json:"phone,omitempty"`
	Timezone string `json:"timezone"` // e.g. "America/Chicago"

	Offerings    []Offering `json:"offerings,omitempty"`
	Providers    []Provider `json:"providers,omitempty"`
	OperatoryIDs []string   `json:"operatory_ids,omitempty"`

	BlackoutWindows []BlackoutWindow `json:"blackout_windows,omitempty"`

	// SlotPresentationCount caps how many slots are read aloud per turn.
	// Zero means use the deployment default.
	SlotPresentationCount int `json:"slot_presentation_count,omitempty"`
}

// DefaultConfig returns a minimal config for an unconfigured practice.
func DefaultConfig(practiceID string) *Config {
	return &Config{
		PracticeID: practiceID,
		Timezone:   "America/Chicago",
	}
}

// Location resolves the practice timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ActiveOfferings returns the offerings that may be booked.
func (c *Config) ActiveOfferings() []Offering {
	var out []Offering
	for _, o := range c.Offerings {
		if o.Active {
			out = append(out, o)
		}
	}
	return out
}

// OfferingByID looks up an offering in the catalog.
func (c *Config) OfferingByID(id string) (Offering, bool) {
	for _, o := range c.Offerings {
		if o.ID == id {
			return o, true
		}
	}
	return Offering{}, false
}

// ProvidersForOffering returns active providers that accept the offering.
func (c *Config) ProvidersForOffering(offeringID string) []Provider {
	var out []Provider
	for _, p := range c.Providers {
		if p.Active && p.Accepts(offeringID) {
			out = append(out, p)
		}
	}
	return out
}

// SchedulingConfigured reports whether the practice has enough setup for
// the assistant to book: at least one active offering and provider.
func (c *Config) SchedulingConfigured() bool {
	if c == nil {
		return false
	}
	if len(c.ActiveOfferings()) == 0 {
		return false
	}
	for _, p := range c.Providers {
		if p.Active {
			return true
		}
	}
	return false
}
