package dialog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/clinicvoice/frontdesk/internal/ehr"
	"github.com/clinicvoice/frontdesk/internal/practice"
)

// HandleCheckAvailability resolves the caller's day preference, queries
// open slots for the eligible providers, filters them, and stores the
// resulting offer verbatim on the state. Later selection references this
// exact snapshot; it is never regenerated from a fresh query.
func (e *Engine) HandleCheckAvailability(ctx context.Context, state *ConversationState, cfg *practice.Config, utterance string) (*ConversationState, string) {
	next := state.Clone()

	if next.Booking.AppointmentTypeID == "" {
		return next, msgAskService
	}

	if part := extractDayPart(utterance); part != "" {
		next.Booking.DayPart = part
	}

	date, err := e.nlu.NormalizeDate(ctx, utterance, cfg.Timezone, e.now())
	if err != nil {
		e.logger.Error("date normalization failed", "call_id", next.CallID, "error", err)
		return next, msgTechnicalIssue
	}
	if date == "" {
		// A pure day-part utterance ("mornings work best") keeps the
		// previously requested date.
		if next.Booking.RequestedDate == "" {
			return next, msgRepromptDay
		}
		date = next.Booking.RequestedDate
	}
	next.Booking.RequestedDate = date

	providers := cfg.ProvidersForOffering(next.Booking.AppointmentTypeID)
	if len(providers) == 0 {
		return next, msgContactOffice
	}
	providerIDs := make([]string, len(providers))
	providerNames := make(map[string]string, len(providers))
	for i, p := range providers {
		providerIDs[i] = p.ID
		providerNames[p.ID] = p.Name
	}

	slots, err := e.ehr.QueryOpenSlots(ctx, ehr.SlotQuery{
		ProviderIDs:     providerIDs,
		OperatoryIDs:    cfg.OperatoryIDs,
		Date:            date,
		DurationMinutes: next.Booking.DurationMinutes,
	})
	if err != nil {
		e.logger.Error("slot query failed", "call_id", next.CallID, "date", date, "error", err)
		return next, msgTechnicalIssue
	}

	loc := cfg.Location()
	filtered := filterSlots(slots, next.Booking.DurationMinutes, next.Booking.DayPart, cfg.BlackoutWindows, loc)
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].StartTime.Before(filtered[j].StartTime)
	})

	limit := cfg.SlotPresentationCount
	if limit <= 0 {
		limit = e.slotCount
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	if len(filtered) == 0 {
		next.Booking.OfferedSlots = nil
		next.Booking.SelectedSlot = nil
		next.Booking.Stage = BookingIdle
		return next, noSlotsMessage(date)
	}

	offered := make([]OfferedSlot, len(filtered))
	for i, s := range filtered {
		local := s.StartTime.In(loc)
		offered[i] = OfferedSlot{
			Display:      slotDisplay(local, providerNames[s.ProviderID]),
			StartTime:    s.StartTime,
			ProviderID:   s.ProviderID,
			ProviderName: providerNames[s.ProviderID],
			OperatoryID:  s.OperatoryID,
		}
	}
	next.Booking.OfferedSlots = offered
	next.Booking.SelectedSlot = nil
	next.Booking.Stage = BookingAwaitingSelection

	return next, formatOffer(next.Booking.SpokenName, offered)
}

// filterSlots applies the deterministic post-query filters: blackout
// window overlap and the coarse time-of-day bucket.
func filterSlots(slots []ehr.Slot, durationMinutes int, dayPart string, blackouts []practice.BlackoutWindow, loc *time.Location) []ehr.Slot {
	var out []ehr.Slot
	for _, s := range slots {
		local := s.StartTime.In(loc)
		if intersectsBlackout(local, durationMinutes, blackouts) {
			continue
		}
		if !inDayPart(local, dayPart) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// intersectsBlackout reports whether the appointment window overlaps any
// configured non-bookable interval on its local date. Overlap is tested
// at minute granularity on the whole window, not just the start time.
func intersectsBlackout(localStart time.Time, durationMinutes int, blackouts []practice.BlackoutWindow) bool {
	if durationMinutes <= 0 {
		durationMinutes = 1
	}
	slotEnd := localStart.Add(time.Duration(durationMinutes) * time.Minute)

	for _, w := range blackouts {
		wStart, ok1 := atClock(localStart, w.Start)
		wEnd, ok2 := atClock(localStart, w.End)
		if !ok1 || !ok2 || !wEnd.After(wStart) {
			continue
		}
		if localStart.Before(wEnd) && wStart.Before(slotEnd) {
			return true
		}
	}
	return false
}

// atClock places an "HH:MM" clock time on ref's date in ref's location.
func atClock(ref time.Time, clock string) (time.Time, bool) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour(), t.Minute(), 0, 0, ref.Location()), true
}

// inDayPart reports whether a local start time falls in the requested
// bucket. Morning ends at noon, evening starts at five.
func inDayPart(local time.Time, dayPart string) bool {
	switch dayPart {
	case dayPartMorning:
		return local.Hour() < 12
	case dayPartAfternoon:
		return local.Hour() >= 12 && local.Hour() < 17
	case dayPartEvening:
		return local.Hour() >= 17
	default:
		return true
	}
}

// extractDayPart pulls a coarse time-of-day preference out of the
// utterance, if one is present.
func extractDayPart(utterance string) string {
	lower := strings.ToLower(utterance)
	switch {
	case strings.Contains(lower, "morning"):
		return dayPartMorning
	case strings.Contains(lower, "afternoon"):
		return dayPartAfternoon
	case strings.Contains(lower, "evening") || strings.Contains(lower, "tonight") || strings.Contains(lower, "after work"):
		return dayPartEvening
	default:
		return ""
	}
}
