package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

const (
	minOnCallRestDays = 0
	maxOnCallRestDays = 7

	maxWorkingHoursToleranceHours = 40
)

// StateNormalizer repairs and validates a raw AppState before it reaches the
// solver pipeline. It strips legacy pool placeholders left over from earlier
// client versions, repairs structural inconsistencies silently, and reports
// whether anything needed repairing. Normalize never rejects a state for a
// recoverable inconsistency; only a caller-level schema/parse failure
// upstream of this type ever surfaces as an error.
type StateNormalizer struct{}

// NewStateNormalizer constructs a StateNormalizer.
func NewStateNormalizer() *StateNormalizer { return &StateNormalizer{} }

// Normalize returns a cleaned copy of state plus whether any repair was made.
func (n *StateNormalizer) Normalize(state models.AppState) (models.AppState, bool, error) {
	out := state
	changed := false

	out.Rows, changed = normalizeRows(state.Rows, changed)
	seenRows := make(map[string]bool, len(out.Rows))
	firstSubShift := make(map[string]string, len(out.Rows))
	rowByID := make(map[string]models.WorkplaceRow, len(out.Rows))
	for _, row := range out.Rows {
		seenRows[row.ID] = true
		rowByID[row.ID] = row
		if len(row.Slots) > 0 {
			firstSubShift[row.ID] = row.Slots[0].SubShiftID
		}
	}

	if state.LocationsEnabled {
		out.Locations, changed = ensureDefaultLocation(state.Locations, changed)
	}

	var clinicianChanged bool
	out.Clinicians, clinicianChanged = dedupeClinicians(state.Clinicians)
	changed = changed || clinicianChanged
	seenClinicians := make(map[string]bool, len(out.Clinicians))
	for _, c := range out.Clinicians {
		seenClinicians[c.ID] = true
	}

	out.Assignments, changed = normalizeAssignments(state.Assignments, seenRows, seenClinicians, rowByID, firstSubShift, changed)

	out.MinSlotsByRowID, changed = remapMinSlots(state.MinSlotsByRowID, seenRows, rowByID, firstSubShift, changed)
	out.SlotOverridesByKey, changed = remapSlotOverrides(state.SlotOverridesByKey, seenRows, rowByID, firstSubShift, changed)

	out.Rules, changed = normalizeRules(state.Rules, seenRows, changed)

	out.Settings, changed = normalizeSettings(state.Settings, rowByID, changed)

	return out, changed, nil
}

func normalizeRows(rows []models.WorkplaceRow, changed bool) ([]models.WorkplaceRow, bool) {
	out := make([]models.WorkplaceRow, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.ID == models.DeprecatedPoolNotAllocated || row.ID == models.DeprecatedPoolManual {
			changed = true
			continue
		}
		if seen[row.ID] {
			changed = true
			continue
		}
		seen[row.ID] = true

		switch row.Kind {
		case models.RowKindSection, models.RowKindClass, models.RowKindPool:
		default:
			row.Kind = models.RowKindSection
			changed = true
		}

		slots, slotsChanged := normalizeSlots(row.Slots)
		changed = changed || slotsChanged
		row.Slots = slots

		out = append(out, row)
	}
	return out, changed
}

// normalizeSlots repairs a row's template slots: order is clamped into
// {1,2,3}, duplicate orders within the same day-type band are deduplicated by
// reassigning the loser to the next free order (dropped if all three are
// taken), EndDayOffset is clamped into [0,3], and a missing EndTime is
// derived from the next ordered slot in the same band.
func normalizeSlots(slots []models.TemplateSlot) ([]models.TemplateSlot, bool) {
	changed := false
	working := append([]models.TemplateSlot(nil), slots...)

	byBand := make(map[string][]int)
	for i, s := range working {
		byBand[s.DayType] = append(byBand[s.DayType], i)
	}

	for _, indices := range byBand {
		usedOrders := make(map[int]bool, 3)
		for _, i := range indices {
			o := working[i].Order
			if o < 1 || o > 3 {
				changed = true
				working[i].Order = 0 // resolved below
				continue
			}
			if usedOrders[o] {
				changed = true
				working[i].Order = 0
				continue
			}
			usedOrders[o] = true
		}
		for _, i := range indices {
			if working[i].Order != 0 {
				continue
			}
			for candidate := 1; candidate <= 3; candidate++ {
				if !usedOrders[candidate] {
					working[i].Order = candidate
					usedOrders[candidate] = true
					break
				}
			}
		}
	}

	out := working[:0]
	for _, s := range working {
		if s.Order < 1 || s.Order > 3 {
			changed = true
			continue
		}
		if s.EndDayOffset < 0 {
			s.EndDayOffset = 0
			changed = true
		}
		if s.EndDayOffset > 3 {
			s.EndDayOffset = 3
			changed = true
		}
		if s.RequiredSlots < 0 {
			s.RequiredSlots = 0
			changed = true
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })

	deriveMissingEndTimes(out)

	return out, changed
}

func deriveMissingEndTimes(slots []models.TemplateSlot) {
	byBand := make(map[string][]int)
	for i, s := range slots {
		byBand[s.DayType] = append(byBand[s.DayType], i)
	}
	for _, indices := range byBand {
		sort.Slice(indices, func(a, b int) bool { return slots[indices[a]].Order < slots[indices[b]].Order })
		for pos, i := range indices {
			if slots[i].EndTime != "" {
				continue
			}
			if pos+1 < len(indices) {
				next := indices[pos+1]
				slots[i].EndTime = slots[next].StartTime
			} else {
				slots[i].EndTime = "23:59"
			}
		}
	}
}

func ensureDefaultLocation(locations []models.Location, changed bool) ([]models.Location, bool) {
	for _, l := range locations {
		if l.ID == models.DefaultLocationID {
			return locations, changed
		}
	}
	out := append([]models.Location(nil), locations...)
	out = append(out, models.Location{ID: models.DefaultLocationID, Name: "Default"})
	return out, true
}

func dedupeClinicians(clinicians []models.Clinician) ([]models.Clinician, bool) {
	changed := false
	out := make([]models.Clinician, 0, len(clinicians))
	seen := make(map[string]bool, len(clinicians))
	for _, c := range clinicians {
		if seen[c.ID] {
			changed = true
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, changed
}

// resolveSlotID remaps a possibly-stale rowId/rowId::subShiftId reference to
// a current slot id, falling back to the row's first sub-shift. It reports
// ok=false when the reference cannot be repaired (the row no longer exists,
// or exists but has no slots at all).
func resolveSlotID(ref string, seenRows map[string]bool, rowByID map[string]models.WorkplaceRow, firstSubShift map[string]string) (rowID, subShiftID string, ok bool) {
	rowID, subShiftID = ref, ""
	if idx := strings.Index(ref, "::"); idx >= 0 {
		rowID, subShiftID = ref[:idx], ref[idx+2:]
	}
	if !seenRows[rowID] {
		return "", "", false
	}
	row := rowByID[rowID]
	for _, s := range row.Slots {
		if s.SubShiftID == subShiftID {
			return rowID, subShiftID, true
		}
	}
	fallback, ok := firstSubShift[rowID]
	if !ok {
		return "", "", false
	}
	return rowID, fallback, true
}

func normalizeAssignments(assignments []models.Assignment, seenRows, seenClinicians map[string]bool, rowByID map[string]models.WorkplaceRow, firstSubShift map[string]string, changed bool) ([]models.Assignment, bool) {
	out := make([]models.Assignment, 0, len(assignments))
	seen := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if a.RowID == models.DeprecatedPoolNotAllocated || a.RowID == models.DeprecatedPoolManual {
			changed = true
			continue
		}
		if !seenClinicians[a.ClinicianID] {
			changed = true
			continue
		}
		rowID, subShiftID, ok := resolveSlotID(models.SlotID(a.RowID, a.SubShiftID), seenRows, rowByID, firstSubShift)
		if !ok {
			changed = true
			continue
		}
		if rowID != a.RowID || subShiftID != a.SubShiftID {
			changed = true
			a.RowID = rowID
			a.SubShiftID = subShiftID
		}
		key := a.Date + "|" + a.SlotKey() + "|" + a.ClinicianID
		if seen[key] {
			changed = true
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out, changed
}

func remapMinSlots(in map[string]models.MinSlots, seenRows map[string]bool, rowByID map[string]models.WorkplaceRow, firstSubShift map[string]string, changed bool) (map[string]models.MinSlots, bool) {
	out := make(map[string]models.MinSlots, len(in))
	for oldKey, ms := range in {
		rowID, subShiftID, ok := resolveSlotID(oldKey, seenRows, rowByID, firstSubShift)
		if !ok {
			changed = true
			continue
		}
		newKey := models.SlotID(rowID, subShiftID)
		if newKey != oldKey {
			changed = true
		}
		if existing, dup := out[newKey]; dup {
			changed = true
			existing.Weekday += ms.Weekday
			existing.Weekend += ms.Weekend
			out[newKey] = existing
			continue
		}
		out[newKey] = ms
	}
	return out, changed
}

func remapSlotOverrides(in map[string]int, seenRows map[string]bool, rowByID map[string]models.WorkplaceRow, firstSubShift map[string]string, changed bool) (map[string]int, bool) {
	out := make(map[string]int, len(in))
	for oldKey, override := range in {
		idx := strings.LastIndex(oldKey, "__")
		if idx < 0 {
			changed = true
			continue
		}
		slotRef, dateISO := oldKey[:idx], oldKey[idx+2:]
		rowID, subShiftID, ok := resolveSlotID(slotRef, seenRows, rowByID, firstSubShift)
		if !ok {
			changed = true
			continue
		}
		newKey := models.SlotOverrideKey(models.SlotID(rowID, subShiftID), dateISO)
		if newKey != oldKey {
			changed = true
		}
		out[newKey] += override
	}
	return out, changed
}

func normalizeRules(rules []models.SolverRule, seenRows map[string]bool, changed bool) ([]models.SolverRule, bool) {
	out := make([]models.SolverRule, 0, len(rules))
	for _, r := range rules {
		if !seenRows[r.IfShiftRowID] {
			r.Enabled = false
			changed = true
		}
		switch r.ThenType {
		case models.ThenShiftRow, models.ThenOff:
		default:
			r.ThenType = models.ThenOff
			changed = true
		}
		if r.ThenType == models.ThenShiftRow && !seenRows[r.ThenShiftRowID] {
			r.Enabled = false
			changed = true
		}
		if r.DayDelta != -1 && r.DayDelta != 1 {
			if r.DayDelta < 0 {
				r.DayDelta = -1
			} else {
				r.DayDelta = 1
			}
			changed = true
		}
		out = append(out, r)
	}
	return out, changed
}

func normalizeSettings(settings models.SolverSettings, rowByID map[string]models.WorkplaceRow, changed bool) (models.SolverSettings, bool) {
	out := settings

	if out.OnCallRestDaysBefore < minOnCallRestDays {
		out.OnCallRestDaysBefore = minOnCallRestDays
		changed = true
	}
	if out.OnCallRestDaysBefore > maxOnCallRestDays {
		out.OnCallRestDaysBefore = maxOnCallRestDays
		changed = true
	}
	if out.OnCallRestDaysAfter < minOnCallRestDays {
		out.OnCallRestDaysAfter = minOnCallRestDays
		changed = true
	}
	if out.OnCallRestDaysAfter > maxOnCallRestDays {
		out.OnCallRestDaysAfter = maxOnCallRestDays
		changed = true
	}
	if out.WorkingHoursToleranceHours < 0 {
		out.WorkingHoursToleranceHours = 0
		changed = true
	}
	if out.WorkingHoursToleranceHours > maxWorkingHoursToleranceHours {
		out.WorkingHoursToleranceHours = maxWorkingHoursToleranceHours
		changed = true
	}

	if out.OnCallRestEnabled {
		if _, ok := rowByID[out.OnCallRestClassID]; !ok {
			out.OnCallRestClassID = ""
			for id, row := range rowByID {
				if row.Kind == models.RowKindClass {
					out.OnCallRestClassID = id
					break
				}
			}
			changed = true
			if out.OnCallRestClassID == "" {
				out.OnCallRestEnabled = false
			}
		}
	}

	return out, changed
}
