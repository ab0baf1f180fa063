package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

const dateLayout = "2006-01-02"

var weekdayDayType = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ExpandedSlot is one concrete, date-bound instance of a workplace row's sub-shift.
type ExpandedSlot struct {
	Date       string
	RowID      string
	ClassIndex int
	SubShiftID string
	Order      int
	StartTime  string
	EndTime    string
	EndDate    string
	LocationID string
	Weight     int

	// AbsStart and AbsEnd are absolute minutes from the start of the context
	// range, used to detect true time overlap across slots that may carry
	// different Order values (e.g. an overnight slot spilling into the next
	// block). An EndDayOffset > 0 is folded in; a slot whose EndTime is not
	// after its StartTime and has no EndDayOffset is zero-length (AbsEnd ==
	// AbsStart), so AbsEnd >= AbsStart always.
	AbsStart int
	AbsEnd   int

	// RequiredSlots is the clamped max(0, baseRequired+override) coverage
	// target for this slot instance, before any manual assignments are
	// subtracted. Always zero for a ContextOnly instance.
	RequiredSlots int

	// ContextOnly marks a slot instance that exists only to give the on-call
	// rest constraint and manual-assignment lookups visibility into the day
	// immediately before/after the requested range. Context-only instances
	// must never contribute to coverage objectives or be exposed to callers.
	ContextOnly bool
}

// Key returns the rowId::subShiftId identifier joined with the date, uniquely
// identifying this slot instance within a solve.
func (s ExpandedSlot) Key() string {
	return s.Date + "|" + models.SlotID(s.RowID, s.SubShiftID)
}

// SlotExpander materialises weekly workplace-row templates into concrete,
// date-bound slots over a requested range.
type SlotExpander struct{}

// NewSlotExpander constructs a SlotExpander.
func NewSlotExpander() *SlotExpander { return &SlotExpander{} }

// Expand returns every slot instance of every non-pool row over the context
// range [startDate-1, endDate+1], each tagged ContextOnly outside
// [startDate, endDate]; pool rows are not expanded. The
// day-type column band (a weekday name, or "holiday" on a date in
// state.Holidays) selects which of a row's TemplateSlots apply on each date;
// a TemplateSlot with an empty DayType applies on every day type a row
// doesn't otherwise band for that sub-shift. Dates must be ISO-8601
// (YYYY-MM-DD).
func (e *SlotExpander) Expand(state models.AppState, startDate, endDate string) ([]ExpandedSlot, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %q precedes start date %q", endDate, startDate)
	}

	holidays := make(map[string]bool, len(state.Holidays))
	for _, h := range state.Holidays {
		holidays[h.Date] = true
	}

	totalClasses := 0
	for _, row := range state.Rows {
		if row.Kind != models.RowKindPool {
			totalClasses++
		}
	}

	contextStart := start.AddDate(0, 0, -1)
	contextEnd := end.AddDate(0, 0, 1)

	var slots []ExpandedSlot
	for d := contextStart; !d.After(contextEnd); d = d.AddDate(0, 0, 1) {
		iso := d.Format(dateLayout)
		dayType := dayTypeFor(d, holidays[iso])
		contextOnly := d.Before(start) || d.After(end)
		absDayIndex := dayIndex(d, contextStart)

		for _, row := range state.Rows {
			if row.Kind == models.RowKindPool {
				continue
			}
			for _, slot := range bandedSlots(row.Slots, dayType) {
				slotID := models.SlotID(row.ID, slot.SubShiftID)
				slotEnd := d.AddDate(0, 0, slot.EndDayOffset)

				absStart := absDayIndex*1440 + minutesOf(slot.StartTime)
				duration := minutesOf(slot.EndTime) - minutesOf(slot.StartTime)
				if slot.EndDayOffset == 0 && duration < 0 {
					duration = 0
				}
				absEnd := absStart + duration + slot.EndDayOffset*1440

				locationID := slot.LocationID
				if locationID == "" {
					locationID = row.LocationID
				}

				required := 0
				if !contextOnly {
					required = effectiveRequiredSlots(state, slotID, slot, dayType, iso)
				}

				slots = append(slots, ExpandedSlot{
					Date:          iso,
					RowID:         row.ID,
					ClassIndex:    row.ClassIndex,
					SubShiftID:    slot.SubShiftID,
					Order:         slot.Order,
					StartTime:     slot.StartTime,
					EndTime:       slot.EndTime,
					EndDate:       slotEnd.Format(dateLayout),
					LocationID:    locationID,
					Weight:        slotWeight(totalClasses, row.ClassIndex, slot.Order),
					AbsStart:      absStart,
					AbsEnd:        absEnd,
					RequiredSlots: required,
					ContextOnly:   contextOnly,
				})
			}
		}
	}
	return slots, nil
}

// bandedSlots selects, per sub-shift id, the most specific TemplateSlot band
// for dayType: an exact DayType match wins over the row's unbanded ("")
// default for that sub-shift.
func bandedSlots(all []models.TemplateSlot, dayType string) []models.TemplateSlot {
	bySubShift := make(map[string]models.TemplateSlot)
	order := make([]string, 0, len(all))
	for _, slot := range all {
		if slot.DayType != "" && slot.DayType != dayType {
			continue
		}
		existing, ok := bySubShift[slot.SubShiftID]
		if !ok {
			order = append(order, slot.SubShiftID)
			bySubShift[slot.SubShiftID] = slot
			continue
		}
		if existing.DayType == "" && slot.DayType != "" {
			bySubShift[slot.SubShiftID] = slot
		}
	}
	out := make([]models.TemplateSlot, 0, len(order))
	for _, id := range order {
		out = append(out, bySubShift[id])
	}
	return out
}

func dayTypeFor(d time.Time, isHoliday bool) string {
	if isHoliday {
		return models.DayTypeHoliday
	}
	return weekdayDayType[int(d.Weekday())]
}

func effectiveRequiredSlots(state models.AppState, slotID string, slot models.TemplateSlot, dayType, iso string) int {
	base := slot.RequiredSlots
	if ms, ok := state.MinSlotsByRowID[slotID]; ok {
		if dayType == models.DayTypeHoliday || dayType == "sat" || dayType == "sun" {
			base = ms.Weekend
		} else {
			base = ms.Weekday
		}
	}
	override := state.SlotOverridesByKey[models.SlotOverrideKey(slotID, iso)]
	target := base + override
	if target < 0 {
		target = 0
	}
	return target
}

func dayIndex(d, epoch time.Time) int {
	return int(d.Sub(epoch).Hours() / 24)
}

func minutesOf(hhmm string) int {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

// slotWeight implements omega_s = max(1, totalClasses - classIndex)*10 + (4 - subShiftOrder),
// biasing coverage priority toward earlier classes and earlier sub-shifts.
func slotWeight(totalClasses, classIndex, order int) int {
	base := totalClasses - classIndex
	if base < 1 {
		base = 1
	}
	return base*10 + (4 - order)
}
