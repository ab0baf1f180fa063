package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

func sampleExpanderState() models.AppState {
	return models.AppState{
		Rows: []models.WorkplaceRow{
			{
				ID:         "clinic-a",
				Kind:       models.RowKindSection,
				ClassIndex: 0,
				Slots: []models.TemplateSlot{
					{SubShiftID: "morning", Order: 1, StartTime: "08:00", EndTime: "12:00", RequiredSlots: 1},
					{SubShiftID: "afternoon", Order: 2, StartTime: "13:00", EndTime: "17:00", RequiredSlots: 1},
				},
			},
			{
				ID:         "clinic-b",
				Kind:       models.RowKindSection,
				ClassIndex: 1,
				Slots: []models.TemplateSlot{
					{SubShiftID: "morning", Order: 1, StartTime: "08:00", EndTime: "12:00", RequiredSlots: 1},
					{SubShiftID: "morning", Order: 1, DayType: models.DayTypeHoliday, StartTime: "09:00", EndTime: "11:00", RequiredSlots: 0},
				},
			},
			{
				ID:   "pool-floaters",
				Kind: models.RowKindPool,
				Slots: []models.TemplateSlot{
					{SubShiftID: "morning", Order: 1, StartTime: "08:00", EndTime: "12:00"},
				},
			},
		},
		Holidays: []models.Holiday{
			{Date: "2026-08-04", Name: "Closure"},
		},
	}
}

func TestSlotExpanderSwitchesToHolidayBand(t *testing.T) {
	e := NewSlotExpander()
	slots, err := e.Expand(sampleExpanderState(), "2026-08-03", "2026-08-05")
	require.NoError(t, err)

	var holidaySlot *ExpandedSlot
	for i := range slots {
		if slots[i].Date == "2026-08-04" && slots[i].RowID == "clinic-b" {
			holidaySlot = &slots[i]
		}
	}
	require.NotNil(t, holidaySlot, "clinic-b must still expand on the holiday, using its holiday band")
	assert.Equal(t, "09:00", holidaySlot.StartTime)
	assert.Equal(t, 0, holidaySlot.RequiredSlots, "the holiday band for clinic-b carries no coverage requirement")
}

func TestSlotExpanderContextRangeTagsOutOfRangeDays(t *testing.T) {
	e := NewSlotExpander()
	slots, err := e.Expand(sampleExpanderState(), "2026-08-03", "2026-08-03")
	require.NoError(t, err)

	var sawContextBefore, sawContextAfter, sawInRange bool
	for _, s := range slots {
		switch s.Date {
		case "2026-08-02":
			sawContextBefore = s.ContextOnly
		case "2026-08-04":
			sawContextAfter = s.ContextOnly
		case "2026-08-03":
			sawInRange = !s.ContextOnly
		}
	}
	assert.True(t, sawContextBefore, "the day before the range must be included as context only")
	assert.True(t, sawContextAfter, "the day after the range must be included as context only")
	assert.True(t, sawInRange, "the requested date itself must not be context only")
}

func TestSlotExpanderContextOnlySlotsCarryNoRequiredCoverage(t *testing.T) {
	e := NewSlotExpander()
	slots, err := e.Expand(sampleExpanderState(), "2026-08-03", "2026-08-03")
	require.NoError(t, err)
	for _, s := range slots {
		if s.ContextOnly {
			assert.Equal(t, 0, s.RequiredSlots)
		}
	}
}

func TestSlotExpanderCoversEveryRowAndSlotInRange(t *testing.T) {
	e := NewSlotExpander()
	slots, err := e.Expand(sampleExpanderState(), "2026-08-03", "2026-08-03")
	require.NoError(t, err)

	var inRange int
	for _, s := range slots {
		if !s.ContextOnly {
			inRange++
		}
	}
	// 2026-08-03 is a Monday (non-holiday): clinic-a morning+afternoon, clinic-b
	// morning (its unbanded default, not the holiday band); the pool-floaters
	// row is not expanded.
	assert.Equal(t, 3, inRange)
}

func TestSlotExpanderWeightsEarlierClassesAndSlotsHigher(t *testing.T) {
	e := NewSlotExpander()
	slots, err := e.Expand(sampleExpanderState(), "2026-08-03", "2026-08-03")
	require.NoError(t, err)

	byKey := make(map[string]ExpandedSlot, len(slots))
	for _, s := range slots {
		if s.ContextOnly {
			continue
		}
		byKey[s.RowID+"|"+s.SubShiftID] = s
	}

	clinicAMorning := byKey["clinic-a|morning"]
	clinicAAfternoon := byKey["clinic-a|afternoon"]
	clinicBMorning := byKey["clinic-b|morning"]

	assert.Greater(t, clinicAMorning.Weight, clinicAAfternoon.Weight, "earlier sub-shift order should weigh more")
	assert.Greater(t, clinicAMorning.Weight, clinicBMorning.Weight, "earlier class index should weigh more")
}

func TestSlotExpanderRejectsInvertedRange(t *testing.T) {
	e := NewSlotExpander()
	_, err := e.Expand(sampleExpanderState(), "2026-08-05", "2026-08-03")
	require.Error(t, err)
}

func TestSlotExpanderKeyIsStableAcrossIdenticalSlots(t *testing.T) {
	slot := ExpandedSlot{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning"}
	other := ExpandedSlot{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning"}
	assert.Equal(t, slot.Key(), other.Key())
}

func TestSlotExpanderComputesOverlappingAbsIntervalForOvernightSlot(t *testing.T) {
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{
				ID: "night-cover",
				Slots: []models.TemplateSlot{
					{SubShiftID: "overnight", Order: 1, StartTime: "22:00", EndTime: "06:00", EndDayOffset: 1, RequiredSlots: 1},
				},
			},
		},
	}
	e := NewSlotExpander()
	slots, err := e.Expand(state, "2026-08-03", "2026-08-03")
	require.NoError(t, err)

	var overnight ExpandedSlot
	for _, s := range slots {
		if s.Date == "2026-08-03" && s.RowID == "night-cover" {
			overnight = s
		}
	}
	assert.Equal(t, overnight.AbsStart+8*60, overnight.AbsEnd, "a 22:00-06:00 overnight slot spans 8 hours")
}
