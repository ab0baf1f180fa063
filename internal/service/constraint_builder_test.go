package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

func sampleBuilderState() models.AppState {
	return models.AppState{
		Clinicians: []models.Clinician{
			{ID: "c1", QualifiedClassIDs: []string{"clinic-a"}},
			{ID: "c2", QualifiedClassIDs: []string{"clinic-a"}, Vacations: []models.VacationRange{
				{StartDate: "2026-08-03", EndDate: "2026-08-03"},
			}},
		},
	}
}

func sampleBuilderSlots() []ExpandedSlot {
	return []ExpandedSlot{
		{
			Date:          "2026-08-03",
			RowID:         "clinic-a",
			SubShiftID:    "morning",
			Order:         1,
			StartTime:     "08:00",
			EndTime:       "12:00",
			AbsStart:      8 * 60,
			AbsEnd:        12 * 60,
			RequiredSlots: 1,
		},
	}
}

func TestConstraintBuilderOnlyCreatesVarsForQualifiedNonVacationingClinicians(t *testing.T) {
	b := NewConstraintBuilder()
	built, err := b.Build(sampleBuilderState(), sampleBuilderSlots(), false)
	require.NoError(t, err)

	// c2 is on vacation on the only expanded date, so only c1 gets a variable.
	require.Len(t, built.Vars, 1)
	assert.Equal(t, "c1", built.Vars[0].ClinicianID)
}

func TestConstraintBuilderSkipsContextOnlySlots(t *testing.T) {
	b := NewConstraintBuilder()
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	slots := sampleBuilderSlots()
	slots[0].ContextOnly = true

	built, err := b.Build(state, slots, false)
	require.NoError(t, err)
	assert.Empty(t, built.Vars, "a context-only slot must never get a decision variable")
}

func TestConstraintBuilderIndexesBySlotAndClinician(t *testing.T) {
	b := NewConstraintBuilder()
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil

	built, err := b.Build(state, sampleBuilderSlots(), false)
	require.NoError(t, err)

	slotKey := built.Slots[0].Key()
	assert.Len(t, built.BySlot[slotKey], 2)
	assert.Len(t, built.ByClinician["c1"], 1)
	assert.Len(t, built.ByClinician["c2"], 1)
}

func TestConstraintBuilderKeepsEveryCandidateWhenOnlyFillRequired(t *testing.T) {
	b := NewConstraintBuilder()
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil

	built, err := b.Build(state, sampleBuilderSlots(), true)
	require.NoError(t, err)
	require.Len(t, built.Vars, 2, "both clinicians are qualified and available")
}

func TestOnCallRestConstraintNoopsWhenDisabled(t *testing.T) {
	b := NewConstraintBuilder()
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Settings = models.SolverSettings{OnCallRestEnabled: false}

	built, err := b.Build(state, sampleBuilderSlots(), false)
	require.NoError(t, err)
	assert.Empty(t, built.BoundaryNotes)
}

func TestOnCallRestConstraintSurfacesBoundaryNote(t *testing.T) {
	b := NewConstraintBuilder()
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Settings = models.SolverSettings{
		OnCallRestEnabled:    true,
		OnCallRestClassID:    "clinic-a",
		OnCallRestDaysBefore: 1,
		OnCallRestDaysAfter:  1,
	}
	// A historical assignment the day before the only expanded slot: no
	// decision variable exists for it, so it can only surface as a note.
	state.Assignments = []models.Assignment{
		{Date: "2026-08-02", RowID: "clinic-a", SubShiftID: "morning", ClinicianID: "c1"},
	}

	built, err := b.Build(state, sampleBuilderSlots(), false)
	require.NoError(t, err)
	require.Len(t, built.BoundaryNotes, 1)
}

func TestWeeklyHoursWindowsGroupsByISOWeek(t *testing.T) {
	slots := []ExpandedSlot{
		{Date: "2026-08-03"}, // Monday, week 32
		{Date: "2026-08-04"}, // still week 32
		{Date: "2026-08-10"}, // next week
	}
	windows := WeeklyHoursWindows(slots)
	assert.Len(t, windows, 2)
}

func TestSlotHoursComputesDuration(t *testing.T) {
	slot := ExpandedSlot{StartTime: "08:00", EndTime: "12:30"}
	assert.InDelta(t, 4.5, SlotHours(slot), 0.001)
}

func TestSlotHoursHandlesOvernightSpan(t *testing.T) {
	slot := ExpandedSlot{StartTime: "22:00", EndTime: "02:00"}
	assert.InDelta(t, 4.0, SlotHours(slot), 0.001)
}
