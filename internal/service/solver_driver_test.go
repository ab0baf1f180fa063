package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

func solveSlots(t *testing.T, state models.AppState, slots []ExpandedSlot, onlyFillRequired bool) *SolverResult {
	t.Helper()
	b := NewConstraintBuilder()
	built, err := b.Build(state, slots, onlyFillRequired)
	require.NoError(t, err)

	o := NewObjectiveComposer()
	o.Compose(state, built, onlyFillRequired)

	d := NewSolverDriver()
	result, err := d.Solve(built, models.SolverSettings{TimeBudgetSeconds: 5, NumSearchWorkers: 1}, DefaultDayTimeBudgetSeconds)
	require.NoError(t, err)
	return result
}

func TestSolverDriverSolvesTrivialFeasibleModel(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil

	result := solveSlots(t, state, sampleBuilderSlots(), true)
	require.True(t, result.Feasible)
	assert.Len(t, result.Assignments, 1, "requiredSlots=1 caps the slot at a single assignee when onlyFillRequired is set")
}

func TestSolverDriverSolvesModelWithNoEligibleClinicians(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[0].QualifiedClassIDs = nil
	// c2 stays on vacation for the slot's date too, so zero decision
	// variables exist for this slot: the model is trivially (and correctly)
	// solved as feasible with no assignments.

	result := solveSlots(t, state, sampleBuilderSlots(), true)
	require.True(t, result.Feasible)
	assert.Empty(t, result.Assignments, "no qualified, available clinician remains for the slot")
}

func TestSolverDriverAllowsRequiredSlotsGreaterThanOne(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil

	slots := sampleBuilderSlots()
	slots[0].RequiredSlots = 2

	result := solveSlots(t, state, slots, true)
	require.True(t, result.Feasible)
	assert.Len(t, result.Assignments, 2, "both clinicians should be assigned to the single slot when requiredSlots=2")
}

func TestSolverDriverForbidsOverlappingAssignmentsForSameClinician(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Clinicians[0].QualifiedClassIDs = []string{"clinic-a", "clinic-b"}
	state.Clinicians[1].QualifiedClassIDs = []string{"clinic-a", "clinic-b"}

	slots := []ExpandedSlot{
		{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning", Order: 1, AbsStart: 0, AbsEnd: 240, RequiredSlots: 2},
		{Date: "2026-08-03", RowID: "clinic-b", SubShiftID: "morning", Order: 1, AbsStart: 120, AbsEnd: 360, RequiredSlots: 2},
	}

	result := solveSlots(t, state, slots, true)
	require.True(t, result.Feasible)

	perClinician := make(map[string]int)
	for _, a := range result.Assignments {
		perClinician[a.ClinicianID]++
	}
	for id, count := range perClinician {
		assert.LessOrEqual(t, count, 1, "clinician %s must not hold two genuinely overlapping slots", id)
	}
}

func TestSolverDriverEnforcesOnCallRestAcrossNeighborDates(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Settings = models.SolverSettings{
		OnCallRestEnabled:    true,
		OnCallRestClassID:    "clinic-a",
		OnCallRestDaysAfter:  1,
		OnCallRestDaysBefore: 0,
	}

	slots := []ExpandedSlot{
		{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "oncall", Order: 1, AbsStart: 0, AbsEnd: 1440, RequiredSlots: 1},
		{Date: "2026-08-04", RowID: "clinic-a", SubShiftID: "morning", Order: 1, AbsStart: 1440, AbsEnd: 1680, RequiredSlots: 1},
	}

	result := solveSlots(t, state, slots, true)
	require.True(t, result.Feasible)

	byClinicianDate := make(map[string]bool)
	for _, a := range result.Assignments {
		byClinicianDate[a.ClinicianID+"|"+a.Date] = true
	}
	for clinicianID := range map[string]bool{"c1": true, "c2": true} {
		onCall := byClinicianDate[clinicianID+"|2026-08-03"]
		next := byClinicianDate[clinicianID+"|2026-08-04"]
		assert.False(t, onCall && next, "a clinician on call on 2026-08-03 must rest on 2026-08-04")
	}
}

func TestSolverDriverEnforcesThenOffRule(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Rules = []models.SolverRule{
		{ID: "r1", Enabled: true, IfShiftRowID: "clinic-a", DayDelta: 1, ThenType: models.ThenOff},
	}

	slots := []ExpandedSlot{
		{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning", Order: 1, AbsStart: 0, AbsEnd: 240, RequiredSlots: 1},
		{Date: "2026-08-04", RowID: "clinic-a", SubShiftID: "morning", Order: 1, AbsStart: 1440, AbsEnd: 1680, RequiredSlots: 1},
	}

	result := solveSlots(t, state, slots, true)
	require.True(t, result.Feasible)

	byClinicianDate := make(map[string]bool)
	for _, a := range result.Assignments {
		byClinicianDate[a.ClinicianID+"|"+a.Date] = true
	}
	for clinicianID := range map[string]bool{"c1": true, "c2": true} {
		assert.False(t, byClinicianDate[clinicianID+"|2026-08-03"] && byClinicianDate[clinicianID+"|2026-08-04"],
			"ThenOff must keep the clinician unassigned the day after working the triggering row")
	}
}

func TestSolverDriverDisabledRuleIsNotEnforced(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Rules = []models.SolverRule{
		{ID: "r1", Enabled: false, IfShiftRowID: "clinic-a", DayDelta: 1, ThenType: models.ThenOff},
	}

	slots := []ExpandedSlot{
		{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning", Order: 1, AbsStart: 0, AbsEnd: 240, RequiredSlots: 2},
		{Date: "2026-08-04", RowID: "clinic-a", SubShiftID: "morning", Order: 1, AbsStart: 1440, AbsEnd: 1680, RequiredSlots: 2},
	}

	result := solveSlots(t, state, slots, true)
	require.True(t, result.Feasible)
	assert.Len(t, result.Assignments, 4, "both clinicians fill both days once the rule is disabled")
}
