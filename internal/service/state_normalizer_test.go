package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

func TestStateNormalizerStripsDeprecatedPoolRows(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{ID: models.DeprecatedPoolNotAllocated, Kind: models.RowKindPool, Name: "Not Allocated"},
			{ID: models.DeprecatedPoolManual, Kind: models.RowKindPool, Name: "Manual"},
			{ID: "clinic-a", Kind: models.RowKindSection, Name: "Clinic A"},
		},
		Assignments: []models.Assignment{
			{Date: "2026-08-03", RowID: models.DeprecatedPoolNotAllocated, ClinicianID: "c1"},
		},
	}

	out, changed, err := n.Normalize(state)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, out.Rows, 1)
	assert.Equal(t, "clinic-a", out.Rows[0].ID)
	assert.Empty(t, out.Assignments)
}

func TestStateNormalizerDropsDuplicateRowIDs(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{ID: "clinic-a", Kind: models.RowKindSection},
			{ID: "clinic-a", Kind: models.RowKindSection},
		},
	}

	out, changed, err := n.Normalize(state)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, out.Rows, 1, "a duplicate row id is dropped rather than rejected")
}

func TestStateNormalizerCoercesUnknownRowKindToSection(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{{ID: "clinic-a", Kind: "bogus"}},
	}

	out, changed, err := n.Normalize(state)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, models.RowKindSection, out.Rows[0].Kind)
}

func TestStateNormalizerRepairsInvalidSlotOrder(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{
				ID:   "clinic-a",
				Kind: models.RowKindSection,
				Slots: []models.TemplateSlot{
					{SubShiftID: "morning", Order: 0, StartTime: "08:00", EndTime: "12:00"},
				},
			},
		},
	}

	out, changed, err := n.Normalize(state)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out.Rows[0].Slots, 1)
	assert.Equal(t, 1, out.Rows[0].Slots[0].Order, "an out-of-range order is clamped to the next free slot, not rejected")
}

func TestStateNormalizerDropsAssignmentsForRemovedEntities(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{ID: "clinic-a", Kind: models.RowKindSection, Slots: []models.TemplateSlot{
				{SubShiftID: "morning", Order: 1, StartTime: "08:00", EndTime: "12:00"},
			}},
		},
		Clinicians: []models.Clinician{
			{ID: "c1"},
		},
		Assignments: []models.Assignment{
			{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning", ClinicianID: "c1"},
			{Date: "2026-08-03", RowID: "clinic-missing", SubShiftID: "morning", ClinicianID: "c1"},
			{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning", ClinicianID: "c-missing"},
		},
	}

	out, _, err := n.Normalize(state)
	require.NoError(t, err)
	require.Len(t, out.Assignments, 1)
	assert.Equal(t, "clinic-a", out.Assignments[0].RowID)
	assert.Equal(t, "c1", out.Assignments[0].ClinicianID)
}

func TestStateNormalizerSortsSlotsByOrder(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{
				ID:   "clinic-a",
				Kind: models.RowKindSection,
				Slots: []models.TemplateSlot{
					{SubShiftID: "evening", Order: 3, StartTime: "18:00", EndTime: "23:59"},
					{SubShiftID: "morning", Order: 1, StartTime: "08:00", EndTime: "12:00"},
					{SubShiftID: "afternoon", Order: 2, StartTime: "13:00", EndTime: "17:00"},
				},
			},
		},
	}

	out, _, err := n.Normalize(state)
	require.NoError(t, err)
	require.Len(t, out.Rows[0].Slots, 3)
	assert.Equal(t, "morning", out.Rows[0].Slots[0].SubShiftID)
	assert.Equal(t, "afternoon", out.Rows[0].Slots[1].SubShiftID)
	assert.Equal(t, "evening", out.Rows[0].Slots[2].SubShiftID)
}

func TestStateNormalizerDisablesRuleReferencingMissingRow(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Rows: []models.WorkplaceRow{
			{ID: "clinic-a", Kind: models.RowKindSection},
		},
		Rules: []models.SolverRule{
			{ID: "r1", Enabled: true, IfShiftRowID: "clinic-missing", DayDelta: 1, ThenType: models.ThenOff},
		},
	}

	out, changed, err := n.Normalize(state)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out.Rules, 1)
	assert.False(t, out.Rules[0].Enabled)
}

func TestStateNormalizerClampsOnCallRestWindow(t *testing.T) {
	n := NewStateNormalizer()
	state := models.AppState{
		Settings: models.SolverSettings{
			OnCallRestDaysBefore: 99,
			OnCallRestDaysAfter:  -5,
		},
	}

	out, changed, err := n.Normalize(state)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 7, out.Settings.OnCallRestDaysBefore)
	assert.Equal(t, 0, out.Settings.OnCallRestDaysAfter)
}
