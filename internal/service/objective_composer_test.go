package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

func TestObjectiveComposerDoesNotPanicWithoutSlackSources(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil

	b := NewConstraintBuilder()
	built, err := b.Build(state, sampleBuilderSlots(), false)
	require.NoError(t, err)

	o := NewObjectiveComposer()
	require.NotPanics(t, func() {
		o.Compose(state, built, false)
	})
}

func TestObjectiveComposerHandlesCoverageSlackAndWeeklyHours(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil
	state.Clinicians[0].WorkingHoursPerWeek = 20
	state.Settings.WorkingHoursToleranceHours = 2
	slots := sampleBuilderSlots()
	slots[0].RequiredSlots = 2

	b := NewConstraintBuilder()
	built, err := b.Build(state, slots, false)
	require.NoError(t, err)

	o := NewObjectiveComposer()
	require.NotPanics(t, func() {
		o.Compose(state, built, false)
	})
}

func TestObjectiveComposerOnlyFillRequiredDropsPriorityTerm(t *testing.T) {
	state := sampleBuilderState()
	state.Clinicians[1].Vacations = nil

	b := NewConstraintBuilder()
	built, err := b.Build(state, sampleBuilderSlots(), true)
	require.NoError(t, err)

	o := NewObjectiveComposer()
	require.NotPanics(t, func() {
		o.Compose(state, built, true)
	})
}

func TestClinicianByIDReturnsZeroValueForUnknownID(t *testing.T) {
	state := sampleBuilderState()
	c := clinicianByID(state, "does-not-exist")
	require.Equal(t, "", c.ID)
}
