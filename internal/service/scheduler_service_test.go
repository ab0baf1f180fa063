package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
)

type mockSchedulerStateStore struct {
	state    models.AppState
	loadErr  error
	saveErr  error
	saved    *models.AppState
	saveCall int
}

func (m *mockSchedulerStateStore) Load(ctx context.Context, userID string) (models.AppState, error) {
	if m.loadErr != nil {
		return models.AppState{}, m.loadErr
	}
	return m.state, nil
}

func (m *mockSchedulerStateStore) Save(ctx context.Context, userID string, state models.AppState) error {
	m.saveCall++
	m.saved = &state
	return m.saveErr
}

func schedulerSampleState() models.AppState {
	return models.AppState{
		Rows: []models.WorkplaceRow{
			{
				ID:         "clinic-a",
				Kind:       models.RowKindSection,
				ClassIndex: 0,
				Slots: []models.TemplateSlot{
					{SubShiftID: "morning", Order: 1, StartTime: "08:00", EndTime: "12:00", RequiredSlots: 1},
				},
			},
		},
		Clinicians: []models.Clinician{
			{ID: "c1", QualifiedClassIDs: []string{"clinic-a"}},
		},
	}
}

func TestSchedulerServiceSolveDaySavesSolvedAssignments(t *testing.T) {
	store := &mockSchedulerStateStore{state: schedulerSampleState()}
	svc := NewSchedulerService(store, zap.NewNop())

	resp, err := svc.SolveDay(context.Background(), "user-1", dto.SolveDayRequest{Date: "2026-08-03", OnlyFillRequired: true})
	require.NoError(t, err)
	require.True(t, resp.Feasible)
	assert.Len(t, resp.Assignments, 1)
	assert.Equal(t, []string{"2026-08-03"}, resp.Dates)
	require.Equal(t, 1, store.saveCall)
	assert.Len(t, store.saved.Assignments, 1)
}

func TestSchedulerServicePinsManualAssignmentsBeforeSolving(t *testing.T) {
	state := schedulerSampleState()
	state.Clinicians = append(state.Clinicians, models.Clinician{ID: "c2", QualifiedClassIDs: []string{"clinic-a"}})
	state.Assignments = []models.Assignment{
		{Date: "2026-08-03", RowID: "clinic-a", SubShiftID: "morning", ClinicianID: "c2", Source: models.AssignmentSourceManual},
	}
	store := &mockSchedulerStateStore{state: state}
	svc := NewSchedulerService(store, zap.NewNop())

	resp, err := svc.SolveDay(context.Background(), "user-1", dto.SolveDayRequest{Date: "2026-08-03", OnlyFillRequired: true})
	require.NoError(t, err)
	require.True(t, resp.Feasible)
	require.Len(t, resp.Assignments, 1)
	assert.Equal(t, "c2", resp.Assignments[0].ClinicianID, "the manually pinned clinician must win the only slot")
}

func TestSchedulerServiceAllowsRequiredSlotsGreaterThanOne(t *testing.T) {
	state := schedulerSampleState()
	state.Rows[0].Slots[0].RequiredSlots = 2
	state.Clinicians = append(state.Clinicians, models.Clinician{ID: "c2", QualifiedClassIDs: []string{"clinic-a"}})
	store := &mockSchedulerStateStore{state: state}
	svc := NewSchedulerService(store, zap.NewNop())

	resp, err := svc.SolveDay(context.Background(), "user-1", dto.SolveDayRequest{Date: "2026-08-03", OnlyFillRequired: true})
	require.NoError(t, err)
	require.True(t, resp.Feasible)
	assert.Len(t, resp.Assignments, 2, "requiredSlots=2 should admit both qualified clinicians to the same slot")
}

func TestSchedulerServiceReturnsPartialCoverageNoteForUnfillableSlot(t *testing.T) {
	state := schedulerSampleState()
	state.Clinicians[0].QualifiedClassIDs = nil
	store := &mockSchedulerStateStore{state: state}
	svc := NewSchedulerService(store, zap.NewNop())

	resp, err := svc.SolveDay(context.Background(), "user-1", dto.SolveDayRequest{Date: "2026-08-03", OnlyFillRequired: true})
	require.NoError(t, err)
	require.True(t, resp.Feasible)
	assert.Empty(t, resp.Assignments)
	require.Len(t, resp.Notes, 1)
	assert.Equal(t, "partial_coverage", resp.Notes[0].Code)
}

func TestSchedulerServicePropagatesLoadError(t *testing.T) {
	store := &mockSchedulerStateStore{loadErr: assert.AnError}
	svc := NewSchedulerService(store, zap.NewNop())

	_, err := svc.SolveDay(context.Background(), "user-1", dto.SolveDayRequest{Date: "2026-08-03"})
	require.ErrorIs(t, err, assert.AnError)
}

func TestSchedulerServiceSolveRangeCoversEveryDate(t *testing.T) {
	store := &mockSchedulerStateStore{state: schedulerSampleState()}
	svc := NewSchedulerService(store, zap.NewNop())

	resp, err := svc.SolveRange(context.Background(), "user-1", dto.SolveRangeRequest{
		StartDate: "2026-08-03",
		EndDate:   "2026-08-04",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-03", "2026-08-04"}, resp.Dates)
}
