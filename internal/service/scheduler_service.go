package service

import (
	"context"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

// schedulerStateStore is the subset of StateService the scheduler needs to
// load and persist a user's normalised state.
type schedulerStateStore interface {
	Load(ctx context.Context, userID string) (models.AppState, error)
	Save(ctx context.Context, userID string, state models.AppState) error
}

// SchedulerService orchestrates the normalise -> expand -> build -> compose ->
// solve pipeline for a single user's schedule.
type SchedulerService struct {
	states     schedulerStateStore
	normalizer *StateNormalizer
	expander   *SlotExpander
	builder    *ConstraintBuilder
	objective  *ObjectiveComposer
	driver     *SolverDriver
	logger     *zap.Logger
}

// NewSchedulerService wires the solver pipeline components together.
func NewSchedulerService(states schedulerStateStore, logger *zap.Logger) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulerService{
		states:     states,
		normalizer: NewStateNormalizer(),
		expander:   NewSlotExpander(),
		builder:    NewConstraintBuilder(),
		objective:  NewObjectiveComposer(),
		driver:     NewSolverDriver(),
		logger:     logger,
	}
}

// SolveDay resolves coverage for a single ISO date.
func (s *SchedulerService) SolveDay(ctx context.Context, userID string, req dto.SolveDayRequest) (*dto.SolveResponse, error) {
	return s.solve(ctx, userID, req.Date, req.Date, req.OnlyFillRequired, DefaultDayTimeBudgetSeconds, req.Settings)
}

// SolveRange resolves coverage across an inclusive ISO date range.
func (s *SchedulerService) SolveRange(ctx context.Context, userID string, req dto.SolveRangeRequest) (*dto.SolveResponse, error) {
	return s.solve(ctx, userID, req.StartDate, req.EndDate, req.OnlyFillRequired, DefaultRangeTimeBudgetSeconds, req.Settings)
}

func (s *SchedulerService) solve(ctx context.Context, userID, startDate, endDate string, onlyFillRequired bool, defaultTimeBudgetSeconds float64, settingsOverride *models.SolverSettings) (*dto.SolveResponse, error) {
	raw, err := s.states.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	state, _, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	settings := state.Settings
	if settingsOverride != nil {
		settings = *settingsOverride
	}
	state.Settings = settings

	slots, err := s.expander.Expand(state, startDate, endDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	manual := manualAssignmentsInRange(state.Assignments, startDate, endDate)

	built, err := s.builder.Build(state, slots, onlyFillRequired)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build constraint model")
	}
	pinManualAssignments(built, manual)

	s.objective.Compose(state, built, onlyFillRequired)

	result, err := s.driver.Solve(built, settings, defaultTimeBudgetSeconds)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "solver failed")
	}

	response := &dto.SolveResponse{
		Dates:          dateRange(startDate, endDate),
		Feasible:       result.Feasible,
		ObjectiveValue: result.ObjectiveValue,
		WallTimeMs:     result.WallTime.Milliseconds(),
	}

	for _, note := range built.BoundaryNotes {
		response.Notes = append(response.Notes, dto.SolveNote{
			Code:    "boundary_rest_conflict",
			Message: note,
		})
	}

	if !result.Feasible {
		response.Notes = append(response.Notes, dto.SolveNote{
			Code:    "infeasible",
			Message: "No solution",
		})
		return response, nil
	}

	// A pinned manual assignment also comes back from the solver as x=1; only
	// the manual copy is kept.
	pinned := make(map[string]bool, len(manual))
	for _, a := range manual {
		pinned[a.Date+"|"+a.SlotKey()+"|"+a.ClinicianID] = true
	}
	var solved []models.Assignment
	for _, a := range result.Assignments {
		if !pinned[a.Date+"|"+a.SlotKey()+"|"+a.ClinicianID] {
			solved = append(solved, a)
		}
	}

	response.Assignments = append(manual, solved...)
	response.Notes = append(response.Notes, coverageNotes(state, slots, response.Assignments)...)

	state.Assignments = mergeAssignments(state.Assignments, solved, startDate, endDate)
	if err := s.states.Save(ctx, userID, state); err != nil {
		s.logger.Warn("failed to persist solved schedule", zap.Error(err))
	}

	return response, nil
}

func manualAssignmentsInRange(assignments []models.Assignment, start, end string) []models.Assignment {
	var out []models.Assignment
	for _, a := range assignments {
		if a.Source == models.AssignmentSourceManual && a.Date >= start && a.Date <= end {
			out = append(out, a)
		}
	}
	return out
}

// pinManualAssignments fixes the decision variable for every existing manual
// assignment to 1, so the solver never reassigns a slot a user pinned by hand.
func pinManualAssignments(built *BuiltModel, manual []models.Assignment) {
	pinned := make(map[string]bool, len(manual))
	for _, a := range manual {
		pinned[a.Date+"|"+a.SlotKey()+"|"+a.ClinicianID] = true
	}
	for _, av := range built.Vars {
		key := av.Slot.Date + "|" + av.Slot.RowID + "::" + av.Slot.SubShiftID + "|" + av.ClinicianID
		if pinned[key] {
			built.Builder.AddEquality(av.Var, cpmodel.NewConstant(1))
		}
	}
}

func mergeAssignments(existing []models.Assignment, solved []models.Assignment, start, end string) []models.Assignment {
	out := make([]models.Assignment, 0, len(existing)+len(solved))
	for _, a := range existing {
		if a.Date >= start && a.Date <= end && a.Source == models.AssignmentSourceSolver {
			continue
		}
		out = append(out, a)
	}
	out = append(out, solved...)
	return out
}

func coverageNotes(state models.AppState, slots []ExpandedSlot, assignments []models.Assignment) []dto.SolveNote {
	filled := make(map[string]int, len(assignments))
	for _, a := range assignments {
		filled[a.Date+"|"+a.SlotKey()]++
	}

	var notes []dto.SolveNote
	for _, slot := range slots {
		if !slot.ContextOnly && filled[slot.Key()] < slot.RequiredSlots {
			notes = append(notes, dto.SolveNote{
				Code:    "partial_coverage",
				Message: "required slots left unfilled",
				RowID:   slot.RowID,
				Date:    slot.Date,
			})
		}
	}
	return notes
}

func dateRange(start, end string) []string {
	s, errA := time.Parse(dateLayout, start)
	e, errB := time.Parse(dateLayout, end)
	if errA != nil || errB != nil || e.Before(s) {
		return []string{start}
	}
	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}
