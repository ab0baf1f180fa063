package service

import (
	"fmt"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	sppb "github.com/google/or-tools/ortools/sat/proto/satparameters"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

const (
	// DefaultDayTimeBudgetSeconds and DefaultRangeTimeBudgetSeconds are the
	// wall-clock budgets used when a request's SolverSettings doesn't
	// override TimeBudgetSeconds: a single day solves fast enough to stay
	// interactive, while a range needs more room to reconcile continuity and
	// weekly-hours slack across several days.
	DefaultDayTimeBudgetSeconds   = 2.0
	DefaultRangeTimeBudgetSeconds = 4.0

	defaultSearchWorkers = 8
)

// SolverResult is the decoded outcome of a single CP-SAT solve.
type SolverResult struct {
	Feasible       bool
	Assignments    []models.Assignment
	ObjectiveValue float64
	WallTime       time.Duration
}

// SolverDriver invokes CP-SAT against a built model and decodes the solution.
type SolverDriver struct{}

// NewSolverDriver constructs a SolverDriver.
func NewSolverDriver() *SolverDriver { return &SolverDriver{} }

// Solve runs CP-SAT with the given settings and returns the decoded solution.
// Infeasibility is reported via SolverResult.Feasible, not as an error: an
// error here means the model itself could not be built or solved, not that
// no schedule exists.
func (d *SolverDriver) Solve(built *BuiltModel, settings models.SolverSettings, defaultTimeBudgetSeconds float64) (*SolverResult, error) {
	m, err := built.Builder.Model()
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate CP model: %w", err)
	}

	timeBudget := settings.TimeBudgetSeconds
	if timeBudget <= 0 {
		timeBudget = defaultTimeBudgetSeconds
	}
	workers := int32(settings.NumSearchWorkers)
	if workers <= 0 {
		workers = defaultSearchWorkers
	}

	params := &sppb.SatParameters{
		MaxTimeInSeconds: &timeBudget,
		NumSearchWorkers: &workers,
	}

	start := time.Now()
	response, err := cpmodel.SolveCpModelWithParameters(m, params)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("failed to solve CP model: %w", err)
	}

	status := response.GetStatus()
	feasible := status == cmpb.CpSolverStatus_OPTIMAL || status == cmpb.CpSolverStatus_FEASIBLE

	result := &SolverResult{
		Feasible:       feasible,
		ObjectiveValue: response.GetObjectiveValue(),
		WallTime:       elapsed,
	}
	if !feasible {
		return result, nil
	}

	for _, av := range built.Vars {
		if cpmodel.SolutionBooleanValue(response, av.Var) {
			result.Assignments = append(result.Assignments, models.Assignment{
				Date:        av.Slot.Date,
				RowID:       av.Slot.RowID,
				SubShiftID:  av.Slot.SubShiftID,
				ClinicianID: av.ClinicianID,
				Source:      models.AssignmentSourceSolver,
			})
		}
	}

	return result, nil
}
