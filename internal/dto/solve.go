package dto

import "github.com/noah-isme/sma-adp-api/internal/models"

// SolveDayRequest asks the scheduler to (re)solve coverage for a single ISO date.
type SolveDayRequest struct {
	Date             string                 `json:"date" validate:"required"`
	OnlyFillRequired bool                   `json:"only_fill_required"`
	Settings         *models.SolverSettings `json:"settings,omitempty"`
}

// SolveRangeRequest asks the scheduler to (re)solve coverage across an inclusive date range.
type SolveRangeRequest struct {
	StartDate        string                 `json:"startDate" validate:"required"`
	EndDate          string                 `json:"endDate" validate:"required"`
	OnlyFillRequired bool                   `json:"only_fill_required"`
	Settings         *models.SolverSettings `json:"settings,omitempty"`
}

// SolveNote reports a non-fatal condition observed while solving (e.g. partial coverage).
type SolveNote struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RowID   string `json:"rowId,omitempty"`
	Date    string `json:"date,omitempty"`
}

// SolveResponse is returned by both solve_day and solve_range; Dates has a single
// entry for solve_day.
type SolveResponse struct {
	Dates          []string            `json:"dates"`
	Assignments    []models.Assignment `json:"assignments"`
	Notes          []SolveNote         `json:"notes,omitempty"`
	Feasible       bool                `json:"feasible"`
	ObjectiveValue float64             `json:"objectiveValue"`
	WallTimeMs     int64               `json:"wallTimeMs"`
}
