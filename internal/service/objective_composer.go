package service

import (
	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// Objective tier weights. Each tier dominates every tier listed after it by
// construction: the largest possible contribution from tier N+1 never
// outweighs the smallest unit of improvement in tier N.
const (
	weightCoverage   = 1_000_000
	weightSlack      = 50_000
	weightHours      = 1_000
	weightPriority   = 100
	weightPreference = 10
	weightContinuity = 1
)

// ObjectiveComposer assembles the lexicographically-tiered objective over a
// built model: coverage >> coverage slack >> weekly-hours deviation >>
// top-priority weight >> preference rank >> continuity bonus.
type ObjectiveComposer struct{}

// NewObjectiveComposer constructs an ObjectiveComposer.
func NewObjectiveComposer() *ObjectiveComposer { return &ObjectiveComposer{} }

// Compose adds slack variables for coverage shortfalls and weekly-hours
// deviation to built.Builder, then sets the model's minimization objective.
// The priority term (rewarding any fill, weighted by slot importance) is
// dropped entirely when onlyFillRequired is set: in that mode the caller
// wants exactly the required coverage, not extra filling encouraged beyond
// it.
func (o *ObjectiveComposer) Compose(state models.AppState, built *BuiltModel, onlyFillRequired bool) {
	model := built.Builder
	objective := cpmodel.NewLinearExpr()

	for _, av := range built.Vars {
		coeff := int64(-weightCoverage * av.Slot.Weight)

		if !onlyFillRequired {
			coeff -= int64(weightPriority * av.Slot.Weight)
		}

		if pref := preferenceScore(clinicianByID(state, av.ClinicianID), av.Slot.RowID); pref > 0 {
			coeff -= int64(weightPreference * pref)
		}

		objective.AddTerm(av.Var, coeff)
	}

	composeCoverageSlack(model, built, objective)
	composeWeeklyHoursSlack(model, state, built, objective)
	composeContinuityBonus(model, state, built, objective)

	model.Minimize(objective)
}

func clinicianByID(state models.AppState, id string) models.Clinician {
	for _, c := range state.Clinicians {
		if c.ID == id {
			return c
		}
	}
	return models.Clinician{}
}

// preferenceScore implements pref(c,k) = max(1, |prefs(c)| - rank) when k is
// in c's preference list, 0 otherwise.
func preferenceScore(c models.Clinician, classID string) int {
	rank := c.PreferenceRank(classID)
	if rank < 0 {
		return 0
	}
	score := len(c.PreferredClassIDs) - rank
	if score < 1 {
		score = 1
	}
	return score
}

// composeCoverageSlack penalises, per slot instance, the shortfall between
// the number of clinicians assigned and its RequiredSlots target.
func composeCoverageSlack(model *cpmodel.CpModelBuilder, built *BuiltModel, objective *cpmodel.LinearExpr) {
	for _, slot := range built.Slots {
		if slot.ContextOnly || slot.RequiredSlots <= 0 {
			continue
		}
		indices := built.BySlot[slot.Key()]

		sum := cpmodel.NewLinearExpr()
		for _, idx := range indices {
			sum.Add(built.Vars[idx].Var)
		}

		shortfall := model.NewIntVar(0, int64(slot.RequiredSlots)).WithName("shortfall_" + slot.Key())
		rhs := cpmodel.NewLinearExpr()
		rhs.AddTerm(shortfall, 1)
		rhs.Add(sum)
		model.AddGreaterOrEqual(rhs, cpmodel.NewConstant(int64(slot.RequiredSlots)))
		objective.AddTerm(shortfall, weightSlack)
	}
}

// composeWeeklyHoursSlack penalises, per clinician per ISO week, the absolute
// deviation between assigned hours and the clinician's declared weekly
// target, allowing WorkingHoursToleranceHours of free slack either way.
func composeWeeklyHoursSlack(model *cpmodel.CpModelBuilder, state models.AppState, built *BuiltModel, objective *cpmodel.LinearExpr) {
	windows := WeeklyHoursWindows(built.Slots)
	toleranceMinutes := int64(state.Settings.WorkingHoursToleranceHours * 60)

	for _, c := range state.Clinicians {
		if c.WorkingHoursPerWeek <= 0 {
			continue
		}
		targetMinutes := int64(c.WorkingHoursPerWeek * 60)

		for weekKey, slots := range windows {
			inWindow := make(map[string]bool, len(slots))
			for _, s := range slots {
				inWindow[s.Key()] = true
			}

			minutes := cpmodel.NewLinearExpr()
			var maxMinutes int64
			for _, av := range built.Vars {
				if av.ClinicianID != c.ID || !inWindow[av.Slot.Key()] {
					continue
				}
				m := int64(SlotHours(av.Slot) * 60)
				minutes.AddTerm(av.Var, m)
				maxMinutes += m
			}
			if maxMinutes == 0 {
				continue
			}

			bound := maxMinutes
			if targetMinutes > bound {
				bound = targetMinutes
			}

			over := model.NewIntVar(0, bound).WithName("hours_over_" + c.ID + "_" + weekKey)
			under := model.NewIntVar(0, bound).WithName("hours_under_" + c.ID + "_" + weekKey)

			// minutes - target = over - under
			lhs := cpmodel.NewLinearExpr()
			lhs.Add(minutes)
			lhs.AddTerm(over, -1)
			lhs.AddTerm(under, 1)
			model.AddEquality(lhs, cpmodel.NewConstant(targetMinutes))

			if toleranceMinutes > 0 {
				overAboveTolerance := model.NewIntVar(0, bound).WithName("hours_over_tol_" + c.ID + "_" + weekKey)
				model.AddGreaterOrEqual(overAboveTolerance, cpmodel.NewConstant(0))
				rhs := cpmodel.NewLinearExpr()
				rhs.AddTerm(over, 1)
				rhs.AddTerm(overAboveTolerance, -1)
				model.AddLessOrEqual(rhs, cpmodel.NewConstant(toleranceMinutes))
				objective.AddTerm(overAboveTolerance, weightHours)

				underAboveTolerance := model.NewIntVar(0, bound).WithName("hours_under_tol_" + c.ID + "_" + weekKey)
				model.AddGreaterOrEqual(underAboveTolerance, cpmodel.NewConstant(0))
				rhs2 := cpmodel.NewLinearExpr()
				rhs2.AddTerm(under, 1)
				rhs2.AddTerm(underAboveTolerance, -1)
				model.AddLessOrEqual(rhs2, cpmodel.NewConstant(toleranceMinutes))
				objective.AddTerm(underAboveTolerance, weightHours)
				continue
			}

			objective.AddTerm(over, weightHours)
			objective.AddTerm(under, weightHours)
		}
	}
}

// composeContinuityBonus rewards a clinician holding two directly touching
// same-day slots, nudging the solver toward longer uninterrupted runs even
// when coverage alone would be indifferent between two feasible schedules.
func composeContinuityBonus(model *cpmodel.CpModelBuilder, state models.AppState, built *BuiltModel, objective *cpmodel.LinearExpr) {
	if !state.Settings.PreferContinuousShifts {
		return
	}
	for _, indices := range perClinicianDay(built) {
		for i := 0; i < len(indices); i++ {
			for j := i + 1; j < len(indices); j++ {
				a, c := built.Vars[indices[i]], built.Vars[indices[j]]
				if a.Slot.AbsEnd != c.Slot.AbsStart && c.Slot.AbsEnd != a.Slot.AbsStart {
					continue
				}
				both := model.NewBoolVar().WithName("continuous_" + a.Slot.Key() + "_" + c.Slot.Key())
				model.AddLessOrEqual(both, a.Var)
				model.AddLessOrEqual(both, c.Var)
				lower := cpmodel.NewLinearExpr()
				lower.Add(a.Var)
				lower.Add(c.Var)
				lower.AddTerm(both, -1)
				model.AddLessOrEqual(lower, cpmodel.NewConstant(1))
				objective.AddTerm(both, -weightContinuity)
			}
		}
	}
}
