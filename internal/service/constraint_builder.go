package service

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// assignmentVar links one (slot, clinician) decision variable back to the
// concrete slot and clinician it represents, so the solver driver can read
// the solution back out without re-deriving it.
type assignmentVar struct {
	Slot        ExpandedSlot
	ClinicianID string
	Var         cpmodel.BoolVar
}

// BuiltModel is the CP-SAT model together with the bookkeeping needed to
// compose an objective over it and decode its solution.
type BuiltModel struct {
	Builder     *cpmodel.CpModelBuilder
	Slots       []ExpandedSlot
	Vars        []assignmentVar
	BySlot      map[string][]int // slot key -> indices into Vars
	ByClinician map[string][]int // clinician id -> indices into Vars

	// BoundaryNotes surfaces on-call rest conflicts that fall outside the
	// solved range (and so cannot be enforced as a hard constraint against a
	// decision variable) but were found to already conflict with a fixed,
	// historical assignment.
	BoundaryNotes []string
}

// ConstraintBuilder turns expanded slots and solver rules into a CP-SAT model.
type ConstraintBuilder struct{}

// NewConstraintBuilder constructs a ConstraintBuilder.
func NewConstraintBuilder() *ConstraintBuilder { return &ConstraintBuilder{} }

// Build constructs decision variables and hard constraints for the given
// slots against the clinician roster in state. slots may include ContextOnly
// entries (the day immediately before/after the target range); no decision
// variable is ever created for a ContextOnly slot, but their timing is used
// to resolve the on-call rest constraint, and onlyFillRequired caps every
// slot's solver assignments at its RequiredSlots target (see §4.3/§4.4).
func (b *ConstraintBuilder) Build(state models.AppState, slots []ExpandedSlot, onlyFillRequired bool) (*BuiltModel, error) {
	model := cpmodel.NewCpModelBuilder()

	built := &BuiltModel{
		Builder:     model,
		Slots:       slots,
		BySlot:      make(map[string][]int),
		ByClinician: make(map[string][]int),
	}

	for _, slot := range slots {
		if slot.ContextOnly {
			continue
		}
		slotKey := slot.Key()
		for _, c := range state.Clinicians {
			if !c.IsQualified(slot.RowID) {
				continue
			}
			if c.OnVacation(slot.Date) {
				continue
			}

			v := model.NewBoolVar().WithName("x_" + slotKey + "_" + c.ID)
			idx := len(built.Vars)
			built.Vars = append(built.Vars, assignmentVar{Slot: slot, ClinicianID: c.ID, Var: v})
			built.BySlot[slotKey] = append(built.BySlot[slotKey], idx)
			built.ByClinician[c.ID] = append(built.ByClinician[c.ID], idx)
		}

		if onlyFillRequired {
			if indices := built.BySlot[slotKey]; len(indices) > 0 {
				sum := cpmodel.NewLinearExpr()
				for _, idx := range indices {
					sum.Add(built.Vars[idx].Var)
				}
				model.AddLessOrEqual(sum, cpmodel.NewConstant(int64(slot.RequiredSlots)))
			}
		}
	}

	addOverlapConstraints(model, built)
	addSameLocationConstraint(model, built, state.Settings)
	addContinuityConstraint(model, built, state.Settings)
	addOnCallRestConstraint(model, built, state)
	applyRules(model, built, state.Rules)

	return built, nil
}

// addOverlapConstraints forbids a clinician from holding two slot instances
// whose absolute-minute intervals genuinely overlap, regardless of whether
// they share a sub-shift Order or a workplace row. Touching intervals
// (one's AbsEnd equal to the other's AbsStart) are not an overlap.
func addOverlapConstraints(model *cpmodel.CpModelBuilder, built *BuiltModel) {
	for _, indices := range built.ByClinician {
		sorted := append([]int(nil), indices...)
		sort.Slice(sorted, func(i, j int) bool {
			return built.Vars[sorted[i]].Slot.AbsStart < built.Vars[sorted[j]].Slot.AbsStart
		})
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				a, c := built.Vars[sorted[i]], built.Vars[sorted[j]]
				if a.Slot.AbsEnd <= c.Slot.AbsStart {
					break // sorted by AbsStart: no later slot can overlap a either
				}
				model.AddAtMostOne(a.Var, c.Var)
			}
		}
	}
}

// addSameLocationConstraint forbids a clinician from holding two same-day
// slots at different locations, when enabled.
func addSameLocationConstraint(model *cpmodel.CpModelBuilder, built *BuiltModel, settings models.SolverSettings) {
	if !settings.EnforceSameLocationPerDay {
		return
	}
	for _, indices := range perClinicianDay(built) {
		for i := 0; i < len(indices); i++ {
			for j := i + 1; j < len(indices); j++ {
				a, c := built.Vars[indices[i]], built.Vars[indices[j]]
				if a.Slot.LocationID == "" || c.Slot.LocationID == "" || a.Slot.LocationID == c.Slot.LocationID {
					continue
				}
				model.AddAtMostOne(a.Var, c.Var)
			}
		}
	}
}

// addContinuityConstraint forbids a clinician from holding two same-day slots
// with a genuine time gap between them unless at least one candidate slot
// lying inside that gap is also assigned to them. Every such pair on the day
// is constrained, so the slots a clinician holds on one day form a single
// block. A gap with no candidate filler at all is simply forbidden outright.
func addContinuityConstraint(model *cpmodel.CpModelBuilder, built *BuiltModel, settings models.SolverSettings) {
	if !settings.PreferContinuousShifts {
		return
	}
	for _, indices := range perClinicianDay(built) {
		sorted := append([]int(nil), indices...)
		sort.Slice(sorted, func(i, j int) bool {
			return built.Vars[sorted[i]].Slot.AbsStart < built.Vars[sorted[j]].Slot.AbsStart
		})
		for i := 0; i < len(sorted); i++ {
			cur := built.Vars[sorted[i]]
			for j := i + 1; j < len(sorted); j++ {
				next := built.Vars[sorted[j]]
				if next.Slot.AbsStart < cur.Slot.AbsEnd {
					continue // still overlapping, handled elsewhere
				}
				if next.Slot.AbsStart == cur.Slot.AbsEnd {
					continue // touching: continuous, no constraint needed
				}

				var fillers []cpmodel.BoolVar
				for k := i + 1; k < j; k++ {
					mid := built.Vars[sorted[k]]
					if mid.Slot.AbsStart >= cur.Slot.AbsEnd && mid.Slot.AbsEnd <= next.Slot.AbsStart {
						fillers = append(fillers, mid.Var)
					}
				}
				if len(fillers) == 0 {
					model.AddAtMostOne(cur.Var, next.Var)
					continue
				}
				lits := []cpmodel.Literal{cur.Var.Not(), next.Var.Not()}
				for _, f := range fillers {
					lits = append(lits, f)
				}
				model.AddBoolOr(lits...)
			}
		}
	}
}

func perClinicianDay(built *BuiltModel) map[string][]int {
	out := make(map[string][]int)
	for i, av := range built.Vars {
		key := av.ClinicianID + "|" + av.Slot.Date
		out[key] = append(out[key], i)
	}
	return out
}

// addOnCallRestConstraint forbids a clinician assigned to the configured
// on-call class on date D from also being assigned anywhere on D+-k, for k in
// [1,DaysBefore]/[1,DaysAfter]. Neighbour dates that fall within the solved
// range are enforced as hard constraints against decision variables;
// neighbour dates outside the range have no decision variable, so a
// pre-existing historical assignment there is only surfaced as a boundary
// note.
func addOnCallRestConstraint(model *cpmodel.CpModelBuilder, built *BuiltModel, state models.AppState) {
	settings := state.Settings
	if !settings.OnCallRestEnabled || settings.OnCallRestClassID == "" {
		return
	}
	if settings.OnCallRestDaysBefore <= 0 && settings.OnCallRestDaysAfter <= 0 {
		return
	}

	varsByClinicianDate := make(map[string][]int)
	for i, av := range built.Vars {
		key := av.ClinicianID + "|" + av.Slot.Date
		varsByClinicianDate[key] = append(varsByClinicianDate[key], i)
	}

	historical := make(map[string]bool, len(state.Assignments))
	for _, a := range state.Assignments {
		historical[a.ClinicianID+"|"+a.Date] = true
	}

	offsets := func() []int {
		var out []int
		for k := 1; k <= settings.OnCallRestDaysBefore; k++ {
			out = append(out, -k)
		}
		for k := 1; k <= settings.OnCallRestDaysAfter; k++ {
			out = append(out, k)
		}
		return out
	}()

	for _, av := range built.Vars {
		if av.Slot.RowID != settings.OnCallRestClassID {
			continue
		}
		onDate, err := time.Parse(dateLayout, av.Slot.Date)
		if err != nil {
			continue
		}
		for _, offset := range offsets {
			neighborDate := onDate.AddDate(0, 0, offset).Format(dateLayout)
			key := av.ClinicianID + "|" + neighborDate
			if neighborVars, ok := varsByClinicianDate[key]; ok {
				for _, idx := range neighborVars {
					model.AddAtMostOne(av.Var, built.Vars[idx].Var)
				}
				continue
			}
			if historical[key] {
				built.BoundaryNotes = append(built.BoundaryNotes, "on-call rest conflict with an existing assignment on "+neighborDate+" for clinician "+av.ClinicianID)
			}
		}
	}
}

// applyRules enforces every enabled SolverRule: if a clinician is assigned
// IfShiftRowID on day D, then on day D+DayDelta they must either also work
// ThenShiftRowID (ThenType == ThenShiftRow) or have no assignment at all
// (ThenType == ThenOff). A rule's target day outside the solved range has no
// decision variable to constrain and is silently skipped.
func applyRules(model *cpmodel.CpModelBuilder, built *BuiltModel, rules []models.SolverRule) {
	varsByClinicianDate := make(map[string][]int)
	for i, av := range built.Vars {
		key := av.ClinicianID + "|" + av.Slot.Date
		varsByClinicianDate[key] = append(varsByClinicianDate[key], i)
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for _, av := range built.Vars {
			if av.Slot.RowID != rule.IfShiftRowID {
				continue
			}
			onDate, err := time.Parse(dateLayout, av.Slot.Date)
			if err != nil {
				continue
			}
			targetDate := onDate.AddDate(0, 0, rule.DayDelta).Format(dateLayout)
			neighborVars, ok := varsByClinicianDate[av.ClinicianID+"|"+targetDate]
			if !ok {
				continue
			}

			switch rule.ThenType {
			case models.ThenOff:
				for _, idx := range neighborVars {
					model.AddAtMostOne(av.Var, built.Vars[idx].Var)
				}
			case models.ThenShiftRow:
				var matches []cpmodel.BoolVar
				for _, idx := range neighborVars {
					if built.Vars[idx].Slot.RowID == rule.ThenShiftRowID {
						matches = append(matches, built.Vars[idx].Var)
					}
				}
				if len(matches) == 0 {
					model.AddEquality(av.Var, cpmodel.NewConstant(0))
					continue
				}
				lits := []cpmodel.Literal{av.Var.Not()}
				for _, m := range matches {
					lits = append(lits, m)
				}
				model.AddBoolOr(lits...)
			}
		}
	}
}

// WeeklyHoursWindows groups expanded slots into ISO weeks for weekly-hours accounting.
func WeeklyHoursWindows(slots []ExpandedSlot) map[string][]ExpandedSlot {
	windows := make(map[string][]ExpandedSlot)
	for _, s := range slots {
		if s.ContextOnly {
			continue
		}
		d, err := time.Parse(dateLayout, s.Date)
		if err != nil {
			continue
		}
		year, week := d.ISOWeek()
		key := strconv.Itoa(year) + "-W" + strconv.Itoa(week)
		windows[key] = append(windows[key], s)
	}
	return windows
}

// SlotHours estimates the duration of a slot in hours from its HH:MM start/end times.
func SlotHours(slot ExpandedSlot) float64 {
	start, errA := time.Parse("15:04", slot.StartTime)
	end, errB := time.Parse("15:04", slot.EndTime)
	if errA != nil || errB != nil {
		return 0
	}
	minutes := end.Sub(start).Minutes()
	if minutes < 0 {
		minutes += 24 * 60
	}
	return minutes / 60
}
