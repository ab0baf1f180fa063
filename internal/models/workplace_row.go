package models

// RowKind distinguishes a fixed section/class row from a floating coverage pool.
type RowKind string

const (
	RowKindSection RowKind = "section"
	RowKindClass   RowKind = "class"
	RowKindPool    RowKind = "pool"
)

// Deprecated pool identifiers that must never survive normalisation.
const (
	DeprecatedPoolNotAllocated = "pool-not-allocated"
	DeprecatedPoolManual       = "pool-manual"
)

// DayTypeHoliday is the column-band selector a weekly template switches to on
// a date marked in AppState.Holidays, in place of its weekday name.
const DayTypeHoliday = "holiday"

// TemplateSlot describes one sub-shift position within a workplace row's
// weekly template, banded to a day type. An empty DayType applies to every
// day the row doesn't otherwise band, which keeps single-band templates (the
// common case) free of repetition.
type TemplateSlot struct {
	SubShiftID    string `json:"subShiftId"`
	Order         int    `json:"order"`
	DayType       string `json:"dayType,omitempty"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	EndDayOffset  int    `json:"endDayOffset"`
	LocationID    string `json:"locationId,omitempty"`
	RequiredSlots int    `json:"requiredSlots"`
}

// WorkplaceRow is a schedulable unit: a fixed section/class or a coverage pool.
type WorkplaceRow struct {
	ID         string         `json:"id"`
	Kind       RowKind        `json:"kind"`
	Name       string         `json:"name"`
	ClassIndex int            `json:"classIndex"`
	LocationID string         `json:"locationId,omitempty"`
	Slots      []TemplateSlot `json:"slots"`
}

// SlotID joins a row id and sub-shift id using the canonical separator.
func SlotID(rowID, subShiftID string) string {
	return rowID + "::" + subShiftID
}
