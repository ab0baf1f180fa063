package models

import "time"

// AppState is the full normalised scheduling state owned by a single user.
type AppState struct {
	Locations              []Location          `json:"locations"`
	LocationsEnabled       bool                `json:"locationsEnabled"`
	Rows                   []WorkplaceRow      `json:"rows"`
	Clinicians             []Clinician         `json:"clinicians"`
	Assignments            []Assignment        `json:"assignments"`
	MinSlotsByRowID        map[string]MinSlots `json:"minSlotsByRowId"`
	SlotOverridesByKey     map[string]int      `json:"slotOverridesByKey"`
	Rules                  []SolverRule        `json:"solverRules"`
	Holidays               []Holiday           `json:"holidays"`
	HolidayCountry         *string             `json:"holidayCountry,omitempty"`
	HolidayYear            *int                `json:"holidayYear,omitempty"`
	Settings               SolverSettings      `json:"solverSettings"`
	PublishedWeekStartISOs []string            `json:"publishedWeekStartIsos,omitempty"`
}

// AppStateRecord is the persisted, versioned envelope around an AppState blob.
type AppStateRecord struct {
	UserID    string    `db:"user_id" json:"userId"`
	Version   int       `db:"version" json:"version"`
	State     []byte    `db:"state" json:"state"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// UserStateExport is the self-contained document produced by state export and
// accepted by state import, carrying a schema version for forward compatibility.
type UserStateExport struct {
	SchemaVersion int       `json:"schemaVersion"`
	ExportedAt    time.Time `json:"exportedAt"`
	State         AppState  `json:"state"`
}

// CurrentSchemaVersion is the schema version written by this build.
const CurrentSchemaVersion = 1
