package models

// DefaultLocationID is synthesised by the normaliser when no location exists yet.
const DefaultLocationID = "location-default"

// Location is a physical site a workplace row can be tied to.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
