package models

import "time"

// PublicationLink is an admin-issued, token-addressable iCalendar feed for one clinician.
type PublicationLink struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"userId"`
	ClinicianID string     `db:"clinician_id" json:"clinicianId"`
	Token       string     `db:"token" json:"token"`
	CreatedBy   string     `db:"created_by" json:"createdBy"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// Active reports whether the link has not been revoked.
func (p PublicationLink) Active() bool {
	return p.RevokedAt == nil
}
