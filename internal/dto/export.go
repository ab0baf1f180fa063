package dto

import "github.com/noah-isme/sma-adp-api/internal/models"

// CreateExportJobRequest enqueues an asynchronous rendering of the caller's assignments.
type CreateExportJobRequest struct {
	Format    models.ExportFormat `json:"format" validate:"required"`
	StartDate string              `json:"startDate" validate:"required"`
	EndDate   string              `json:"endDate" validate:"required"`
}

// CreatePublicationLinkRequest issues a standing iCal feed link for one clinician.
type CreatePublicationLinkRequest struct {
	ClinicianID string `json:"clinicianId" validate:"required"`
}
