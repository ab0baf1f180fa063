package dto

import "github.com/noah-isme/sma-adp-api/internal/models"

// UpdateStateRequest replaces the caller's stored AppState wholesale.
type UpdateStateRequest struct {
	State models.AppState `json:"state" validate:"required"`
}

// ImportStateRequest accepts a previously exported state document.
type ImportStateRequest struct {
	Export models.UserStateExport `json:"export" validate:"required"`
}
