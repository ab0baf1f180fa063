package models

import "time"

// ExportFormat enumerates the supported rendering targets for an assignment export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatICal ExportFormat = "ical"
)

// ExportJobStatus tracks the lifecycle of an asynchronous export.
type ExportJobStatus string

const (
	ExportJobPending   ExportJobStatus = "pending"
	ExportJobRunning   ExportJobStatus = "running"
	ExportJobCompleted ExportJobStatus = "completed"
	ExportJobFailed    ExportJobStatus = "failed"
)

// ExportJob represents one requested rendering of a user's assignments.
type ExportJob struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"userId"`
	Format       ExportFormat    `db:"format" json:"format"`
	StartDate    string          `db:"start_date" json:"startDate"`
	EndDate      string          `db:"end_date" json:"endDate"`
	Status       ExportJobStatus `db:"status" json:"status"`
	ResultPath   string          `db:"result_path" json:"-"`
	DownloadURL  string          `db:"-" json:"downloadUrl,omitempty"`
	ErrorMessage string          `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	CompletedAt  *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
}
