package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/pkg/export"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

type exportStateLoader interface {
	Load(ctx context.Context, userID string) (models.AppState, error)
}

type exportJobRepository interface {
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, resultPath string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type icalRenderer interface {
	Render(events []export.ICalEvent) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures a signed download reference to a completed export.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// ExportService renders a user's assignments for a date range into csv, pdf,
// or ical and stores the result for signed download.
type ExportService struct {
	states  exportStateLoader
	jobs    exportJobRepository
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	ical    icalRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(states exportStateLoader, jobRepo exportJobRepository, fs fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, ical icalRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if ical == nil {
		ical = export.NewICalExporter("")
	}
	return &ExportService{
		states:  states,
		jobs:    jobRepo,
		storage: fs,
		csv:     csv,
		pdf:     pdf,
		ical:    ical,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Handle is a pkg/jobs.Handler compatible entry point: job.Payload must be the
// export job's ID.
func (s *ExportService) Handle(ctx context.Context, jobID string) error {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		s.logger.Warn("failed to mark export job running", zap.String("jobId", job.ID), zap.Error(err))
	}

	result, err := s.Generate(ctx, job)
	if err != nil {
		if markErr := s.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.String("jobId", job.ID), zap.Error(markErr))
		}
		return err
	}

	if err := s.jobs.MarkCompleted(ctx, job.ID, result.RelativePath); err != nil {
		return fmt.Errorf("mark export job %s completed: %w", job.ID, err)
	}
	return nil
}

// Generate builds the rendered payload for job and stores it.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	state, err := s.states.Load(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("load scheduling state: %w", err)
	}

	assignments := assignmentsInRange(state.Assignments, job.StartDate, job.EndDate)

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(buildAssignmentDataset(state, assignments))
	case models.ExportFormatPDF:
		title := fmt.Sprintf("Schedule %s to %s", job.StartDate, job.EndDate)
		payload, err = s.pdf.Render(buildAssignmentDataset(state, assignments), title)
	case models.ExportFormatICal:
		payload, err = s.ical.Render(buildAssignmentEvents(state, assignments))
	default:
		err = fmt.Errorf("unsupported export format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := buildExportFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RenderClinicianFeed builds a standing iCalendar feed for a single clinician,
// covering every assignment on record rather than a bounded date range. This
// backs published, token-addressable subscription links.
func (s *ExportService) RenderClinicianFeed(ctx context.Context, userID, clinicianID string) ([]byte, error) {
	state, err := s.states.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load scheduling state: %w", err)
	}

	var forClinician []models.Assignment
	for _, a := range state.Assignments {
		if a.ClinicianID == clinicianID {
			forClinician = append(forClinician, a)
		}
	}

	return s.ical.Render(buildAssignmentEvents(state, forClinician))
}

func assignmentsInRange(assignments []models.Assignment, start, end string) []models.Assignment {
	var out []models.Assignment
	for _, a := range assignments {
		if a.Date >= start && a.Date <= end {
			out = append(out, a)
		}
	}
	return out
}

func buildAssignmentDataset(state models.AppState, assignments []models.Assignment) export.Dataset {
	rowNames := make(map[string]string, len(state.Rows))
	for _, row := range state.Rows {
		rowNames[row.ID] = row.Name
	}
	clinicianNames := make(map[string]string, len(state.Clinicians))
	for _, c := range state.Clinicians {
		clinicianNames[c.ID] = c.Name
	}

	rows := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, map[string]string{
			"Date":      a.Date,
			"Row":       rowNames[a.RowID],
			"Sub-shift": a.SubShiftID,
			"Clinician": clinicianNames[a.ClinicianID],
			"Source":    string(a.Source),
		})
	}

	return export.Dataset{
		Headers: []string{"Date", "Row", "Sub-shift", "Clinician", "Source"},
		Rows:    rows,
	}
}

func buildAssignmentEvents(state models.AppState, assignments []models.Assignment) []export.ICalEvent {
	rowByID := make(map[string]models.WorkplaceRow, len(state.Rows))
	for _, row := range state.Rows {
		rowByID[row.ID] = row
	}
	clinicianNames := make(map[string]string, len(state.Clinicians))
	for _, c := range state.Clinicians {
		clinicianNames[c.ID] = c.Name
	}

	var events []export.ICalEvent
	for _, a := range assignments {
		row, ok := rowByID[a.RowID]
		if !ok {
			continue
		}
		var slot models.TemplateSlot
		found := false
		for _, s := range row.Slots {
			if s.SubShiftID == a.SubShiftID {
				slot, found = s, true
				break
			}
		}
		if !found {
			continue
		}
		start, errA := time.Parse("2006-01-02 15:04", a.Date+" "+slot.StartTime)
		if errA != nil {
			continue
		}
		end := start.AddDate(0, 0, slot.EndDayOffset)
		if endTime, errB := time.Parse("15:04", slot.EndTime); errB == nil {
			end = time.Date(end.Year(), end.Month(), end.Day(), endTime.Hour(), endTime.Minute(), 0, 0, end.Location())
		}

		events = append(events, export.ICalEvent{
			UID:      a.Date + "-" + a.SlotKey() + "-" + a.ClinicianID,
			Summary:  fmt.Sprintf("%s (%s)", row.Name, clinicianNames[a.ClinicianID]),
			Location: row.Name,
			Start:    start,
			End:      end,
		})
	}
	return events
}

func buildExportFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("schedule_%s_%s_%s.%s", job.StartDate, job.EndDate, timestamp, job.Format)
}
