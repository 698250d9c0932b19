package port

import (
	"context"

	"ablemap/internal/domain/entity"
)

// ReportWriter persists reports as files.
type ReportWriter interface {
	WriteReport(path string, report *entity.Report) error
	WriteError(path string, report *entity.ErrorReport) error
}

// ReportRepository keeps the assessment history.
type ReportRepository interface {
	Save(ctx context.Context, report *entity.Report) error
	// Get returns entity.ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*entity.Report, error)
	// Recent returns up to n reports, newest first.
	Recent(ctx context.Context, n int) ([]*entity.Report, error)
}

// ReportSink pushes finished reports to an external service.
type ReportSink interface {
	Send(ctx context.Context, report *entity.Report) (map[string]any, error)
	Ping(ctx context.Context) error
}
