package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// archiveBatchSize caps how many records one archive run pulls from the
// store. A busy bot catches up over successive runs.
const archiveBatchSize = 5000

// OpportunityArchiveStore provides the read access the archiver needs. The
// Postgres OpportunityStore satisfies it.
type OpportunityArchiveStore interface {
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error)
}

// Archiver uploads terminal opportunities as JSONL snapshots, partitioned
// by the day of the cutoff. Deletion of archived rows from the primary
// store is intentionally NOT performed here; that is a separate, explicit
// retention step executed after the archive has been verified.
type Archiver struct {
	writer *Writer
	store  OpportunityArchiveStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer *Writer, store OpportunityArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		store:  store,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOpportunities queries terminal opportunities completed before the
// cutoff, serializes them to JSONL, and uploads the file under a key built
// from the cutoff day and the run time. The count of archived records is
// returned.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.store.ListTerminalBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before, time.Now().UTC())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	count := int64(len(opps))
	a.logger.Info("opportunities archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the day
// of the cutoff and suffixed with the run time so successive runs over the
// same cutoff day never overwrite each other.
//
//	archive/opportunities/2025-01-31/030000.jsonl
func archivePath(kind string, before, runAt time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01-02"), runAt.Format("150405"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
