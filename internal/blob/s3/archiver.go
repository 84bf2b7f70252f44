package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddslab/arbscan/internal/domain"
)

// archiveBatchSize bounds how many rows one archive upload carries.
const archiveBatchSize = 5000

// Archiver implements domain.Archiver by draining aged rows from the domain
// stores, serializing them to JSONL, and uploading the result to blob
// storage. Each batch is deleted from the primary store only after its
// upload succeeds.
type Archiver struct {
	writer        *Writer
	opportunities domain.OpportunityStore
	rejections    domain.RejectionStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer *Writer, opps domain.OpportunityStore, rejs domain.RejectionStore) *Archiver {
	return &Archiver{
		writer:        writer,
		opportunities: opps,
		rejections:    rejs,
	}
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// to archive/opportunities/ and removes them from the store. It returns the
// number of archived rows.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		rows, err := a.opportunities.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive opportunities query: %w", err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		if err := uploadBatch(ctx, a.writer, "opportunities", before, rows); err != nil {
			return total, err
		}

		cutoff := rows[len(rows)-1].DetectedAt.Add(time.Nanosecond)
		if cutoff.After(before) {
			cutoff = before
		}
		if _, err := a.opportunities.DeleteBefore(ctx, cutoff); err != nil {
			return total, fmt.Errorf("s3blob: archive opportunities delete: %w", err)
		}

		total += int64(len(rows))
		if len(rows) < archiveBatchSize {
			return total, nil
		}
	}
}

// ArchiveRejections uploads all rejections recorded before the cutoff to
// archive/rejections/ and removes them from the store. It returns the number
// of archived rows.
func (a *Archiver) ArchiveRejections(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		rows, err := a.rejections.ListBefore(ctx, before, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive rejections query: %w", err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		if err := uploadBatch(ctx, a.writer, "rejections", before, rows); err != nil {
			return total, err
		}

		cutoff := rows[len(rows)-1].At.Add(time.Nanosecond)
		if cutoff.After(before) {
			cutoff = before
		}
		if _, err := a.rejections.DeleteBefore(ctx, cutoff); err != nil {
			return total, fmt.Errorf("s3blob: archive rejections delete: %w", err)
		}

		total += int64(len(rows))
		if len(rows) < archiveBatchSize {
			return total, nil
		}
	}
}

// uploadBatch serializes one batch to JSONL and uploads it, switching to a
// multipart upload when the payload crosses the 5 MiB part threshold.
func uploadBatch[T any](ctx context.Context, w *Writer, kind string, before time.Time, rows []T) error {
	buf, err := marshalJSONL(rows)
	if err != nil {
		return fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if int64(len(buf)) >= minPartSize {
		if err := w.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize); err != nil {
			return fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
		}
		return nil
	}
	if err := w.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	return nil
}

// archivePath builds the blob key for an archive file, partitioned by the
// year-month of the cutoff and disambiguated by upload time so repeated runs
// within the same month never clobber each other.
//
//	archive/opportunities/2025-01/20250115T120000Z.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind, before.Format("2006-01"), time.Now().UTC().Format("20060102T150405Z"))
}

// marshalJSONL serializes a slice of values as newline-delimited JSON. Each
// element is one compact JSON line.
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

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
