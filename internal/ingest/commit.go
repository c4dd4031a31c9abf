package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultBatchSize is the commit batch size when configuration supplies none.
const DefaultBatchSize = 25

// Executor commits validated rows to the record store in fixed-size batches.
// Batches run strictly one after another; within a batch each row is
// persisted independently and a rejected row never stops the rest.
type Executor struct {
	Store     RecordStore
	BatchSize int
	Pause     time.Duration // politeness pause between batches
	Progress  ProgressFunc
	Logger    *slog.Logger

	// OnComplete, when set, is invoked after the pass so collaborators can
	// refresh cached catalogs and lists.
	OnComplete func(ctx context.Context)
}

// Run persists rows sequentially and reports the final tally. Rows must come
// from a ValidationResult's ValidRows; the executor never re-validates.
// Cancellation is honored between batches only — a row write begun is always
// allowed to finish.
func (e *Executor) Run(ctx context.Context, tenantID uuid.UUID, rows []Resolved) *UploadResult {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	res := &UploadResult{}
	total := len(rows)

	for start := 0; start < total; start += batchSize {
		if start > 0 {
			if ctx.Err() != nil {
				res.Message = fmt.Sprintf("cancelled after %d of %d records", res.Processed, total)
				res.Success = false
				return res
			}
			if e.Pause > 0 {
				time.Sleep(e.Pause)
			}
		}

		end := min(start+batchSize, total)
		for _, rec := range rows[start:end] {
			if _, err := e.Store.CreateRecord(ctx, tenantID, rec); err != nil {
				res.Failed++
				logger.Warn("record rejected by store",
					"document", rec.DocumentNumber,
					"error", err,
				)
			} else {
				res.Processed++
				res.InsertedKeys = append(res.InsertedKeys, rec.DocumentNumber)
			}
			report(e.Progress, StageCommitting, res.Processed+res.Failed, total)
		}
	}

	res.Success = res.Failed == 0
	if res.Success {
		res.Message = fmt.Sprintf("imported %d records", res.Processed)
	} else {
		res.Message = fmt.Sprintf("imported %d of %d records, %d failed", res.Processed, total, res.Failed)
	}

	if e.OnComplete != nil {
		e.OnComplete(ctx)
	}

	return res
}
