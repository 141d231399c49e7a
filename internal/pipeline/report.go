package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/braxsimmons/Cliopa/internal/model"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// ReportResult counts what WriteReports did.
type ReportResult struct {
	Saved  int `json:"saved"`
	Errors int `json:"errors"`
}

// WriteReports inserts one report card per scored call and advances the
// call to audited. Failures are logged and counted, never returned.
func WriteReports(ctx context.Context, st store.Store, events *EventLog, scored []model.ScoredCall, concurrency int) ReportResult {
	log := zap.L().With(zap.String("stage", "report"))
	var saved, failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limitOrDefault(concurrency))
	for _, sc := range scored {
		g.Go(func() error {
			clog := log.With(zap.String("call_id", sc.CallID))
			rec := model.NewReportRecord(sc)

			if err := st.InsertReport(gCtx, &rec); err != nil {
				failed.Add(1)
				clog.Error("pipeline: insert report failed", zap.Error(err))
				events.Record(gCtx, sc.CallID, "report", model.CallEventError, err.Error())
				if !errors.Is(err, store.ErrDuplicate) {
					return nil
				}
				// The report exists from an earlier run; finish the
				// status move that run could not.
				if err := st.UpdateCallStatus(gCtx, sc.CallRowID, model.CallStatusAudited); err != nil && !errors.Is(err, store.ErrNotFound) {
					clog.Warn("pipeline: audited status repair failed", zap.Error(err))
				}
				return nil
			}

			if err := st.UpdateCallStatus(gCtx, sc.CallRowID, model.CallStatusAudited); err != nil {
				failed.Add(1)
				clog.Error("pipeline: mark call audited failed", zap.Error(err))
				events.Record(gCtx, sc.CallID, "report", model.CallEventError, err.Error())
				return nil
			}

			saved.Add(1)
			clog.Debug("pipeline: report saved", zap.String("report_id", rec.ID), zap.Bool("from_cache", sc.FromCache))
			events.Record(gCtx, sc.CallID, "report", model.CallEventSuccess, "audited")
			return nil
		})
	}
	_ = g.Wait()

	res := ReportResult{Saved: int(saved.Load()), Errors: int(failed.Load())}
	log.Info("pipeline: reports written", zap.Int("saved", res.Saved), zap.Int("errors", res.Errors))
	return res
}
