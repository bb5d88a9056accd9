package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/prizedraw/internal/notify"
	"golang.org/x/sync/errgroup"
)

// Report summarises one batch run.
type Report struct {
	Ended      int `json:"ended"`
	EndingSoon int `json:"endingSoon"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Skipped    int `json:"skipped"`
	Marked     int `json:"marked"`
	Notified   int `json:"notified"`
	Failed     int `json:"failed"`

	// NotifyFailed counts competitions that were marked but whose
	// participants could not all be reminded. They are also in Marked.
	NotifyFailed int `json:"notifyFailed"`
}

// Processed counts competitions whose state this run changed.
func (r Report) Processed() int {
	return r.Completed + r.Cancelled + r.Marked
}

// RunDue scans and processes everything that is due. Items run concurrently
// up to the configured limit; a failing item is logged and counted but does
// not stop its siblings. Only a failed scan returns an error.
func (e *Engine) RunDue(ctx context.Context) (Report, error) {
	start := time.Now()
	scan, err := e.Scan(ctx, e.now())
	if err != nil {
		return Report{}, err
	}

	var (
		mu  sync.Mutex
		rep = Report{Ended: len(scan.Ended), EndingSoon: len(scan.EndingSoon)}
	)
	record := func(fn func(r *Report)) {
		mu.Lock()
		defer mu.Unlock()
		fn(&rep)
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, id := range scan.Ended {
		g.Go(func() error {
			outcome, err := e.Resolve(ctx, id)
			if err != nil {
				e.logger.ErrorContext(ctx, "resolve failed",
					slog.String("competition_id", id),
					slog.String("error", err.Error()),
				)
				record(func(r *Report) { r.Failed++ })
				return nil
			}
			record(func(r *Report) {
				switch outcome {
				case OutcomeCompleted:
					r.Completed++
				case OutcomeCancelled:
					r.Cancelled++
				default:
					r.Skipped++
				}
			})
			return nil
		})
	}

	for _, id := range scan.EndingSoon {
		g.Go(func() error {
			res, err := e.MarkEndingSoon(ctx, id)
			if err != nil && res.Marked {
				e.logger.WarnContext(ctx, "competition marked but reminders failed",
					slog.String("competition_id", id),
					slog.String("error", err.Error()),
				)
				record(func(r *Report) {
					r.Marked++
					r.NotifyFailed++
				})
				return nil
			}
			if err != nil {
				e.logger.ErrorContext(ctx, "mark ending soon failed",
					slog.String("competition_id", id),
					slog.String("error", err.Error()),
				)
				record(func(r *Report) { r.Failed++ })
				return nil
			}
			record(func(r *Report) {
				if res.Marked {
					r.Marked++
					r.Notified += res.Notified
				} else {
					r.Skipped++
				}
			})
			return nil
		})
	}

	_ = g.Wait()

	e.logger.InfoContext(ctx, "batch finished",
		slog.Int("ended", rep.Ended),
		slog.Int("ending_soon", rep.EndingSoon),
		slog.Int("completed", rep.Completed),
		slog.Int("cancelled", rep.Cancelled),
		slog.Int("marked", rep.Marked),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed),
		slog.Int("notify_failed", rep.NotifyFailed),
		slog.Duration("elapsed", time.Since(start)),
	)
	if rep.Failed > 0 {
		e.alert(ctx, notify.EventBatchFailed, "Draw batch had failures",
			fmt.Sprintf("%d of %d competitions failed; see logs.", rep.Failed, rep.Ended+rep.EndingSoon))
	}
	return rep, nil
}
