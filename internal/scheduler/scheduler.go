package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/trakset/internal/metrics"
)

// Purger deletes draft notes created before cutoff.
type Purger interface {
	PurgeDrafts(ctx context.Context, cutoff time.Time) (int64, error)
}

// Run starts a cron runner that purges draft notes older than retention on
// spec. It returns once the job is scheduled; the runner stops when ctx ends.
func Run(ctx context.Context, purger Purger, spec string, retention time.Duration) error {
	c := cron.New()

	if _, err := c.AddFunc(spec, func() { purge(ctx, purger, retention, time.Now) }); err != nil {
		return fmt.Errorf("scheduler: invalid cron spec %q: %w", spec, err)
	}
	c.Start()
	slog.Info("scheduler: draft note purge scheduled", "spec", spec, "retention", retention)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

func purge(ctx context.Context, purger Purger, retention time.Duration, now func() time.Time) {
	n, err := purger.PurgeDrafts(ctx, now().Add(-retention))
	if err != nil {
		slog.Error("scheduler: purge draft notes", "error", err)
		return
	}
	metrics.DraftNotesPurged.Add(float64(n))
	if n > 0 {
		slog.Info("scheduler: purged draft notes", "count", n)
	}
}
