// Package notify delivers transfer and diagnostic emails off the request
// path. Jobs are best effort: a full queue drops them and failures are
// logged, never retried.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crucial707/trakset/internal/metrics"
	"github.com/crucial707/trakset/internal/models"
)

const jobTimeout = 30 * time.Second

// Source is the data a job reloads before sending. Lookups return (nil, nil)
// when the row is gone.
type Source interface {
	TransferByID(ctx context.Context, id uuid.UUID, scope models.Scope) (*models.AssetTransfer, error)
	AssetByID(ctx context.Context, id int64, scope models.Scope) (*models.Asset, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	SubscriberEmails(ctx context.Context, assetID int64) ([]string, error)
	AdminEmails(ctx context.Context) ([]string, error)
}

type kind string

const (
	kindTransfer   kind = "transfer"
	kindDiagnostic kind = "diagnostic"
)

type job struct {
	kind       kind
	transferID uuid.UUID
	message    string
}

// Options configures a Queue.
type Options struct {
	Workers int
	Size    int
	// BaseURL prefixes links in outgoing mail.
	BaseURL string
	Log     *slog.Logger
}

// Queue is a bounded in-process job queue drained by a fixed set of workers.
type Queue struct {
	src     Source
	mailer  Mailer
	baseURL string
	workers int
	log     *slog.Logger

	jobs   chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(src Source, mailer Mailer, opts Options) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Size < 1 {
		opts.Size = 1
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Queue{
		src:     src,
		mailer:  mailer,
		baseURL: opts.BaseURL,
		workers: opts.Workers,
		log:     opts.Log,
		jobs:    make(chan job, opts.Size),
	}
}

// Start launches the workers. Jobs already queued when ctx ends still run;
// call Close to wait for them.
func (q *Queue) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for j := range q.jobs {
				metrics.NotifyQueueDepth.Dec()
				q.run(base, j)
			}
		}()
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// TransferCompleted queues the subscriber email for a committed transfer.
func (q *Queue) TransferCompleted(transferID uuid.UUID) {
	q.enqueue(job{kind: kindTransfer, transferID: transferID})
}

// AdminDiagnostic queues an email to every admin.
func (q *Queue) AdminDiagnostic(message string) {
	q.enqueue(job{kind: kindDiagnostic, message: message})
}

func (q *Queue) enqueue(j job) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.log.Warn("notify queue closed, dropping job", "kind", j.kind)
		metrics.IncNotifications(string(j.kind), "dropped")
		return
	}
	select {
	case q.jobs <- j:
		metrics.NotifyQueueDepth.Inc()
	default:
		q.log.Warn("notify queue full, dropping job", "kind", j.kind, "transfer_id", j.transferID)
		metrics.IncNotifications(string(j.kind), "dropped")
	}
}

func (q *Queue) run(base context.Context, j job) {
	ctx, cancel := context.WithTimeout(base, jobTimeout)
	defer cancel()

	var (
		status string
		err    error
	)
	switch j.kind {
	case kindTransfer:
		status, err = q.sendTransfer(ctx, j.transferID)
	case kindDiagnostic:
		status, err = q.sendDiagnostic(ctx, j.message)
	}
	if err != nil {
		q.log.Error("notification failed", "kind", j.kind, "transfer_id", j.transferID, "error", err)
		status = "failed"
	}
	metrics.IncNotifications(string(j.kind), status)
}

func (q *Queue) sendTransfer(ctx context.Context, id uuid.UUID) (string, error) {
	t, err := q.src.TransferByID(ctx, id, models.ScopeActive)
	if err != nil {
		return "", err
	}
	if t == nil || t.AssetID == nil {
		q.log.Info("transfer gone before notification", "transfer_id", id)
		return "skipped", nil
	}

	to, err := q.src.SubscriberEmails(ctx, *t.AssetID)
	if err != nil {
		return "", err
	}
	if len(to) == 0 {
		return "skipped", nil
	}

	location := models.LocationNotSet
	if a, err := q.src.AssetByID(ctx, *t.AssetID, models.ScopeAll); err != nil {
		return "", err
	} else if a != nil {
		location = a.LocationDisplay()
	}

	var holder *models.User
	if t.ToUserID != nil {
		if holder, err = q.src.UserByID(ctx, *t.ToUserID); err != nil {
			return "", err
		}
	}

	msg, err := transferMessage(to, t, location, holder, q.baseURL)
	if err != nil {
		return "", err
	}
	if err := q.mailer.Send(ctx, msg); err != nil {
		return "", err
	}
	q.log.Info("transfer notification sent", "transfer_id", id, "recipients", len(to))
	return "sent", nil
}

func (q *Queue) sendDiagnostic(ctx context.Context, detail string) (string, error) {
	to, err := q.src.AdminEmails(ctx)
	if err != nil {
		return "", err
	}
	if len(to) == 0 {
		q.log.Warn("no admin email for diagnostic", "detail", detail)
		return "skipped", nil
	}
	if err := q.mailer.Send(ctx, diagnosticMessage(to, detail)); err != nil {
		return "", err
	}
	return "sent", nil
}
