package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"claimdocs-backend/internal/bootstrap"
	"claimdocs-backend/internal/queue"
	"claimdocs-backend/internal/shared/config"
	"claimdocs-backend/internal/shared/metrics"
	"claimdocs-backend/internal/shared/storage/db"
	"claimdocs-backend/internal/shared/telemetry"
	"claimdocs-backend/internal/workerproc"
)

const (
	receiveBatch = 10
	waitSeconds  = 20
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, db.OptionsFromEnv(db.DefaultWorkerOptions()))
	if err != nil {
		telemetry.Error("bootstrap failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue == nil {
		telemetry.Error("worker requires SQS_QUEUE_URL", nil)
		os.Exit(1)
	}

	handler := &workerproc.Handler{Processor: app.Processor}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reclaimLoop(ctx, app, cfg.ClaimTimeout)
	}()

	telemetry.Info("worker polling", map[string]any{
		"queueUrl":    cfg.QueueURL,
		"concurrency": cfg.WorkerConcurrency,
	})
	pollLoop(ctx, app.Queue, handler, cfg.WorkerConcurrency, &wg)

	wg.Wait()
	telemetry.Info("worker stopped", nil)
}

// pollLoop long-polls SQS and fans messages out to a bounded set of
// goroutines. It returns when ctx is cancelled; in-flight messages drain
// through the waitgroup.
func pollLoop(ctx context.Context, q *queue.SQSClient, handler *workerproc.Handler, concurrency int, wg *sync.WaitGroup) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	for ctx.Err() == nil {
		msgs, err := q.Receive(ctx, receiveBatch, waitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Error("receive failed, backing off", map[string]any{"error": err.Error()})
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, msg := range msgs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			wg.Add(1)
			go func(m queue.ReceivedMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				handleOne(ctx, q, handler, m)
			}(msg)
		}
	}
}

func handleOne(ctx context.Context, q *queue.SQSClient, handler *workerproc.Handler, m queue.ReceivedMessage) {
	err := handler.Handle(ctx, m.Body)
	if err == nil || workerproc.Unrecoverable(err) {
		// Done, or never going to work. Either way the message goes.
		if derr := q.Delete(context.Background(), m.ReceiptHandle); derr != nil {
			telemetry.Error("delete message failed", map[string]any{"error": derr.Error()})
		}
		if err != nil {
			telemetry.Warn("dropped unrecoverable message", map[string]any{"error": err.Error()})
		}
		return
	}
	// Leave the message for redelivery after the visibility timeout.
	telemetry.Error("message processing failed, leaving for redelivery", map[string]any{
		"error": err.Error(),
	})
}

// reclaimLoop periodically returns documents stuck in processing or analyzing
// to pending so work owned by a crashed worker gets picked up again.
func reclaimLoop(ctx context.Context, app *bootstrap.App, claimTimeout time.Duration) {
	ticker := time.NewTicker(claimTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-claimTimeout)
			reclaimed, err := app.Repo.ReclaimStale(ctx, cutoff)
			if err != nil {
				telemetry.Error("reclaim failed", map[string]any{"error": err.Error()})
				continue
			}
			if len(reclaimed) == 0 {
				continue
			}
			metrics.IncDocumentsReclaimed(len(reclaimed))
			telemetry.Warn("reclaimed stale documents", map[string]any{"count": len(reclaimed)})
			// Their original messages are gone; give each a fresh one.
			for _, rec := range reclaimed {
				if err := app.Queue.Send(ctx, queue.NewMessage(rec.ID, "", rec.Attempts+1)); err != nil {
					telemetry.Error("re-enqueue reclaimed document failed", map[string]any{
						"documentId": rec.ID,
						"error":      err.Error(),
					})
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
