package notify

import (
	"context"
	"log"
	"time"

	"manual-approval-workflow/internal/worker"
)

// Dispatcher hands notification sends to the worker pool. Dispatch happens
// after the business transaction committed; a failed send is logged and
// never propagated back to the transition.
type Dispatcher struct {
	client Client
	pool   *worker.WorkerPool
}

func NewDispatcher(client Client, pool *worker.WorkerPool) *Dispatcher {
	return &Dispatcher{client: client, pool: pool}
}

func (d *Dispatcher) ReviewRequested(event Event) {
	d.dispatch("review request", event, d.client.SendReviewRequest)
}

func (d *Dispatcher) Approved(event Event) {
	d.dispatch("approval", event, d.client.SendApproval)
}

func (d *Dispatcher) Rejected(event Event) {
	d.dispatch("rejection", event, d.client.SendRejection)
}

func (d *Dispatcher) dispatch(kind string, event Event, send func(context.Context, Event) error) {
	d.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := send(ctx, event); err != nil {
			log.Printf("[NOTIFIER ERROR] Failed to send %s for manual %d revision %s: %v",
				kind, event.ManualID, event.RevisionNumber, err)
		}
		return nil
	})
}
