package reconcile

import (
	"context"

	"github.com/heyarsen/Content-Factory-sub005/internal/models"
)

// Reconciler is the surface the HTTP entry points consume.
type Reconciler interface {
	// Apply runs an already-decoded gateway event through the pipeline.
	Apply(ctx context.Context, entry Entry, ev *Event) (models.PaymentEventOutcome, error)
	// Reconcile fetches the order state from the gateway and applies it.
	Reconcile(ctx context.Context, entry Entry, reference string) (*Snapshot, error)
	// Status reads the last-known state without calling the gateway.
	Status(ctx context.Context, reference string) (*Snapshot, error)
}

var _ Reconciler = (*Service)(nil)
