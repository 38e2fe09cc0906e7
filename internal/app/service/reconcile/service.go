package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/history"
	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/ledger"
	subsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/subscription"
	topsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/topup"
	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/internal/platform/wayforpay"
	cfgpkg "github.com/heyarsen/Content-Factory-sub005/pkg/config"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logctx"
	"github.com/heyarsen/Content-Factory-sub005/pkg/metrics"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"go.uber.org/zap"
)

// Entry identifies which of the three reconciliation triggers produced an
// attempt. None of them gets special treatment; the label only feeds logs
// and metrics.
type Entry string

const (
	EntryWebhook Entry = "webhook"
	EntryReturn  Entry = "return"
	EntryPoll    Entry = "poll"
)

var ErrUnknownReference = errUnknownReference

// Service funnels all three entry points through one pipeline:
// guard → classifier → state machine → ledger → audit. Reconciliation runs to
// completion once started; retries come from the gateway's redelivery or the
// client's next poll, never from here.
type Service struct {
	cfg     *cfgpkg.Config
	gateway *wayforpay.Client
	subs    *subsvc.Service
	topups  *topsvc.Service
	ledger  *ledger.Service
	history *history.Service
	log     *zap.SugaredLogger

	now func() time.Time
}

func NewService(
	cfg *cfgpkg.Config,
	gateway *wayforpay.Client,
	subs *subsvc.Service,
	topups *topsvc.Service,
	led *ledger.Service,
	hist *history.Service,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		cfg:     cfg,
		gateway: gateway,
		subs:    subs,
		topups:  topups,
		ledger:  led,
		history: hist,
		log:     log,
		now:     time.Now,
	}
}

// Apply runs one decoded event through the pipeline and returns the audit
// outcome that was recorded. A nil error with a non-applied outcome means the
// event was acknowledged but intentionally not applied.
func (s *Service) Apply(ctx context.Context, entry Entry, ev *Event) (models.PaymentEventOutcome, error) {
	log := logctx.WithReference(ctx, s.log, ev.OrderReference)
	if !ev.Verified {
		log.Warnw("unverified_gateway_event", "status", ev.Status)
	}

	c, err := s.classify(ctx, ev.OrderReference, s.now())
	if err != nil {
		if errors.Is(err, errUnknownReference) {
			// Acknowledged and dropped; the gateway must not retry forever.
			s.record(ctx, ev, nil, types.PaymentTypeInitial, models.PaymentEventOutcomeUnknownReference, nil, nil)
			s.count(entry, models.PaymentEventOutcomeUnknownReference)
			log.Warnw("unknown_payment_reference")
			return models.PaymentEventOutcomeUnknownReference, nil
		}
		return "", err
	}

	var outcome models.PaymentEventOutcome
	switch c.paymentType {
	case types.PaymentTypeTopUp:
		outcome, err = s.applyTopUp(ctx, c.topup, ev)
	case types.PaymentTypeRenewal:
		outcome, err = s.applyRenewal(ctx, c.subscription, ev)
	default:
		outcome, err = s.applyInitial(ctx, c.subscription, ev)
	}
	if err != nil {
		return "", err
	}

	s.count(entry, outcome)
	log.Infow("reconcile_applied", "entry", entry, "type", c.paymentType, "status", ev.Status, "outcome", outcome)
	return outcome, nil
}

// Reconcile fetches the current order state from the gateway and applies it,
// then answers with a best-effort snapshot. A gateway failure degrades to the
// last-known state instead of failing the caller.
func (s *Service) Reconcile(ctx context.Context, entry Entry, reference string) (*Snapshot, error) {
	st, err := s.gateway.CheckStatus(ctx, reference)
	if err != nil {
		logctx.WithReference(ctx, s.log, reference).Warnw("gateway_status_check_failed", "error", err)
		return s.Status(ctx, reference)
	}

	ev := &Event{
		OrderReference: st.OrderReference,
		Status:         st.TransactionStatus,
		Amount:         st.Amount,
		Currency:       st.Currency,
		// The status reply came over our own authenticated call.
		Verified: true,
		Raw: map[string]any{
			"orderReference":    st.OrderReference,
			"orderStatus":       st.OrderStatus,
			"transactionStatus": st.TransactionStatus,
			"amount":            st.Amount,
			"currency":          st.Currency,
			"reason":            st.Reason,
			"reasonCode":        st.ReasonCode,
		},
	}
	if _, err := s.Apply(ctx, entry, ev); err != nil {
		logctx.WithReference(ctx, s.log, reference).Errorw("reconcile_apply_failed", "error", err)
	}
	return s.Status(ctx, reference)
}

// Snapshot is the user-visible reconciliation state for one reference.
type Snapshot struct {
	PaymentReference string              `json:"payment_reference"`
	Kind             string              `json:"kind"`
	Status           string              `json:"status"`
	PaymentStatus    types.PaymentStatus `json:"payment_status"`
	Completed        bool                `json:"completed"`
	Balance          int64               `json:"balance"`
}

// Status reads the last-known state without touching the gateway.
func (s *Service) Status(ctx context.Context, reference string) (*Snapshot, error) {
	sub, err := s.subs.FindByReference(ctx, reference)
	if err == nil {
		balance, berr := s.ledger.GetBalance(ctx, sub.UserID)
		if berr != nil {
			return nil, berr
		}
		return &Snapshot{
			PaymentReference: reference,
			Kind:             "subscription",
			Status:           string(sub.Status),
			PaymentStatus:    sub.PaymentStatus,
			Completed:        sub.Activated(),
			Balance:          balance,
		}, nil
	}
	if !errors.Is(err, subsvc.ErrNotFound) {
		return nil, err
	}

	top, err := s.topups.FindByReference(ctx, reference)
	if err == nil {
		balance, berr := s.ledger.GetBalance(ctx, top.UserID)
		if berr != nil {
			return nil, berr
		}
		return &Snapshot{
			PaymentReference: reference,
			Kind:             "topup",
			Status:           string(top.Status),
			PaymentStatus:    top.Status,
			Completed:        top.Status == types.PaymentStatusCompleted,
			Balance:          balance,
		}, nil
	}
	if !errors.Is(err, topsvc.ErrNotFound) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownReference, reference)
}

func (s *Service) count(entry Entry, outcome models.PaymentEventOutcome) {
	metrics.ReconcileOutcomes.WithLabelValues(string(entry), string(outcome)).Inc()
}

// plan resolves the catalog entry backing a subscription.
func (s *Service) plan(sub *models.Subscription) (*types.Plan, error) {
	p := s.cfg.GetPlan(sub.PlanID)
	if p == nil {
		return nil, fmt.Errorf("plan not found in catalog: %s", sub.PlanID)
	}
	return p, nil
}
