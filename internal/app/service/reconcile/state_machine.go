package reconcile

import (
	"context"
	"encoding/json"

	ledsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/ledger"
	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logctx"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"github.com/samber/lo"
	"gorm.io/datatypes"
)

// creditDelta captures the before/after/added amounts of a ledger mutation
// for the audit row.
type creditDelta struct {
	before int64
	after  int64
	added  int64
}

// applyInitial advances a pending subscription in response to an event for
// its first payment.
func (s *Service) applyInitial(ctx context.Context, sub *models.Subscription, ev *Event) (models.PaymentEventOutcome, error) {
	if sub.Terminal() {
		// Cancelled and failed rows are locked against any further mutation.
		s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeRejected, nil,
			lo.ToPtr("subscription is "+string(sub.Status)))
		return models.PaymentEventOutcomeRejected, nil
	}

	g, err := s.guardInitial(ctx, sub)
	if err != nil {
		return "", err
	}
	if g != guardNew {
		s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeDuplicate, nil, nil)
		return models.PaymentEventOutcomeDuplicate, nil
	}

	switch {
	case ev.Status.IsApproved():
		return s.activate(ctx, sub, ev)

	case ev.Status.IsFailure():
		won, err := s.subs.CASFail(ctx, sub.ID)
		if err != nil {
			return "", err
		}
		if !won {
			// The row activated in the meantime; a late failure notification
			// for the original payment never downgrades it.
			s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeRejected, nil,
				lo.ToPtr("late failure for activated subscription ignored"))
			return models.PaymentEventOutcomeRejected, nil
		}
		s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeApplied, nil, nil)
		return models.PaymentEventOutcomeApplied, nil

	default:
		// InProcessing, WaitingAuthComplete, Pending: not final, nothing to do.
		s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomePending, nil, nil)
		return models.PaymentEventOutcomePending, nil
	}
}

// activate performs the one-way pending → active/completed transition. The
// conditional update is what closes the race between entry points: exactly
// one caller wins; the loser records a duplicate and mutates nothing.
func (s *Service) activate(ctx context.Context, sub *models.Subscription, ev *Event) (models.PaymentEventOutcome, error) {
	plan, err := s.plan(sub)
	if err != nil {
		s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeFailed, nil, lo.ToPtr(err.Error()))
		return models.PaymentEventOutcomeFailed, nil
	}

	won, err := s.subs.CASActivate(ctx, sub.ID, plan.Credits)
	if err != nil {
		return "", err
	}
	if !won {
		s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeDuplicate, nil,
			lo.ToPtr("activation race lost"))
		return models.PaymentEventOutcomeDuplicate, nil
	}

	before, err := s.ledger.GetBalance(ctx, sub.UserID)
	if err != nil {
		return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeInitial, err), nil
	}

	// A first-ever subscription preserves whatever the user already bought as
	// top-ups; a resubscription after cancellation starts from zero.
	priorRows, err := s.subs.CountForUser(ctx, sub.UserID)
	if err != nil {
		return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeInitial, err), nil
	}
	target := plan.Credits
	if priorRows <= 1 {
		target = before + plan.Credits
	}

	after, err := s.ledger.SetBalance(ctx, ledsvc.Mutation{
		UserID:           sub.UserID,
		Type:             types.CreditTransactionTypeSubscription,
		PaymentReference: lo.ToPtr(sub.PaymentReference),
		PaymentStatus:    types.PaymentStatusCompleted,
		Reason:           "subscription activation",
	}, target)
	if err != nil {
		// The activation already committed; the audit row carries the error
		// and support tooling reconciles from there. No rollback.
		return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeInitial, err), nil
	}

	s.record(ctx, ev, sub, types.PaymentTypeInitial, models.PaymentEventOutcomeApplied,
		&creditDelta{before: before, after: after, added: plan.Credits}, nil)
	return models.PaymentEventOutcomeApplied, nil
}

// applyRenewal handles a recurring billing event for an already-active
// subscription. Renewals are all-or-nothing: Approved burns the old
// allocation and installs a fresh one; a terminal failure cancels the
// subscription and zeroes the ledger.
func (s *Service) applyRenewal(ctx context.Context, sub *models.Subscription, ev *Event) (models.PaymentEventOutcome, error) {
	if sub.CancelledAt != nil || sub.Terminal() {
		s.record(ctx, ev, sub, types.PaymentTypeRenewal, models.PaymentEventOutcomeRejected, nil,
			lo.ToPtr("subscription is cancelled"))
		return models.PaymentEventOutcomeRejected, nil
	}

	switch {
	case ev.Status.IsApproved():
		plan, err := s.plan(sub)
		if err != nil {
			s.record(ctx, ev, sub, types.PaymentTypeRenewal, models.PaymentEventOutcomeFailed, nil, lo.ToPtr(err.Error()))
			return models.PaymentEventOutcomeFailed, nil
		}

		before, err := s.ledger.GetBalance(ctx, sub.UserID)
		if err != nil {
			return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeRenewal, err), nil
		}

		// Conditional on the renewal counter we classified against: two paths
		// applying the same billing cycle produce exactly one burn.
		won, err := s.subs.CASRenew(ctx, sub.ID, sub.RenewalCount, plan.Credits)
		if err != nil {
			return "", err
		}
		if !won {
			s.record(ctx, ev, sub, types.PaymentTypeRenewal, models.PaymentEventOutcomeDuplicate, nil,
				lo.ToPtr("renewal race lost"))
			return models.PaymentEventOutcomeDuplicate, nil
		}

		// Burn everything, then the fresh allocation: unused credits do not
		// roll over between billing cycles.
		after, err := s.ledger.SetBalance(ctx, ledsvc.Mutation{
			UserID:           sub.UserID,
			Type:             types.CreditTransactionTypeSubscription,
			PaymentReference: lo.ToPtr(sub.PaymentReference),
			PaymentStatus:    types.PaymentStatusCompleted,
			Reason:           "subscription renewal",
		}, plan.Credits)
		if err != nil {
			return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeRenewal, err), nil
		}

		s.record(ctx, ev, sub, types.PaymentTypeRenewal, models.PaymentEventOutcomeApplied,
			&creditDelta{before: before, after: after, added: plan.Credits}, nil)
		return models.PaymentEventOutcomeApplied, nil

	case ev.Status.IsFailure():
		before, err := s.ledger.GetBalance(ctx, sub.UserID)
		if err != nil {
			return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeRenewal, err), nil
		}
		if err := s.subs.CancelForFailure(ctx, sub.ID, s.now()); err != nil {
			return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeRenewal, err), nil
		}
		after, err := s.ledger.SetBalance(ctx, ledsvc.Mutation{
			UserID:           sub.UserID,
			Type:             types.CreditTransactionTypeSubscription,
			PaymentReference: lo.ToPtr(sub.PaymentReference),
			PaymentStatus:    types.PaymentStatusFailed,
			Reason:           "renewal failure: " + string(ev.Status),
		}, 0)
		if err != nil {
			return s.recordLedgerFailure(ctx, ev, sub, types.PaymentTypeRenewal, err), nil
		}
		s.record(ctx, ev, sub, types.PaymentTypeRenewal, models.PaymentEventOutcomeApplied,
			&creditDelta{before: before, after: after, added: 0}, nil)
		return models.PaymentEventOutcomeApplied, nil

	default:
		s.record(ctx, ev, sub, types.PaymentTypeRenewal, models.PaymentEventOutcomePending, nil, nil)
		return models.PaymentEventOutcomePending, nil
	}
}

// applyTopUp credits a one-off purchase. Top-ups are additive; the CAS on the
// topup row gives the same single-winner guarantee as subscription activation.
func (s *Service) applyTopUp(ctx context.Context, top *models.TopUp, ev *Event) (models.PaymentEventOutcome, error) {
	g, err := s.guardTopUp(ctx, top)
	if err != nil {
		return "", err
	}
	if g != guardNew {
		s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeDuplicate, nil, nil)
		return models.PaymentEventOutcomeDuplicate, nil
	}

	switch {
	case ev.Status.IsApproved():
		won, err := s.topups.CASComplete(ctx, top.ID)
		if err != nil {
			return "", err
		}
		if !won {
			s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeDuplicate, nil, lo.ToPtr("completion race lost"))
			return models.PaymentEventOutcomeDuplicate, nil
		}

		before, err := s.ledger.GetBalance(ctx, top.UserID)
		if err != nil {
			s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeFailed, nil, lo.ToPtr(err.Error()))
			return models.PaymentEventOutcomeFailed, nil
		}
		after, err := s.ledger.AddBalance(ctx, ledsvc.Mutation{
			UserID:           top.UserID,
			Type:             types.CreditTransactionTypeTopUp,
			PaymentReference: lo.ToPtr(top.PaymentReference),
			PaymentStatus:    types.PaymentStatusCompleted,
			Reason:           "credit topup",
		}, top.Credits)
		if err != nil {
			s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeFailed, nil, lo.ToPtr(err.Error()))
			return models.PaymentEventOutcomeFailed, nil
		}
		s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeApplied,
			&creditDelta{before: before, after: after, added: top.Credits}, nil)
		return models.PaymentEventOutcomeApplied, nil

	case ev.Status.IsFailure():
		won, err := s.topups.CASFail(ctx, top.ID)
		if err != nil {
			return "", err
		}
		if !won {
			s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeRejected, nil,
				lo.ToPtr("late failure for completed topup ignored"))
			return models.PaymentEventOutcomeRejected, nil
		}
		s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomeApplied, nil, nil)
		return models.PaymentEventOutcomeApplied, nil

	default:
		s.recordTopUp(ctx, ev, top, models.PaymentEventOutcomePending, nil, nil)
		return models.PaymentEventOutcomePending, nil
	}
}

func (s *Service) recordLedgerFailure(ctx context.Context, ev *Event, sub *models.Subscription, pt types.PaymentType, cause error) models.PaymentEventOutcome {
	logctx.WithReference(ctx, s.log, ev.OrderReference).Errorw("ledger_mutation_failed", "error", cause)
	s.record(ctx, ev, sub, pt, models.PaymentEventOutcomeFailed, nil, lo.ToPtr(cause.Error()))
	return models.PaymentEventOutcomeFailed
}

func (s *Service) record(ctx context.Context, ev *Event, sub *models.Subscription, pt types.PaymentType, outcome models.PaymentEventOutcome, delta *creditDelta, errMsg *string) {
	row := s.eventRow(ev, pt, outcome, delta, errMsg)
	if sub != nil {
		row.SubscriptionID = lo.ToPtr(sub.ID)
	}
	s.history.Record(ctx, row)
}

func (s *Service) recordTopUp(ctx context.Context, ev *Event, top *models.TopUp, outcome models.PaymentEventOutcome, delta *creditDelta, errMsg *string) {
	s.history.Record(ctx, s.eventRow(ev, types.PaymentTypeTopUp, outcome, delta, errMsg))
}

func (s *Service) eventRow(ev *Event, pt types.PaymentType, outcome models.PaymentEventOutcome, delta *creditDelta, errMsg *string) *models.PaymentEvent {
	row := &models.PaymentEvent{
		PaymentReference:  ev.OrderReference,
		PaymentType:       pt,
		TransactionStatus: string(ev.Status),
		Outcome:           outcome,
		Verified:          ev.Verified,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
		Error:             errMsg,
	}
	if delta != nil {
		row.CreditsBefore = lo.ToPtr(delta.before)
		row.CreditsAfter = lo.ToPtr(delta.after)
		row.CreditsAdded = lo.ToPtr(delta.added)
	}
	if len(ev.Raw) > 0 {
		if b, err := json.Marshal(ev.Raw); err == nil {
			row.Metadata = datatypes.JSON(b)
		}
	}
	return row
}
