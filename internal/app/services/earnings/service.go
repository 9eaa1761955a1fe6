package earnings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"staysettle/internal/app/effects"
	"staysettle/internal/app/outbox"
	"staysettle/internal/app/policies"
	"staysettle/internal/app/uow"
	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/shared/fault"
)

type Service struct {
	UoW      uow.UoWFactory
	Engine   *Engine
	Notifier policies.Notifier
	Metrics  policies.Metrics
	Encoder  outbox.EventEncoder
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) effects() effects.Runner {
	return effects.Runner{Logger: s.Logger, Metrics: s.Metrics}
}

// ProcessAvailable promotes every pending earning whose hold has passed. Each
// earning is promoted in its own unit and re-read there, so a concurrent
// payout or cancellation wins over a stale listing.
func (s *Service) ProcessAvailable(ctx context.Context) (int, error) {
	now := s.now()
	var due []*earning.Earning
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		due, err = unit.Earnings().DuePending(ctx, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	promoted := 0
	var notes []effects.Effect
	for _, candidate := range due {
		var done *earning.Earning
		err := uow.Run(ctx, s.UoW, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			done = nil
			ern, err := unit.Earnings().ByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !ern.Promote(now) {
				return nil
			}
			if err := unit.Earnings().Save(ctx, ern); err != nil {
				return err
			}
			done = ern
			return outbox.RecordAll(ctx, unit.Outbox(), s.Encoder, ern)
		})
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("earning promotion failed", "earning_id", candidate.ID, "error", err)
			}
			continue
		}
		if done != nil {
			promoted++
			notes = append(notes, effects.Notify(s.Notifier, done.HostID, policies.TemplateEarningAvailable, map[string]any{
				"earning_id": done.ID,
				"booking_id": done.BookingID,
				"net":        done.Net.Amount,
				"currency":   done.Net.Currency,
			}))
		}
	}
	if s.Metrics != nil && promoted > 0 {
		s.Metrics.EarningsPromoted(promoted)
	}
	s.effects().Run(ctx, notes...)
	if s.Logger != nil && len(due) > 0 {
		s.Logger.Info("earnings promoted", "due", len(due), "promoted", promoted)
	}
	return promoted, nil
}

type SummaryQuery struct {
	HostID   string
	Currency string
	From     time.Time
	To       time.Time
}

// Summary aggregates a host's earnings, optionally restricted to those
// created inside [From, To).
func (s *Service) Summary(ctx context.Context, q SummaryQuery) (earning.Summary, error) {
	if strings.TrimSpace(q.HostID) == "" {
		return earning.Summary{}, fault.Validation("host_required", "host id is required")
	}
	list, err := s.List(ctx, earning.Filter{HostID: q.HostID, From: q.From, To: q.To})
	if err != nil {
		return earning.Summary{}, err
	}
	currency := q.Currency
	if currency == "" && len(list) > 0 {
		currency = list[0].Net.Currency
	}
	return earning.Summarize(list, currency, s.now()), nil
}

func (s *Service) List(ctx context.Context, filter earning.Filter) ([]*earning.Earning, error) {
	var list []*earning.Earning
	err := uow.Run(ctx, s.UoW, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		list, err = unit.Earnings().List(ctx, filter)
		return err
	})
	return list, err
}
