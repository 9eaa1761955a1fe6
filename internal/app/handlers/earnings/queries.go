// Package earnings exposes host earnings reports on the query bus.
package earnings

import (
	"context"
	"time"

	"staysettle/internal/app/dto"
	"staysettle/internal/app/queries"
	"staysettle/internal/app/services/earnings"
	"staysettle/internal/domain/auth"
	"staysettle/internal/domain/earning"
)

const (
	earningsSummaryKey = "earnings.summary"
	listEarningsKey    = "earnings.list"
)

type SummaryQuery struct {
	HostID   string `validate:"required"`
	Currency string `validate:"omitempty,len=3,uppercase"`
	From     time.Time
	To       time.Time
}

func (q SummaryQuery) Key() string { return earningsSummaryKey }

func (q SummaryQuery) RequiredRole() auth.Role { return auth.RoleHost }

type ListQuery struct {
	HostID string `validate:"required"`
	Status string `validate:"omitempty,oneof=pending available paid cancelled"`
}

func (q ListQuery) Key() string { return listEarningsKey }

func (q ListQuery) RequiredRole() auth.Role { return auth.RoleHost }

type Handler struct {
	Service *earnings.Service
}

func (h *Handler) Summary(ctx context.Context, q SummaryQuery) (dto.EarningsSummary, error) {
	summary, err := h.Service.Summary(ctx, earnings.SummaryQuery{HostID: q.HostID, Currency: q.Currency, From: q.From, To: q.To})
	if err != nil {
		return dto.EarningsSummary{}, err
	}
	return dto.MapEarningsSummary(summary), nil
}

func (h *Handler) List(ctx context.Context, q ListQuery) (dto.EarningCollection, error) {
	filter := earning.Filter{HostID: q.HostID}
	if q.Status != "" {
		filter.Statuses = []earning.Status{earning.Status(q.Status)}
	}
	list, err := h.Service.List(ctx, filter)
	if err != nil {
		return dto.EarningCollection{}, err
	}
	return dto.MapEarnings(list), nil
}

func Register(bus *queries.InMemoryBus, svc *earnings.Service) {
	h := &Handler{Service: svc}
	queries.RegisterHandler[SummaryQuery, dto.EarningsSummary](bus, earningsSummaryKey, queries.HandlerFunc[SummaryQuery, dto.EarningsSummary](h.Summary))
	queries.RegisterHandler[ListQuery, dto.EarningCollection](bus, listEarningsKey, queries.HandlerFunc[ListQuery, dto.EarningCollection](h.List))
}
