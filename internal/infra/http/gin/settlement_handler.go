package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staysettle/internal/app/commands"
	"staysettle/internal/app/dto"
	earningsapp "staysettle/internal/app/handlers/earnings"
	payoutapp "staysettle/internal/app/handlers/payouts"
	"staysettle/internal/app/queries"
)

// SettlementHandler serves the host side: earnings, payouts and bank accounts.
type SettlementHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type bankRequest struct {
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type payoutRequest struct {
	AccountID string       `json:"account_id"`
	Bank      *bankRequest `json:"bank"`
	SaveBank  bool         `json:"save_bank"`
}

func (h SettlementHandler) RequestPayout(c *gin.Context) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := payoutapp.RequestPayoutCommand{
		HostID:          host.ID,
		AccountID:       strings.TrimSpace(req.AccountID),
		SaveBank:        req.SaveBank,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	if req.Bank != nil {
		cmd.Bank = &payoutapp.BankInput{
			BankCode:      strings.TrimSpace(req.Bank.BankCode),
			BankName:      strings.TrimSpace(req.Bank.BankName),
			AccountNumber: strings.TrimSpace(req.Bank.AccountNumber),
			AccountName:   strings.TrimSpace(req.Bank.AccountName),
		}
	}
	result, err := commands.Dispatch[payoutapp.RequestPayoutCommand, *dto.Payout](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h SettlementHandler) ListPayouts(c *gin.Context) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := queries.Ask[payoutapp.ListPayoutsQuery, dto.PayoutCollection](c.Request.Context(), h.Queries, payoutapp.ListPayoutsQuery{HostID: host.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) BankAccounts(c *gin.Context) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	result, err := queries.Ask[payoutapp.ListBankAccountsQuery, dto.BankAccountCollection](c.Request.Context(), h.Queries, payoutapp.ListBankAccountsQuery{HostID: host.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EarningsSummary accepts optional currency, from and to (YYYY-MM-DD) filters.
func (h SettlementHandler) EarningsSummary(c *gin.Context) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := earningsapp.SummaryQuery{HostID: host.ID, Currency: strings.ToUpper(strings.TrimSpace(c.Query("currency")))}
	if from := c.Query("from"); from != "" {
		t, err := parseDay(from)
		if err != nil {
			badRequest(c, err)
			return
		}
		q.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := parseDay(to)
		if err != nil {
			badRequest(c, err)
			return
		}
		q.To = t
	}
	result, err := queries.Ask[earningsapp.SummaryQuery, dto.EarningsSummary](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h SettlementHandler) Earnings(c *gin.Context) {
	host, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := earningsapp.ListQuery{HostID: host.ID, Status: strings.ToLower(strings.TrimSpace(c.Query("status")))}
	result, err := queries.Ask[earningsapp.ListQuery, dto.EarningCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
