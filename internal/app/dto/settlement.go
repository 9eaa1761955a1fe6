package dto

import (
	"time"

	"staysettle/internal/domain/earning"
	"staysettle/internal/domain/payout"
)

type Earning struct {
	ID          string     `json:"id"`
	BookingID   string     `json:"booking_id"`
	PropertyID  string     `json:"property_id"`
	Gross       MoneyDTO   `json:"gross"`
	ServiceFee  MoneyDTO   `json:"service_fee"`
	Net         MoneyDTO   `json:"net"`
	Status      string     `json:"status"`
	AvailableAt time.Time  `json:"available_at"`
	PayoutID    string     `json:"payout_id,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

type EarningCollection struct {
	Items []Earning `json:"items"`
}

type EarningsSummary struct {
	Currency  string   `json:"currency"`
	Total     MoneyDTO `json:"total"`
	ThisMonth MoneyDTO `json:"this_month"`
	Pending   MoneyDTO `json:"pending"`
	Reserved  MoneyDTO `json:"reserved"`
	Available MoneyDTO `json:"available"`
	Paid      MoneyDTO `json:"paid"`
	Cancelled MoneyDTO `json:"cancelled"`
	Count     int      `json:"count"`
}

type BankDetails struct {
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type Payout struct {
	ID                string      `json:"id"`
	HostID            string      `json:"host_id"`
	Amount            MoneyDTO    `json:"amount"`
	Status            string      `json:"status"`
	Method            string      `json:"method"`
	Bank              BankDetails `json:"bank"`
	TransferReference string      `json:"transfer_reference,omitempty"`
	EarningIDs        []string    `json:"earning_ids"`
	FailureReason     string      `json:"failure_reason,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	FailedAt          *time.Time  `json:"failed_at,omitempty"`
}

type PayoutCollection struct {
	Items []Payout `json:"items"`
}

type BankAccount struct {
	ID        string      `json:"id"`
	Details   BankDetails `json:"details"`
	Verified  bool        `json:"verified"`
	IsDefault bool        `json:"is_default"`
}

type BankAccountCollection struct {
	Items []BankAccount `json:"items"`
}

func MapEarning(e *earning.Earning) Earning {
	return Earning{
		ID:          string(e.ID),
		BookingID:   e.BookingID,
		PropertyID:  e.PropertyID,
		Gross:       MapMoney(e.Gross),
		ServiceFee:  MapMoney(e.ServiceFee),
		Net:         MapMoney(e.Net),
		Status:      string(e.Status),
		AvailableAt: e.AvailableAt,
		PayoutID:    e.PayoutID,
		PaidAt:      e.PaidAt,
	}
}

func MapEarnings(list []*earning.Earning) EarningCollection {
	items := make([]Earning, 0, len(list))
	for _, e := range list {
		items = append(items, MapEarning(e))
	}
	return EarningCollection{Items: items}
}

func MapEarningsSummary(s earning.Summary) EarningsSummary {
	return EarningsSummary{
		Currency:  s.Currency,
		Total:     MapMoney(s.Total),
		ThisMonth: MapMoney(s.ThisMonth),
		Pending:   MapMoney(s.Pending),
		Reserved:  MapMoney(s.Reserved),
		Available: MapMoney(s.Available),
		Paid:      MapMoney(s.Paid),
		Cancelled: MapMoney(s.Cancelled),
		Count:     s.Count,
	}
}

// mapBank always renders the masked account number.
func mapBank(d payout.BankDetails) BankDetails {
	masked := d.Masked()
	return BankDetails{
		BankCode:      masked.BankCode,
		BankName:      masked.BankName,
		AccountNumber: masked.AccountNumber,
		AccountName:   masked.AccountName,
	}
}

func MapPayout(p *payout.Payout) Payout {
	ids := p.EarningIDs
	if ids == nil {
		ids = []string{}
	}
	return Payout{
		ID:                string(p.ID),
		HostID:            p.HostID,
		Amount:            MapMoney(p.Amount),
		Status:            string(p.Status),
		Method:            p.Method,
		Bank:              mapBank(p.Bank),
		TransferReference: p.TransferReference,
		EarningIDs:        ids,
		FailureReason:     p.FailureReason,
		CreatedAt:         p.CreatedAt,
		CompletedAt:       p.CompletedAt,
		FailedAt:          p.FailedAt,
	}
}

func MapPayouts(list []*payout.Payout) PayoutCollection {
	items := make([]Payout, 0, len(list))
	for _, p := range list {
		items = append(items, MapPayout(p))
	}
	return PayoutCollection{Items: items}
}

func MapBankAccounts(list []*payout.BankAccount) BankAccountCollection {
	items := make([]BankAccount, 0, len(list))
	for _, a := range list {
		items = append(items, BankAccount{
			ID:        string(a.ID),
			Details:   mapBank(a.Details),
			Verified:  a.Verified,
			IsDefault: a.IsDefault,
		})
	}
	return BankAccountCollection{Items: items}
}
