package policies

import "context"

// Notification templates sent to guests and hosts.
const (
	TemplateBookingRequested = "booking.requested"
	TemplateBookingAccepted  = "booking.accepted"
	TemplateBookingRejected  = "booking.rejected"
	TemplateBookingConfirmed = "booking.confirmed"
	TemplateBookingCancelled = "booking.cancelled"
	TemplatePaymentFailed    = "payment.failed"
	TemplateRefundIssued     = "refund.issued"
	TemplateCheckInReminder  = "booking.checkin_reminder"
	TemplateCheckOutReminder = "booking.checkout_reminder"
	TemplateStayCompleted    = "booking.completed"
	TemplateEarningAvailable = "earning.available"
	TemplatePayoutRequested  = "payout.requested"
	TemplatePayoutCompleted  = "payout.completed"
	TemplatePayoutFailed     = "payout.failed"
)

type Notifier interface {
	Send(ctx context.Context, to string, template string, data any) error
}

// Metrics receives settlement counters; implementations must be safe for concurrent use.
type Metrics interface {
	SideEffectFailed(kind string)
	PaymentTransition(status string)
	PayoutTransition(status string)
	EarningsPromoted(n int)
}
