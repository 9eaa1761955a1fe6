package payouts_test

import "staysettle/internal/app/services/earnings"

func earningsSummary(hostID string) earnings.SummaryQuery {
	return earnings.SummaryQuery{HostID: hostID}
}
