package mongo

import "go.mongodb.org/mongo-driver/bson"

const (
	propertiesCollection   = "agg_property"
	bookingsCollection     = "agg_booking"
	paymentsCollection     = "agg_payment"
	earningsCollection     = "agg_earning"
	payoutsCollection      = "agg_payout"
	bankAccountsCollection = "host_bank_accounts"
)

func bsonKeys(fields ...string) bson.D {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}
