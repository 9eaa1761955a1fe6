package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Client struct {
	DB *mongo.Database
}

// New connects to a replica set; multi-document transactions need one.
func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the lookup and uniqueness indexes the repositories rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		bookingsCollection: {
			{Keys: bsonKeys("property_id", "status")},
			{Keys: bsonKeys("guest_id")},
			{Keys: bsonKeys("host_id")},
			{Keys: bsonKeys("status", "check_out")},
		},
		paymentsCollection: {
			{Keys: bsonKeys("booking_id"), Options: options.Index().SetUnique(true)},
			{Keys: bsonKeys("reference"), Options: options.Index().SetSparse(true)},
		},
		earningsCollection: {
			{Keys: bsonKeys("booking_id"), Options: options.Index().SetUnique(true)},
			{Keys: bsonKeys("host_id", "status")},
			{Keys: bsonKeys("status", "available_at")},
			{Keys: bsonKeys("payout_id")},
		},
		payoutsCollection: {
			{Keys: bsonKeys("host_id", "created_at")},
			{Keys: bsonKeys("transfer_reference")},
		},
		bankAccountsCollection: {
			{Keys: bsonKeys("host_id")},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
