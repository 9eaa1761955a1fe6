package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver"

	"staysettle/internal/app/uow"
)

// ErrConcurrentUpdate wraps uow.ErrTransient so the unit is re-run.
var ErrConcurrentUpdate = fmt.Errorf("mongo: concurrent update detected: %w", uow.ErrTransient)

// classify marks errors the server labels as retryable as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) &&
		(labeled.HasErrorLabel(driver.TransientTransactionError) || labeled.HasErrorLabel(driver.UnknownTransactionCommitResult)) {
		return fmt.Errorf("%w: %v", uow.ErrTransient, err)
	}
	return err
}

// saveVersioned upserts doc only if the stored version still equals expected.
// doc must already carry expected+1.
func saveVersioned(ctx context.Context, col *mongo.Collection, id string, expected int64, doc any) error {
	filter := bson.M{"_id": id, "version": expected}
	res, err := col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return classify(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

func findOne[D any](ctx context.Context, col *mongo.Collection, filter any, notFound error) (*D, error) {
	var doc D
	if err := col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, classify(err)
	}
	return &doc, nil
}

func findMany[D any](ctx context.Context, col *mongo.Collection, filter any, opts ...*options.FindOptions) ([]D, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)
	var docs []D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	return docs, nil
}
