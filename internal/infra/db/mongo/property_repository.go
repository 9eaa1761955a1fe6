package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"staysettle/internal/domain/property"
)

// PropertyRepository stores properties with their availability ledger
// embedded, so a reservation and its booking commit in one transaction and
// conflicting reservations collide on the document version.
type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection(propertiesCollection)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id property.PropertyID) (*property.Property, error) {
	doc, err := findOne[propertyDocument](ctx, r.col, bson.M{"_id": string(id)}, property.ErrPropertyNotFound)
	if err != nil {
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *property.Property) error {
	doc := newPropertyDocument(p)
	doc.Version = p.Version + 1
	if err := saveVersioned(ctx, r.col, doc.ID, p.Version, doc); err != nil {
		return err
	}
	p.Version = doc.Version
	return nil
}

type propertyDocument struct {
	ID                 string           `bson:"_id"`
	HostID             string           `bson:"host_id"`
	Title              string           `bson:"title"`
	CancellationPolicy string           `bson:"cancellation_policy"`
	Pricing            property.Pricing `bson:"pricing"`
	Ledger             property.Ledger  `bson:"ledger"`
	CreatedAt          time.Time        `bson:"created_at"`
	UpdatedAt          time.Time        `bson:"updated_at"`
	Version            int64            `bson:"version"`
}

func newPropertyDocument(p *property.Property) propertyDocument {
	return propertyDocument{
		ID:                 string(p.ID),
		HostID:             string(p.Host),
		Title:              p.Title,
		CancellationPolicy: p.CancellationPolicy,
		Pricing:            p.Pricing,
		Ledger:             p.Ledger,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		Version:            p.Version,
	}
}

func (d propertyDocument) toAggregate() *property.Property {
	return &property.Property{
		ID:                 property.PropertyID(d.ID),
		Host:               property.HostID(d.HostID),
		Title:              d.Title,
		CancellationPolicy: d.CancellationPolicy,
		Pricing:            d.Pricing,
		Ledger:             d.Ledger,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		Version:            d.Version,
	}
}
