package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type driverDoc struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Available bool           `bson:"available"`
	Vehicle   domain.Vehicle `bson:"vehicle"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

func (d driverDoc) toDomain() *domain.Driver {
	return &domain.Driver{ID: d.ID, Name: d.Name, Available: d.Available, Vehicle: d.Vehicle, UpdatedAt: d.UpdatedAt}
}

// DriverRepository stores driver availability records in MongoDB.
type DriverRepository struct {
	col *mongo.Collection
}

// NewDriverRepository creates a driver repository over db.drivers.
func NewDriverRepository(db *mongo.Database) *DriverRepository {
	return &DriverRepository{col: db.Collection("drivers")}
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

func (r *DriverRepository) Upsert(ctx context.Context, d *domain.Driver) error {
	update := bson.M{
		"$set": bson.M{
			"name":       d.Name,
			"vehicle":    d.Vehicle,
			"updated_at": d.UpdatedAt,
		},
		"$setOnInsert": bson.M{"available": d.Available},
	}
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": d.ID}, update, options.Update().SetUpsert(true))
	return classify(err)
}

func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	var doc driverDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	return doc.toDomain(), nil
}

func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	cur, err := r.col.Find(ctx, bson.M{"available": true}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)

	drivers := make([]*domain.Driver, 0)
	for cur.Next(ctx) {
		var doc driverDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		drivers = append(drivers, doc.toDomain())
	}
	return drivers, classify(cur.Err())
}

func (r *DriverRepository) SetAvailability(ctx context.Context, id string, available bool) (*domain.Driver, error) {
	update := bson.M{"$set": bson.M{"available": available, "updated_at": time.Now().UTC()}}
	return r.findAndUpdate(ctx, id, update)
}

// ToggleAvailability uses an aggregation-pipeline update so the flip
// happens server-side in one write.
func (r *DriverRepository) ToggleAvailability(ctx context.Context, id string) (*domain.Driver, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"available":  bson.M{"$not": bson.A{"$available"}},
			"updated_at": time.Now().UTC(),
		}}},
	}
	return r.findAndUpdate(ctx, id, update)
}

func (r *DriverRepository) findAndUpdate(ctx context.Context, id string, update any) (*domain.Driver, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc driverDoc
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	return doc.toDomain(), nil
}
