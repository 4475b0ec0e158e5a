package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/repository"
)

type bookingDoc struct {
	ID               string    `bson:"_id"`
	RequesterID      string    `bson:"requester_id"`
	PickupLocation   string    `bson:"pickup_location"`
	Destination      string    `bson:"destination"`
	ServiceTier      string    `bson:"service_tier"`
	Price            float64   `bson:"price"`
	ETAMinutes       int       `bson:"eta_minutes"`
	Status           string    `bson:"status"`
	AssignedDriverID *string   `bson:"assigned_driver_id"`
	DeclinedDrivers  []string  `bson:"declined_drivers"`
	CreatedAt        time.Time `bson:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func toBookingDoc(b *domain.Booking) bookingDoc {
	doc := bookingDoc{
		ID:              b.ID,
		RequesterID:     b.RequesterID,
		PickupLocation:  b.PickupLocation,
		Destination:     b.Destination,
		ServiceTier:     b.ServiceTier,
		Price:           b.Price,
		ETAMinutes:      b.ETAMinutes,
		Status:          string(b.Status),
		DeclinedDrivers: b.DeclinedDrivers,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if doc.DeclinedDrivers == nil {
		doc.DeclinedDrivers = []string{}
	}
	if b.AssignedDriverID != "" {
		id := b.AssignedDriverID
		doc.AssignedDriverID = &id
	}
	return doc
}

func (d bookingDoc) toDomain() *domain.Booking {
	b := &domain.Booking{
		ID:              d.ID,
		RequesterID:     d.RequesterID,
		PickupLocation:  d.PickupLocation,
		Destination:     d.Destination,
		ServiceTier:     d.ServiceTier,
		Price:           d.Price,
		ETAMinutes:      d.ETAMinutes,
		Status:          domain.BookingStatus(d.Status),
		DeclinedDrivers: d.DeclinedDrivers,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.AssignedDriverID != nil {
		b.AssignedDriverID = *d.AssignedDriverID
	}
	return b
}

// BookingRepository stores bookings in a MongoDB collection.
type BookingRepository struct {
	col *mongo.Collection
}

// NewBookingRepository creates a booking repository over db.bookings.
func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection("bookings")}
}

var _ repository.BookingRepository = (*BookingRepository)(nil)

// EnsureIndexes creates the indexes the read paths rely on.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "assigned_driver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	return classify(err)
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	_, err := r.col.InsertOne(ctx, toBookingDoc(b))
	return classify(err)
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var doc bookingDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	return doc.toDomain(), nil
}

func (r *BookingRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domain.Booking, error) {
	return r.find(ctx, bson.M{"requester_id": requesterID}, newestFirst())
}

func (r *BookingRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return r.find(ctx, bson.M{"assigned_driver_id": driverID}, newestFirst())
}

func (r *BookingRepository) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return r.find(ctx, bson.M{}, newestFirst().SetLimit(100))
}

func (r *BookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	filter := bson.M{
		"status":     string(domain.BookingStatusPending),
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

// TryAssignDriver matches only a pending document not requested by driverID
// whose declined set does not contain driverID, so the server applies the check and the write as one
// document-level atomic operation.
func (r *BookingRepository) TryAssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Booking, error) {
	filter := bson.M{
		"_id":              id,
		"status":           string(domain.BookingStatusPending),
		"requester_id":     bson.M{"$ne": driverID},
		"declined_drivers": bson.M{"$ne": driverID},
	}
	update := bson.M{
		"$set": bson.M{
			"status":             string(domain.BookingStatusConfirmed),
			"assigned_driver_id": driverID,
		},
		"$max": bson.M{"updated_at": at},
	}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *BookingRepository) AddDeclined(ctx context.Context, id, driverID string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":              id,
		"status":           string(domain.BookingStatusPending),
		"declined_drivers": bson.M{"$ne": driverID},
	}
	update := bson.M{
		"$addToSet": bson.M{"declined_drivers": driverID},
		"$max":      bson.M{"updated_at": at},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, classify(err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	found, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, repository.ErrNotFound
	}
	return false, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	filter := bson.M{"_id": id, "status": string(from)}
	update := bson.M{
		"$set": bson.M{"status": string(to)},
		"$max": bson.M{"updated_at": at},
	}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *BookingRepository) CountByStatus(ctx context.Context, f repository.BookingFilter) (map[domain.BookingStatus]int, error) {
	match := bson.M{}
	if f.RequesterID != "" {
		match["requester_id"] = f.RequesterID
	}
	if f.DriverID != "" {
		match["assigned_driver_id"] = f.DriverID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}

	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)

	counts := make(map[domain.BookingStatus]int)
	for cur.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int    `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[domain.BookingStatus(row.Status)] = row.Count
	}
	return counts, classify(cur.Err())
}

func (r *BookingRepository) conditionalUpdate(ctx context.Context, id string, filter, update bson.M) (*domain.Booking, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bookingDoc
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, classify(err)
	}

	found, err := r.exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check booking %s: %w", id, err)
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

func (r *BookingRepository) exists(ctx context.Context, id string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(ctx)

	bookings := make([]*domain.Booking, 0)
	for cur.Next(ctx) {
		var doc bookingDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		bookings = append(bookings, doc.toDomain())
	}
	return bookings, classify(cur.Err())
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}

// classify maps driver connectivity failures onto repository.ErrDependencyUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%w: %v", repository.ErrDependencyUnavailable, err)
	}
	return err
}
