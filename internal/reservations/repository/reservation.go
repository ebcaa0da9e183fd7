package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	reservationserrors "roombook/internal/reservations/errors"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context) ([]*model.Reservation, error)
	FindByOwner(ctx context.Context, ownerEmail string) ([]*model.Reservation, error)
	FindBySpace(ctx context.Context, spaceID string) ([]*model.Reservation, error)
	FindFutureBySpace(ctx context.Context, spaceID string, fromDate string) ([]*model.Reservation, error)
	FindConflicting(ctx context.Context, spaceID string, date string, slotIDs []string, excludeID string) ([]*model.Reservation, error)
	Update(ctx context.Context, reservation *model.Reservation) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// NewReservationID returns a fresh identifier. IDs are assigned before the
// insert so slot claims can reference the reservation in the same
// transaction.
func NewReservationID() string {
	return primitive.NewObjectID().Hex()
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged since wrapping it detaches the
// session from the operation.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func validateID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}
	return nil
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if reservation.ID == "" {
		reservation.ID = NewReservationID()
	}
	reservation.DateTime = reservation.DateTime.UTC().Truncate(time.Millisecond)

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if err := validateID(id); err != nil {
		return nil, err
	}

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoReservationRepository) FindByOwner(ctx context.Context, ownerEmail string) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{"owner_email": strings.ToLower(strings.TrimSpace(ownerEmail))})
}

func (r *mongoReservationRepository) FindBySpace(ctx context.Context, spaceID string) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{"space_id": spaceID})
}

// FindFutureBySpace returns reservations of the space whose day key is on or
// after fromDate. Day keys are "YYYY-MM-DD" so string order is date order.
func (r *mongoReservationRepository) FindFutureBySpace(ctx context.Context, spaceID string, fromDate string) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{
		"space_id": spaceID,
		"date":     bson.M{"$gte": fromDate},
	})
}

// FindConflicting returns reservations of the space on the date holding any
// of slotIDs. excludeID, when set, is left out of the result.
func (r *mongoReservationRepository) FindConflicting(
	ctx context.Context,
	spaceID string,
	date string,
	slotIDs []string,
	excludeID string,
) ([]*model.Reservation, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"space_id": spaceID,
		"date":     date,
		"slot_ids": bson.M{"$in": slotIDs},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	return r.find(ctx, filter)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M) ([]*model.Reservation, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "date_time", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	reservations := []*model.Reservation{}
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

// Update writes the mutable fields. Owner, space and creation date are never
// part of the update document.
func (r *mongoReservationRepository) Update(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validateID(reservation.ID); err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"date_time":      reservation.DateTime.UTC().Truncate(time.Millisecond),
			"date":           reservation.Date,
			"purpose":        reservation.Purpose,
			"attendee_count": reservation.AttendeeCount,
			"slot_ids":       reservation.SlotIDs,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": reservation.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}

	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}

	return nil
}

func (r *mongoReservationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validateID(id); err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}

	if result.DeletedCount == 0 {
		return reservationserrors.ErrNotFound
	}

	return nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
