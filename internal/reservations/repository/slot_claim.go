package repository

import (
	"context"
	"fmt"

	reservationserrors "roombook/internal/reservations/errors"
	"roombook/pkg/config"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SlotClaimCollectionName = "Reservation_slots"
)

// SlotClaimRepository stores one document per claimed (space, date, slot).
// It backs the application level conflict check: two writers that both pass
// the check cannot both commit a claim for the same triple.
type SlotClaimRepository interface {
	Claim(ctx context.Context, claims []model.SlotClaim) error
	ReleaseByReservation(ctx context.Context, reservationID string) error
}

type mongoSlotClaimRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewSlotClaimRepository(cfg *config.Config) SlotClaimRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotClaimRepository{
		cfg:        cfg,
		collection: db.Collection(SlotClaimCollectionName),
	}
}

// Claim inserts every claim. A claim that already exists yields
// ErrSlotConflict.
func (r *mongoSlotClaimRepository) Claim(ctx context.Context, claims []model.SlotClaim) error {
	if len(claims) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	docs := make([]any, 0, len(claims))
	for _, c := range claims {
		docs = append(docs, c)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", reservationserrors.ErrSlotConflict, err)
		}
		return fmt.Errorf("failed to claim slots: %w", err)
	}
	return nil
}

func (r *mongoSlotClaimRepository) ReleaseByReservation(ctx context.Context, reservationID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"reservation_id": reservationID}); err != nil {
		return fmt.Errorf("failed to release slot claims: %w", err)
	}
	return nil
}
