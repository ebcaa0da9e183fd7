package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roombook/internal/catalog"
	"roombook/internal/identity"
	"roombook/internal/migrations/mongo/validators"
	"roombook/internal/reservations/repository"
	"roombook/pkg/logger"
)

var (
	SpacesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	SlotsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "weekday", Value: 1}, {Key: "session", Value: 1}},
			Options: options.Index().SetName("weekday_session"),
		},
	}

	AccountsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
	}

	ReservationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "space_id", Value: 1},
			{Key: "date", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "owner_email", Value: 1},
			{Key: "date_time", Value: 1},
		}},
	}

	// Claim uniqueness comes from the composite _id.
	SlotClaimsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "reservation_id", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		catalog.SpaceCollectionName: {
			Indexes:   SpacesIndexes,
			Validator: validators.SpaceValidator,
		},
		catalog.SlotCollectionName: {
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
		identity.AccountCollectionName: {
			Indexes:   AccountsIndexes,
			Validator: validators.AccountValidator,
		},
		repository.CollectionName: {
			Indexes:   ReservationsIndexes,
			Validator: validators.ReservationValidator,
		},
		repository.SlotClaimCollectionName: {
			Indexes:   SlotClaimsIndexes,
			Validator: validators.SlotClaimValidator,
		},
	}
}

// RunMigration creates every collection with its schema validator and
// indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
