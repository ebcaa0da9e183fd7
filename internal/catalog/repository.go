package catalog

import (
	"context"
	"errors"
	"fmt"

	"roombook/pkg/config"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SpaceCollectionName = "Spaces"
	SlotCollectionName  = "Slots"
)

var ErrSpaceNotFound = errors.New("space not found")

type SpaceRepository interface {
	FindSpaceByID(ctx context.Context, id string) (*model.Space, error)
	UpsertSpace(ctx context.Context, space *model.Space) error
}

// SlotRepository looks slots up by id. Ids with no stored slot produce no
// entry in the result.
type SlotRepository interface {
	FindSlotsByIDs(ctx context.Context, ids []string) ([]model.Slot, error)
	UpsertSlot(ctx context.Context, slot *model.Slot) error
}

type mongoSpaceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSpaceRepository(cfg *config.Config) SpaceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSpaceRepository{
		cfg:        cfg,
		collection: db.Collection(SpaceCollectionName),
	}
}

func (r *mongoSpaceRepository) FindSpaceByID(ctx context.Context, id string) (*model.Space, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var space model.Space
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&space)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSpaceNotFound
		}
		return nil, fmt.Errorf("failed to find space: %w", err)
	}
	return &space, nil
}

func (r *mongoSpaceRepository) UpsertSpace(ctx context.Context, space *model.Space) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": space.ID}, space, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert space: %w", err)
	}
	return nil
}

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(SlotCollectionName),
	}
}

func (r *mongoSlotRepository) FindSlotsByIDs(ctx context.Context, ids []string) ([]model.Slot, error) {
	if len(ids) == 0 {
		return []model.Slot{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "weekday", Value: 1}, {Key: "session", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := []model.Slot{}
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) UpsertSlot(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": slot.ID}, slot, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert slot: %w", err)
	}
	return nil
}
