package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roombook/internal/catalog"
	"roombook/internal/identity"
	"roombook/internal/reservations/repository"
)

const (
	DefaultMongoURI     = "mongodb://localhost:27017"
	DefaultDatabaseName = "roombook_test"
	ConnectionTimeout   = 10 * time.Second
)

// managedCollections are emptied between tests. Documents are removed
// instead of dropping the collection so migrated indexes survive.
var managedCollections = []string{
	repository.CollectionName,
	repository.SlotClaimCollectionName,
	catalog.SpaceCollectionName,
	catalog.SlotCollectionName,
	identity.AccountCollectionName,
}

// MongoHelper provides MongoDB test utilities
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	if mongoURI == "" {
		mongoURI = DefaultMongoURI
	}
	if dbName == "" {
		dbName = DefaultDatabaseName
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
		DBName:   dbName,
	}
}

func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

func (m *MongoHelper) CleanDatabase(t *testing.T) {
	t.Helper()
	for _, name := range managedCollections {
		m.CleanCollection(t, name)
	}
}

func (m *MongoHelper) CleanCollection(t *testing.T, collectionName string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := m.Database.Collection(collectionName).DeleteMany(ctx, bson.M{}); err != nil {
		t.Fatalf("failed to clean collection %s: %v", collectionName, err)
	}
}

func (m *MongoHelper) CountDocuments(t *testing.T, collectionName string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(collectionName).CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collectionName, err)
	}
	return count
}

// SeedCatalog writes spaces, slots and accounts straight into their
// collections.
func (m *MongoHelper) SeedCatalog(t *testing.T, c Catalog) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	insert := func(collection string, docs []any) {
		if len(docs) == 0 {
			return
		}
		if _, err := m.Database.Collection(collection).InsertMany(ctx, docs); err != nil {
			t.Fatalf("failed to seed %s: %v", collection, err)
		}
	}

	spaces := make([]any, 0, len(c.Spaces))
	for i := range c.Spaces {
		spaces = append(spaces, c.Spaces[i])
	}
	slots := make([]any, 0, len(c.Slots))
	for i := range c.Slots {
		slots = append(slots, c.Slots[i])
	}
	accounts := make([]any, 0, len(c.Accounts))
	for i := range c.Accounts {
		accounts = append(accounts, c.Accounts[i])
	}

	insert(catalog.SpaceCollectionName, spaces)
	insert(catalog.SlotCollectionName, slots)
	insert(identity.AccountCollectionName, accounts)
}
