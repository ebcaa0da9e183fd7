package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roombook/pkg/config"
	"roombook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const AccountCollectionName = "Accounts"

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Upsert(ctx context.Context, account *model.Account) error
}

type mongoAccountRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAccountRepository(cfg *config.Config) AccountRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAccountRepository{
		cfg:        cfg,
		collection: db.Collection(AccountCollectionName),
	}
}

func (r *mongoAccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var account model.Account
	err := r.collection.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

// Upsert stores the account keyed by its normalized email.
func (r *mongoAccountRepository) Upsert(ctx context.Context, account *model.Account) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	account.Email = NormalizeEmail(account.Email)
	update := bson.M{
		"$set": bson.M{
			"name":          account.Name,
			"email":         account.Email,
			"password_hash": account.PasswordHash,
			"roles":         account.Roles,
			"updated_at":    time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"email": account.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}
