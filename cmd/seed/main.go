package main

import (
	"context"
	"flag"
	"os"
	"time"

	"roombook/internal/catalog"
	"roombook/internal/identity"
	"roombook/internal/seed"
	"roombook/pkg/config"
)

const JobName = "catalog-seed"

func main() {
	file := flag.String("file", "catalog.json", "path to the catalog JSON document")
	timeout := flag.Duration("timeout", 60*time.Second, "overall deadline for the seed job")
	flag.Parse()

	cfg := config.Load(JobName)

	f, err := os.Open(*file)
	if err != nil {
		cfg.Log.Fatal("Failed to open catalog file", "file", *file, "error", err)
	}
	defer f.Close()

	c, err := seed.Decode(f)
	if err != nil {
		cfg.Log.Fatal("Failed to read catalog", "file", *file, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	seeder := seed.NewSeeder(
		catalog.NewMongoSpaceRepository(cfg),
		catalog.NewMongoSlotRepository(cfg),
		identity.NewMongoAccountRepository(cfg),
		catalog.NewValidator(cfg.Log),
		identity.DefaultArgon2idParams,
		cfg.Log,
	)

	res, err := seeder.Apply(ctx, c)
	if err != nil {
		cfg.Log.Fatal("Seeding failed", "file", *file, "error", err)
	}
	cfg.Log.Info("Seed completed", "file", *file, "spaces", res.Spaces, "slots", res.Slots, "accounts", res.Accounts)
}
