package main

import (
	"roombook/internal/catalog"
	"roombook/internal/identity"
	"roombook/internal/reservations/events"
	"roombook/internal/reservations/handler"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/service"
	"roombook/internal/reservations/validator"
	"roombook/pkg/app"
	"roombook/pkg/config"
	"roombook/pkg/kafka"
	kafka_config "roombook/pkg/kafka/config"
	kafka_middleware "roombook/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	if err := cfg.ValidateAuth(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.Log.Info("Starting Reservations service")
	cfg.SetMongo()

	publisher := initPublisher(cfg)
	reservationService := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewReservationHandler(reservationService, cfg.Log),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		identity.NewTokenVerifier(cfg.JWTSecret),
		publisher,
	)
	serverApp.Run()
}

// initPublisher connects the lifecycle event stream. Without brokers events
// are dropped.
func initPublisher(cfg *config.Config) events.Publisher {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	if !kafkaCfg.Enabled() {
		cfg.Log.Info("Kafka brokers not configured, reservation events disabled")
		return events.NewNoopPublisher()
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.ReservationEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	cfg.Log.Info("Reservation events enabled", "topic", cfg.ReservationEventsTopic)
	return events.NewKafkaPublisher(producer, ServiceName)
}

func initServices(cfg *config.Config, publisher events.Publisher) service.ReservationService {
	reservationValidator := validator.NewReservationValidator(cfg.Log, cfg.Loc(), nil)
	reservationService := service.NewReservationService(
		repository.NewMongoReservationRepository(cfg),
		repository.NewSlotClaimRepository(cfg),
		catalog.NewMongoSpaceRepository(cfg),
		catalog.NewMongoSlotRepository(cfg),
		identity.NewMongoAccountRepository(cfg),
		reservationValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized",
		"database", cfg.MongoDatabaseName,
		"time_zone", cfg.Loc().String(),
		"slot_lookup_strict", cfg.SlotLookupStrict,
	)
	return reservationService
}
