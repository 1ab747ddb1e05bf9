package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"pawtrack/internal/adapters/mongodb"
	"pawtrack/internal/config"
	"pawtrack/internal/domain"
	"pawtrack/internal/tracking"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	profileOwner  = "profile-owner"
	profileDevice = "profile-collar"
)

// Times GetHistory over growing windows of dense telemetry, one sample every five
// minutes around the clock.
func main() {
	ctx := context.Background()
	logger, _ := zap.NewProduction()
	log := logger.Sugar()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	mongoDB, err := mongodb.NewMongoDB(ctx, cfg.MongoDBURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalw("failed to connect to MongoDB", "error", err)
	}
	defer mongoDB.Close(ctx)

	err = mongodb.SetUpCollections(ctx, mongoDB.Database)
	if err != nil {
		log.Fatalw("failed to set up collections", "error", err)
	}

	deviceRepo := mongodb.NewDeviceRepository(mongoDB)
	telemetryRepo := mongodb.NewTelemetryRepository(mongoDB)
	dogRepo := mongodb.NewDogRepository(mongoDB)

	quiet := zap.NewNop().Sugar()
	registry := tracking.NewRegistry(quiet, deviceRepo, dogRepo)
	history := tracking.NewHistory(quiet, registry, telemetryRepo, cfg.HistoryMaxLimit, time.Minute, cfg.Location())

	_, err = registry.RegisterDevice(ctx, tracking.RegisterDeviceInput{
		DeviceID: profileDevice,
		Name:     "Profiling collar",
		OwnerID:  profileOwner,
	})
	if err != nil {
		log.Fatalw("failed to register device", "error", err)
	}

	fmt.Println("days\tpoints\treturned\thistory")

	end := time.Now().UTC()
	points := 0
	for days := 1; days <= 30; days++ {
		dayStart := end.AddDate(0, 0, -days)
		for j := 0; j < 24*12; j++ { // Generate a sample every 5 minutes
			at := dayStart.Add(5 * time.Minute * time.Duration(j))
			_, err := telemetryRepo.Insert(ctx, domain.TelemetryPoint{
				ID:        uuid.NewString(),
				DeviceID:  profileDevice,
				OwnerID:   profileOwner,
				Latitude:  14.5 + rand.Float64()*0.1,
				Longitude: 120.9 + rand.Float64()*0.1,
				GPSValid:  true,
				Battery:   rand.Intn(101),
				Timestamp: at,
				CreatedAt: at,
			})
			if err != nil {
				log.Fatalw("failed to insert telemetry", "error", err)
			}
			points++
		}

		start := dayStart
		startTime := time.Now()
		result, err := history.GetHistory(ctx, tracking.HistoryQuery{
			DeviceID: profileDevice,
			OwnerID:  profileOwner,
			Start:    &start,
			End:      &end,
			Limit:    cfg.HistoryMaxLimit,
		})
		historyTime := time.Since(startTime)
		if err != nil {
			log.Fatalw("failed to fetch history", "error", err)
		}

		fmt.Printf("%d\t%d\t%d\t\t%s\n", days, points, len(result.Points), historyTime)
	}
}
