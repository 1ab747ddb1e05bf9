package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"pawtrack/internal/adapters/mongodb"
	"pawtrack/internal/auth"
	"pawtrack/internal/config"
	"pawtrack/internal/domain"
	"pawtrack/internal/tracking"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Barangay hall, Manila. Seeded walks start around here.
const (
	homeLat = 14.5995
	homeLon = 120.9842
)

type seedOwner struct {
	id   string
	dogs []string
}

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
	registry := tracking.NewRegistry(log, deviceRepo, dogRepo)
	verifier := auth.NewTokenVerifier(cfg.JWTSecret)

	owners := []seedOwner{
		{id: "owner-1", dogs: []string{"Bantay", "Whitey"}},
		{id: "owner-2", dogs: []string{"Brownie"}},
	}

	daysInPast := 5
	points := 0
	collar := 1

	for _, owner := range owners {
		for _, name := range owner.dogs {
			dog := domain.Dog{ID: uuid.NewString(), Name: name, OwnerID: owner.id}
			if err := dogRepo.Save(ctx, dog); err != nil {
				log.Fatalw("failed to save dog", "error", err)
			}

			deviceID := fmt.Sprintf("dog-collar-%03d", collar)
			collar++

			_, err := registry.RegisterDevice(ctx, tracking.RegisterDeviceInput{
				DeviceID:      deviceID,
				Name:          name + "'s collar",
				OwnerID:       owner.id,
				AssignedDogID: &dog.ID,
			})
			if err != nil {
				log.Fatalw("failed to register device", "deviceId", deviceID, "error", err)
			}

			n, err := seedWalks(ctx, telemetryRepo, deviceID, owner.id, daysInPast)
			if err != nil {
				log.Fatalw("failed to add telemetry", "deviceId", deviceID, "error", err)
			}
			points += n
		}

		token, err := verifier.GenerateOwnerToken(owner.id, 30*24*time.Hour)
		if err != nil {
			log.Fatalw("failed to sign token", "error", err)
		}
		fmt.Printf("%s\t%s\n", owner.id, token)
	}

	log.Infof("Seeded %d collars with %d telemetry points", collar-1, points)
}

// seedWalks writes one walk per day: a sample every minute for an hour, with the
// occasional lost fix the way real collars report them.
func seedWalks(ctx context.Context, repo *mongodb.TelemetryRepository, deviceID, ownerID string, days int) (int, error) {
	count := 0
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for day := days; day > 0; day-- {
		start := today.AddDate(0, 0, -day).Add(time.Duration(rand.Intn(10)+6) * time.Hour)
		lat, lon := homeLat, homeLon
		battery := 100 - rand.Intn(20)

		for i := 0; i < 60; i++ {
			at := start.Add(time.Duration(i) * time.Minute)
			lat += (rand.Float64() - 0.5) * 0.0004
			lon += (rand.Float64() - 0.5) * 0.0004
			if i%10 == 9 {
				battery--
			}

			point := domain.TelemetryPoint{
				ID:        uuid.NewString(),
				DeviceID:  deviceID,
				OwnerID:   ownerID,
				Latitude:  lat,
				Longitude: lon,
				GPSValid:  true,
				Battery:   battery,
				Timestamp: at,
				Uptime:    int64(i * 60),
				WifiRSSI:  -50 - rand.Intn(30),
				CreatedAt: at,
			}
			if rand.Intn(20) == 0 {
				point.GPSValid = false
				point.Latitude, point.Longitude = 0, 0
			}

			if _, err := repo.Insert(ctx, point); err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}
