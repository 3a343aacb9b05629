package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

var (
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
	initMu         sync.Mutex
)

// InitMongoDB connects the shared client and selects the database. Calling
// it again after a successful connection is a no-op.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if clientInstance != nil {
		return nil
	}

	log.Info().Str("database", dbName).Msg("Initializing MongoDB client")
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	clientInstance = client
	dbInstance = client.Database(dbName)
	log.Info().Msg("MongoDB client initialized successfully.")
	return nil
}

// GetDB returns the database selected by InitMongoDB, or nil.
func GetDB() *mongo.Database {
	initMu.Lock()
	defer initMu.Unlock()
	return dbInstance
}

// Ping checks the shared client, used by health checks.
func Ping(ctx context.Context) error {
	initMu.Lock()
	client := clientInstance
	initMu.Unlock()

	if client == nil {
		return errors.New("mongodb client is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the shared client.
func CloseMongoDB(ctx context.Context) {
	initMu.Lock()
	defer initMu.Unlock()

	if clientInstance == nil {
		return
	}
	log.Info().Msg("Closing MongoDB connection.")
	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}
	clientInstance, dbInstance = nil, nil
}
