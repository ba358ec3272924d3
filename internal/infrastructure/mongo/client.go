package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"

	"github.com/1195214305/xhs-backend/config"
)

const connectTimeout = 10 * time.Second

// NewClient connects to MongoDB and verifies the primary is reachable
func NewClient(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return client, nil
}

// NewClientFx creates a MongoDB client that disconnects on stop
func NewClientFx(lc fx.Lifecycle, cfg *config.MongoConfig, logger zerolog.Logger) (*mongo.Client, error) {
	client, err := NewClient(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Closing MongoDB connection")
			return client.Disconnect(ctx)
		},
	})

	logger.Info().
		Str("database", cfg.Database).
		Str("collection", cfg.Collection).
		Bool("transactions", cfg.Transactions).
		Msg("MongoDB connected")

	return client, nil
}
