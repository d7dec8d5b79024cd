// Package main implements the Lambda that pushes persisted graph changes to
// connected WebSocket clients. It is triggered by EventBridge rules matching
// the relmap.sync source.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"relmap/infrastructure/config"
	"relmap/infrastructure/di"
	"relmap/infrastructure/messaging/eventbridge"
	"relmap/infrastructure/messaging/websocket"
	"relmap/infrastructure/persistence/dynamodb"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// sender pushes one frame to every connection of a user
type sender interface {
	Send(ctx context.Context, userID, frameType string, payload interface{}) error
}

type broadcaster struct {
	sender sender
	logger *zap.Logger
}

func (b *broadcaster) handle(ctx context.Context, event events.CloudWatchEvent) error {
	if event.Source != eventbridge.Source {
		b.logger.Debug("Ignoring event from foreign source", zap.String("source", event.Source))
		return nil
	}

	var detail eventbridge.Detail
	if err := json.Unmarshal(event.Detail, &detail); err != nil {
		// A malformed detail is never retried
		b.logger.Error("Malformed event detail", zap.String("eventID", event.ID), zap.Error(err))
		return nil
	}
	if detail.OwnerID == "" {
		b.logger.Warn("Event without owner", zap.String("eventID", event.ID))
		return nil
	}

	if err := b.sender.Send(ctx, detail.OwnerID, websocket.TypeGraphChanged, detail); err != nil {
		return fmt.Errorf("push %s to %s: %w", detail.EventType, detail.OwnerID, err)
	}

	b.logger.Info("Graph change pushed",
		zap.String("userID", detail.OwnerID),
		zap.String("eventType", detail.EventType),
		zap.Int("version", detail.Version),
	)
	return nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.WebSocketEndpoint == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}
	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	connections := dynamodb.NewConnectionStore(di.ProvideDynamoDBClient(awsCfg), cfg.ConnectionsTable, logger)
	b := &broadcaster{
		sender: websocket.NewNotifier(websocket.NewClient(awsCfg, cfg.WebSocketEndpoint), connections, logger),
		logger: logger,
	}
	lambda.Start(b.handle)
}
