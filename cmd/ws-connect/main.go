// Package main implements the WebSocket $connect and $disconnect Lambda handler.
// Connections are registered per user so notifications can be pushed to them.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"relmap/application/ports"
	"relmap/infrastructure/config"
	"relmap/infrastructure/di"
	"relmap/infrastructure/persistence/dynamodb"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// registry is the connection store plus the reverse lookup used on disconnect
type registry interface {
	ports.ConnectionStore
	UserOfConnection(ctx context.Context, connectionID string) (string, error)
}

type connectHandler struct {
	identity    ports.IdentityProvider
	connections registry
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func (h *connectHandler) handle(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	if request.RequestContext.RouteKey == "$disconnect" {
		return h.disconnect(ctx, connectionID), nil
	}

	token := request.QueryStringParameters["token"]
	if token == "" {
		token = strings.TrimPrefix(headerValue(request.Headers, "Authorization"), "Bearer ")
	}
	if token == "" {
		return respond(http.StatusUnauthorized, map[string]string{"error": "unauthorized"}), nil
	}

	principal, err := h.identity.Authenticate(ctx, token)
	if err != nil {
		h.logger.Warn("Authentication failed", zap.String("connectionID", connectionID), zap.Error(err))
		return respond(http.StatusUnauthorized, map[string]string{"error": "unauthorized"}), nil
	}

	if err := h.connections.SaveConnection(ctx, principal.UserID, connectionID, h.ttl); err != nil {
		h.logger.Error("Failed to store connection",
			zap.String("userID", principal.UserID),
			zap.String("connectionID", connectionID),
			zap.Error(err),
		)
		return respond(http.StatusInternalServerError, map[string]string{"error": "internal server error"}), nil
	}

	h.logger.Info("WebSocket connection established",
		zap.String("userID", principal.UserID),
		zap.String("connectionID", connectionID),
	)
	return respond(http.StatusOK, map[string]interface{}{
		"type":         "connection_established",
		"connectionId": connectionID,
		"timestamp":    h.now().Unix(),
	}), nil
}

// disconnect always answers 200; a connection that cannot be resolved expires through its TTL
func (h *connectHandler) disconnect(ctx context.Context, connectionID string) events.APIGatewayProxyResponse {
	userID, err := h.connections.UserOfConnection(ctx, connectionID)
	if err != nil {
		h.logger.Warn("Unknown connection on disconnect", zap.String("connectionID", connectionID), zap.Error(err))
		return respond(http.StatusOK, map[string]string{"type": "disconnected"})
	}
	if err := h.connections.RemoveConnection(ctx, userID, connectionID); err != nil {
		h.logger.Warn("Failed to remove connection", zap.String("connectionID", connectionID), zap.Error(err))
	}
	return respond(http.StatusOK, map[string]string{"type": "disconnected"})
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func respond(status int, body interface{}) events.APIGatewayProxyResponse {
	raw, _ := json.Marshal(body)
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(raw)}
}

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	supabaseClient, err := di.ProvideSupabaseClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create supabase client: %v", err)
	}
	identity, err := di.ProvideIdentityProvider(cfg, supabaseClient, logger)
	if err != nil {
		log.Fatalf("Failed to create identity provider: %v", err)
	}
	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	h := &connectHandler{
		identity:    identity,
		connections: dynamodb.NewConnectionStore(di.ProvideDynamoDBClient(awsCfg), cfg.ConnectionsTable, logger),
		ttl:         cfg.ConnectionTTL,
		logger:      logger,
		now:         time.Now,
	}
	lambda.Start(h.handle)
}
