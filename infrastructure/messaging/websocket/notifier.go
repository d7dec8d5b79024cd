// Package websocket pushes notifications to connected browsers through API Gateway.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"

	"relmap/application/ports"
)

// API is the subset of the API Gateway Management client used here
type API interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Frame types
const (
	TypeNotification = "notification"
	TypeGraphChanged = "graph_changed"
)

// Message is the frame sent to clients
type Message struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Notifier implements ports.Notifier by posting to every live connection of the user
type Notifier struct {
	client      API
	connections ports.ConnectionStore
	logger      *zap.Logger
}

// NewClient creates a management API client bound to the WebSocket endpoint
func NewClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
	})
}

// NewNotifier creates a WebSocket notifier
func NewNotifier(client API, connections ports.ConnectionStore, logger *zap.Logger) *Notifier {
	return &Notifier{
		client:      client,
		connections: connections,
		logger:      logger,
	}
}

// Notify sends a notification frame to each connection of notification.UserID
func (n *Notifier) Notify(ctx context.Context, notification ports.Notification) error {
	return n.Send(ctx, notification.UserID, TypeNotification, notification)
}

// Send posts one frame to every live connection of userID. Gone connections are removed.
func (n *Notifier) Send(ctx context.Context, userID, frameType string, payload interface{}) error {
	ids, err := n.connections.Connections(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", frameType, err)
	}
	data, err := json.Marshal(Message{
		Type:      frameType,
		Timestamp: time.Now().Unix(),
		Data:      raw,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	var errs []error
	for _, id := range ids {
		_, err := n.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(id),
			Data:         data,
		})
		if err == nil {
			continue
		}

		var gone *apigwTypes.GoneException
		if errors.As(err, &gone) {
			n.logger.Debug("Connection is gone, removing",
				zap.String("userID", userID),
				zap.String("connectionID", id),
			)
			if rmErr := n.connections.RemoveConnection(ctx, userID, id); rmErr != nil {
				n.logger.Warn("Failed to remove stale connection", zap.Error(rmErr))
			}
			continue
		}
		errs = append(errs, fmt.Errorf("connection %s: %w", id, err))
	}

	return errors.Join(errs...)
}
