package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const connectionPrefix = "CONN#"

// ConnectionStore keeps WebSocket connections under PK=USER#<id>, SK=CONN#<connId>.
// GSI1 inverts the key for disconnect lookups and expireAt drives the table TTL.
type ConnectionStore struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewConnectionStore creates a connection store on the connections table
func NewConnectionStore(client API, tableName string, logger *zap.Logger) *ConnectionStore {
	return &ConnectionStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// SaveConnection registers a connection until ttl elapses
func (s *ConnectionStore) SaveConnection(ctx context.Context, userID, connectionID string, ttl time.Duration) error {
	pk := userKey(userID)
	sk := connectionPrefix + connectionID
	expireAt := s.now().Add(ttl).Unix()

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":       &types.AttributeValueMemberS{Value: pk},
			"SK":       &types.AttributeValueMemberS{Value: sk},
			"GSI1PK":   &types.AttributeValueMemberS{Value: sk},
			"GSI1SK":   &types.AttributeValueMemberS{Value: pk},
			"expireAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expireAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	s.logger.Debug("Connection saved",
		zap.String("userID", userID),
		zap.String("connectionID", connectionID),
	)
	return nil
}

// Connections returns the unexpired connection ids of userID.
// TTL deletion is lazy, so expired rows are filtered here.
func (s *ConnectionStore) Connections(ctx context.Context, userID string) ([]string, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(userKey(userID))).
		And(expression.Key("SK").BeginsWith(connectionPrefix))
	filter := expression.Name("expireAt").GreaterThan(expression.Value(s.now().Unix()))

	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var ids []string
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query connections: %w", err)
		}
		for _, item := range page.Items {
			sk, ok := item["SK"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			ids = append(ids, strings.TrimPrefix(sk.Value, connectionPrefix))
		}
	}
	return ids, nil
}

// RemoveConnection forgets a connection
func (s *ConnectionStore) RemoveConnection(ctx context.Context, userID, connectionID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(userID, connectionPrefix+connectionID),
	})
	if err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	return nil
}

// UserOfConnection resolves the owner of a connection through GSI1
func (s *ConnectionStore) UserOfConnection(ctx context.Context, connectionID string) (string, error) {
	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(connectionPrefix + connectionID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return "", fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String("GSI1"),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("failed to query connection: %w", err)
	}
	if len(result.Items) == 0 {
		return "", fmt.Errorf("connection %s not found", connectionID)
	}

	pk, ok := result.Items[0]["GSI1SK"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("connection %s has no owner", connectionID)
	}
	return strings.TrimPrefix(pk.Value, "USER#"), nil
}
