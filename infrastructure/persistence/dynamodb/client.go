package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client used by this package
type API interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDB limits batch writes to 25 items
const (
	batchSize       = 25
	maxBatchRetries = 3
)

// batchWrite sends requests in chunks of 25, resubmitting unprocessed items with backoff
func batchWrite(ctx context.Context, client API, table string, requests []types.WriteRequest, logger *zap.Logger) error {
	for i := 0; i < len(requests); i += batchSize {
		end := i + batchSize
		if end > len(requests) {
			end = len(requests)
		}

		pending := requests[i:end]
		for retry := 0; len(pending) > 0; retry++ {
			if retry >= maxBatchRetries {
				return fmt.Errorf("failed to write %d items after %d attempts", len(pending), maxBatchRetries)
			}

			result, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{table: pending},
			})
			if err != nil {
				return fmt.Errorf("batch write: %w", err)
			}

			pending = result.UnprocessedItems[table]
			if len(pending) == 0 {
				break
			}

			backoff := time.Duration(retry*retry+1) * 100 * time.Millisecond
			logger.Debug("Found unprocessed items, retrying",
				zap.Int("unprocessedCount", len(pending)),
				zap.Int("retry", retry+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil
}
