package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"relmap/application/ports"
)

// Sort key prefixes of the single-table layout
const (
	personPrefix   = "PERSON#"
	relationPrefix = "REL#"

	entityPerson   = "PERSON"
	entityRelation = "RELATION"
)

// personItem is a person row under PK=USER#<owner>, SK=PERSON#<id>
type personItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ports.PersonRecord
}

// relationItem is a relation row under PK=USER#<owner>, SK=REL#<id>
type relationItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ports.RelationRecord
}

// TableService implements ports.TableService on one DynamoDB table.
// The owner is always part of the partition key.
type TableService struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewTableService creates a DynamoDB-backed table service
func NewTableService(client API, tableName string, logger *zap.Logger) *TableService {
	return &TableService{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func userKey(ownerID string) string { return "USER#" + ownerID }

func itemKey(ownerID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: userKey(ownerID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Ping describes the table
func (s *TableService) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	return err
}

func (s *TableService) SelectPersons(ctx context.Context, ownerID string) ([]ports.PersonRecord, error) {
	items, err := s.queryPrefix(ctx, ownerID, personPrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("select persons: %w", err)
	}

	rows := make([]ports.PersonRecord, 0, len(items))
	for _, item := range items {
		var p personItem
		if err := attributevalue.UnmarshalMap(item, &p); err != nil {
			s.logger.Warn("Failed to unmarshal person item", zap.Error(err))
			continue
		}
		rows = append(rows, p.PersonRecord)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows, nil
}

func (s *TableService) InsertPersons(ctx context.Context, ownerID string, rows []ports.PersonRecord) error {
	now := s.now()
	requests := make([]types.WriteRequest, 0, len(rows))
	for _, row := range rows {
		row.OwnerID = ownerID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
		item, err := attributevalue.MarshalMap(personItem{
			PK:           userKey(ownerID),
			SK:           personPrefix + row.ID,
			EntityType:   entityPerson,
			PersonRecord: row,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal person: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	if err := batchWrite(ctx, s.client, s.tableName, requests, s.logger); err != nil {
		return fmt.Errorf("insert persons: %w", err)
	}
	return nil
}

func (s *TableService) UpdatePerson(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	if err := s.update(ctx, ownerID, personPrefix+id, fields); err != nil {
		return fmt.Errorf("update person %s: %w", id, err)
	}
	return nil
}

func (s *TableService) DeletePersons(ctx context.Context, ownerID string, ids []string) error {
	if err := s.deleteKeys(ctx, ownerID, personPrefix, ids); err != nil {
		return fmt.Errorf("delete persons: %w", err)
	}
	return nil
}

func (s *TableService) SelectRelations(ctx context.Context, ownerID string) ([]ports.RelationRecord, error) {
	items, err := s.queryPrefix(ctx, ownerID, relationPrefix, nil)
	if err != nil {
		return nil, fmt.Errorf("select relations: %w", err)
	}
	return s.relationRows(items), nil
}

func (s *TableService) InsertRelations(ctx context.Context, ownerID string, rows []ports.RelationRecord) error {
	now := s.now()
	requests := make([]types.WriteRequest, 0, len(rows))
	for _, row := range rows {
		row.OwnerID = ownerID
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = now
		}
		item, err := attributevalue.MarshalMap(relationItem{
			PK:             userKey(ownerID),
			SK:             relationPrefix + row.ID,
			EntityType:     entityRelation,
			RelationRecord: row,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal relation: %w", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	if err := batchWrite(ctx, s.client, s.tableName, requests, s.logger); err != nil {
		return fmt.Errorf("insert relations: %w", err)
	}
	return nil
}

func (s *TableService) UpdateRelation(ctx context.Context, ownerID, id string, fields ports.Fields) error {
	if err := s.update(ctx, ownerID, relationPrefix+id, fields); err != nil {
		return fmt.Errorf("update relation %s: %w", id, err)
	}
	return nil
}

func (s *TableService) DeleteRelations(ctx context.Context, ownerID string, ids []string) error {
	if err := s.deleteKeys(ctx, ownerID, relationPrefix, ids); err != nil {
		return fmt.Errorf("delete relations: %w", err)
	}
	return nil
}

func (s *TableService) DeleteRelationsByPerson(ctx context.Context, ownerID, personID string) error {
	filter := expression.Name(ports.ColumnSourceID).Equal(expression.Value(personID)).
		Or(expression.Name(ports.ColumnTargetID).Equal(expression.Value(personID)))

	items, err := s.queryPrefix(ctx, ownerID, relationPrefix, &filter)
	if err != nil {
		return fmt.Errorf("find relations of %s: %w", personID, err)
	}

	rows := s.relationRows(items)
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if err := s.deleteKeys(ctx, ownerID, relationPrefix, ids); err != nil {
		return fmt.Errorf("delete relations of %s: %w", personID, err)
	}
	return nil
}

func (s *TableService) relationRows(items []map[string]types.AttributeValue) []ports.RelationRecord {
	rows := make([]ports.RelationRecord, 0, len(items))
	for _, item := range items {
		var r relationItem
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			s.logger.Warn("Failed to unmarshal relation item", zap.Error(err))
			continue
		}
		rows = append(rows, r.RelationRecord)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	return rows
}

// queryPrefix reads every item of the owner whose sort key starts with prefix
func (s *TableService) queryPrefix(ctx context.Context, ownerID, prefix string, filter *expression.ConditionBuilder) ([]map[string]types.AttributeValue, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(userKey(ownerID))).
		And(expression.Key("SK").BeginsWith(prefix))

	builder := expression.NewBuilder().WithKeyCondition(keyExpr)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
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

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// update applies fields to an existing item. A nil *string removes the attribute.
// Updating a missing item is a no-op.
func (s *TableService) update(ctx context.Context, ownerID, sk string, fields ports.Fields) error {
	expr, err := updateExpression(fields, s.now())
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(ownerID, sk),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			s.logger.Debug("Update skipped, item does not exist", zap.String("SK", sk))
			return nil
		}
		return err
	}
	return nil
}

func updateExpression(fields ports.Fields, now time.Time) (expression.Expression, error) {
	if at, ok := fields[ports.ColumnUpdatedAt]; ok {
		if t, ok := at.(time.Time); ok {
			now = t
		}
	}
	update := expression.Set(expression.Name(ports.ColumnUpdatedAt), expression.Value(now))
	columns := make([]string, 0, len(fields))
	for column := range fields {
		if column == ports.ColumnUpdatedAt {
			continue
		}
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		value := fields[column]
		if p, ok := value.(*string); ok {
			if p == nil {
				update = update.Remove(expression.Name(column))
				continue
			}
			value = *p
		}
		update = update.Set(expression.Name(column), expression.Value(value))
	}

	return expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
}

func (s *TableService) deleteKeys(ctx context.Context, ownerID, prefix string, ids []string) error {
	requests := make([]types.WriteRequest, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: itemKey(ownerID, prefix+id)},
		})
	}
	return batchWrite(ctx, s.client, s.tableName, requests, s.logger)
}
