package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// GetOperation returns a committed idempotency record. Records past their
// retention window are treated as absent even before DynamoDB TTL removes them.
func (s *Store) GetOperation(ctx context.Context, accountID, operationID string) (*models.OperationRecord, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"account_id": accountID, "operation_id": operationID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operation key: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.OperationsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get operation from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrOperationNotFound
	}

	var item operationItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	if item.expired(time.Now()) {
		return nil, storage.ErrOperationNotFound
	}
	return item.toModel()
}

// PurgeOperations deletes expired records that TTL has not removed yet.
func (s *Store) PurgeOperations(ctx context.Context, now time.Time) (int, error) {
	purged := 0
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.Client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.OperationsTableName),
			FilterExpression:     aws.String("#ttl < :now"),
			ProjectionExpression: aws.String("account_id, operation_id"),
			ExpressionAttributeNames: map[string]string{
				"#ttl": "ttl",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return purged, fmt.Errorf("failed to scan operations table: %w", err)
		}

		for _, item := range result.Items {
			_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(s.OperationsTableName),
				Key: map[string]types.AttributeValue{
					"account_id":   item["account_id"],
					"operation_id": item["operation_id"],
				},
			})
			if err != nil {
				return purged, fmt.Errorf("failed to delete expired operation: %w", err)
			}
			purged++
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return purged, nil
}
