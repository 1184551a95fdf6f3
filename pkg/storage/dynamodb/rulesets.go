package dynamodb

import (
	"context"
	"errors"
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

// CreateRuleset stores a ruleset keyed by its effectiveFrom instant.
func (s *Store) CreateRuleset(ctx context.Context, rs *models.Ruleset) (*models.Ruleset, error) {
	item, err := attributevalue.MarshalMap(toRulesetItem(rs))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ruleset: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.RulesetsTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(effective_from)"), // One ruleset per instant.
	}

	_, err = s.Client.PutItem(ctx, input)
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, storage.ErrRulesetExists
		}
		return nil, fmt.Errorf("failed to create ruleset in DynamoDB: %w", err)
	}

	return rs, nil
}

// RulesetAt returns the latest ruleset with effective_from <= asOf.
func (s *Store) RulesetAt(ctx context.Context, asOf time.Time) (*models.Ruleset, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.RulesetsTableName),
		KeyConditionExpression: aws.String("gsi1pk = :pk AND effective_from <= :asOf"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: rulesetsPartition},
			":asOf": &types.AttributeValueMemberN{Value: strconv.FormatInt(asOf.UnixNano(), 10)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query ruleset timeline: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, storage.ErrRulesetNotFound
	}

	var item rulesetItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ruleset: %w", err)
	}
	return item.toModel()
}

// ListRulesets reads the whole timeline newest first and slices the requested page.
// The timeline holds one item per configuration change, so it stays small.
func (s *Store) ListRulesets(ctx context.Context, limit, offset int) ([]models.Ruleset, int, error) {
	var items []rulesetItem
	var startKey map[string]types.AttributeValue
	for {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.RulesetsTableName),
			KeyConditionExpression: aws.String("gsi1pk = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: rulesetsPartition},
			},
			ScanIndexForward:  aws.Bool(false),
			ExclusiveStartKey: startKey,
		}

		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to query rulesets: %w", err)
		}

		var page []rulesetItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal rulesets: %w", err)
		}
		items = append(items, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	total := len(items)
	out := make([]models.Ruleset, 0, limit)
	for i := offset; i < total && len(out) < limit; i++ {
		rs, err := items[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rs)
	}
	return out, total, nil
}
