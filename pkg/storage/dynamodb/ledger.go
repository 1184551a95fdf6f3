package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// Positions of the items in the append transaction.
const (
	appendAccountIdx = iota
	appendEventIdx
	appendOperationIdx
)

// Append writes the event, the account update and the idempotency record in one
// TransactWriteItems call. The account update is conditioned on the version read
// here, so a concurrent writer makes the whole transaction fail.
func (s *Store) Append(ctx context.Context, draft *models.EventDraft) (*models.OperationResult, error) {
	// 1. Get the current state of the account.
	acc, err := s.GetAccount(ctx, draft.AccountID)
	if err != nil {
		return nil, err
	}

	// 2. Compute the new state; insufficient balance and stale versions stop here.
	applied, err := storage.Apply(acc, draft)
	if err != nil {
		return nil, err
	}

	slog.Log(ctx, slog.LevelDebug, "appending ledger event", "account_id", acc.ID, "seq", applied.Event.Seq, "operation_id", draft.OperationID)

	eventAV, err := attributevalue.MarshalMap(toEventItem(&applied.Event))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	opItem, err := toOperationItem(&applied.Record)
	if err != nil {
		return nil, err
	}
	opAV, err := attributevalue.MarshalMap(opItem)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal operation record: %w", err)
	}

	next := applied.Account
	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			appendAccountIdx: {
				Update: &types.Update{
					TableName: aws.String(s.AccountsTableName),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: acc.ID},
					},
					UpdateExpression:    aws.String("SET balance_points = :balance, total_spend_money = :spend, level_code = :level, version = :next, last_ts = :ts, last_seq = :seq"),
					ConditionExpression: aws.String("version = :version"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":balance": &types.AttributeValueMemberN{Value: strconv.FormatInt(next.BalancePoints, 10)},
						":spend":   &types.AttributeValueMemberS{Value: next.TotalSpendMoney.String()},
						":level":   &types.AttributeValueMemberS{Value: next.LevelCode},
						":next":    &types.AttributeValueMemberN{Value: strconv.FormatInt(next.Version, 10)},
						":ts":      &types.AttributeValueMemberN{Value: strconv.FormatInt(next.LastTs.UnixNano(), 10)},
						":seq":     &types.AttributeValueMemberN{Value: strconv.FormatInt(next.LastSeq, 10)},
						":version": &types.AttributeValueMemberN{Value: strconv.FormatInt(acc.Version, 10)},
					},
				},
			},
			appendEventIdx: {
				Put: &types.Put{
					TableName:           aws.String(s.EventsTableName),
					Item:                eventAV,
					ConditionExpression: aws.String("attribute_not_exists(ts)"),
				},
			},
			appendOperationIdx: {
				// An expired record that TTL has not removed yet may be overwritten.
				Put: &types.Put{
					TableName:           aws.String(s.OperationsTableName),
					Item:                opAV,
					ConditionExpression: aws.String("attribute_not_exists(operation_id) OR #ttl < :now"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
					},
				},
			},
		},
	}

	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if failed(tce, appendOperationIdx) {
				return nil, storage.ErrDuplicateOperation
			}
			if failed(tce, appendAccountIdx) || failed(tce, appendEventIdx) {
				return nil, storage.ErrVersionConflict
			}
		}
		return nil, fmt.Errorf("failed to execute append transaction: %w", err)
	}

	res := applied.Result
	return &res, nil
}

func failed(tce *types.TransactionCanceledException, idx int) bool {
	if idx >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[idx].Code
	return code != nil && *code == conditionalCheckFailed
}

// ListEvents queries the account partition newest first.
func (s *Store) ListEvents(ctx context.Context, accountID string, beforeTs *time.Time, limit int) ([]models.Event, error) {
	keyCond := "account_id = :id"
	values := map[string]types.AttributeValue{
		":id": &types.AttributeValueMemberS{Value: accountID},
	}
	if beforeTs != nil {
		keyCond += " AND ts < :before"
		values[":before"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(beforeTs.UnixNano(), 10)}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.EventsTableName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false), // Newest first.
		Limit:                     aws.Int32(int32(limit)),
		ConsistentRead:            aws.Bool(true),
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	var items []eventItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	events := make([]models.Event, 0, len(items))
	for _, it := range items {
		ev, err := it.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, nil
}
