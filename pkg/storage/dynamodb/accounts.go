package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/loyalty-ledger/pkg/models"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// CreateAccount writes the account and its two uniqueness guards in one transaction.
func (s *Store) CreateAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	accAV, err := attributevalue.MarshalMap(toAccountItem(acc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account: %w", err)
	}
	userAV, err := attributevalue.MarshalMap(guardItem{ID: userGuardKey(acc.UserID), AccountID: acc.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user guard: %w", err)
	}
	codeAV, err := attributevalue.MarshalMap(guardItem{ID: codeGuardKey(acc.PublicCode), AccountID: acc.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public code guard: %w", err)
	}

	put := func(item map[string]types.AttributeValue) types.TransactWriteItem {
		return types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.AccountsTableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		}
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{put(accAV), put(userAV), put(codeAV)},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, reason := range tce.CancellationReasons {
				if reason.Code != nil && *reason.Code == conditionalCheckFailed {
					return nil, storage.ErrAccountExists
				}
			}
		}
		return nil, fmt.Errorf("failed to create account in DynamoDB: %w", err)
	}

	return acc, nil
}

// GetAccount retrieves an account by id with a strongly consistent read.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	item, err := s.getAccountsItem(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var acc accountItem
	if err := attributevalue.UnmarshalMap(item, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return acc.toModel()
}

// GetAccountByUserID follows the user guard item to the account.
func (s *Store) GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return s.followGuard(ctx, userGuardKey(userID))
}

// GetAccountByPublicCode follows the public code guard item to the account.
func (s *Store) GetAccountByPublicCode(ctx context.Context, publicCode string) (*models.Account, error) {
	return s.followGuard(ctx, codeGuardKey(publicCode))
}

// ListAccounts scans the accounts table, skipping guard items.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var out []models.Account
	var startKey map[string]types.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(s.AccountsTableName),
			FilterExpression:  aws.String("attribute_exists(public_code)"),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		}

		result, err := s.Client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accounts table: %w", err)
		}

		var items []accountItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
		}
		for _, it := range items {
			acc, err := it.toModel()
			if err != nil {
				return nil, err
			}
			out = append(out, *acc)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return out, nil
}

func (s *Store) getAccountsItem(ctx context.Context, id string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account key: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.AccountsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrAccountNotFound
	}
	return result.Item, nil
}

func (s *Store) followGuard(ctx context.Context, guardKey string) (*models.Account, error) {
	item, err := s.getAccountsItem(ctx, guardKey)
	if err != nil {
		return nil, err
	}

	var guard guardItem
	if err := attributevalue.UnmarshalMap(item, &guard); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guard item: %w", err)
	}
	return s.GetAccount(ctx, guard.AccountID)
}
