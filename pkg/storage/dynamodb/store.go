package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/loyalty-ledger/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements the Storage interface using AWS DynamoDB.
//
// Tables:
//   - rulesets:   pk gsi1pk (constant), sk effective_from (N, unix nanos)
//   - accounts:   pk id; also holds USER#<userId> and CODE#<publicCode> guard items
//   - events:     pk account_id, sk ts (N, unix nanos)
//   - operations: pk account_id, sk operation_id, ttl attribute
type Store struct {
	Client              DynamoDBAPI
	RulesetsTableName   string
	AccountsTableName   string
	EventsTableName     string
	OperationsTableName string
}

// New creates a new Store.
func New(client DynamoDBAPI, rulesetsTable, accountsTable, eventsTable, operationsTable string) *Store {
	return &Store{
		Client:              client,
		RulesetsTableName:   rulesetsTable,
		AccountsTableName:   accountsTable,
		EventsTableName:     eventsTable,
		OperationsTableName: operationsTable,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

const conditionalCheckFailed = "ConditionalCheckFailed"
