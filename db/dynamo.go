package db

import (
	"context"
	"fmt"

	"submitflow/backend/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Recorder persists the status record of one invocation.
type Recorder interface {
	Record(ctx context.Context, record *types.StatusRecord) error
}

// DynamoAPI is the part of the DynamoDB client the recorder uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type DynamoRecorder struct {
	client DynamoAPI
	table  string
}

func NewDynamoRecorder(client DynamoAPI, table string) *DynamoRecorder {
	return &DynamoRecorder{client: client, table: table}
}

// Record writes the record keyed by submission ID, replacing any earlier one.
func (r *DynamoRecorder) Record(ctx context.Context, record *types.StatusRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal status record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put status record %s: %w", record.ID, err)
	}
	return nil
}
