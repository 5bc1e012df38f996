package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoLedger stores codes in a DynamoDB table keyed by "code".
type DynamoLedger struct {
	client    dynamoAPI
	tableName string
}

var _ Ledger = (*DynamoLedger)(nil)

func NewDynamoLedger(client dynamoAPI, tableName string) *DynamoLedger {
	if client == nil {
		panic("coupon: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("coupon: table name cannot be empty")
	}
	return &DynamoLedger{client: client, tableName: tableName}
}

func (l *DynamoLedger) Reserve(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("coupon: marshal record: %w", err)
	}
	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(code)"),
	})
	var conflict *types.ConditionalCheckFailedException
	if errors.As(err, &conflict) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("coupon: put code: %w", err)
	}
	return nil
}

// ByUser scans for the user's rows. The table is keyed by code and holds one
// row per winner, so a filtered scan stays small.
func (l *DynamoLedger) ByUser(ctx context.Context, userID int64) (Record, bool, error) {
	userKey, err := attributevalue.Marshal(userID)
	if err != nil {
		return Record{}, false, fmt.Errorf("coupon: marshal user id: %w", err)
	}
	input := &dynamodb.ScanInput{
		TableName:                 aws.String(l.tableName),
		FilterExpression:          aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": userKey},
	}
	var (
		found Record
		ok    bool
	)
	for {
		out, err := l.client.Scan(ctx, input)
		if err != nil {
			return Record{}, false, fmt.Errorf("coupon: scan by user: %w", err)
		}
		var recs []Record
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
			return Record{}, false, fmt.Errorf("coupon: unmarshal records: %w", err)
		}
		for _, rec := range recs {
			if !ok || rec.IssuedAt.Before(found.IssuedAt) {
				found, ok = rec, true
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return found, ok, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
