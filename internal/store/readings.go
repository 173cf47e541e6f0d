package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/powerpulse/backend/internal/models"
)

// ReadingStore persists daily meter readings, partitioned by user and
// sorted by date.
type ReadingStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewReadingStore(client *dynamodb.Client) *ReadingStore {
	return &ReadingStore{
		client:    client,
		tableName: tableName("READINGS_TABLE", "Readings"),
	}
}

// Put writes one reading. A reading for the same userId+date overwrites.
func (s *ReadingStore) Put(ctx context.Context, reading models.Reading) error {
	item, err := attributevalue.MarshalMap(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %v", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put reading: %v", err)
	}
	return nil
}

// Recent returns up to limit readings for a user, newest first.
func (s *ReadingStore) Recent(ctx context.Context, userID string, limit int) ([]models.Reading, error) {
	return s.query(ctx, userID, false, int32(limit))
}

// All returns every reading for a user in ascending date order.
func (s *ReadingStore) All(ctx context.Context, userID string) ([]models.Reading, error) {
	return s.query(ctx, userID, true, 0)
}

func (s *ReadingStore) query(ctx context.Context, userID string, scanForward bool, limit int32) ([]models.Reading, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(scanForward),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %v", err)
	}

	readings := make([]models.Reading, 0, len(result.Items))
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &readings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal readings: %v", err)
	}
	return readings, nil
}
