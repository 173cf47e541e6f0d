package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/powerpulse/backend/internal/models"
)

// rateLimitRetention only reclaims idle rows via DynamoDB TTL; it plays no
// part in limiter semantics.
const rateLimitRetention = 7 * 24 * time.Hour

// RateLimitStateStore persists the per-user rate-limit window.
type RateLimitStateStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewRateLimitStateStore(client *dynamodb.Client) *RateLimitStateStore {
	return &RateLimitStateStore{
		client:    client,
		tableName: tableName("RATE_LIMITS_TABLE", "RateLimits"),
	}
}

// Load returns the rate-limit state for a user, or nil when none exists.
func (s *RateLimitStateStore) Load(ctx context.Context, userID string) (*models.RateLimitState, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit state: %v", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var state models.RateLimitState
	if err := attributevalue.UnmarshalMap(result.Item, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rate limit state: %v", err)
	}
	return &state, nil
}

// Save persists the state after an accepted request.
func (s *RateLimitStateStore) Save(ctx context.Context, state *models.RateLimitState) error {
	state.TTL = time.Now().Add(rateLimitRetention).Unix()

	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit state: %v", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put rate limit state: %v", err)
	}
	return nil
}
