package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/powerpulse/backend/internal/models"
)

const (
	// pendingTTL bounds how long a pending marker can suppress duplicate
	// inserts before a fresh request may recreate it.
	pendingTTL = 30 * time.Minute
	// readyTTL is the freshness window for a completed AI-enhanced result.
	readyTTL = 2 * time.Minute
)

// InsightCacheStore is the coalescing cache keyed by (userId, requestHash).
type InsightCacheStore struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewInsightCacheStore(client *dynamodb.Client) *InsightCacheStore {
	return &InsightCacheStore{
		client:    client,
		tableName: tableName("INSIGHTS_CACHE_TABLE", "InsightsCache"),
		now:       time.Now,
	}
}

// Get returns the cache entry for (userID, requestHash), or nil when absent.
// DynamoDB TTL deletion lags, so an expired row is treated as absent and
// removed best-effort.
func (s *InsightCacheStore) Get(ctx context.Context, userID, requestHash string) (*models.CacheEntry, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(userID, requestHash),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %v", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var entry models.CacheEntry
	if err := attributevalue.UnmarshalMap(result.Item, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %v", err)
	}

	if entry.TTL > 0 && s.now().Unix() >= entry.TTL {
		_, _ = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key:       s.key(userID, requestHash),
		})
		return nil, nil
	}

	return &entry, nil
}

// MarkPending inserts a pending marker for the hash if no entry exists yet.
// Losing the conditional write race is not an error; the marker is a hint to
// reduce duplicate AI work, not a lease.
func (s *InsightCacheStore) MarkPending(ctx context.Context, userID, requestHash string) error {
	now := s.now()
	entry := models.CacheEntry{
		UserID:      userID,
		RequestHash: requestHash,
		Status:      models.CacheStatusPending,
		UpdatedAt:   now.UnixMilli(),
		TTL:         now.Add(pendingTTL).Unix(),
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %v", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(userId) AND attribute_not_exists(requestHash)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return fmt.Errorf("failed to mark cache pending: %v", err)
	}
	return nil
}

// PutReady stores a completed insight list for the hash with a fresh short
// expiry, replacing any pending marker.
func (s *InsightCacheStore) PutReady(ctx context.Context, userID, requestHash string, insights []models.InsightRecord) error {
	now := s.now()
	entry := models.CacheEntry{
		UserID:      userID,
		RequestHash: requestHash,
		Status:      models.CacheStatusReady,
		Insights:    insights,
		UpdatedAt:   now.UnixMilli(),
		TTL:         now.Add(readyTTL).Unix(),
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %v", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put ready cache entry: %v", err)
	}
	return nil
}

func (s *InsightCacheStore) key(userID, requestHash string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":      &types.AttributeValueMemberS{Value: userID},
		"requestHash": &types.AttributeValueMemberS{Value: requestHash},
	}
}
