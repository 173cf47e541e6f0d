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

// historyRetention keeps generated insight sets around long enough to serve
// as the last-resort rate-limit fallback.
const historyRetention = 90 * 24 * time.Hour

// HistoryStore persists generated insight sets keyed by (userId, generation
// day). Later generations on the same day overwrite.
type HistoryStore struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewHistoryStore(client *dynamodb.Client) *HistoryStore {
	return &HistoryStore{
		client:    client,
		tableName: tableName("INSIGHTS_TABLE", "Insights"),
		now:       time.Now,
	}
}

// Put writes today's insight set for the user.
func (s *HistoryStore) Put(ctx context.Context, userID string, insights []models.InsightRecord, metadata models.InsightMetadata) error {
	now := s.now().UTC()
	entry := models.InsightsHistoryEntry{
		UserID:    userID,
		Date:      now.Format("2006-01-02"),
		Timestamp: now.Format(time.RFC3339),
		Insights:  insights,
		Metadata:  metadata,
		TTL:       now.Add(historyRetention).Unix(),
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %v", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put history entry: %v", err)
	}
	return nil
}

// Latest returns the most recent stored insight set for a user, or nil when
// none exists.
func (s *HistoryStore) Latest(ctx context.Context, userID string) (*models.InsightsHistoryEntry, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %v", err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	var entry models.InsightsHistoryEntry
	if err := attributevalue.UnmarshalMap(result.Items[0], &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history entry: %v", err)
	}
	return &entry, nil
}
