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

// ProfileStore persists user profiles, one row per user.
type ProfileStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewProfileStore(client *dynamodb.Client) *ProfileStore {
	return &ProfileStore{
		client:    client,
		tableName: tableName("USER_PROFILE_TABLE", "UserProfile"),
	}
}

// Get returns the profile for a user, or nil when none exists.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %v", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var profile models.UserProfile
	if err := attributevalue.UnmarshalMap(result.Item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %v", err)
	}
	return &profile, nil
}

// Put saves a profile wholesale (full replace, not merge).
func (s *ProfileStore) Put(ctx context.Context, profile models.UserProfile) error {
	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %v", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put profile: %v", err)
	}
	return nil
}

// Delete removes a user's profile.
func (s *ProfileStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete profile: %v", err)
	}
	return nil
}
