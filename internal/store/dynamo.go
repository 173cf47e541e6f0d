// Package store holds the DynamoDB-backed persistence for readings,
// profiles, the insight cache, rate-limit counters and insight history.
// Table names come from the environment with the same defaults the
// deployment templates use.
package store

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewClient builds a DynamoDB client from the ambient AWS configuration
// (Lambda execution role in production).
func NewClient(ctx context.Context) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func tableName(envKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return fallback
}
