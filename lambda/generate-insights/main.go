package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"github.com/powerpulse/backend/internal/ai"
	"github.com/powerpulse/backend/internal/appliances"
	"github.com/powerpulse/backend/internal/auth"
	"github.com/powerpulse/backend/internal/insights"
	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/store"
	"github.com/powerpulse/backend/internal/warmup"
	"github.com/powerpulse/backend/internal/weather"
)

type app struct {
	pipeline *insights.Pipeline
	log      *logger.Logger
}

func (a *app) handler(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	if warmup.Detect(raw) {
		a.log.Info("handler.warmed", "function", "generateInsights")
		return warmup.Response("generateInsights"), nil
	}

	var request events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		return jsonResponse(400, map[string]string{"error": "Invalid request"}), nil
	}
	if request.HTTPMethod == "OPTIONS" {
		return jsonResponse(200, nil), nil
	}

	log := a.log.With("requestId", uuid.NewString())

	if _, err := auth.ValidateToken(authHeader(request)); err != nil {
		return jsonResponse(401, map[string]string{"error": "Unauthorized"}), nil
	}

	userID := request.QueryStringParameters["userId"]
	if userID == "" && request.Body != "" {
		var probe struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal([]byte(request.Body), &probe); err == nil {
			userID = probe.UserID
		}
	}
	if userID == "" {
		return jsonResponse(400, map[string]string{"error": "userId is required"}), nil
	}

	result, err := a.pipeline.Generate(ctx, userID)
	if err != nil {
		return a.errorResponse(log, userID, err), nil
	}

	return jsonResponse(200, result), nil
}

// errorResponse translates the pipeline's tagged errors into transport
// responses. Anything unexpected becomes a 500 that still carries one
// render-able fallback record.
func (a *app) errorResponse(log *logger.Logger, userID string, err error) events.APIGatewayProxyResponse {
	if errors.Is(err, insights.ErrProfileMissing) {
		return jsonResponse(404, map[string]string{
			"error":   "User profile not found",
			"message": "Please create your profile first to get personalized insights. Go to Profile Settings to add your location, home type, and appliances.",
		})
	}

	var rateLimited *insights.RateLimitedError
	if errors.As(err, &rateLimited) {
		log.Warn("insights.rate_limited", "userId", userID, "retryAfter", rateLimited.RetryAfter, "usingCache", rateLimited.UsingCache)
		body := map[string]interface{}{
			"error":      "Too Many Requests",
			"retryAfter": rateLimited.RetryAfter,
		}
		if len(rateLimited.Insights) > 0 {
			body["usingCache"] = rateLimited.UsingCache
			body["message"] = rateLimited.Message
			body["insights"] = rateLimited.Insights
			body["metadata"] = rateLimited.Metadata
		}
		return jsonResponse(429, body)
	}

	log.Error("insights.generation_failed", "userId", userID, "error", err)
	return jsonResponse(500, map[string]interface{}{
		"error":    "Failed to generate insights",
		"message":  err.Error(),
		"insights": []interface{}{insights.FallbackErrorInsight()},
	})
}

func authHeader(request events.APIGatewayProxyRequest) string {
	if v := request.Headers["Authorization"]; v != "" {
		return v
	}
	return request.Headers["authorization"]
}

func jsonResponse(status int, body interface{}) events.APIGatewayProxyResponse {
	encoded := ""
	if body != nil {
		b, _ := json.Marshal(body)
		encoded = string(b)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                 "application/json",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Headers": "Content-Type,Authorization",
			"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
		},
		Body: encoded,
	}
}

func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	client, err := store.NewClient(context.Background())
	if err != nil {
		fmt.Printf("Error initializing DynamoDB client: %v\n", err)
		os.Exit(1)
	}
	table, err := appliances.Load()
	if err != nil {
		fmt.Printf("Error loading appliance profiles: %v\n", err)
		os.Exit(1)
	}

	cfg := insights.ConfigFromEnv()
	pipeline := insights.NewPipeline(insights.Deps{
		Readings:  store.NewReadingStore(client),
		Profiles:  store.NewProfileStore(client),
		Cache:     store.NewInsightCacheStore(client),
		History:   store.NewHistoryStore(client),
		Limiter:   insights.NewRateLimiter(store.NewRateLimitStateStore(client)),
		Estimator: table,
		Weather:   weather.NewClient(log),
		AI:        ai.NewGenerator(log),
	}, cfg, log)

	a := &app{pipeline: pipeline, log: log}
	lambda.Start(a.handler)
}
