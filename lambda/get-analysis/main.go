package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"github.com/powerpulse/backend/internal/auth"
	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/models"
	"github.com/powerpulse/backend/internal/store"
	"github.com/powerpulse/backend/internal/warmup"
)

type AnalysisResponse struct {
	Average  float64          `json:"average"`
	Max      float64          `json:"max"`
	Min      float64          `json:"min"`
	Readings []models.Reading `json:"readings"`
	Tips     []string         `json:"tips"`
}

type app struct {
	readings *store.ReadingStore
	log      *logger.Logger
}

func (a *app) handler(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	if warmup.Detect(raw) {
		a.log.Info("handler.warmed", "function", "getAnalysis")
		return warmup.Response("getAnalysis"), nil
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
	if userID == "" {
		return jsonResponse(400, map[string]string{"error": "userId is required"}), nil
	}

	readings, err := a.readings.All(ctx, userID)
	if err != nil {
		log.Error("analysis.query_failed", "userId", userID, "error", err)
		return jsonResponse(500, map[string]string{"error": err.Error()}), nil
	}

	if len(readings) == 0 {
		return jsonResponse(200, AnalysisResponse{
			Readings: []models.Reading{},
			Tips:     energyTips(),
		}), nil
	}

	var total float64
	maxUsage := readings[0].Usage
	minUsage := readings[0].Usage
	for _, r := range readings {
		total += r.Usage
		if r.Usage > maxUsage {
			maxUsage = r.Usage
		}
		if r.Usage < minUsage {
			minUsage = r.Usage
		}
	}

	log.Info("analysis.served", "userId", userID, "readings", len(readings))
	return jsonResponse(200, AnalysisResponse{
		Average:  total / float64(len(readings)),
		Max:      maxUsage,
		Min:      minUsage,
		Readings: readings,
		Tips:     energyTips(),
	}), nil
}

func energyTips() []string {
	return []string{
		"Switch off devices completely when not in use instead of leaving them in standby mode.",
		"Use LED bulbs instead of incandescent lights to reduce energy consumption by up to 80%.",
		"Run washing machines and dishwashers only with full loads to maximize efficiency.",
	}
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
			"Access-Control-Allow-Methods": "GET,OPTIONS",
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

	a := &app{readings: store.NewReadingStore(client), log: log}
	lambda.Start(a.handler)
}
