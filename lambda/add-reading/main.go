package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"github.com/powerpulse/backend/internal/auth"
	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/models"
	"github.com/powerpulse/backend/internal/store"
	"github.com/powerpulse/backend/internal/warmup"
)

type AddReadingRequest struct {
	UserID string   `json:"userId"`
	Date   string   `json:"date"`
	Usage  *float64 `json:"usage"`
}

type app struct {
	readings *store.ReadingStore
	log      *logger.Logger
}

func (a *app) handler(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	if warmup.Detect(raw) {
		a.log.Info("handler.warmed", "function", "addReading")
		return warmup.Response("addReading"), nil
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

	var req AddReadingRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return jsonResponse(400, map[string]string{"error": "Invalid JSON in request body"}), nil
	}
	if req.UserID == "" || req.Date == "" || req.Usage == nil {
		return jsonResponse(400, map[string]string{"error": "Missing required fields"}), nil
	}
	if *req.Usage < 0 {
		return jsonResponse(400, map[string]string{"error": "Usage cannot be negative"}), nil
	}

	reading := models.Reading{
		UserID:    req.UserID,
		Date:      req.Date,
		Usage:     *req.Usage,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := a.readings.Put(ctx, reading); err != nil {
		log.Error("reading.put_failed", "userId", req.UserID, "error", err)
		return jsonResponse(500, map[string]string{"error": err.Error()}), nil
	}

	log.Info("reading.added", "userId", req.UserID, "date", req.Date)
	return jsonResponse(201, map[string]interface{}{
		"message": "Reading added successfully",
		"data":    reading,
	}), nil
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
			"Access-Control-Allow-Methods": "POST,OPTIONS",
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
