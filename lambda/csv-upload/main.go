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

type UploadReading struct {
	Date  string   `json:"date"`
	Usage *float64 `json:"usage"`
}

type UploadRequest struct {
	UserID   string          `json:"userId"`
	Readings []UploadReading `json:"readings"`
}

type app struct {
	readings *store.ReadingStore
	log      *logger.Logger
}

func (a *app) handler(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	if warmup.Detect(raw) {
		a.log.Info("handler.warmed", "function", "csvUpload")
		return warmup.Response("csvUpload"), nil
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

	var req UploadRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return jsonResponse(400, map[string]string{"error": "Invalid JSON in request body"}), nil
	}
	if req.UserID == "" || len(req.Readings) == 0 {
		return jsonResponse(400, map[string]string{"error": "userId and readings array are required"}), nil
	}

	// Rows without a date or usage, or with negative usage, are dropped
	// rather than failing the whole batch.
	var valid []UploadReading
	for _, r := range req.Readings {
		if r.Date != "" && r.Usage != nil && *r.Usage >= 0 {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return jsonResponse(400, map[string]string{"error": "No valid readings found"}), nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range valid {
		reading := models.Reading{
			UserID:    req.UserID,
			Date:      r.Date,
			Usage:     *r.Usage,
			Timestamp: now,
		}
		if err := a.readings.Put(ctx, reading); err != nil {
			log.Error("upload.put_failed", "userId", req.UserID, "date", r.Date, "error", err)
			return jsonResponse(500, map[string]string{"error": err.Error()}), nil
		}
	}

	log.Info("upload.complete", "userId", req.UserID, "count", len(valid))
	return jsonResponse(200, map[string]interface{}{
		"message": fmt.Sprintf("%d readings uploaded successfully", len(valid)),
		"count":   len(valid),
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
