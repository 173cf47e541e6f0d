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

type SaveProfileRequest struct {
	UserID     string                      `json:"userId"`
	Location   string                      `json:"location"`
	HomeType   string                      `json:"homeType"`
	Appliances map[string]models.Appliance `json:"appliances"`
	CreatedAt  string                      `json:"createdAt"`
}

type app struct {
	profiles *store.ProfileStore
	log      *logger.Logger
}

func (a *app) handler(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	if warmup.Detect(raw) {
		a.log.Info("handler.warmed", "function", "userProfile")
		return warmup.Response("userProfile"), nil
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

	switch request.HTTPMethod {
	case "GET":
		return a.getProfile(ctx, log, userID)
	case "POST":
		return a.saveProfile(ctx, log, userID, request.Body)
	case "DELETE":
		return a.deleteProfile(ctx, log, userID)
	default:
		return jsonResponse(405, map[string]string{"error": "Method not allowed"}), nil
	}
}

func (a *app) getProfile(ctx context.Context, log *logger.Logger, userID string) (events.APIGatewayProxyResponse, error) {
	profile, err := a.profiles.Get(ctx, userID)
	if err != nil {
		log.Error("profile.get_failed", "userId", userID, "error", err)
		return jsonResponse(500, map[string]string{"error": "Internal server error", "message": err.Error()}), nil
	}
	if profile == nil {
		return jsonResponse(404, map[string]string{
			"error":   "Profile not found",
			"message": "Please create a profile first to get personalized insights",
		}), nil
	}
	return jsonResponse(200, profile), nil
}

func (a *app) saveProfile(ctx context.Context, log *logger.Logger, userID, body string) (events.APIGatewayProxyResponse, error) {
	var req SaveProfileRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonResponse(400, map[string]string{"error": "Invalid JSON in request body"}), nil
	}
	if req.Location == "" || req.HomeType == "" || len(req.Appliances) == 0 {
		return jsonResponse(400, map[string]interface{}{
			"error":    "Missing required fields",
			"required": []string{"userId", "location", "homeType", "appliances"},
		}), nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := req.CreatedAt
	if createdAt == "" {
		createdAt = now
	}
	profile := models.UserProfile{
		UserID:     userID,
		Location:   req.Location,
		HomeType:   req.HomeType,
		Appliances: req.Appliances,
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}

	if err := a.profiles.Put(ctx, profile); err != nil {
		log.Error("profile.save_failed", "userId", userID, "error", err)
		return jsonResponse(500, map[string]string{"error": "Internal server error", "message": err.Error()}), nil
	}

	log.Info("profile.saved", "userId", userID)
	return jsonResponse(200, map[string]interface{}{
		"message": "Profile saved successfully",
		"profile": profile,
	}), nil
}

func (a *app) deleteProfile(ctx context.Context, log *logger.Logger, userID string) (events.APIGatewayProxyResponse, error) {
	if err := a.profiles.Delete(ctx, userID); err != nil {
		log.Error("profile.delete_failed", "userId", userID, "error", err)
		return jsonResponse(500, map[string]string{"error": "Internal server error", "message": err.Error()}), nil
	}
	log.Info("profile.deleted", "userId", userID)
	return jsonResponse(200, map[string]string{"message": "Profile deleted successfully"}), nil
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
			"Access-Control-Allow-Methods": "GET,POST,PUT,DELETE,OPTIONS",
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

	a := &app{profiles: store.NewProfileStore(client), log: log}
	lambda.Start(a.handler)
}
