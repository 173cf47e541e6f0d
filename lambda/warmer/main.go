// The warmer keeps the user-facing functions' execution environments warm.
// It invokes each target with a {"source":"warmer"} payload, which every
// handler short-circuits before auth, and reports per-target timings.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/powerpulse/backend/internal/logger"
)

var targets = []string{"addReading", "csvUpload", "getAnalysis", "generateInsights"}

type PingResult struct {
	FunctionName string `json:"functionName"`
	OK           bool   `json:"ok"`
	DurationMs   int64  `json:"durationMs"`
	StatusCode   int    `json:"statusCode,omitempty"`
	Error        string `json:"error,omitempty"`
}

type WarmerResponse struct {
	Warmed  bool         `json:"warmed"`
	Results []PingResult `json:"results"`
}

type app struct {
	client *lambdasvc.Client
	prefix string
	log    *logger.Logger
}

func (a *app) handler(ctx context.Context) (WarmerResponse, error) {
	a.log.Info("warmer.start")

	results := make([]PingResult, 0, len(targets))
	succeeded := 0
	for _, target := range targets {
		functionName := target
		if a.prefix != "" {
			functionName = a.prefix + "-" + target
		}
		result := a.ping(ctx, functionName)
		if result.OK {
			succeeded++
		}
		results = append(results, result)
	}

	a.log.Info("warmer.complete", "total", len(results), "succeeded", succeeded)
	return WarmerResponse{Warmed: true, Results: results}, nil
}

func (a *app) ping(ctx context.Context, functionName string) PingResult {
	start := time.Now()

	out, err := a.client.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName:   aws.String(functionName),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        []byte(`{"source":"warmer"}`),
	})
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		a.log.Error("warmer.ping_failed", "functionName", functionName, "durationMs", durationMs, "error", err)
		return PingResult{FunctionName: functionName, DurationMs: durationMs, Error: err.Error()}
	}

	// Handlers return an API Gateway shaped payload; a missing or non-JSON
	// body still counts as warmed.
	statusCode := 0
	var payload struct {
		StatusCode int `json:"statusCode"`
	}
	if err := json.Unmarshal(out.Payload, &payload); err == nil {
		statusCode = payload.StatusCode
	}
	ok := statusCode < 400

	a.log.Info("warmer.ping", "functionName", functionName, "durationMs", durationMs, "ok", ok, "statusCode", statusCode)
	return PingResult{FunctionName: functionName, OK: ok, DurationMs: durationMs, StatusCode: statusCode}
}

func servicePrefix() string {
	if prefix := os.Getenv("SERVICE_PREFIX"); prefix != "" {
		return prefix
	}
	// Serverless naming convention is {service}-{stage}-{function}; derive
	// the prefix from this function's own name.
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		return strings.TrimSuffix(fn, "-warmer")
	}
	return ""
}

func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		fmt.Printf("Error loading AWS config: %v\n", err)
		os.Exit(1)
	}

	a := &app{
		client: lambdasvc.NewFromConfig(cfg),
		prefix: servicePrefix(),
		log:    log,
	}
	awslambda.Start(a.handler)
}
