// Package warmup recognizes warmer pings so handlers can short-circuit
// before auth and business logic. The warmer invokes functions directly
// with {"source":"warmer"}, but the same marker may also arrive wrapped in
// an API Gateway body, so both shapes are checked.
package warmup

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

type marker struct {
	Source string `json:"source"`
	Body   string `json:"body"`
}

// Detect reports whether the raw Lambda payload is a warmer ping.
func Detect(raw []byte) bool {
	var probe marker
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	if probe.Source == "warmer" {
		return true
	}
	if probe.Body != "" {
		var inner marker
		if err := json.Unmarshal([]byte(probe.Body), &inner); err == nil && inner.Source == "warmer" {
			return true
		}
	}
	return false
}

// Response is the standard reply to a warmer ping.
func Response(functionName string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]interface{}{
		"warmed":   true,
		"function": functionName,
	})
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}
