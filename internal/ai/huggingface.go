// Package ai adapts the HuggingFace chat-completions endpoint into an
// insight generator. The adapter is deliberately lossy about failure: being
// disabled, misconfigured, timing out, or returning malformed output all
// collapse to a nil insight list so the pipeline can degrade to rule-based
// results.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/models"
)

const (
	defaultBaseURL = "https://router.huggingface.co/v1/chat/completions"
	defaultModel   = "google/gemma-2-9b-it"

	// defaultTimeout must stay under the Lambda execution budget (29s) so a
	// slow upstream is converted to a nil result instead of hanging the
	// request.
	defaultTimeout = 28 * time.Second

	maxInsights      = 5
	minMessageLength = 20
)

// PromptInput bundles everything the prompt mentions about the user.
type PromptInput struct {
	Readings  []models.Reading
	Profile   *models.UserProfile
	Estimates models.ApplianceEstimates
	Weather   *models.Weather
}

type Generator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	log        *logger.Logger
}

func NewGenerator(log *logger.Logger) *Generator {
	baseURL := strings.TrimSpace(os.Getenv("HUGGINGFACE_API_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(os.Getenv("AI_MODEL"))
	if model == "" {
		model = defaultModel
	}
	timeout := defaultTimeout
	if v := os.Getenv("AI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Generator{
		apiKey:     strings.TrimSpace(os.Getenv("HUGGINGFACE_API_KEY")),
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        log,
	}
}

// Model returns the active model identifier.
func (g *Generator) Model() string {
	return g.model
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for 3-5 insights about the user's usage. All
// failure modes return nil.
func (g *Generator) Generate(ctx context.Context, in PromptInput) []models.InsightRecord {
	if g.apiKey == "" {
		g.log.Warn("ai.not_configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: buildPrompt(in)}},
		MaxTokens:   800,
		Temperature: 0.7,
	})
	if err != nil {
		g.log.Error("ai.marshal_failed", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		g.log.Error("ai.request_build_failed", "error", err)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn("ai.request_failed", "model", g.model, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.log.Warn("ai.bad_status", "model", g.model, "status", resp.StatusCode)
		return nil
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		g.log.Warn("ai.decode_failed", "error", err)
		return nil
	}
	if len(parsed.Choices) == 0 {
		g.log.Warn("ai.empty_response")
		return nil
	}

	insights := parseInsightLines(parsed.Choices[0].Message.Content)
	if len(insights) == 0 {
		g.log.Warn("ai.no_usable_insights")
		return nil
	}
	g.log.Info("ai.generated", "count", len(insights))
	return insights
}

func buildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are an energy efficiency expert. Analyze this electricity usage data and provide 3-5 specific, actionable insights.\n\n")

	b.WriteString("USER PROFILE:\n")
	fmt.Fprintf(&b, "Location: %s\n", in.Profile.Location)
	fmt.Fprintf(&b, "Home: %s\n", in.Profile.HomeType)
	applianceNames := make([]string, 0, len(in.Profile.Appliances))
	for name := range in.Profile.Appliances {
		applianceNames = append(applianceNames, name)
	}
	sort.Strings(applianceNames)
	parts := make([]string, 0, len(applianceNames))
	for _, name := range applianceNames {
		parts = append(parts, fmt.Sprintf("%s (%d★)", name, in.Profile.Appliances[name].StarRating))
	}
	fmt.Fprintf(&b, "Appliances: %s\n\n", strings.Join(parts, ", "))

	b.WriteString("APPLIANCE CONSUMPTION:\n")
	estimateNames := make([]string, 0, len(in.Estimates.Estimates))
	for name := range in.Estimates.Estimates {
		estimateNames = append(estimateNames, name)
	}
	sort.Strings(estimateNames)
	for _, name := range estimateNames {
		est := in.Estimates.Estimates[name]
		fmt.Fprintf(&b, "%s: %s kWh/day\n", est.FullName, strconv.FormatFloat(est.DailyKwh, 'f', -1, 64))
	}

	b.WriteString("\nRECENT USAGE:\n")
	for _, r := range in.Readings {
		fmt.Fprintf(&b, "%s: %s kWh\n", r.Date, strconv.FormatFloat(r.Usage, 'f', -1, 64))
	}

	if in.Weather != nil {
		fmt.Fprintf(&b, "\nWEATHER: %.1f°C, %s, %d%% humidity\n", in.Weather.Temperature, in.Weather.Description, in.Weather.Humidity)
	}

	b.WriteString(`
Provide 3-5 numbered insights focusing on:
- Cost savings (estimate ₹ saved at ₹6/kWh)
- Appliance efficiency tips
- Weather-based recommendations
- Behavioral changes

Keep each insight under 100 words. Be specific with numbers. Format as numbered list.`)

	return b.String()
}

var (
	listNumberPattern   = regexp.MustCompile(`^\d+\.\s*`)
	insightLabelPattern = regexp.MustCompile(`(?i)^insight \d+:\s*`)
)

// parseInsightLines turns the model's free-text answer into at most five
// insight records, dropping list-numbering, markdown emphasis and anything
// too short to be a real observation.
func parseInsightLines(text string) []models.InsightRecord {
	var out []models.InsightRecord
	index := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		index++

		message := listNumberPattern.ReplaceAllString(line, "")
		message = strings.TrimPrefix(message, "**")
		message = strings.TrimSuffix(message, "**")
		message = insightLabelPattern.ReplaceAllString(message, "")
		message = strings.TrimSpace(message)

		if len(message) <= minMessageLength {
			continue
		}
		out = append(out, models.InsightRecord{
			Type:    models.InsightTypeAI,
			Icon:    "🤖",
			Title:   fmt.Sprintf("AI Insight %d", index),
			Message: message,
		})
		if len(out) == maxInsights {
			break
		}
	}
	return out
}
