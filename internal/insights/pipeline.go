// Package insights contains the insight-generation pipeline: request-hash
// derivation, the coalescing cache protocol, per-user rate limiting, the
// deterministic rule engine and the orchestration that ties them to the
// optional AI generator.
package insights

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/powerpulse/backend/internal/ai"
	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/models"
)

// ErrProfileMissing means the user has no profile yet; the caller should
// direct them to onboarding.
var ErrProfileMissing = errors.New("user profile not found")

// RateLimitedError carries the limiter's retry hint plus the best fallback
// content available (exact-hash cache, then newest history row, then
// nothing). The rejection is always reported as such, never converted to a
// plain success.
type RateLimitedError struct {
	RetryAfter int
	Message    string
	UsingCache bool
	Insights   []models.InsightRecord
	Metadata   *models.InsightMetadata
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
}

// Result is a generated (or cached) insight list with its metadata.
type Result struct {
	Insights []models.InsightRecord  `json:"insights"`
	Metadata *models.InsightMetadata `json:"metadata,omitempty"`
}

// ReadingSource loads a user's recent readings, newest first.
type ReadingSource interface {
	Recent(ctx context.Context, userID string, limit int) ([]models.Reading, error)
}

// ProfileSource loads a user's profile; nil means no profile exists.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Cache is the coalescing cache keyed by (userId, requestHash).
type Cache interface {
	Get(ctx context.Context, userID, requestHash string) (*models.CacheEntry, error)
	MarkPending(ctx context.Context, userID, requestHash string) error
	PutReady(ctx context.Context, userID, requestHash string, insights []models.InsightRecord) error
}

// History stores generated insight sets per user and generation day.
type History interface {
	Put(ctx context.Context, userID string, insights []models.InsightRecord, metadata models.InsightMetadata) error
	Latest(ctx context.Context, userID string) (*models.InsightsHistoryEntry, error)
}

// Limiter decides whether a request may consume generation budget.
type Limiter interface {
	CheckAndConsume(ctx context.Context, userID string) (Decision, error)
}

// WeatherSource fetches current conditions; nil result means unconfigured.
type WeatherSource interface {
	Fetch(ctx context.Context, location string) (*models.Weather, error)
}

// Estimator turns declared appliances into daily-kWh estimates.
type Estimator interface {
	Estimate(userAppliances map[string]models.Appliance) models.ApplianceEstimates
}

// Generator produces AI insight records; nil means unavailable.
type Generator interface {
	Generate(ctx context.Context, in ai.PromptInput) []models.InsightRecord
}

// Config is the pipeline's process-lifetime configuration.
type Config struct {
	UseAI bool
	// Model is the active AI model identifier. It participates in the
	// request hash even when AI is disabled, so toggling models invalidates
	// cached results.
	Model string
	// ReadingsWindow is how many recent readings feed the engines.
	ReadingsWindow int
	// MinReadingsForAI gates the expensive generation path.
	MinReadingsForAI int
}

// ConfigFromEnv builds the pipeline configuration the deployment uses.
func ConfigFromEnv() Config {
	model := os.Getenv("AI_MODEL")
	if model == "" {
		model = "google/gemma-2-9b-it"
	}
	return Config{
		UseAI:            os.Getenv("USE_AI") == "true",
		Model:            model,
		ReadingsWindow:   30,
		MinReadingsForAI: 3,
	}
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Readings  ReadingSource
	Profiles  ProfileSource
	Cache     Cache
	History   History
	Limiter   Limiter
	Estimator Estimator
	Weather   WeatherSource
	AI        Generator
}

// Pipeline orchestrates a single requestInsights call: hash, rate limit
// (with fallbacks), cache, engines, persistence.
type Pipeline struct {
	deps Deps
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

func NewPipeline(deps Deps, cfg Config, log *logger.Logger) *Pipeline {
	if cfg.ReadingsWindow <= 0 {
		cfg.ReadingsWindow = 30
	}
	if cfg.MinReadingsForAI <= 0 {
		cfg.MinReadingsForAI = 3
	}
	return &Pipeline{deps: deps, cfg: cfg, log: log, now: time.Now}
}

// Generate produces a fresh or acceptably-fresh insight list for the user.
// Returns ErrProfileMissing, *RateLimitedError, or an internal error the
// boundary converts into a generic failure response.
func (p *Pipeline) Generate(ctx context.Context, userID string) (*Result, error) {
	profile, err := p.deps.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, ErrProfileMissing
	}

	readings, err := p.deps.Readings.Recent(ctx, userID, p.cfg.ReadingsWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}
	if len(readings) == 0 {
		// Cheap path: nothing to analyze, no cache or limiter interaction.
		return &Result{Insights: []models.InsightRecord{getStartedInsight()}}, nil
	}

	// The hash is computed before the rate-limit check so a rejection can
	// still look up the exact-match cache entry.
	dateBucket := p.now().UTC().Format("2006-01-02")
	requestHash := RequestHash(readings, profile, p.cfg.Model, dateBucket)

	decision, err := p.deps.Limiter.CheckAndConsume(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !decision.Allowed {
		return nil, p.rateLimited(ctx, userID, requestHash, decision)
	}

	entry, err := p.deps.Cache.Get(ctx, userID, requestHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check cache: %w", err)
	}
	if entry != nil && entry.Status == models.CacheStatusReady && len(entry.Insights) > 0 {
		p.log.Info("insights.cache_hit", "userId", userID, "requestHash", requestHash)
		return &Result{
			Insights: entry.Insights,
			Metadata: &models.InsightMetadata{Type: models.MetadataTypeAIEnhanced, Cache: true},
		}, nil
	}
	if entry == nil {
		// Best-effort, non-blocking: losing the insert race is fine.
		if err := p.deps.Cache.MarkPending(ctx, userID, requestHash); err != nil {
			p.log.Warn("insights.mark_pending_failed", "userId", userID, "error", err)
		}
	}
	// A pending entry from another in-flight request does not block us; the
	// marker only dampens duplicate inserts.

	estimates := p.deps.Estimator.Estimate(profile.Appliances)

	var currentWeather *models.Weather
	if profile.Location != "" && p.deps.Weather != nil {
		w, err := p.deps.Weather.Fetch(ctx, profile.Location)
		if err != nil {
			p.log.Warn("insights.weather_unavailable", "location", profile.Location, "error", err)
		} else {
			currentWeather = w
		}
	}

	ruleBased := RuleBased(readings, estimates, currentWeather, profile)

	allInsights := ruleBased
	metadata := models.InsightMetadata{
		Type:          models.MetadataTypeRuleBased,
		ReadingsCount: len(readings),
		HasWeather:    currentWeather != nil,
		HasProfile:    true,
	}

	if p.cfg.UseAI && p.deps.AI != nil && len(readings) >= p.cfg.MinReadingsForAI {
		aiInsights := p.deps.AI.Generate(ctx, ai.PromptInput{
			Readings:  lastNAscending(readings, recentReadingsInHash),
			Profile:   profile,
			Estimates: estimates,
			Weather:   currentWeather,
		})
		if len(aiInsights) > 0 {
			allInsights = append(append([]models.InsightRecord{}, aiInsights...), ruleBased...)
			metadata.Type = models.MetadataTypeAIEnhanced
			metadata.AIInsightsCount = len(aiInsights)
			// Only AI-enhanced results are promoted to ready; a rule-based
			// fallback leaves the pending marker so a later request retries AI.
			if err := p.deps.Cache.PutReady(ctx, userID, requestHash, allInsights); err != nil {
				p.log.Warn("insights.cache_put_failed", "userId", userID, "error", err)
			}
		}
	}

	if err := p.deps.History.Put(ctx, userID, allInsights, metadata); err != nil {
		return nil, fmt.Errorf("failed to store insights: %w", err)
	}

	responseMetadata := metadata
	responseMetadata.GeneratedAt = p.now().UTC().Format(time.RFC3339)
	responseMetadata.Weather = currentWeather
	responseMetadata.ApplianceEstimates = &estimates

	p.log.Info("insights.generated",
		"userId", userID,
		"type", metadata.Type,
		"count", len(allInsights),
		"aiCount", metadata.AIInsightsCount,
	)
	return &Result{Insights: allInsights, Metadata: &responseMetadata}, nil
}

// rateLimited builds the fallback chain for a rejected request: exact-hash
// cache first, then the newest history row, then a bare rejection.
func (p *Pipeline) rateLimited(ctx context.Context, userID, requestHash string, decision Decision) error {
	entry, err := p.deps.Cache.Get(ctx, userID, requestHash)
	if err != nil {
		p.log.Warn("insights.ratelimit_cache_lookup_failed", "userId", userID, "error", err)
	}
	if entry != nil && entry.Status == models.CacheStatusReady && len(entry.Insights) > 0 {
		return &RateLimitedError{
			RetryAfter: decision.RetryAfter,
			Message:    "Too many requests. Showing previously generated insights.",
			UsingCache: true,
			Insights:   entry.Insights,
			Metadata: &models.InsightMetadata{
				Type:        models.MetadataTypeAIEnhanced,
				Cache:       true,
				RateLimited: true,
			},
		}
	}

	latest, err := p.deps.History.Latest(ctx, userID)
	if err != nil {
		p.log.Warn("insights.ratelimit_history_lookup_failed", "userId", userID, "error", err)
	}
	if latest != nil && len(latest.Insights) > 0 {
		return &RateLimitedError{
			RetryAfter: decision.RetryAfter,
			Message:    "Too many requests. Showing your most recent insights.",
			UsingCache: true,
			Insights:   latest.Insights,
			Metadata: &models.InsightMetadata{
				Type:        models.MetadataTypeCachedLatest,
				RateLimited: true,
				FromDate:    latest.Date,
			},
		}
	}

	return &RateLimitedError{RetryAfter: decision.RetryAfter}
}

func getStartedInsight() models.InsightRecord {
	return models.InsightRecord{
		Type:    models.InsightTypeInfo,
		Icon:    "📊",
		Title:   "Get Started",
		Message: "Start adding your daily electricity readings to get personalized insights and track your energy consumption patterns.",
	}
}

// FallbackErrorInsight is the single render-able record returned when
// insight assembly fails unexpectedly.
func FallbackErrorInsight() models.InsightRecord {
	return models.InsightRecord{
		Type:    models.InsightTypeError,
		Icon:    "⚠️",
		Title:   "Error",
		Message: "Unable to generate insights at this time. Please try again later.",
	}
}
