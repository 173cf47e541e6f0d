package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/backend/internal/ai"
	"github.com/powerpulse/backend/internal/logger"
	"github.com/powerpulse/backend/internal/models"
)

type stubReadings struct {
	items []models.Reading
	err   error
}

func (s *stubReadings) Recent(ctx context.Context, userID string, limit int) ([]models.Reading, error) {
	return s.items, s.err
}

type stubProfiles struct {
	profile *models.UserProfile
	err     error
}

func (s *stubProfiles) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	return s.profile, s.err
}

type stubCache struct {
	entries      map[string]*models.CacheEntry
	pendingCalls int
	readyCalls   int
	pendingErr   error
}

func cacheKey(userID, requestHash string) string {
	return userID + "|" + requestHash
}

func (s *stubCache) Get(ctx context.Context, userID, requestHash string) (*models.CacheEntry, error) {
	return s.entries[cacheKey(userID, requestHash)], nil
}

func (s *stubCache) MarkPending(ctx context.Context, userID, requestHash string) error {
	s.pendingCalls++
	if s.pendingErr != nil {
		return s.pendingErr
	}
	if s.entries == nil {
		s.entries = map[string]*models.CacheEntry{}
	}
	s.entries[cacheKey(userID, requestHash)] = &models.CacheEntry{
		UserID:      userID,
		RequestHash: requestHash,
		Status:      models.CacheStatusPending,
	}
	return nil
}

func (s *stubCache) PutReady(ctx context.Context, userID, requestHash string, insights []models.InsightRecord) error {
	s.readyCalls++
	if s.entries == nil {
		s.entries = map[string]*models.CacheEntry{}
	}
	s.entries[cacheKey(userID, requestHash)] = &models.CacheEntry{
		UserID:      userID,
		RequestHash: requestHash,
		Status:      models.CacheStatusReady,
		Insights:    insights,
	}
	return nil
}

type historyPut struct {
	insights []models.InsightRecord
	metadata models.InsightMetadata
}

type stubHistory struct {
	puts   []historyPut
	latest *models.InsightsHistoryEntry
	putErr error
}

func (s *stubHistory) Put(ctx context.Context, userID string, insights []models.InsightRecord, metadata models.InsightMetadata) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, historyPut{insights: insights, metadata: metadata})
	return nil
}

func (s *stubHistory) Latest(ctx context.Context, userID string) (*models.InsightsHistoryEntry, error) {
	return s.latest, nil
}

type stubLimiter struct {
	decision Decision
	calls    int
}

func (s *stubLimiter) CheckAndConsume(ctx context.Context, userID string) (Decision, error) {
	s.calls++
	return s.decision, nil
}

type stubEstimator struct{}

func (stubEstimator) Estimate(userAppliances map[string]models.Appliance) models.ApplianceEstimates {
	return models.ApplianceEstimates{Estimates: map[string]models.ApplianceEstimate{}}
}

type stubGenerator struct {
	records []models.InsightRecord
	calls   int
}

func (s *stubGenerator) Generate(ctx context.Context, in ai.PromptInput) []models.InsightRecord {
	s.calls++
	return s.records
}

type pipelineFixture struct {
	pipeline  *Pipeline
	readings  *stubReadings
	profiles  *stubProfiles
	cache     *stubCache
	history   *stubHistory
	limiter   *stubLimiter
	generator *stubGenerator
	at        time.Time
}

func newPipelineFixture(cfg Config) *pipelineFixture {
	f := &pipelineFixture{
		readings:  &stubReadings{items: readingsFrom(10, 11, 12)},
		profiles:  &stubProfiles{profile: hashProfileFixture()},
		cache:     &stubCache{},
		history:   &stubHistory{},
		limiter:   &stubLimiter{decision: Decision{Allowed: true}},
		generator: &stubGenerator{},
		at:        time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
	if cfg.Model == "" {
		cfg.Model = "google/gemma-2-9b-it"
	}
	f.pipeline = NewPipeline(Deps{
		Readings:  f.readings,
		Profiles:  f.profiles,
		Cache:     f.cache,
		History:   f.history,
		Limiter:   f.limiter,
		Estimator: stubEstimator{},
		AI:        f.generator,
	}, cfg, logger.NewNop())
	f.pipeline.now = func() time.Time { return f.at }
	return f
}

func (f *pipelineFixture) requestHash() string {
	return RequestHash(f.readings.items, f.profiles.profile, f.pipeline.cfg.Model, f.at.Format("2006-01-02"))
}

func aiRecord(msg string) models.InsightRecord {
	return models.InsightRecord{Type: models.InsightTypeAI, Icon: "🤖", Title: "AI Insight 1", Message: msg}
}

func TestPipelineProfileMissing(t *testing.T) {
	f := newPipelineFixture(Config{})
	f.profiles.profile = nil

	_, err := f.pipeline.Generate(context.Background(), "u1")

	assert.ErrorIs(t, err, ErrProfileMissing)
	assert.Equal(t, 0, f.limiter.calls)
}

func TestPipelineNoReadings(t *testing.T) {
	f := newPipelineFixture(Config{})
	f.readings.items = nil

	result, err := f.pipeline.Generate(context.Background(), "u1")

	require.NoError(t, err)
	require.Len(t, result.Insights, 1)
	assert.Equal(t, "Get Started", result.Insights[0].Title)
	assert.Nil(t, result.Metadata)
	// The empty-history path touches neither the limiter nor the cache.
	assert.Equal(t, 0, f.limiter.calls)
	assert.Equal(t, 0, f.cache.pendingCalls)
	assert.Empty(t, f.history.puts)
}

func TestPipelineRuleBasedOnly(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: false})

	result, err := f.pipeline.Generate(context.Background(), "u1")

	require.NoError(t, err)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, models.MetadataTypeRuleBased, result.Metadata.Type)
	assert.Equal(t, 3, result.Metadata.ReadingsCount)
	assert.True(t, result.Metadata.HasProfile)
	assert.False(t, result.Metadata.HasWeather)
	assert.NotEmpty(t, result.Metadata.GeneratedAt)
	assert.NotNil(t, result.Metadata.ApplianceEstimates)
	assert.Equal(t, 0, f.generator.calls)

	// Rule-based output is never promoted to a ready cache entry.
	assert.Equal(t, 0, f.cache.readyCalls)
	assert.Equal(t, 1, f.cache.pendingCalls)

	require.Len(t, f.history.puts, 1)
	assert.Equal(t, models.MetadataTypeRuleBased, f.history.puts[0].metadata.Type)
	// The stored metadata stays lean: no generatedAt snapshot.
	assert.Empty(t, f.history.puts[0].metadata.GeneratedAt)
}

func TestPipelineAIEnhanced(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.generator.records = []models.InsightRecord{aiRecord("Shift laundry to off-peak evening hours to flatten your usage curve.")}

	result, err := f.pipeline.Generate(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, models.MetadataTypeAIEnhanced, result.Metadata.Type)
	assert.Equal(t, 1, result.Metadata.AIInsightsCount)
	// AI records come first, rule-based after.
	require.NotEmpty(t, result.Insights)
	assert.Equal(t, models.InsightTypeAI, result.Insights[0].Type)
	assert.Equal(t, "Estimated Monthly Cost", result.Insights[len(result.Insights)-1].Title)

	assert.Equal(t, 1, f.cache.readyCalls)
	entry := f.cache.entries[cacheKey("u1", f.requestHash())]
	require.NotNil(t, entry)
	assert.Equal(t, models.CacheStatusReady, entry.Status)

	require.Len(t, f.history.puts, 1)
	assert.Equal(t, models.MetadataTypeAIEnhanced, f.history.puts[0].metadata.Type)
}

func TestPipelineCacheCoalescesRepeatRequests(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.generator.records = []models.InsightRecord{aiRecord("Run the geyser on a timer instead of keeping it always on.")}
	ctx := context.Background()

	first, err := f.pipeline.Generate(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, f.generator.calls)

	second, err := f.pipeline.Generate(ctx, "u1")
	require.NoError(t, err)

	// Identical inputs on the same day are served from cache: no second
	// generator call, no second history row.
	assert.Equal(t, 1, f.generator.calls)
	assert.True(t, second.Metadata.Cache)
	assert.Equal(t, models.MetadataTypeAIEnhanced, second.Metadata.Type)
	assert.Equal(t, first.Insights, second.Insights)
	assert.Len(t, f.history.puts, 1)
}

func TestPipelineNewDayBustsCache(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.generator.records = []models.InsightRecord{aiRecord("Your refrigerator door seal may be worth checking this season.")}
	ctx := context.Background()

	_, err := f.pipeline.Generate(ctx, "u1")
	require.NoError(t, err)

	f.at = f.at.AddDate(0, 0, 1)
	second, err := f.pipeline.Generate(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, f.generator.calls)
	assert.False(t, second.Metadata.Cache)
}

func TestPipelineAIFailureDegradesToRuleBased(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.generator.records = nil
	ctx := context.Background()

	result, err := f.pipeline.Generate(ctx, "u1")

	require.NoError(t, err)
	assert.Equal(t, 1, f.generator.calls)
	assert.Equal(t, models.MetadataTypeRuleBased, result.Metadata.Type)
	assert.Equal(t, 0, result.Metadata.AIInsightsCount)
	assert.Equal(t, 0, f.cache.readyCalls)

	// The pending marker stays, but a retry is not blocked by it and gets
	// another shot at AI.
	second, err := f.pipeline.Generate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.generator.calls)
	assert.Equal(t, models.MetadataTypeRuleBased, second.Metadata.Type)
	assert.Equal(t, 1, f.cache.pendingCalls, "pending marker inserted once")
	assert.Len(t, f.history.puts, 2)
}

func TestPipelineMarkPendingFailureIsNonFatal(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: false})
	f.cache.pendingErr = errors.New("dynamo throttled")

	result, err := f.pipeline.Generate(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, models.MetadataTypeRuleBased, result.Metadata.Type)
}

func TestPipelineSkipsAIBelowMinReadings(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true, MinReadingsForAI: 5})
	f.generator.records = []models.InsightRecord{aiRecord("unused")}

	result, err := f.pipeline.Generate(context.Background(), "u1")

	require.NoError(t, err)
	assert.Equal(t, 0, f.generator.calls)
	assert.Equal(t, models.MetadataTypeRuleBased, result.Metadata.Type)
}

func TestPipelineRateLimitedWithCacheFallback(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.limiter.decision = Decision{RetryAfter: 12}
	cached := []models.InsightRecord{aiRecord("cached content")}
	f.cache.entries = map[string]*models.CacheEntry{
		cacheKey("u1", f.requestHash()): {Status: models.CacheStatusReady, Insights: cached},
	}

	_, err := f.pipeline.Generate(context.Background(), "u1")

	var rateLimited *RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, 12, rateLimited.RetryAfter)
	assert.True(t, rateLimited.UsingCache)
	assert.Equal(t, cached, rateLimited.Insights)
	require.NotNil(t, rateLimited.Metadata)
	assert.Equal(t, models.MetadataTypeAIEnhanced, rateLimited.Metadata.Type)
	assert.True(t, rateLimited.Metadata.RateLimited)
	assert.True(t, rateLimited.Metadata.Cache)
}

func TestPipelineRateLimitedWithHistoryFallback(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.limiter.decision = Decision{RetryAfter: 30}
	stored := []models.InsightRecord{{Type: models.InsightTypeInfo, Message: "yesterday's insight about fan usage patterns"}}
	f.history.latest = &models.InsightsHistoryEntry{
		UserID:   "u1",
		Date:     "2026-08-28",
		Insights: stored,
	}

	_, err := f.pipeline.Generate(context.Background(), "u1")

	var rateLimited *RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, stored, rateLimited.Insights)
	require.NotNil(t, rateLimited.Metadata)
	assert.Equal(t, models.MetadataTypeCachedLatest, rateLimited.Metadata.Type)
	assert.Equal(t, "2026-08-28", rateLimited.Metadata.FromDate)
	assert.True(t, rateLimited.Metadata.RateLimited)
}

func TestPipelineRateLimitedBareRejection(t *testing.T) {
	f := newPipelineFixture(Config{UseAI: true})
	f.limiter.decision = Decision{RetryAfter: 7}

	_, err := f.pipeline.Generate(context.Background(), "u1")

	var rateLimited *RateLimitedError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, 7, rateLimited.RetryAfter)
	assert.Empty(t, rateLimited.Insights)
	assert.False(t, rateLimited.UsingCache)
}

func TestPipelineReadingsErrorPropagates(t *testing.T) {
	f := newPipelineFixture(Config{})
	f.readings.err = errors.New("dynamo unavailable")

	_, err := f.pipeline.Generate(context.Background(), "u1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load readings")
}

func TestPipelineHistoryWriteErrorPropagates(t *testing.T) {
	f := newPipelineFixture(Config{})
	f.history.putErr = errors.New("dynamo write failed")

	_, err := f.pipeline.Generate(context.Background(), "u1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store insights")
}
