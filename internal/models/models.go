package models

// Reading is one daily meter reading. Writes for the same userId+date
// overwrite, so date is the dedup key within a user's partition.
type Reading struct {
	UserID    string  `json:"userId" dynamodbav:"userId"`
	Date      string  `json:"date" dynamodbav:"date"`
	Usage     float64 `json:"usage" dynamodbav:"usage"`
	Timestamp string  `json:"timestamp" dynamodbav:"timestamp"`
}

// Appliance is a user-declared appliance with its BEE star rating (1-5).
type Appliance struct {
	StarRating int `json:"starRating" dynamodbav:"starRating"`
}

// UserProfile holds the per-user home profile. Saved wholesale (full
// replace), deleted explicitly.
type UserProfile struct {
	UserID     string               `json:"userId" dynamodbav:"userId"`
	Location   string               `json:"location" dynamodbav:"location"`
	HomeType   string               `json:"homeType" dynamodbav:"homeType"`
	Appliances map[string]Appliance `json:"appliances" dynamodbav:"appliances"`
	CreatedAt  string               `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  string               `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Insight record types.
const (
	InsightTypeInfo    = "info"
	InsightTypeWarning = "warning"
	InsightTypeSuccess = "success"
	InsightTypeTip     = "tip"
	InsightTypeAI      = "ai"
	InsightTypeError   = "error"
)

// InsightRecord is a single human-readable observation about usage.
type InsightRecord struct {
	Type    string `json:"type" dynamodbav:"type"`
	Icon    string `json:"icon" dynamodbav:"icon"`
	Title   string `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Message string `json:"message" dynamodbav:"message"`
}

// Cache entry statuses.
const (
	CacheStatusPending = "pending"
	CacheStatusReady   = "ready"
)

// CacheEntry is a coalescing-cache row keyed by (userId, requestHash).
// A pending row is a non-blocking hint that generation is in flight; it
// either transitions to ready or expires via TTL.
type CacheEntry struct {
	UserID      string          `dynamodbav:"userId"`
	RequestHash string          `dynamodbav:"requestHash"`
	Status      string          `dynamodbav:"status"`
	Insights    []InsightRecord `dynamodbav:"insights,omitempty"`
	UpdatedAt   int64           `dynamodbav:"updatedAt"`
	TTL         int64           `dynamodbav:"ttl"`
}

// RateLimitState is the per-user fixed-window counter. Only accepted
// requests mutate it.
type RateLimitState struct {
	UserID      string `dynamodbav:"userId"`
	WindowStart int64  `dynamodbav:"windowStart"`
	Count       int    `dynamodbav:"count"`
	LastTs      int64  `dynamodbav:"lastTs"`
	TTL         int64  `dynamodbav:"ttl,omitempty"`
}

// InsightsHistoryEntry is the last-known-good insight set for a user,
// keyed by generation day. Backs the rate-limited fallback path.
type InsightsHistoryEntry struct {
	UserID    string          `dynamodbav:"userId"`
	Date      string          `dynamodbav:"date"`
	Timestamp string          `dynamodbav:"timestamp"`
	Insights  []InsightRecord `dynamodbav:"insights"`
	Metadata  InsightMetadata `dynamodbav:"metadata"`
	TTL       int64           `dynamodbav:"ttl"`
}

// Weather is the subset of current conditions the engines care about.
type Weather struct {
	Temperature float64 `json:"temperature" dynamodbav:"temperature"`
	FeelsLike   float64 `json:"feelsLike" dynamodbav:"feelsLike"`
	Humidity    int     `json:"humidity" dynamodbav:"humidity"`
	Description string  `json:"description" dynamodbav:"description"`
	Location    string  `json:"location" dynamodbav:"location"`
}

// ApplianceEstimate is the estimated daily draw for one declared appliance.
type ApplianceEstimate struct {
	DailyKwh         float64 `json:"dailyKwh" dynamodbav:"dailyKwh"`
	StarRating       int     `json:"starRating" dynamodbav:"starRating"`
	FullName         string  `json:"fullName" dynamodbav:"fullName"`
	Category         string  `json:"category" dynamodbav:"category"`
	FiveStarDailyKwh float64 `json:"fiveStarDailyKwh,omitempty" dynamodbav:"fiveStarDailyKwh,omitempty"`
}

// ApplianceEstimates is the full estimate set for a profile.
type ApplianceEstimates struct {
	Estimates      map[string]ApplianceEstimate `json:"estimates" dynamodbav:"estimates"`
	TotalEstimated float64                      `json:"totalEstimated" dynamodbav:"totalEstimated"`
}

// Insight result types reported in metadata.
const (
	MetadataTypeRuleBased    = "rule-based"
	MetadataTypeAIEnhanced   = "ai-enhanced"
	MetadataTypeCachedLatest = "cached-latest"
)

// InsightMetadata describes how an insight list was produced. The stored
// history row keeps the base fields; the response adds generatedAt, weather
// and applianceEstimates on top.
type InsightMetadata struct {
	Type               string              `json:"type" dynamodbav:"type"`
	ReadingsCount      int                 `json:"readingsCount,omitempty" dynamodbav:"readingsCount,omitempty"`
	HasWeather         bool                `json:"hasWeather,omitempty" dynamodbav:"hasWeather,omitempty"`
	HasProfile         bool                `json:"hasProfile,omitempty" dynamodbav:"hasProfile,omitempty"`
	AIInsightsCount    int                 `json:"aiInsightsCount,omitempty" dynamodbav:"aiInsightsCount,omitempty"`
	Cache              bool                `json:"cache,omitempty" dynamodbav:"cache,omitempty"`
	RateLimited        bool                `json:"rateLimited,omitempty" dynamodbav:"rateLimited,omitempty"`
	FromDate           string              `json:"fromDate,omitempty" dynamodbav:"fromDate,omitempty"`
	GeneratedAt        string              `json:"generatedAt,omitempty" dynamodbav:"generatedAt,omitempty"`
	Weather            *Weather            `json:"weather,omitempty" dynamodbav:"weather,omitempty"`
	ApplianceEstimates *ApplianceEstimates `json:"applianceEstimates,omitempty" dynamodbav:"applianceEstimates,omitempty"`
}
