package insights

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powerpulse/backend/internal/models"
)

func dayOffset(offset int) string {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset).Format("2006-01-02")
}

func readingsFrom(usages ...float64) []models.Reading {
	out := make([]models.Reading, len(usages))
	for i, u := range usages {
		out[i] = models.Reading{UserID: "u1", Date: dayOffset(i), Usage: u}
	}
	return out
}

func noEstimates() models.ApplianceEstimates {
	return models.ApplianceEstimates{Estimates: map[string]models.ApplianceEstimate{}}
}

func TestRuleBasedNeedsTwoReadings(t *testing.T) {
	got := RuleBased(readingsFrom(10.0), noEstimates(), nil, &models.UserProfile{})

	require.Len(t, got, 1)
	assert.Equal(t, models.InsightTypeInfo, got[0].Type)
	assert.Equal(t, "Start tracking for at least a week to get meaningful insights and comparisons.", got[0].Message)
}

func TestRuleBasedSpikeAndDayOverDay(t *testing.T) {
	got := RuleBased(readingsFrom(10.0, 16.0), noEstimates(), nil, &models.UserProfile{})

	// spike, day-over-day, monthly cost - in that order
	require.Len(t, got, 3)

	assert.Equal(t, models.InsightTypeWarning, got[0].Type)
	assert.Equal(t, "Usage Spike Detected", got[0].Title)
	assert.Equal(t, "Your latest reading (16.0 kWh) is 23% higher than your average (13.0 kWh).", got[0].Message)

	assert.Equal(t, models.InsightTypeWarning, got[1].Type)
	assert.Equal(t, "Daily Usage Increased", got[1].Title)
	assert.Equal(t, "Usage increased by 60.0% compared to yesterday (10.0 → 16.0 kWh).", got[1].Message)

	assert.Equal(t, "Estimated Monthly Cost", got[2].Title)
	assert.Equal(t, "Based on your average usage (13.0 kWh/day), your estimated monthly bill is ₹2340 (at ₹6/kWh).", got[2].Message)
}

// A latest reading at exactly 1.2x the mean does not count as a spike: the
// threshold is strictly greater-than.
func TestRuleBasedSpikeBoundary(t *testing.T) {
	got := RuleBased(readingsFrom(10.0, 15.0), noEstimates(), nil, &models.UserProfile{})

	for _, record := range got {
		assert.NotEqual(t, "Usage Spike Detected", record.Title)
	}

	// The +50% day-over-day and the cost estimate still fire.
	require.Len(t, got, 2)
	assert.Equal(t, "Usage increased by 50.0% compared to yesterday (10.0 → 15.0 kWh).", got[0].Message)
	assert.Equal(t, "Based on your average usage (12.5 kWh/day), your estimated monthly bill is ₹2250 (at ₹6/kWh).", got[1].Message)
}

func TestRuleBasedDayOverDayDecrease(t *testing.T) {
	got := RuleBased(readingsFrom(20.0, 15.0), noEstimates(), nil, &models.UserProfile{})

	require.NotEmpty(t, got)
	assert.Equal(t, models.InsightTypeSuccess, got[0].Type)
	assert.Equal(t, "Daily Usage Decreased", got[0].Title)
	assert.Equal(t, "Usage decreased by 25.0% compared to yesterday (20.0 → 15.0 kWh).", got[0].Message)
}

func TestRuleBasedWeatherBands(t *testing.T) {
	cases := []struct {
		temperature float64
		wantTitle   string
	}{
		{31.5, "Hot Weather Impact"},
		{14.9, "Cold Weather Impact"},
		{15.0, ""},
		{22.0, ""},
		{30.0, ""},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%.1fC", tc.temperature), func(t *testing.T) {
			weather := &models.Weather{Temperature: tc.temperature}
			got := RuleBased(readingsFrom(10.0, 10.0), noEstimates(), weather, &models.UserProfile{})

			var found string
			for _, record := range got {
				if record.Title == "Hot Weather Impact" || record.Title == "Cold Weather Impact" {
					found = record.Title
				}
			}
			assert.Equal(t, tc.wantTitle, found)
		})
	}
}

func TestRuleBasedTopApplianceAndUpgradeTip(t *testing.T) {
	estimates := models.ApplianceEstimates{
		Estimates: map[string]models.ApplianceEstimate{
			"AC": {
				DailyKwh:         4.0,
				StarRating:       3,
				FullName:         "Air Conditioner",
				Category:         "cooling",
				FiveStarDailyKwh: 2.5,
			},
		},
		TotalEstimated: 4.0,
	}

	got := RuleBased(readingsFrom(10.0, 10.0), estimates, nil, &models.UserProfile{})

	// top consumer, upgrade tip, monthly cost
	require.Len(t, got, 3)

	assert.Equal(t, models.InsightTypeInfo, got[0].Type)
	assert.Equal(t, "Top Energy Consumer", got[0].Title)
	assert.Equal(t, "Your Air Conditioner (3-star) accounts for ~100% of estimated consumption (~4 kWh/day).", got[0].Message)

	assert.Equal(t, models.InsightTypeTip, got[1].Type)
	assert.Equal(t, "Upgrade Opportunity", got[1].Title)
	assert.Equal(t, "Upgrading your Air Conditioner to a 5-star model could save ~1.5 kWh/day (₹270/month at ₹6/kWh).", got[1].Message)
}

func TestRuleBasedNoUpgradeTipForEfficientAppliance(t *testing.T) {
	estimates := models.ApplianceEstimates{
		Estimates: map[string]models.ApplianceEstimate{
			"AC": {DailyKwh: 3.0, StarRating: 4, FullName: "Air Conditioner", FiveStarDailyKwh: 2.5},
		},
		TotalEstimated: 3.0,
	}

	got := RuleBased(readingsFrom(10.0, 10.0), estimates, nil, &models.UserProfile{})

	for _, record := range got {
		assert.NotEqual(t, "Upgrade Opportunity", record.Title)
	}
}

func TestRuleBasedWeeklyTrendImprovement(t *testing.T) {
	// Prior week averages 20.0, last week 18.0: a 10% improvement.
	usages := []float64{20, 20, 20, 20, 20, 20, 20, 18, 18, 18, 18, 18, 18, 18}
	got := RuleBased(readingsFrom(usages...), noEstimates(), nil, &models.UserProfile{})

	var trend *models.InsightRecord
	for i := range got {
		if got[i].Title == "Great Progress!" {
			trend = &got[i]
		}
	}
	require.NotNil(t, trend)
	assert.Equal(t, models.InsightTypeSuccess, trend.Type)
	assert.Equal(t, "You saved 10.0% energy this week compared to last week (~₹84 saved).", trend.Message)
}

func TestRuleBasedWeeklyTrendRegression(t *testing.T) {
	usages := []float64{10, 10, 10, 10, 10, 10, 10, 12, 12, 12, 12, 12, 12, 12}
	got := RuleBased(readingsFrom(usages...), noEstimates(), nil, &models.UserProfile{})

	var trend *models.InsightRecord
	for i := range got {
		if got[i].Title == "Weekly Increase" {
			trend = &got[i]
		}
	}
	require.NotNil(t, trend)
	assert.Equal(t, models.InsightTypeWarning, trend.Type)
	assert.Contains(t, trend.Message, "20.0%")
}

func TestRuleBasedWeeklyTrendQuietInsideNoiseBand(t *testing.T) {
	// +2.5% week over week stays silent.
	usages := []float64{20, 20, 20, 20, 20, 20, 20, 20.5, 20.5, 20.5, 20.5, 20.5, 20.5, 20.5}
	got := RuleBased(readingsFrom(usages...), noEstimates(), nil, &models.UserProfile{})

	for _, record := range got {
		assert.NotEqual(t, "Great Progress!", record.Title)
		assert.NotEqual(t, "Weekly Increase", record.Title)
	}
}

func TestRuleBasedMonthlyCostAlwaysLast(t *testing.T) {
	got := RuleBased(readingsFrom(10.0, 16.0), noEstimates(), nil, &models.UserProfile{})

	require.NotEmpty(t, got)
	assert.Equal(t, "Estimated Monthly Cost", got[len(got)-1].Title)
}
