package insights

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/powerpulse/backend/internal/models"
)

// Tariff assumption used for every cost figure: flat ₹6/kWh, 30-day month.
const costPerKwhINR = 6.0

// RuleBased produces the deterministic insight list for a user's readings.
// It never fails: with fewer than two readings it returns a single
// "need more data" record and stops. Message wording and rounding are part
// of the contract the dashboard renders.
func RuleBased(readings []models.Reading, estimates models.ApplianceEstimates, weather *models.Weather, profile *models.UserProfile) []models.InsightRecord {
	var insights []models.InsightRecord

	if len(readings) < 2 {
		return []models.InsightRecord{{
			Type:    models.InsightTypeInfo,
			Icon:    "📊",
			Message: "Start tracking for at least a week to get meaningful insights and comparisons.",
		}}
	}

	sorted := make([]models.Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	latest := sorted[len(sorted)-1]
	previous := sorted[len(sorted)-2]

	var total float64
	for _, r := range sorted {
		total += r.Usage
	}
	avgUsage := total / float64(len(sorted))

	// 1. Spike detection.
	if latest.Usage > avgUsage*1.2 {
		percentAboveMean := (latest.Usage - avgUsage) / avgUsage * 100
		insights = append(insights, models.InsightRecord{
			Type:  models.InsightTypeWarning,
			Icon:  "⚠️",
			Title: "Usage Spike Detected",
			Message: fmt.Sprintf("Your latest reading (%.1f kWh) is %.0f%% higher than your average (%.1f kWh).",
				latest.Usage, percentAboveMean, avgUsage),
		})
	}

	// 2. Day-over-day comparison.
	dayChange := (latest.Usage - previous.Usage) / previous.Usage * 100
	if math.Abs(dayChange) > 10 {
		direction := "decreased"
		icon := "📉"
		recordType := models.InsightTypeSuccess
		title := "Daily Usage Decreased"
		if dayChange > 0 {
			direction = "increased"
			icon = "📈"
			recordType = models.InsightTypeWarning
			title = "Daily Usage Increased"
		}
		insights = append(insights, models.InsightRecord{
			Type:  recordType,
			Icon:  icon,
			Title: title,
			Message: fmt.Sprintf("Usage %s by %.1f%% compared to yesterday (%.1f → %.1f kWh).",
				direction, math.Abs(dayChange), previous.Usage, latest.Usage),
		})
	}

	// 3. Weather correlation. 15-30°C produces nothing.
	if weather != nil {
		if weather.Temperature > 30 {
			insights = append(insights, models.InsightRecord{
				Type:  models.InsightTypeInfo,
				Icon:  "🌡️",
				Title: "Hot Weather Impact",
				Message: fmt.Sprintf("Temperature is %.1f°C. Cooling appliances likely consuming more energy. Consider setting AC to 25-26°C for optimal efficiency.",
					weather.Temperature),
			})
		} else if weather.Temperature < 15 {
			insights = append(insights, models.InsightRecord{
				Type:  models.InsightTypeInfo,
				Icon:  "❄️",
				Title: "Cold Weather Impact",
				Message: fmt.Sprintf("Temperature is %.1f°C. Heating appliances may be consuming more energy. Use geysers efficiently and consider solar heating.",
					weather.Temperature),
			})
		}
	}

	// 4. Top appliance and upgrade opportunity.
	if estimates.TotalEstimated > 0 {
		if top, ok := topAppliance(estimates); ok {
			share := top.DailyKwh / estimates.TotalEstimated * 100
			insights = append(insights, models.InsightRecord{
				Type:  models.InsightTypeInfo,
				Icon:  "🔌",
				Title: "Top Energy Consumer",
				Message: fmt.Sprintf("Your %s (%d-star) accounts for ~%.0f%% of estimated consumption (~%s kWh/day).",
					top.FullName, top.StarRating, share, formatKwh(top.DailyKwh)),
			})

			if top.StarRating < 4 && top.FiveStarDailyKwh > 0 {
				savedKwh := top.DailyKwh - top.FiveStarDailyKwh
				insights = append(insights, models.InsightRecord{
					Type:  models.InsightTypeTip,
					Icon:  "💡",
					Title: "Upgrade Opportunity",
					Message: fmt.Sprintf("Upgrading your %s to a 5-star model could save ~%.1f kWh/day (₹%.0f/month at ₹6/kWh).",
						top.FullName, savedKwh, savedKwh*costPerKwhINR*30),
				})
			}
		}
	}

	// 5. Weekly trend, once two full weeks exist. ±5% is noise.
	if len(sorted) >= 14 {
		lastWeekAvg := weeklyAverage(sorted[len(sorted)-7:])
		previousWeekAvg := weeklyAverage(sorted[len(sorted)-14 : len(sorted)-7])
		weeklyChange := (lastWeekAvg - previousWeekAvg) / previousWeekAvg * 100

		if weeklyChange < -5 {
			savedRupees := (previousWeekAvg - lastWeekAvg) * 7 * costPerKwhINR
			insights = append(insights, models.InsightRecord{
				Type:  models.InsightTypeSuccess,
				Icon:  "🌱",
				Title: "Great Progress!",
				Message: fmt.Sprintf("You saved %.1f%% energy this week compared to last week (~₹%.0f saved).",
					math.Abs(weeklyChange), savedRupees),
			})
		} else if weeklyChange > 5 {
			insights = append(insights, models.InsightRecord{
				Type:  models.InsightTypeWarning,
				Icon:  "📊",
				Title: "Weekly Increase",
				Message: fmt.Sprintf("Energy usage increased by %.1f%% this week. Review your appliance usage patterns.",
					weeklyChange),
			})
		}
	}

	// 6. Monthly cost estimate, always last.
	insights = append(insights, models.InsightRecord{
		Type:  models.InsightTypeInfo,
		Icon:  "💰",
		Title: "Estimated Monthly Cost",
		Message: fmt.Sprintf("Based on your average usage (%.1f kWh/day), your estimated monthly bill is ₹%.0f (at ₹6/kWh).",
			avgUsage, avgUsage*30*costPerKwhINR),
	})

	return insights
}

// topAppliance returns the single highest-daily-kWh appliance. Ties break
// on name so the result is deterministic.
func topAppliance(estimates models.ApplianceEstimates) (models.ApplianceEstimate, bool) {
	names := make([]string, 0, len(estimates.Estimates))
	for name := range estimates.Estimates {
		names = append(names, name)
	}
	if len(names) == 0 {
		return models.ApplianceEstimate{}, false
	}
	sort.Strings(names)

	topName := names[0]
	for _, name := range names[1:] {
		if estimates.Estimates[name].DailyKwh > estimates.Estimates[topName].DailyKwh {
			topName = name
		}
	}
	return estimates.Estimates[topName], true
}

func weeklyAverage(week []models.Reading) float64 {
	var total float64
	for _, r := range week {
		total += r.Usage
	}
	return total / float64(len(week))
}

// formatKwh renders a kWh figure the way the table stores it: no trailing
// zeros, no forced precision.
func formatKwh(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
