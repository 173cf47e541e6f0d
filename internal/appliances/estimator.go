// Package appliances maps a user's declared appliances and star ratings to
// estimated daily energy draw, using a static efficiency table shipped with
// the binary.
package appliances

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/powerpulse/backend/internal/models"
)

//go:embed profiles.json
var profilesJSON []byte

// Profile is the efficiency profile for one appliance kind.
type Profile struct {
	Name                 string             `json:"name"`
	Category             string             `json:"category"`
	DailyKwhByStarRating map[string]float64 `json:"dailyKwhByStarRating"`
}

// Table is the full appliance efficiency table.
type Table struct {
	Appliances map[string]Profile `json:"appliances"`
}

// Load parses the embedded efficiency table.
func Load() (*Table, error) {
	var t Table
	if err := json.Unmarshal(profilesJSON, &t); err != nil {
		return nil, fmt.Errorf("failed to parse appliance profiles: %v", err)
	}
	return &t, nil
}

// Estimate computes per-appliance and total daily kWh for the user's
// declared appliances. Appliances missing from the table, or with no entry
// for their star rating, are skipped.
func (t *Table) Estimate(userAppliances map[string]models.Appliance) models.ApplianceEstimates {
	out := models.ApplianceEstimates{Estimates: map[string]models.ApplianceEstimate{}}

	for name, appliance := range userAppliances {
		profile, ok := t.Appliances[name]
		if !ok {
			continue
		}
		dailyKwh, ok := profile.DailyKwhByStarRating[strconv.Itoa(appliance.StarRating)]
		if !ok || dailyKwh <= 0 {
			continue
		}
		out.Estimates[name] = models.ApplianceEstimate{
			DailyKwh:         dailyKwh,
			StarRating:       appliance.StarRating,
			FullName:         profile.Name,
			Category:         profile.Category,
			FiveStarDailyKwh: profile.DailyKwhByStarRating["5"],
		}
		out.TotalEstimated += dailyKwh
	}

	return out
}
