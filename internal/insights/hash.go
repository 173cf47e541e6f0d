package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/powerpulse/backend/internal/models"
)

// hashVersion bumps every cached fingerprint when the hash inputs change
// shape.
const hashVersion = 1

// recentReadingsInHash caps how much history feeds the fingerprint, so the
// hash stays stable as old readings accumulate.
const recentReadingsInHash = 7

type hashReading struct {
	D string  `json:"d"`
	U float64 `json:"u"`
}

type hashProfile struct {
	HomeType   string                      `json:"homeType"`
	Appliances map[string]models.Appliance `json:"appliances"`
}

type hashPayload struct {
	Readings   []hashReading `json:"readings"`
	Profile    hashProfile   `json:"profile"`
	Model      string        `json:"model"`
	DateBucket string        `json:"dateBucket"`
	V          int           `json:"v"`
}

// RequestHash fingerprints the effective inputs of insight generation: the
// most recent readings, the parts of the profile the engines read, the
// active model, and the calendar day. encoding/json serializes map keys in
// sorted order, so appliance ordering cannot change the hash.
func RequestHash(readings []models.Reading, profile *models.UserProfile, model, dateBucket string) string {
	recent := lastNAscending(readings, recentReadingsInHash)
	hashed := make([]hashReading, 0, len(recent))
	for _, r := range recent {
		hashed = append(hashed, hashReading{D: r.Date, U: r.Usage})
	}

	payload := hashPayload{
		Readings: hashed,
		Profile: hashProfile{
			HomeType:   profile.HomeType,
			Appliances: profile.Appliances,
		},
		Model:      model,
		DateBucket: dateBucket,
		V:          hashVersion,
	}

	encoded, _ := json.Marshal(payload)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// lastNAscending returns the n most recent readings in ascending date
// order, regardless of input order.
func lastNAscending(readings []models.Reading, n int) []models.Reading {
	sorted := make([]models.Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
