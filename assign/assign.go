package assign

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"time"

	"funneltrack/api/models"
)

// Pick maps a session to exactly one variant of the given experiment.
// The mapping is a pure function of (sessionID, experiment id, weights):
// no process-local seed, no clock input beyond the active-window check,
// so the same session lands in the same variant across processes and
// restarts. Returns ok=false when the experiment is nil, outside its
// window, or carries no usable weight.
func Pick(sessionID string, exp *models.Experiment, now time.Time) (string, bool) {
	if exp == nil || !exp.Active(now) {
		return "", false
	}
	total := exp.TotalWeight()
	if total <= 0 {
		return "", false
	}

	bucket := Bucket(sessionID, exp.ID, total)

	// Walk variants in a fixed order so the cumulative ranges are stable
	// no matter how the snapshot was loaded.
	variants := make([]models.Variant, len(exp.Variants))
	copy(variants, exp.Variants)
	sort.Slice(variants, func(i, j int) bool { return variants[i].ID < variants[j].ID })

	cum := 0
	for _, v := range variants {
		cum += v.Weight
		if bucket < cum {
			return v.ID, true
		}
	}
	// bucket < total and the weights sum to total, so this is unreachable;
	// kept so a malformed snapshot still yields a variant.
	return variants[len(variants)-1].ID, true
}

// Bucket computes the proportional-bucketing value: the first eight bytes
// of sha256(sessionID + ":" + experimentID) reduced mod totalWeight.
func Bucket(sessionID, experimentID string, totalWeight int) int {
	sum := sha256.Sum256([]byte(sessionID + ":" + experimentID))
	n := binary.BigEndian.Uint64(sum[:8])
	return int(n % uint64(totalWeight))
}
