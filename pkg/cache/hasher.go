package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"vrpt/internal/problem"
)

// ProblemHash computes a stable hash for a problem instance, for use as a
// cache key prefix. Two problems with identical locations and fleet
// parameters hash identically regardless of input order.
func ProblemHash(p *problem.Problem) string {
	if p == nil {
		return ""
	}

	data := problemToCanonical(p)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// problemToCanonical builds a deterministic byte representation of a
// problem: every location sorted by id, then the fleet parameters.
func problemToCanonical(p *problem.Problem) []byte {
	var ids []string
	ids = append(ids, p.Depot().ID(), p.Landfill().ID())
	for _, loc := range p.SWTS() {
		ids = append(ids, loc.ID())
	}
	for _, loc := range p.Zones() {
		ids = append(ids, loc.ID())
	}
	sort.Strings(ids)

	var result []byte
	for _, id := range ids {
		loc, ok := p.Location(id)
		if !ok {
			continue
		}
		result = append(result, []byte(fmt.Sprintf("l:%s:%d:%.6f:%.6f:%.6f:%d;",
			loc.ID(), loc.Role(), loc.X(), loc.Y(),
			loc.WasteAmount().Value(), loc.ServiceTime().Nanoseconds()))...)
	}

	params := p.Params()
	result = append(result, []byte(fmt.Sprintf("f:%.6f:%.6f:%d:%d:%d:%.6f:%d;",
		params.CVCapacity.Value(), params.TVCapacity.Value(),
		params.CVMaxDuration.Nanoseconds(), params.TVMaxDuration.Nanoseconds(),
		params.MaxCVFleet, params.VehicleSpeed.MetersPerSecond(),
		params.Epsilon.Nanoseconds()))...)

	return result
}

// BuildSolveKey builds a cache key for a solve result, scoped by problem
// hash, algorithm descriptor (e.g. "gvns", "grasp"), and the random seed
// used — different seeds may produce different solutions for the same
// problem under a stochastic algorithm.
func BuildSolveKey(problemHash, algorithmDescriptor string, seed int64) string {
	return fmt.Sprintf("solve:%s:%s:%d", algorithmDescriptor, problemHash, seed)
}

// QuickHash is a general-purpose hash for arbitrary data.
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash is a 16-character hash for arbitrary data.
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
