package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/internal/route"
)

// SolverCache is a cache specialized for solve results, keyed by problem
// hash, algorithm, and seed.
type SolverCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// NewSolverCache constructs a SolverCache. A non-positive defaultTTL falls
// back to 10 minutes.
func NewSolverCache(cache Cache, defaultTTL time.Duration) *SolverCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &SolverCache{cache: cache, defaultTTL: defaultTTL}
}

// CachedSolveResult is the JSON-serializable envelope stored per cache
// entry: the solution plus the metadata needed to judge its freshness and
// provenance without re-solving.
type CachedSolveResult struct {
	Solution          CachedSolution `json:"solution"`
	Algorithm         string         `json:"algorithm"`
	Seed              int64          `json:"seed"`
	ComputationTimeMs float64        `json:"computation_time_ms"`
	ComputedAt        time.Time      `json:"computed_at"`
}

// CachedSolution is a flattened, JSON-friendly mirror of route.Solution.
type CachedSolution struct {
	CVRoutes []CachedCVRoute `json:"cv_routes"`
	TVRoutes []CachedTVRoute `json:"tv_routes"`
	Complete bool            `json:"complete"`
}

// CachedCVRoute mirrors route.CVRoute's externally visible state.
type CachedCVRoute struct {
	VehicleID     string   `json:"vehicle_id"`
	LocationIDs   []string `json:"location_ids"`
	TotalDuration int64    `json:"total_duration_ns"`
	FinalLoad     float64  `json:"final_load"`
}

// CachedTVRoute mirrors route.TVRoute's externally visible state.
type CachedTVRoute struct {
	VehicleID     string   `json:"vehicle_id"`
	LocationIDs   []string `json:"location_ids"`
	CurrentTime   int64    `json:"current_time_ns"`
	FinalLoad     float64  `json:"final_load"`
}

// ToCachedSolution flattens a route.Solution for storage.
func ToCachedSolution(s *route.Solution) CachedSolution {
	cs := CachedSolution{Complete: s.Complete}
	for _, r := range s.CVRoutes {
		cs.CVRoutes = append(cs.CVRoutes, CachedCVRoute{
			VehicleID:     r.VehicleID,
			LocationIDs:   r.LocationIDs(),
			TotalDuration: r.TotalDuration().Nanoseconds(),
			FinalLoad:     r.CurrentLoad().Value(),
		})
	}
	for _, r := range s.TVRoutes {
		cs.TVRoutes = append(cs.TVRoutes, CachedTVRoute{
			VehicleID:   r.VehicleID,
			LocationIDs: r.LocationIDs(),
			CurrentTime: r.CurrentTime().Nanoseconds(),
			FinalLoad:   r.CurrentLoad().Value(),
		})
	}
	return cs
}

// Summary reports the route counts and total waste recorded in the cached
// solution, without reconstructing full route.CVRoute/TVRoute values —
// callers needing the full feasibility-checked solution must re-solve.
func (s CachedSolution) Summary() (cvCount, tvCount int, totalWaste quantity.Capacity) {
	cvCount = len(s.CVRoutes)
	tvCount = len(s.TVRoutes)
	var total float64
	for _, r := range s.TVRoutes {
		total += r.FinalLoad
	}
	totalWaste = quantity.MustCapacity(total)
	return cvCount, tvCount, totalWaste
}

// Get retrieves a cached solve result for the given problem/algorithm/seed
// combination. The bool return is false on a cache miss; the error return
// is non-nil only for a genuine backend failure.
func (sc *SolverCache) Get(ctx context.Context, p *problem.Problem, algorithm string, seed int64) (*CachedSolveResult, bool, error) {
	key := BuildSolveKey(ProblemHash(p), algorithm, seed)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result CachedSolveResult
	if err := json.Unmarshal(data, &result); err != nil {
		_ = sc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup of a corrupt entry
		return nil, false, nil
	}

	return &result, true, nil
}

// Set stores a solve result under the given problem/algorithm/seed key.
// ttl <= 0 falls back to the cache's default TTL.
func (sc *SolverCache) Set(ctx context.Context, p *problem.Problem, algorithm string, seed int64, solution *route.Solution, computationTime time.Duration, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = sc.defaultTTL
	}

	key := BuildSolveKey(ProblemHash(p), algorithm, seed)

	result := CachedSolveResult{
		Solution:          ToCachedSolution(solution),
		Algorithm:         algorithm,
		Seed:              seed,
		ComputationTimeMs: float64(computationTime.Microseconds()) / 1000.0,
		ComputedAt:        time.Now(),
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return sc.cache.Set(ctx, key, data, ttl)
}

// Invalidate removes every cached result (across algorithms and seeds) for
// the given problem.
func (sc *SolverCache) Invalidate(ctx context.Context, p *problem.Problem) error {
	hash := ProblemHash(p)
	keys, err := sc.cache.Keys(ctx, "solve:*")
	if err != nil {
		return err
	}
	var matched []string
	for _, k := range keys {
		if strings.Contains(k, ":"+hash+":") {
			matched = append(matched, k)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	_, err = sc.cache.MDelete(ctx, matched)
	return err
}

// InvalidateAll removes every cached solve result.
func (sc *SolverCache) InvalidateAll(ctx context.Context) (int64, error) {
	return sc.cache.DeleteByPattern(ctx, "solve:*")
}
