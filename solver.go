// Package vrpt is the top-level entry point for the VRPT-SWTS solver: it
// wires a Problem through Phase 1 (CV route construction/improvement) and
// Phase 2 (TV scheduling), with optional result caching and metrics.
package vrpt

import (
	"context"
	"fmt"
	"time"

	"vrpt/internal/generator"
	"vrpt/internal/localsearch"
	"vrpt/internal/problem"
	"vrpt/internal/route"
	"vrpt/internal/scheduler"
	"vrpt/internal/spatial"
	"vrpt/pkg/apperror"
	"vrpt/pkg/cache"
	"vrpt/pkg/logger"
	"vrpt/pkg/metrics"
)

// AlgorithmSelector is a closed sum type of Phase 1 construction/
// improvement strategies. The reference source dispatches by string name
// through a runtime algorithm registry; here a single Solve-family entry
// point switches on the concrete selector type instead, trading the
// registry's reflection-based dispatch for a statically-checked one while
// still letting a driver build a selector from config or a request.
type AlgorithmSelector interface {
	algorithmSelector()
	Name() string
}

// GreedySelector is pure nearest-neighbor construction, no local search.
type GreedySelector struct{}

func (GreedySelector) algorithmSelector() {}

// Name identifies the algorithm for logging, metrics labels, and cache keys.
func (GreedySelector) Name() string { return "greedy" }

// GRASPSelector is randomized-restricted-candidate-list construction, no
// local search. Alpha is the RCL greediness (0 = pure greedy, 1 = pure
// random), defaulting to 0.3; RCLSize is clamped to a minimum of 1.
type GRASPSelector struct {
	Alpha   float64
	RCLSize int
}

func (GRASPSelector) algorithmSelector() {}

func (s GRASPSelector) Name() string {
	return fmt.Sprintf("grasp(alpha=%.2f,rcl=%d)", s.Alpha, clampMin(s.RCLSize, 1))
}

// MultiStartSelector wraps a Generator with Starts independent restarts,
// improving each with LocalSearch and keeping the best one under the
// local search's solution comparator.
type MultiStartSelector struct {
	Starts        int
	Generator     AlgorithmSelector
	LocalSearch   NeighborhoodSelector
	MaxIterations int
}

func (MultiStartSelector) algorithmSelector() {}

func (s MultiStartSelector) Name() string {
	return fmt.Sprintf("multistart(starts=%d,gen=%s)", clampMin(s.Starts, 1), nameOrDefault(s.Generator))
}

// GVNSSelector is General Variable Neighborhood Search: a Generator
// followed by a variable-neighborhood descent over Neighborhoods,
// interleaved with a shake step.
type GVNSSelector struct {
	MaxIterations  int
	Generator      AlgorithmSelector
	Neighborhoods  []NeighborhoodSelector
	ShakeStrength  int
	NoImproveLimit int
}

func (GVNSSelector) algorithmSelector() {}

func (s GVNSSelector) Name() string {
	return fmt.Sprintf("gvns(iterations=%d,gen=%s)", clampMin(s.MaxIterations, 1), nameOrDefault(s.Generator))
}

func nameOrDefault(sel AlgorithmSelector) string {
	if sel == nil {
		return GreedySelector{}.Name()
	}
	return sel.Name()
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

// NeighborhoodSelector is a closed sum type of the five Phase 1
// neighborhood operators, each parameterized by MaxIterations (the
// CVLocalSearch driver's own repeat-until-no-improvement cap) and
// FirstImprovement (accept the first improving move found instead of the
// best).
type NeighborhoodSelector interface {
	neighborhoodSelector()
	build() localsearch.Neighborhood
}

// TaskReinsertionWithinRouteSelector moves a single delivery task to a
// different position within the same route.
type TaskReinsertionWithinRouteSelector struct{ FirstImprovement bool }

func (TaskReinsertionWithinRouteSelector) neighborhoodSelector() {}
func (s TaskReinsertionWithinRouteSelector) build() localsearch.Neighborhood {
	return &localsearch.TaskReinsertionWithinRoute{FirstImprovement: s.FirstImprovement}
}

// TaskReinsertionBetweenRoutesSelector moves a single delivery task from
// one route to a different route.
type TaskReinsertionBetweenRoutesSelector struct{ FirstImprovement bool }

func (TaskReinsertionBetweenRoutesSelector) neighborhoodSelector() {}
func (s TaskReinsertionBetweenRoutesSelector) build() localsearch.Neighborhood {
	return &localsearch.TaskReinsertionBetweenRoutes{FirstImprovement: s.FirstImprovement}
}

// TaskExchangeWithinRouteSelector swaps two delivery tasks within the same
// route.
type TaskExchangeWithinRouteSelector struct{ FirstImprovement bool }

func (TaskExchangeWithinRouteSelector) neighborhoodSelector() {}
func (s TaskExchangeWithinRouteSelector) build() localsearch.Neighborhood {
	return &localsearch.TaskExchangeWithinRoute{FirstImprovement: s.FirstImprovement}
}

// TaskExchangeBetweenRoutesSelector swaps two delivery tasks across two
// different routes.
type TaskExchangeBetweenRoutesSelector struct{ FirstImprovement bool }

func (TaskExchangeBetweenRoutesSelector) neighborhoodSelector() {}
func (s TaskExchangeBetweenRoutesSelector) build() localsearch.Neighborhood {
	return &localsearch.TaskExchangeBetweenRoutes{FirstImprovement: s.FirstImprovement}
}

// TwoOptSelector reverses a contiguous segment of a single route's visit
// order to shorten total duration.
type TwoOptSelector struct{ FirstImprovement bool }

func (TwoOptSelector) neighborhoodSelector() {}
func (s TwoOptSelector) build() localsearch.Neighborhood {
	return &localsearch.TwoOpt{FirstImprovement: s.FirstImprovement}
}

// DefaultNeighborhoods is the GVNS neighborhood order used by
// DefaultSolverOptions: reinsertion before exchange, within-route before
// between-routes, 2-opt last as a duration polish once the route-count
// objective has settled.
func DefaultNeighborhoods() []NeighborhoodSelector {
	return []NeighborhoodSelector{
		TaskReinsertionWithinRouteSelector{},
		TaskReinsertionBetweenRoutesSelector{},
		TaskExchangeWithinRouteSelector{},
		TaskExchangeBetweenRoutesSelector{},
		TwoOptSelector{},
	}
}

// SolverOptions configures a Solve run: the algorithm selector plus the
// cross-cutting seed, cache, and metrics wiring.
type SolverOptions struct {
	Algorithm AlgorithmSelector
	Seed      int64

	// UseCache, when true and Cache is non-nil, looks up and stores
	// solve results under the problem/algorithm/seed key.
	UseCache bool
	Cache    *cache.SolverCache
	Metrics  *metrics.Metrics
}

// DefaultSolverOptions returns GVNS over a GRASP generator with the
// default neighborhood order, matching the reference source's default
// algorithm configuration.
func DefaultSolverOptions() SolverOptions {
	return SolverOptions{
		Algorithm: GVNSSelector{
			MaxIterations:  50,
			Generator:      GRASPSelector{Alpha: 0.3, RCLSize: 5},
			Neighborhoods:  DefaultNeighborhoods(),
			ShakeStrength:  1,
			NoImproveLimit: 10,
		},
		Seed: 1,
	}
}

func buildGenerator(sel AlgorithmSelector, seed int64) generator.Generator {
	switch g := sel.(type) {
	case GRASPSelector:
		return generator.NewGRASPGenerator(g.Alpha, g.RCLSize, seed)
	default:
		return generator.NewGreedyGenerator()
	}
}

// SolvePhase1 builds and improves a CV-only solution according to opts.
func SolvePhase1(ctx context.Context, p *problem.Problem, opts SolverOptions) (*route.Solution, error) {
	switch sel := opts.Algorithm.(type) {
	case GreedySelector:
		return generator.NewGreedyGenerator().Generate(p)

	case GRASPSelector:
		return generator.NewGRASPGenerator(sel.Alpha, sel.RCLSize, opts.Seed).Generate(p)

	case MultiStartSelector:
		gen := buildGenerator(sel.Generator, opts.Seed)
		ns := sel.LocalSearch
		if ns == nil {
			ns = TaskReinsertionWithinRouteSelector{}
		}
		search := localsearch.NewCVLocalSearch(ns.build(), sel.MaxIterations)
		ms := localsearch.NewMultiStart(gen, search, sel.Starts)
		return ms.Solve(ctx, p)

	case GVNSSelector:
		if len(sel.Neighborhoods) == 0 {
			return nil, apperror.New(apperror.CodeInvalidArgument, "GVNS requires a non-empty neighborhood list")
		}
		gen := buildGenerator(sel.Generator, opts.Seed)
		neighborhoods := make([]localsearch.Neighborhood, len(sel.Neighborhoods))
		for i, ns := range sel.Neighborhoods {
			neighborhoods[i] = ns.build()
		}
		gvns := localsearch.NewGVNS(gen, neighborhoods, sel.MaxIterations, sel.ShakeStrength, sel.NoImproveLimit, opts.Seed)
		return gvns.Solve(ctx, p)

	default:
		return nil, apperror.New(apperror.CodeInvalidArgument, fmt.Sprintf("unrecognized algorithm selector %T", opts.Algorithm))
	}
}

// SolvePhase2 completes a Phase 1 solution with TV routes.
func SolvePhase2(ctx context.Context, p *problem.Problem, phase1 *route.Solution) (*route.Solution, error) {
	s := scheduler.NewGreedyTVScheduler()
	return s.Schedule(ctx, p, phase1)
}

// Solve runs Phase 1 then Phase 2 end to end, optionally reading from and
// writing to a SolverCache.
func Solve(ctx context.Context, p *problem.Problem, opts SolverOptions) (*route.Solution, error) {
	start := time.Now()
	algName := opts.Algorithm.Name()

	if opts.Metrics != nil {
		opts.Metrics.SolvesInFlight.Start(algName)
		defer opts.Metrics.SolvesInFlight.End(algName)
	}

	if opts.UseCache && opts.Cache != nil {
		if cached, ok, err := opts.Cache.Get(ctx, p, algName, opts.Seed); err != nil {
			logger.Warn("solve cache lookup failed", "error", err)
		} else if ok {
			if opts.Metrics != nil {
				opts.Metrics.RecordCacheHit("solve")
			}
			logger.Debug("solve cache hit", "algorithm", algName, "seed", opts.Seed)
			return solutionFromCache(p, cached)
		} else if opts.Metrics != nil {
			opts.Metrics.RecordCacheMiss("solve")
		}
	}

	var phase1Timer, phase2Timer *metrics.Timer
	if opts.Metrics != nil {
		phase1Timer = opts.Metrics.StartPhaseTimer(algName, "phase1")
	}
	phase1, err := SolvePhase1(ctx, p, opts)
	if phase1Timer != nil {
		phase1Timer.ObserveDuration()
	}
	if err != nil {
		recordFailure(opts, algName, start)
		if apperror.Code(err) == apperror.CodeTimeout {
			return phase1, apperror.Wrap(err, apperror.CodeTimeout, "vrpt: phase 1 canceled, returning best solution found so far")
		}
		return nil, fmt.Errorf("vrpt: phase 1: %w", err)
	}
	logger.Info("solve_phase1 completed", "algorithm", algName, "cv_routes", phase1.CVCount(), "zones_visited", phase1.VisitedZones(p))

	if opts.Metrics != nil {
		phase2Timer = opts.Metrics.StartPhaseTimer(algName, "phase2")
	}
	solution, err := SolvePhase2(ctx, p, phase1)
	if phase2Timer != nil {
		phase2Timer.ObserveDuration()
	}
	if err != nil {
		recordFailure(opts, algName, start)
		if apperror.Code(err) == apperror.CodeTimeout {
			return solution, apperror.Wrap(err, apperror.CodeTimeout, "vrpt: phase 2 canceled, returning best solution found so far")
		}
		return nil, fmt.Errorf("vrpt: phase 2: %w", err)
	}
	logger.Info("solve_phase2 completed", "algorithm", algName, "tv_routes", solution.TVCount())

	duration := time.Since(start)
	if opts.Metrics != nil {
		totalWaste := solution.TotalWasteCollected()
		opts.Metrics.RecordSolveOperation(algName, true, duration, solution.CVCount(), solution.TVCount(), solution.VisitedZones(p), totalWaste.Value())
	}

	if opts.UseCache && opts.Cache != nil {
		if err := opts.Cache.Set(ctx, p, algName, opts.Seed, solution, duration, 0); err != nil {
			logger.Warn("solve cache write failed", "error", err)
		}
	}

	return solution, nil
}

func recordFailure(opts SolverOptions, algName string, start time.Time) {
	if opts.Metrics != nil {
		opts.Metrics.RecordSolveOperation(algName, false, time.Since(start), 0, 0, 0, 0)
	}
}

// solutionFromCache re-derives a feasibility-checked Solution for a cache
// hit by replaying the cached location-id sequences through the normal
// route construction path, rather than trusting the flattened summary: a
// cache hit must produce a result indistinguishable from a fresh solve.
func solutionFromCache(p *problem.Problem, cached *cache.CachedSolveResult) (*route.Solution, error) {
	sol := route.NewSolution()

	for _, cv := range cached.Solution.CVRoutes {
		r := route.NewCVRoute(cv.VehicleID, p.Params().CVCapacity, p.Params().CVMaxDuration)
		for _, id := range cv.LocationIDs {
			if err := r.AddLocation(id, p); err != nil {
				return nil, fmt.Errorf("vrpt: replaying cached CV route %s: %w", cv.VehicleID, err)
			}
		}
		sol.CVRoutes = append(sol.CVRoutes, r)
	}

	for _, tv := range cached.Solution.TVRoutes {
		r := route.NewTVRoute(tv.VehicleID, p.Params().TVCapacity, p.Params().TVMaxDuration)
		lastID := p.Landfill().ID()
		for _, id := range tv.LocationIDs {
			loc, ok := p.Location(id)
			if !ok {
				return nil, fmt.Errorf("vrpt: replaying cached TV route %s: unknown location %s", tv.VehicleID, id)
			}
			if loc.Role() == problem.RoleSWTS && id != lastID {
				deliveries := pendingDeliveries(sol, id)
				if len(deliveries) > 0 {
					if _, err := r.AddPickup(id, deliveries[0].ArrivalTime, deliveries[0].Amount, p); err != nil {
						return nil, fmt.Errorf("vrpt: replaying cached TV pickup at %s: %w", id, err)
					}
					lastID = id
					continue
				}
			}
			if _, err := r.AddLocation(id, p); err != nil {
				return nil, fmt.Errorf("vrpt: replaying cached TV route %s: %w", tv.VehicleID, err)
			}
			lastID = id
		}
		sol.TVRoutes = append(sol.TVRoutes, r)
	}

	sol.Complete = cached.Solution.Complete
	return sol, nil
}

func pendingDeliveries(sol *route.Solution, swtsID string) []route.DeliveryTask {
	var matches []route.DeliveryTask
	for _, r := range sol.CVRoutes {
		for _, d := range r.Deliveries() {
			if d.SWTSID == swtsID {
				matches = append(matches, d)
			}
		}
	}
	return matches
}

// BenchmarkInstance names a Problem for reporting purposes; Problem itself
// carries no name, staying a pure value object per internal/problem.
type BenchmarkInstance struct {
	Name    string
	Problem *problem.Problem
}

// BenchmarkRecord is one (instance, run) outcome.
type BenchmarkRecord struct {
	InstanceName  string
	Algorithm     string
	ZoneCount     int
	Run           int
	CVCount       int
	TVCount       int
	ZonesVisited  int
	TotalDuration time.Duration
	TotalWaste    float64
	WallClock     time.Duration
	Err           error
}

// Benchmark runs Solve runsPerInstance times against every instance with
// the given algorithm, seeding each run deterministically from its run
// index, and returns one record per (instance, run) pair. Runs execute
// concurrently; the returned slice preserves instance order, then run
// order within an instance.
func Benchmark(ctx context.Context, instances []BenchmarkInstance, algorithm AlgorithmSelector, runsPerInstance int) []BenchmarkRecord {
	if runsPerInstance < 1 {
		runsPerInstance = 1
	}

	total := len(instances) * runsPerInstance
	records := make([]BenchmarkRecord, total)
	done := make(chan int, total)

	for i, inst := range instances {
		for run := 0; run < runsPerInstance; run++ {
			idx := i*runsPerInstance + run
			go func(idx int, inst BenchmarkInstance, run int) {
				opts := SolverOptions{Algorithm: algorithm, Seed: int64(run) + 1}
				wallStart := time.Now()
				sol, err := Solve(ctx, inst.Problem, opts)
				rec := BenchmarkRecord{
					InstanceName: inst.Name,
					Algorithm:    algorithm.Name(),
					ZoneCount:    len(inst.Problem.Zones()),
					Run:          run,
					WallClock:    time.Since(wallStart),
					Err:          err,
				}
				if sol != nil {
					rec.CVCount = sol.CVCount()
					rec.TVCount = sol.TVCount()
					rec.ZonesVisited = sol.VisitedZones(inst.Problem)
					rec.TotalDuration = time.Duration(sol.TotalCVDuration().Nanoseconds())
					rec.TotalWaste = sol.TotalWasteCollected().Value()
				}
				records[idx] = rec
				done <- idx
			}(idx, inst, run)
		}
	}

	for range records {
		<-done
	}

	return records
}

// NewProblem is a thin convenience wrapper around problem.New, wiring in
// the K-D-tree spatial index this package ships with.
func NewProblem(locations []problem.Location, params problem.FleetParameters) (*problem.Problem, error) {
	return problem.New(locations, params, spatial.NewIndex)
}
