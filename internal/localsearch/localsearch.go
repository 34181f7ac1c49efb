// Package localsearch implements Phase 1 neighborhood operators (2-opt,
// task reinsertion, task exchange), the CVLocalSearch driver that applies
// one operator repeatedly until it stops improving, and the two outer
// metaheuristics — MultiStart and GVNS — that wrap a generator and a
// sequence of operators.
package localsearch

import (
	"context"
	"math/rand/v2"

	"vrpt/internal/generator"
	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/internal/route"
	"vrpt/pkg/apperror"
)

// Neighborhood searches one move-type neighborhood of a solution and
// returns the best (or first-improving) neighbor found; if none improve
// on current, it returns current unchanged.
type Neighborhood interface {
	Name() string
	SearchNeighborhood(ctx context.Context, p *problem.Problem, current *route.Solution) (*route.Solution, error)

	// compare reports whether candidate is strictly better than current
	// under this operator's own comparator. The reference source splits
	// the comparator between 2-Opt (duration-minimizing) and the other
	// four operators (route-count-minimizing); this method is how each
	// Neighborhood keeps its own policy while CVLocalSearch's driver loop
	// stays generic.
	compare(maxCVVehicles int, current, candidate solutionMetrics) bool
}

type solutionMetrics struct {
	cvCount       int
	zonesCount    int
	totalDuration quantity.Duration
}

func metricsOf(p *problem.Problem, sol *route.Solution) solutionMetrics {
	return solutionMetrics{
		cvCount:       sol.CVCount(),
		zonesCount:    sol.VisitedZones(p),
		totalDuration: sol.TotalCVDuration(),
	}
}

// isBetterSolution mirrors the reference CVLocalSearch comparator: fewer
// vehicles than the fleet cap always wins over more; among solutions that
// respect (or equally violate) the cap, fewer vehicles wins; ties on
// vehicle count favor more zones visited, then shorter total duration.
func isBetterSolution(maxCVVehicles int, current, candidate solutionMetrics) bool {
	overCurrent := maxCVVehicles > 0 && current.cvCount > maxCVVehicles
	overCandidate := maxCVVehicles > 0 && candidate.cvCount > maxCVVehicles

	if overCurrent && !overCandidate {
		return true
	}
	if (overCurrent && candidate.cvCount < current.cvCount) ||
		(!overCurrent && candidate.cvCount < current.cvCount && !overCandidate) {
		return true
	}
	if current.cvCount == candidate.cvCount {
		if candidate.zonesCount > current.zonesCount {
			return true
		}
		if candidate.zonesCount == current.zonesCount && candidate.totalDuration.LessThan(current.totalDuration) {
			return true
		}
	}
	return false
}

// isBetterForDuration is 2-Opt's own comparator (documented separately from
// the richer lexicographic one above): it never uses more CV routes or drops
// zone coverage, and only accepts a strictly shorter total duration.
func isBetterForDuration(maxCVVehicles int, current, candidate solutionMetrics) bool {
	if maxCVVehicles > 0 && candidate.cvCount > maxCVVehicles {
		return false
	}
	return candidate.cvCount <= current.cvCount &&
		candidate.zonesCount >= current.zonesCount &&
		candidate.totalDuration.LessThan(current.totalDuration)
}

// rebuildCVRoute replays a location-id sequence through CanVisit/AddLocation,
// skipping any id that would violate capacity or duration — this is what
// lets neighborhood operators propose a reordered sequence without having
// to separately re-derive feasibility.
func rebuildCVRoute(vehicleID string, ids []string, p *problem.Problem) (*route.CVRoute, error) {
	params := p.Params()
	r := route.NewCVRoute(vehicleID, params.CVCapacity, params.CVMaxDuration)
	for _, id := range ids {
		ok, err := r.CanVisit(id, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := r.AddLocation(id, p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// endsUnloadedAtSWTS reports whether a rebuilt route is usable as a
// replacement: either empty, or ending with zero load (i.e. its last stop
// was an SWTS drop-off).
func endsUnloadedAtSWTS(r *route.CVRoute) bool {
	return r.IsEmpty() || r.CurrentLoad().IsZero()
}

func cloneRoutes(sol *route.Solution) []*route.CVRoute {
	routes := make([]*route.CVRoute, len(sol.CVRoutes))
	for i, r := range sol.CVRoutes {
		routes[i] = r.Clone()
	}
	return routes
}

func solutionWithRoutes(routes []*route.CVRoute) *route.Solution {
	sol := route.NewSolution()
	sol.CVRoutes = routes
	return sol
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// TwoOpt reverses a segment of a single route between two non-adjacent
// positions, looking for a shorter total duration.
type TwoOpt struct {
	FirstImprovement bool
}

func (n *TwoOpt) Name() string { return "two_opt" }

func (n *TwoOpt) compare(maxCVVehicles int, current, candidate solutionMetrics) bool {
	return isBetterForDuration(maxCVVehicles, current, candidate)
}

func (n *TwoOpt) SearchNeighborhood(ctx context.Context, p *problem.Problem, current *route.Solution) (*route.Solution, error) {
	best := current
	bestMetrics := metricsOf(p, best)
	maxVehicles := p.Params().MaxCVFleet

	for routeIdx, r := range current.CVRoutes {
		ids := r.LocationIDs()
		if len(ids) < 4 {
			continue
		}

		for i := 0; i < len(ids)-2; i++ {
			for j := i + 2; j < len(ids); j++ {
				if err := checkContext(ctx); err != nil {
					return nil, err
				}

				newIDs := make([]string, 0, len(ids))
				newIDs = append(newIDs, ids[:i+1]...)
				for k := j; k > i; k-- {
					newIDs = append(newIDs, ids[k])
				}
				newIDs = append(newIDs, ids[j+1:]...)

				newRoute, err := rebuildCVRoute(r.VehicleID, newIDs, p)
				if err != nil {
					return nil, err
				}
				if !endsUnloadedAtSWTS(newRoute) {
					continue
				}

				routes := cloneRoutes(current)
				routes[routeIdx] = newRoute
				candidate := solutionWithRoutes(routes)
				candidateMetrics := metricsOf(p, candidate)

				if n.compare(maxVehicles, bestMetrics, candidateMetrics) {
					best = candidate
					bestMetrics = candidateMetrics
					if n.FirstImprovement {
						return best, nil
					}
				}
			}
		}
	}

	return best, nil
}

// TaskReinsertionWithinRoute moves a single collection zone to a different
// position within the same route.
type TaskReinsertionWithinRoute struct {
	FirstImprovement bool
}

func (n *TaskReinsertionWithinRoute) Name() string { return "task_reinsertion_within_route" }

func (n *TaskReinsertionWithinRoute) compare(maxCVVehicles int, current, candidate solutionMetrics) bool {
	return isBetterSolution(maxCVVehicles, current, candidate)
}

func (n *TaskReinsertionWithinRoute) SearchNeighborhood(ctx context.Context, p *problem.Problem, current *route.Solution) (*route.Solution, error) {
	best := current
	bestMetrics := metricsOf(p, best)
	maxVehicles := p.Params().MaxCVFleet

	for routeIdx, r := range current.CVRoutes {
		ids := r.LocationIDs()
		if len(ids) < 2 {
			continue
		}

		for pos1, locID := range ids {
			loc, ok := p.Location(locID)
			if !ok || loc.Role() != problem.RoleCollectionZone {
				continue
			}

			for pos2 := 0; pos2 <= len(ids); pos2++ {
				if pos2 == pos1 || pos2 == pos1+1 {
					continue
				}
				if err := checkContext(ctx); err != nil {
					return nil, err
				}

				newIDs := make([]string, 0, len(ids)-1)
				for i, id := range ids {
					if i != pos1 {
						newIDs = append(newIDs, id)
					}
				}
				insertAt := pos2
				if pos2 > pos1 {
					insertAt = pos2 - 1
				}
				newIDs = append(newIDs[:insertAt], append([]string{locID}, newIDs[insertAt:]...)...)

				newRoute, err := rebuildCVRoute(r.VehicleID, newIDs, p)
				if err != nil {
					return nil, err
				}
				if !endsUnloadedAtSWTS(newRoute) {
					continue
				}

				routes := cloneRoutes(current)
				routes[routeIdx] = newRoute
				candidate := solutionWithRoutes(routes)
				candidateMetrics := metricsOf(p, candidate)

				if isBetterSolution(maxVehicles, bestMetrics, candidateMetrics) {
					best = candidate
					bestMetrics = candidateMetrics
					if n.FirstImprovement {
						return best, nil
					}
				}
			}
		}
	}

	return best, nil
}

// TaskReinsertionBetweenRoutes moves a single collection zone from one
// route to a position in a different route.
type TaskReinsertionBetweenRoutes struct {
	FirstImprovement bool
}

func (n *TaskReinsertionBetweenRoutes) Name() string { return "task_reinsertion_between_routes" }

func (n *TaskReinsertionBetweenRoutes) compare(maxCVVehicles int, current, candidate solutionMetrics) bool {
	return isBetterSolution(maxCVVehicles, current, candidate)
}

func (n *TaskReinsertionBetweenRoutes) SearchNeighborhood(ctx context.Context, p *problem.Problem, current *route.Solution) (*route.Solution, error) {
	best := current
	bestMetrics := metricsOf(p, best)
	maxVehicles := p.Params().MaxCVFleet

	for srcIdx, src := range current.CVRoutes {
		srcIDs := src.LocationIDs()

		for pos1, locID := range srcIDs {
			loc, ok := p.Location(locID)
			if !ok || loc.Role() != problem.RoleCollectionZone {
				continue
			}

			for dstIdx, dst := range current.CVRoutes {
				if dstIdx == srcIdx {
					continue
				}
				dstIDs := dst.LocationIDs()

				for pos2 := 0; pos2 <= len(dstIDs); pos2++ {
					if err := checkContext(ctx); err != nil {
						return nil, err
					}

					newSrcIDs := make([]string, 0, len(srcIDs)-1)
					for i, id := range srcIDs {
						if i != pos1 {
							newSrcIDs = append(newSrcIDs, id)
						}
					}

					newDstIDs := make([]string, 0, len(dstIDs)+1)
					newDstIDs = append(newDstIDs, dstIDs[:pos2]...)
					newDstIDs = append(newDstIDs, locID)
					newDstIDs = append(newDstIDs, dstIDs[pos2:]...)

					newSrc, err := rebuildCVRoute(src.VehicleID, newSrcIDs, p)
					if err != nil {
						return nil, err
					}
					newDst, err := rebuildCVRoute(dst.VehicleID, newDstIDs, p)
					if err != nil {
						return nil, err
					}
					if !endsUnloadedAtSWTS(newSrc) || !endsUnloadedAtSWTS(newDst) {
						continue
					}
					// reinsertion only helps if the destination route actually
					// keeps the moved zone — otherwise this is just a deletion
					if !containsID(newDst.LocationIDs(), locID) {
						continue
					}

					routes := cloneRoutes(current)
					routes[srcIdx] = newSrc
					routes[dstIdx] = newDst
					candidate := solutionWithRoutes(dropEmpty(routes))
					candidateMetrics := metricsOf(p, candidate)

					if isBetterSolution(maxVehicles, bestMetrics, candidateMetrics) {
						best = candidate
						bestMetrics = candidateMetrics
						if n.FirstImprovement {
							return best, nil
						}
					}
				}
			}
		}
	}

	return best, nil
}

// TaskExchangeWithinRoute swaps the positions of two collection zones
// within the same route.
type TaskExchangeWithinRoute struct {
	FirstImprovement bool
}

func (n *TaskExchangeWithinRoute) Name() string { return "task_exchange_within_route" }

func (n *TaskExchangeWithinRoute) compare(maxCVVehicles int, current, candidate solutionMetrics) bool {
	return isBetterSolution(maxCVVehicles, current, candidate)
}

func (n *TaskExchangeWithinRoute) SearchNeighborhood(ctx context.Context, p *problem.Problem, current *route.Solution) (*route.Solution, error) {
	best := current
	bestMetrics := metricsOf(p, best)
	maxVehicles := p.Params().MaxCVFleet

	for routeIdx, r := range current.CVRoutes {
		ids := r.LocationIDs()

		for i := 0; i < len(ids); i++ {
			locI, ok := p.Location(ids[i])
			if !ok || locI.Role() != problem.RoleCollectionZone {
				continue
			}
			for j := i + 1; j < len(ids); j++ {
				locJ, ok := p.Location(ids[j])
				if !ok || locJ.Role() != problem.RoleCollectionZone {
					continue
				}
				if err := checkContext(ctx); err != nil {
					return nil, err
				}

				newIDs := append([]string(nil), ids...)
				newIDs[i], newIDs[j] = newIDs[j], newIDs[i]

				newRoute, err := rebuildCVRoute(r.VehicleID, newIDs, p)
				if err != nil {
					return nil, err
				}
				if !endsUnloadedAtSWTS(newRoute) {
					continue
				}

				routes := cloneRoutes(current)
				routes[routeIdx] = newRoute
				candidate := solutionWithRoutes(routes)
				candidateMetrics := metricsOf(p, candidate)

				if isBetterSolution(maxVehicles, bestMetrics, candidateMetrics) {
					best = candidate
					bestMetrics = candidateMetrics
					if n.FirstImprovement {
						return best, nil
					}
				}
			}
		}
	}

	return best, nil
}

// TaskExchangeBetweenRoutes swaps one collection zone from one route with
// one collection zone from another route.
type TaskExchangeBetweenRoutes struct {
	FirstImprovement bool
}

func (n *TaskExchangeBetweenRoutes) Name() string { return "task_exchange_between_routes" }

func (n *TaskExchangeBetweenRoutes) compare(maxCVVehicles int, current, candidate solutionMetrics) bool {
	return isBetterSolution(maxCVVehicles, current, candidate)
}

func (n *TaskExchangeBetweenRoutes) SearchNeighborhood(ctx context.Context, p *problem.Problem, current *route.Solution) (*route.Solution, error) {
	best := current
	bestMetrics := metricsOf(p, best)
	maxVehicles := p.Params().MaxCVFleet

	for aIdx, a := range current.CVRoutes {
		aIDs := a.LocationIDs()
		for bIdx, b := range current.CVRoutes {
			if bIdx <= aIdx {
				continue
			}
			bIDs := b.LocationIDs()

			for i, aID := range aIDs {
				locA, ok := p.Location(aID)
				if !ok || locA.Role() != problem.RoleCollectionZone {
					continue
				}
				for j, bID := range bIDs {
					locB, ok := p.Location(bID)
					if !ok || locB.Role() != problem.RoleCollectionZone {
						continue
					}
					if err := checkContext(ctx); err != nil {
						return nil, err
					}

					newAIDs := append([]string(nil), aIDs...)
					newAIDs[i] = bID
					newBIDs := append([]string(nil), bIDs...)
					newBIDs[j] = aID

					newA, err := rebuildCVRoute(a.VehicleID, newAIDs, p)
					if err != nil {
						return nil, err
					}
					newB, err := rebuildCVRoute(b.VehicleID, newBIDs, p)
					if err != nil {
						return nil, err
					}
					if !endsUnloadedAtSWTS(newA) || !endsUnloadedAtSWTS(newB) {
						continue
					}

					routes := cloneRoutes(current)
					routes[aIdx] = newA
					routes[bIdx] = newB
					candidate := solutionWithRoutes(routes)
					candidateMetrics := metricsOf(p, candidate)

					if isBetterSolution(maxVehicles, bestMetrics, candidateMetrics) {
						best = candidate
						bestMetrics = candidateMetrics
						if n.FirstImprovement {
							return best, nil
						}
					}
				}
			}
		}
	}

	return best, nil
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func dropEmpty(routes []*route.CVRoute) []*route.CVRoute {
	kept := make([]*route.CVRoute, 0, len(routes))
	for _, r := range routes {
		if !r.IsEmpty() {
			kept = append(kept, r)
		}
	}
	return kept
}

// CVLocalSearch repeatedly applies a single Neighborhood's
// SearchNeighborhood until an iteration fails to improve on the best
// solution found so far, or MaxIterations is exhausted.
type CVLocalSearch struct {
	Neighborhood  Neighborhood
	MaxIterations int
}

// NewCVLocalSearch constructs a CVLocalSearch. A non-positive
// maxIterations falls back to 100, matching the reference default.
func NewCVLocalSearch(n Neighborhood, maxIterations int) *CVLocalSearch {
	if maxIterations <= 0 {
		maxIterations = 100
	}
	return &CVLocalSearch{Neighborhood: n, MaxIterations: maxIterations}
}

// Improve runs the driver loop described above, returning the best
// solution found.
func (ls *CVLocalSearch) Improve(ctx context.Context, p *problem.Problem, initial *route.Solution) (*route.Solution, error) {
	current := initial
	best := initial
	bestMetrics := metricsOf(p, best)
	maxVehicles := p.Params().MaxCVFleet

	for iteration := 0; iteration < ls.MaxIterations; iteration++ {
		if err := checkContext(ctx); err != nil {
			return best, err
		}

		neighbor, err := ls.Neighborhood.SearchNeighborhood(ctx, p, current)
		if err != nil {
			return nil, err
		}
		neighborMetrics := metricsOf(p, neighbor)

		if ls.Neighborhood.compare(maxVehicles, bestMetrics, neighborMetrics) {
			best = neighbor
			bestMetrics = neighborMetrics
			current = neighbor
		} else {
			break
		}
	}

	return best, nil
}

// MultiStart generates NumStarts independent initial solutions, improves
// each with Search, and keeps the best one under isBetterSolution.
type MultiStart struct {
	Generator generator.Generator
	Search    *CVLocalSearch
	NumStarts int
}

// NewMultiStart constructs a MultiStart. A non-positive numStarts falls
// back to 10, matching the reference default.
func NewMultiStart(gen generator.Generator, search *CVLocalSearch, numStarts int) *MultiStart {
	if numStarts <= 0 {
		numStarts = 10
	}
	return &MultiStart{Generator: gen, Search: search, NumStarts: numStarts}
}

// Solve runs the multi-start loop and returns the best improved solution.
func (m *MultiStart) Solve(ctx context.Context, p *problem.Problem) (*route.Solution, error) {
	var best *route.Solution

	for i := 0; i < m.NumStarts; i++ {
		if err := checkContext(ctx); err != nil {
			if best != nil {
				return best, apperror.Wrap(err, apperror.CodeTimeout, apperror.ErrTimedOut.Message)
			}
			return nil, err
		}

		initial, err := m.Generator.Generate(p)
		if err != nil {
			return nil, err
		}

		improved, err := m.Search.Improve(ctx, p, initial)
		if err != nil {
			if best != nil && ctx.Err() != nil {
				return best, apperror.Wrap(err, apperror.CodeTimeout, apperror.ErrTimedOut.Message)
			}
			return nil, err
		}

		if best == nil || isBetterSolution(p.Params().MaxCVFleet, metricsOf(p, best), metricsOf(p, improved)) {
			best = improved
		}
	}

	return best, nil
}

// GVNS is the General Variable Neighborhood Search metaheuristic: a
// variable neighborhood descent over Neighborhoods, interleaved with a
// shake step that perturbs the current solution to escape local optima.
type GVNS struct {
	Generator      generator.Generator
	Neighborhoods  []Neighborhood
	MaxIterations  int
	ShakeStrength  int
	NoImproveLimit int
	rng            *rand.Rand
}

// NewGVNS constructs a GVNS with a deterministic seed.
func NewGVNS(gen generator.Generator, neighborhoods []Neighborhood, maxIterations, shakeStrength, noImproveLimit int, seed int64) *GVNS {
	if maxIterations <= 0 {
		maxIterations = 50
	}
	if shakeStrength < 1 {
		shakeStrength = 1
	}
	return &GVNS{
		Generator:      gen,
		Neighborhoods:  neighborhoods,
		MaxIterations:  maxIterations,
		ShakeStrength:  shakeStrength,
		NoImproveLimit: noImproveLimit,
		rng:            rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0xbf58476d1ce4e5b9)),
	}
}

// Solve runs the GVNS main loop and returns the best solution found.
func (g *GVNS) Solve(ctx context.Context, p *problem.Problem) (*route.Solution, error) {
	if len(g.Neighborhoods) == 0 {
		return g.Generator.Generate(p)
	}

	current, err := g.Generator.Generate(p)
	if err != nil {
		return nil, err
	}
	best := current
	noImprove := 0

	for iteration := 0; iteration < g.MaxIterations; iteration++ {
		if err := checkContext(ctx); err != nil {
			return best, apperror.Wrap(err, apperror.CodeTimeout, apperror.ErrTimedOut.Message)
		}

		k := 0
		for k < len(g.Neighborhoods) {
			if err := checkContext(ctx); err != nil {
				return best, apperror.Wrap(err, apperror.CodeTimeout, apperror.ErrTimedOut.Message)
			}
			improved, err := g.Neighborhoods[k].SearchNeighborhood(ctx, p, current)
			if err != nil {
				if ctx.Err() != nil {
					return best, apperror.Wrap(err, apperror.CodeTimeout, apperror.ErrTimedOut.Message)
				}
				return nil, err
			}
			if improved.CVCount() < current.CVCount() {
				current = improved
				k = 0
			} else {
				k++
			}
		}

		if current.CVCount() < best.CVCount() {
			best = current
			noImprove = 0
		} else {
			noImprove++
		}

		if g.NoImproveLimit > 0 && noImprove >= g.NoImproveLimit {
			break
		}

		shaken, err := g.shake(p, current)
		if err != nil {
			return nil, err
		}
		current = shaken
	}

	return best, nil
}

// shake perturbs the current solution by swapping ShakeStrength pairs of
// collection zones between two randomly chosen routes, reverting to the
// original solution if any swap is infeasible.
func (g *GVNS) shake(p *problem.Problem, sol *route.Solution) (*route.Solution, error) {
	routes := cloneRoutes(sol)
	if len(routes) < 2 {
		return solutionWithRoutes(routes), nil
	}

	for s := 0; s < g.ShakeStrength; s++ {
		r1Idx := g.rng.IntN(len(routes))
		r2Idx := r1Idx
		for r2Idx == r1Idx {
			r2Idx = g.rng.IntN(len(routes))
		}

		zones1 := collectionZoneIDs(routes[r1Idx], p)
		zones2 := collectionZoneIDs(routes[r2Idx], p)
		if len(zones1) == 0 || len(zones2) == 0 {
			continue
		}

		zone1 := zones1[g.rng.IntN(len(zones1))]
		zone2 := zones2[g.rng.IntN(len(zones2))]

		newIDs1 := replaceID(routes[r1Idx].LocationIDs(), zone1, zone2)
		newIDs2 := replaceID(routes[r2Idx].LocationIDs(), zone2, zone1)

		newR1, err := rebuildCVRoute(routes[r1Idx].VehicleID, newIDs1, p)
		if err != nil {
			return nil, err
		}
		newR2, err := rebuildCVRoute(routes[r2Idx].VehicleID, newIDs2, p)
		if err != nil {
			return nil, err
		}
		if !sameLength(newR1.LocationIDs(), newIDs1) || !sameLength(newR2.LocationIDs(), newIDs2) {
			return solutionWithRoutes(cloneRoutes(sol)), nil // an id was dropped as infeasible
		}

		routes[r1Idx] = newR1
		routes[r2Idx] = newR2
	}

	return solutionWithRoutes(routes), nil
}

func collectionZoneIDs(r *route.CVRoute, p *problem.Problem) []string {
	var zones []string
	for _, id := range r.LocationIDs() {
		if loc, ok := p.Location(id); ok && loc.Role() == problem.RoleCollectionZone {
			zones = append(zones, id)
		}
	}
	return zones
}

func replaceID(ids []string, from, to string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id == from {
			out[i] = to
		} else {
			out[i] = id
		}
	}
	return out
}

func sameLength(a []string, b []string) bool { return len(a) == len(b) }
