// Package generator implements constructive heuristics that build an
// initial Phase 1 (CV routing) solution from scratch: a pure greedy
// nearest-neighbor generator and a GRASP generator with a restricted
// candidate list.
package generator

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"vrpt/internal/problem"
	"vrpt/internal/route"
)

// Generator builds an initial CV-only solution for a problem instance.
type Generator interface {
	Generate(p *problem.Problem) (*route.Solution, error)
	Name() string
}

type candidate struct {
	id       string
	distance float64
}

// sortedCandidates returns, from the current location, every entry in ids
// that the route can still feasibly visit, sorted by ascending distance.
func sortedCandidates(r *route.CVRoute, currentID string, ids []string, p *problem.Problem) ([]candidate, error) {
	var candidates []candidate
	for _, id := range ids {
		ok, err := r.CanVisit(id, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		dist, err := p.Distance(currentID, id)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{id: id, distance: dist.Meters()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })
	return candidates, nil
}

// restrictedCandidateList keeps the prefix of sorted candidates whose
// distance falls within alpha of the range [min, max], capped at rclSize.
func restrictedCandidateList(candidates []candidate, alpha float64, rclSize int) []candidate {
	if len(candidates) == 0 {
		return nil
	}
	minDist := candidates[0].distance
	maxDist := candidates[len(candidates)-1].distance
	threshold := minDist + alpha*(maxDist-minDist)

	var rcl []candidate
	for _, c := range candidates {
		if c.distance > threshold {
			break
		}
		rcl = append(rcl, c)
		if len(rcl) >= rclSize {
			break
		}
	}
	return rcl
}

// selectFunc picks the next location id to visit from candidates (sorted
// ids, not yet filtered), or "" if none can be visited.
type selectFunc func(r *route.CVRoute, currentID string, ids []string) (string, error)

// buildRoute runs the shared grow/detour/finalize loop: repeatedly select
// a zone until none remain feasible, detouring through an SWTS when the
// vehicle is loaded and no zone is directly reachable, then closing the
// route at an SWTS if it ends loaded.
func buildRoute(vehicleID string, p *problem.Problem, unassigned map[string]struct{}, selectZone, selectSWTS selectFunc) (*route.CVRoute, error) {
	params := p.Params()
	r := route.NewCVRoute(vehicleID, params.CVCapacity, params.CVMaxDuration)
	currentID := p.Depot().ID()

	for {
		zoneIDs := make([]string, 0, len(unassigned))
		for id := range unassigned {
			zoneIDs = append(zoneIDs, id)
		}
		sort.Strings(zoneIDs)

		chosen, err := selectZone(r, currentID, zoneIDs)
		if err != nil {
			return nil, err
		}

		if chosen != "" {
			if err := r.AddLocation(chosen, p); err != nil {
				return nil, err
			}
			currentID = chosen
			delete(unassigned, chosen)
			continue
		}

		if !r.CurrentLoad().IsZero() {
			swtsIDs := make([]string, 0)
			for _, loc := range p.SWTS() {
				swtsIDs = append(swtsIDs, loc.ID())
			}

			swtsChosen, err := selectSWTS(r, currentID, swtsIDs)
			if err != nil {
				return nil, err
			}
			if swtsChosen != "" {
				if err := r.AddLocation(swtsChosen, p); err != nil {
					return nil, err
				}
				currentID = swtsChosen
				continue
			}
		}

		break
	}

	if !r.IsEmpty() && !r.CurrentLoad().IsZero() {
		nearestSWTS, found, err := p.Nearest(currentID, problem.RoleSWTS)
		if err != nil {
			return nil, err
		}
		if found {
			if err := r.AddLocation(nearestSWTS, p); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

// generateRoutes is the outer loop shared by both generators: open a new
// vehicle route at a time, via buildRoute, until every zone is assigned or
// the CV fleet is exhausted.
func generateRoutes(p *problem.Problem, selectZone, selectSWTS selectFunc) (*route.Solution, error) {
	unassigned := make(map[string]struct{})
	for _, z := range p.Zones() {
		unassigned[z.ID()] = struct{}{}
	}

	sol := route.NewSolution()
	count := 1
	maxFleet := p.Params().MaxCVFleet

	for len(unassigned) > 0 {
		if maxFleet > 0 && count > maxFleet {
			return nil, fmt.Errorf("generator: exhausted CV fleet of size %d with %d zones unassigned", maxFleet, len(unassigned))
		}

		vehicleID := fmt.Sprintf("CV%d", count)
		count++

		r, err := buildRoute(vehicleID, p, unassigned, selectZone, selectSWTS)
		if err != nil {
			return nil, err
		}
		if r.IsEmpty() {
			return nil, fmt.Errorf("generator: built an empty route with %d zones still unassigned", len(unassigned))
		}
		sol.CVRoutes = append(sol.CVRoutes, r)
	}

	return sol, nil
}

// GreedyGenerator is Algorithm 1: pure nearest-neighbor construction, no
// randomization.
type GreedyGenerator struct{}

// NewGreedyGenerator constructs a GreedyGenerator.
func NewGreedyGenerator() *GreedyGenerator { return &GreedyGenerator{} }

// Name identifies the algorithm for logging and cache keys.
func (g *GreedyGenerator) Name() string { return "greedy" }

// Generate builds CV routes until every collection zone is assigned.
func (g *GreedyGenerator) Generate(p *problem.Problem) (*route.Solution, error) {
	selectNearest := func(r *route.CVRoute, currentID string, ids []string) (string, error) {
		candidates, err := sortedCandidates(r, currentID, ids, p)
		if err != nil {
			return "", err
		}
		if len(candidates) == 0 {
			return "", nil
		}
		return candidates[0].id, nil
	}
	return generateRoutes(p, selectNearest, selectNearest)
}

// GRASPGenerator builds CV routes with a restricted-candidate-list greedy
// randomized construction. Alpha 0.0 behaves like pure greedy; alpha 1.0
// widens the candidate list to the full feasible range before picking
// uniformly at random.
type GRASPGenerator struct {
	Alpha   float64
	RCLSize int
	rng     *rand.Rand
}

// NewGRASPGenerator constructs a GRASPGenerator with a deterministic seed,
// so that repeated runs against the same problem are reproducible.
func NewGRASPGenerator(alpha float64, rclSize int, seed int64) *GRASPGenerator {
	if rclSize < 1 {
		rclSize = 1
	}
	return &GRASPGenerator{
		Alpha:   alpha,
		RCLSize: rclSize,
		rng:     rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Name identifies the algorithm and its parameters for logging and cache
// keys.
func (g *GRASPGenerator) Name() string {
	return fmt.Sprintf("grasp(alpha=%.2f,rcl=%d)", g.Alpha, g.RCLSize)
}

// Generate builds CV routes until every collection zone is assigned.
func (g *GRASPGenerator) Generate(p *problem.Problem) (*route.Solution, error) {
	selectRCL := func(r *route.CVRoute, currentID string, ids []string) (string, error) {
		candidates, err := sortedCandidates(r, currentID, ids, p)
		if err != nil {
			return "", err
		}
		if len(candidates) == 0 {
			return "", nil
		}

		rcl := restrictedCandidateList(candidates, g.Alpha, g.RCLSize)
		if len(rcl) == 0 {
			return "", nil
		}
		if len(rcl) == 1 || g.Alpha == 0.0 {
			return rcl[0].id, nil
		}

		idx := g.rng.IntN(len(rcl))
		return rcl[idx].id, nil
	}
	return generateRoutes(p, selectRCL, selectRCL)
}
