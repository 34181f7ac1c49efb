package localsearch

import (
	"context"
	"testing"

	"vrpt/internal/generator"
	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/internal/route"
	"vrpt/internal/spatial"
)

func localSearchTestProblem(t *testing.T) *problem.Problem {
	t.Helper()
	locations := []problem.Location{
		problem.NewLocation("depot", 0, 0, problem.RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("landfill", 1000, 1000, problem.RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("swts1", 60, 0, problem.RoleSWTS, "SWTS 1", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("zone1", 10, 0, problem.RoleCollectionZone, "Zone 1", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
		problem.NewLocation("zone2", 20, 0, problem.RoleCollectionZone, "Zone 2", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
		problem.NewLocation("zone3", 30, 0, problem.RoleCollectionZone, "Zone 3", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
		problem.NewLocation("zone4", 40, 0, problem.RoleCollectionZone, "Zone 4", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
	}
	params := problem.FleetParameters{
		CVCapacity:    quantity.MustCapacity(20),
		TVCapacity:    quantity.MustCapacity(50),
		CVMaxDuration: quantity.MustDuration(8, quantity.Hours),
		TVMaxDuration: quantity.MustDuration(10, quantity.Hours),
		MaxCVFleet:    0,
		VehicleSpeed:  quantity.MustSpeed(10),
		Epsilon:       quantity.MustDuration(1, quantity.Seconds),
	}
	p, err := problem.New(locations, params, spatial.NewIndex)
	if err != nil {
		t.Fatalf("problem.New: %v", err)
	}
	return p
}

// scrambledInitialSolution builds a deliberately suboptimal single route
// by visiting zones out of spatial order, giving 2-opt and reinsertion
// something to improve.
func scrambledInitialSolution(t *testing.T, p *problem.Problem) *route.Solution {
	t.Helper()
	r := route.NewCVRoute("CV1", p.Params().CVCapacity, p.Params().CVMaxDuration)
	for _, id := range []string{"zone3", "zone1", "zone4", "zone2", "swts1"} {
		if err := r.AddLocation(id, p); err != nil {
			t.Fatalf("AddLocation %s: %v", id, err)
		}
	}
	sol := route.NewSolution()
	sol.CVRoutes = append(sol.CVRoutes, r)
	return sol
}

func TestIsBetterSolution_FewerVehiclesWinsOverCap(t *testing.T) {
	current := solutionMetrics{cvCount: 5, zonesCount: 4, totalDuration: quantity.MustDuration(100, quantity.Seconds)}
	candidate := solutionMetrics{cvCount: 3, zonesCount: 4, totalDuration: quantity.MustDuration(100, quantity.Seconds)}

	if !isBetterSolution(3, current, candidate) {
		t.Error("expected candidate under the cap to beat current over the cap")
	}
}

func TestIsBetterSolution_MoreZonesWinsAtEqualVehicles(t *testing.T) {
	current := solutionMetrics{cvCount: 2, zonesCount: 3, totalDuration: quantity.MustDuration(100, quantity.Seconds)}
	candidate := solutionMetrics{cvCount: 2, zonesCount: 4, totalDuration: quantity.MustDuration(200, quantity.Seconds)}

	if !isBetterSolution(0, current, candidate) {
		t.Error("expected candidate visiting more zones to win at equal vehicle count")
	}
}

func TestIsBetterSolution_ShorterDurationWinsAtEqualVehiclesAndZones(t *testing.T) {
	current := solutionMetrics{cvCount: 2, zonesCount: 4, totalDuration: quantity.MustDuration(200, quantity.Seconds)}
	candidate := solutionMetrics{cvCount: 2, zonesCount: 4, totalDuration: quantity.MustDuration(100, quantity.Seconds)}

	if !isBetterSolution(0, current, candidate) {
		t.Error("expected shorter-duration candidate to win when vehicles and zones tie")
	}
}

func TestIsBetterSolution_RejectsWorseCandidate(t *testing.T) {
	current := solutionMetrics{cvCount: 2, zonesCount: 4, totalDuration: quantity.MustDuration(100, quantity.Seconds)}
	candidate := solutionMetrics{cvCount: 2, zonesCount: 4, totalDuration: quantity.MustDuration(200, quantity.Seconds)}

	if isBetterSolution(0, current, candidate) {
		t.Error("expected a longer-duration candidate to lose")
	}
}

func TestTwoOpt_NeverIncreasesDuration(t *testing.T) {
	p := localSearchTestProblem(t)
	sol := scrambledInitialSolution(t, p)
	before := metricsOf(p, sol)

	op := &TwoOpt{}
	improved, err := op.SearchNeighborhood(context.Background(), p, sol)
	if err != nil {
		t.Fatalf("SearchNeighborhood: %v", err)
	}
	after := metricsOf(p, improved)

	if after.totalDuration.GreaterThan(before.totalDuration) {
		t.Errorf("expected 2-opt to never worsen duration: before %v after %v", before.totalDuration.Seconds(), after.totalDuration.Seconds())
	}
}

func TestCVLocalSearch_ConvergesAndStaysValid(t *testing.T) {
	p := localSearchTestProblem(t)
	sol := scrambledInitialSolution(t, p)

	ls := NewCVLocalSearch(&TwoOpt{}, 50)
	improved, err := ls.Improve(context.Background(), p, sol)
	if err != nil {
		t.Fatalf("Improve: %v", err)
	}

	if !improved.IsValid(p) {
		t.Error("expected improved solution to remain valid")
	}
	if improved.VisitedZones(p) != sol.VisitedZones(p) {
		t.Error("expected local search to preserve zone coverage")
	}
}

func TestMultiStart_ReturnsValidSolution(t *testing.T) {
	p := localSearchTestProblem(t)
	gen := generator.NewGreedyGenerator()
	search := NewCVLocalSearch(&TaskReinsertionWithinRoute{}, 20)
	ms := NewMultiStart(gen, search, 3)

	sol, err := ms.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !sol.IsValid(p) {
		t.Error("expected multi-start result to be valid")
	}
	if sol.VisitedZones(p) != len(p.Zones()) {
		t.Errorf("expected all zones visited, got %d/%d", sol.VisitedZones(p), len(p.Zones()))
	}
}

func TestGVNS_ReturnsValidSolutionAndIsDeterministic(t *testing.T) {
	p := localSearchTestProblem(t)

	run := func(seed int64) *route.Solution {
		gen := generator.NewGRASPGenerator(0.3, 3, seed)
		neighborhoods := []Neighborhood{&TaskReinsertionWithinRoute{}, &TwoOpt{}}
		gvns := NewGVNS(gen, neighborhoods, 5, 1, 0, seed)
		sol, err := gvns.Solve(context.Background(), p)
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		return sol
	}

	sol1 := run(11)
	sol2 := run(11)

	if !sol1.IsValid(p) {
		t.Error("expected GVNS result to be valid")
	}
	if sol1.CVCount() != sol2.CVCount() {
		t.Errorf("expected same seed to reproduce the same CV count, got %d and %d", sol1.CVCount(), sol2.CVCount())
	}
}

func TestGVNS_NeverUsesMoreRoutesThanGreedy(t *testing.T) {
	p := localSearchTestProblem(t)

	greedy, err := generator.NewGreedyGenerator().Generate(p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	gen := generator.NewGRASPGenerator(0.3, 3, 7)
	neighborhoods := []Neighborhood{&TaskReinsertionWithinRoute{}, &TaskExchangeWithinRoute{}, &TwoOpt{}}
	gvns := NewGVNS(gen, neighborhoods, 20, 1, 5, 7)
	improved, err := gvns.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if !improved.IsValid(p) {
		t.Error("expected GVNS result to be valid")
	}
	if improved.CVCount() > greedy.CVCount() {
		t.Errorf("expected GVNS to never need more CV routes than greedy: greedy=%d gvns=%d", greedy.CVCount(), improved.CVCount())
	}
}

func TestGVNS_ShakeIsNoOpOnASingleRoute(t *testing.T) {
	p := localSearchTestProblem(t)
	sol := scrambledInitialSolution(t, p)

	gvns := NewGVNS(generator.NewGreedyGenerator(), []Neighborhood{&TwoOpt{}}, 1, 3, 1, 1)
	shaken, err := gvns.shake(p, sol)
	if err != nil {
		t.Fatalf("shake: %v", err)
	}

	if len(shaken.CVRoutes) != len(sol.CVRoutes) {
		t.Fatalf("expected shake to preserve route count on a single-route solution, got %d want %d", len(shaken.CVRoutes), len(sol.CVRoutes))
	}
	want := sol.CVRoutes[0].LocationIDs()
	got := shaken.CVRoutes[0].LocationIDs()
	if !sameLength(got, want) {
		t.Fatalf("shake changed route length: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("shake altered a single-route solution at position %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestGVNS_NoNeighborhoodsFallsBackToGenerator(t *testing.T) {
	p := localSearchTestProblem(t)
	gen := generator.NewGreedyGenerator()
	gvns := NewGVNS(gen, nil, 5, 1, 0, 1)

	sol, err := gvns.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sol.VisitedZones(p) != len(p.Zones()) {
		t.Error("expected fallback generator solution to visit all zones")
	}
}
