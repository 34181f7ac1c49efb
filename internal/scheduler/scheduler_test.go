package scheduler

import (
	"context"
	"testing"

	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/internal/route"
	"vrpt/internal/spatial"
)

func schedulerTestProblem(t *testing.T, tvCapacity float64) *problem.Problem {
	t.Helper()
	locations := []problem.Location{
		problem.NewLocation("depot", 0, 0, problem.RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("landfill", 0, 100, problem.RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("swts1", 50, 0, problem.RoleSWTS, "SWTS 1", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("swts2", 50, 50, problem.RoleSWTS, "SWTS 2", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("zone1", 10, 0, problem.RoleCollectionZone, "Zone 1", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(4)),
		problem.NewLocation("zone2", 20, 0, problem.RoleCollectionZone, "Zone 2", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(4)),
	}
	params := problem.FleetParameters{
		CVCapacity:    quantity.MustCapacity(10),
		TVCapacity:    quantity.MustCapacity(tvCapacity),
		CVMaxDuration: quantity.MustDuration(8, quantity.Hours),
		TVMaxDuration: quantity.MustDuration(24, quantity.Hours),
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

// phase1Solution builds a single CV route visiting both zones and
// delivering its whole load to swts1, producing exactly one DeliveryTask.
func phase1Solution(t *testing.T, p *problem.Problem) *route.Solution {
	t.Helper()
	r := route.NewCVRoute("CV1", p.Params().CVCapacity, p.Params().CVMaxDuration)
	for _, id := range []string{"zone1", "zone2", "swts1"} {
		if err := r.AddLocation(id, p); err != nil {
			t.Fatalf("AddLocation %s: %v", id, err)
		}
	}
	sol := route.NewSolution()
	sol.CVRoutes = append(sol.CVRoutes, r)
	return sol
}

func TestGreedyTVScheduler_EmptyDeliveriesCompletesTrivially(t *testing.T) {
	p := schedulerTestProblem(t, 100)
	sol := route.NewSolution()
	sol.CVRoutes = append(sol.CVRoutes, route.NewCVRoute("CV1", p.Params().CVCapacity, p.Params().CVMaxDuration))

	s := NewGreedyTVScheduler()
	out, err := s.Schedule(context.Background(), p, sol)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !out.Complete {
		t.Error("expected Complete to be true")
	}
	if out.TVCount() != 0 {
		t.Errorf("expected no TV routes for a solution with no deliveries, got %d", out.TVCount())
	}
}

func TestGreedyTVScheduler_AssignsSingleDeliveryToOneTVRoute(t *testing.T) {
	p := schedulerTestProblem(t, 100)
	phase1 := phase1Solution(t, p)

	s := NewGreedyTVScheduler()
	out, err := s.Schedule(context.Background(), p, phase1)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if !out.Complete {
		t.Error("expected Complete to be true")
	}
	if out.TVCount() != 1 {
		t.Fatalf("expected exactly one TV route, got %d", out.TVCount())
	}
	if !out.IsValid(p) {
		t.Error("expected the scheduled solution to be valid")
	}

	tv := out.TVRoutes[0]
	if len(tv.Pickups()) != 1 {
		t.Fatalf("expected exactly one pickup recorded, got %d", len(tv.Pickups()))
	}
	if tv.Pickups()[0].SWTSID != "swts1" {
		t.Errorf("expected pickup at swts1, got %s", tv.Pickups()[0].SWTSID)
	}
}

func TestGreedyTVScheduler_RoutesEndAtLandfill(t *testing.T) {
	p := schedulerTestProblem(t, 100)
	phase1 := phase1Solution(t, p)

	s := NewGreedyTVScheduler()
	out, err := s.Schedule(context.Background(), p, phase1)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	for _, tv := range out.TVRoutes {
		ids := tv.LocationIDs()
		if len(ids) == 0 {
			continue
		}
		if got := ids[len(ids)-1]; got != p.Landfill().ID() {
			t.Errorf("expected TV route %s to end at the landfill, ended at %s", tv.VehicleID, got)
		}
	}
}

func TestGreedyTVScheduler_DoesNotMutatePhase1Input(t *testing.T) {
	p := schedulerTestProblem(t, 100)
	phase1 := phase1Solution(t, p)

	s := NewGreedyTVScheduler()
	if _, err := s.Schedule(context.Background(), p, phase1); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if phase1.Complete {
		t.Error("expected the original phase1 solution to remain untouched")
	}
	if phase1.TVCount() != 0 {
		t.Error("expected the original phase1 solution to gain no TV routes")
	}
}

func TestGreedyTVScheduler_OpensSecondRouteWhenCapacityExhausted(t *testing.T) {
	// Two 4-unit deliveries reach swts1 at the same time; the first fills a
	// TV of capacity 4, so the second needs a route of its own.
	p := schedulerTestProblem(t, 4)

	sol := route.NewSolution()
	for _, pair := range [][2]string{{"CV1", "zone1"}, {"CV2", "zone2"}} {
		r := route.NewCVRoute(pair[0], p.Params().CVCapacity, p.Params().CVMaxDuration)
		for _, id := range []string{pair[1], "swts1"} {
			if err := r.AddLocation(id, p); err != nil {
				t.Fatalf("AddLocation %s: %v", id, err)
			}
		}
		sol.CVRoutes = append(sol.CVRoutes, r)
	}

	s := NewGreedyTVScheduler()
	out, err := s.Schedule(context.Background(), p, sol)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !out.IsValid(p) {
		t.Error("expected the scheduled solution to remain valid under tight TV capacity")
	}
	if got := out.TVCount(); got != 2 {
		t.Errorf("TVCount = %d, want 2", got)
	}
}

// TestGreedyTVScheduler_ThreeSimultaneousFullLoadsOpenThreeTVRoutes mirrors
// the scenario where three deliveries arrive at the same SWTS at the same
// time, each carrying a full TV load: no single TV route can absorb more
// than one of them, so the scheduler must open exactly three.
func TestGreedyTVScheduler_ThreeSimultaneousFullLoadsOpenThreeTVRoutes(t *testing.T) {
	p := schedulerTestProblem(t, 4)

	sol := route.NewSolution()
	for i, vehicleID := range []string{"CV1", "CV2", "CV3"} {
		r := route.NewCVRoute(vehicleID, p.Params().CVCapacity, p.Params().CVMaxDuration)
		zoneID := "zone1"
		if i == 1 {
			zoneID = "zone2"
		}
		if err := r.AddLocation(zoneID, p); err != nil {
			t.Fatalf("AddLocation %s: %v", zoneID, err)
		}
		if err := r.AddLocation("swts1", p); err != nil {
			t.Fatalf("AddLocation swts1: %v", err)
		}
		sol.CVRoutes = append(sol.CVRoutes, r)
	}

	s := NewGreedyTVScheduler()
	out, err := s.Schedule(context.Background(), p, sol)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !out.IsValid(p) {
		t.Error("expected the scheduled solution to remain valid")
	}
	if got := out.TVCount(); got != 3 {
		t.Errorf("TVCount = %d, want 3 (one TV route per full-capacity delivery)", got)
	}
}

func TestGreedyTVScheduler_MultipleDeliveriesAllCollected(t *testing.T) {
	p := schedulerTestProblem(t, 100)

	r1 := route.NewCVRoute("CV1", p.Params().CVCapacity, p.Params().CVMaxDuration)
	for _, id := range []string{"zone1", "swts1"} {
		if err := r1.AddLocation(id, p); err != nil {
			t.Fatalf("AddLocation %s: %v", id, err)
		}
	}
	r2 := route.NewCVRoute("CV2", p.Params().CVCapacity, p.Params().CVMaxDuration)
	for _, id := range []string{"zone2", "swts2"} {
		if err := r2.AddLocation(id, p); err != nil {
			t.Fatalf("AddLocation %s: %v", id, err)
		}
	}
	sol := route.NewSolution()
	sol.CVRoutes = append(sol.CVRoutes, r1, r2)

	s := NewGreedyTVScheduler()
	out, err := s.Schedule(context.Background(), p, sol)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !out.IsValid(p) {
		t.Error("expected scheduled solution to be valid")
	}

	var totalPickedUp quantity.Capacity
	for _, tv := range out.TVRoutes {
		for _, pu := range tv.Pickups() {
			totalPickedUp = totalPickedUp.Add(pu.Amount)
		}
	}
	want := sol.TotalWasteCollected()
	if totalPickedUp.Value() != want.Value() {
		t.Errorf("expected all waste delivered to SWTS to be picked up by TVs: got %v want %v", totalPickedUp.Value(), want.Value())
	}
}
