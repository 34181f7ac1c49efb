package cache

import (
	"testing"

	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/internal/spatial"
)

func testHasherProblem(t *testing.T, locations []problem.Location) *problem.Problem {
	t.Helper()
	params := problem.FleetParameters{
		CVCapacity:    quantity.MustCapacity(100),
		TVCapacity:    quantity.MustCapacity(500),
		CVMaxDuration: quantity.MustDuration(8, quantity.Hours),
		TVMaxDuration: quantity.MustDuration(10, quantity.Hours),
		MaxCVFleet:    3,
		VehicleSpeed:  quantity.MustSpeed(13.9),
		Epsilon:       quantity.MustDuration(1, quantity.Seconds),
	}
	p, err := problem.New(locations, params, spatial.NewIndex)
	if err != nil {
		t.Fatalf("problem.New: %v", err)
	}
	return p
}

func baseHasherLocations() []problem.Location {
	return []problem.Location{
		problem.NewLocation("depot", 0, 0, problem.RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("landfill", 100, 100, problem.RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("swts1", 50, 50, problem.RoleSWTS, "SWTS 1", quantity.Zero, quantity.Capacity{}),
		problem.NewLocation("zone1", 10, 10, problem.RoleCollectionZone, "Zone 1", quantity.MustDuration(5, quantity.Minutes), quantity.MustCapacity(20)),
	}
}

func TestProblemHash_Nil(t *testing.T) {
	if got := ProblemHash(nil); got != "" {
		t.Errorf("ProblemHash(nil) = %q, want empty string", got)
	}
}

func TestProblemHash_SameProblemSameHash(t *testing.T) {
	p := testHasherProblem(t, baseHasherLocations())

	hash1 := ProblemHash(p)
	hash2 := ProblemHash(p)

	if hash1 != hash2 {
		t.Errorf("same problem should produce same hash: %v != %v", hash1, hash2)
	}
	if hash1 == "" {
		t.Error("expected non-empty hash")
	}
}

func TestProblemHash_DifferentProblemsDifferentHashes(t *testing.T) {
	p1 := testHasherProblem(t, baseHasherLocations())

	locs2 := baseHasherLocations()
	locs2[3] = problem.NewLocation("zone1", 10, 10, problem.RoleCollectionZone, "Zone 1", quantity.MustDuration(5, quantity.Minutes), quantity.MustCapacity(99))
	p2 := testHasherProblem(t, locs2)

	if ProblemHash(p1) == ProblemHash(p2) {
		t.Error("different problems should produce different hashes")
	}
}

func TestProblemHash_LocationOrderInvariant(t *testing.T) {
	locs := baseHasherLocations()
	reordered := []problem.Location{locs[3], locs[1], locs[0], locs[2]}

	p1 := testHasherProblem(t, locs)
	p2 := testHasherProblem(t, reordered)

	if ProblemHash(p1) != ProblemHash(p2) {
		t.Error("input order should not affect hash")
	}
}

func TestBuildSolveKey(t *testing.T) {
	key := BuildSolveKey("abc123", "gvns", 42)
	expected := "solve:gvns:abc123:42"
	if key != expected {
		t.Errorf("BuildSolveKey() = %v, want %v", key, expected)
	}
}

func TestBuildSolveKey_DifferentSeeds(t *testing.T) {
	k1 := BuildSolveKey("abc123", "gvns", 1)
	k2 := BuildSolveKey("abc123", "gvns", 2)
	if k1 == k2 {
		t.Error("different seeds should produce different keys")
	}
}

func TestQuickHash(t *testing.T) {
	data := []byte("test data")
	hash := QuickHash(data)

	if len(hash) != 64 { // SHA256 hex = 64 chars
		t.Errorf("QuickHash length = %d, want 64", len(hash))
	}

	hash2 := QuickHash(data)
	if hash != hash2 {
		t.Error("same data should produce same hash")
	}
}

func TestShortHash(t *testing.T) {
	data := []byte("test data")
	hash := ShortHash(data)

	if len(hash) != 16 {
		t.Errorf("ShortHash length = %d, want 16", len(hash))
	}
}
