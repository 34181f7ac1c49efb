package problem

import (
	"errors"
	"testing"

	"vrpt/internal/quantity"
)

type stubIndex struct{}

func (stubIndex) Distance(fromID, toID string) (quantity.Distance, error) {
	return quantity.MustDistance(1, quantity.Meters), nil
}
func (stubIndex) TravelTime(fromID, toID string) (quantity.Duration, error) {
	return quantity.MustDuration(1, quantity.Seconds), nil
}
func (stubIndex) Nearest(fromID string, role LocationRole) (string, bool, error) {
	return "", false, nil
}
func (stubIndex) KNearest(fromID string, role LocationRole, k int) ([]string, error) {
	return nil, nil
}

func stubBuildIndex(locations []Location, speed quantity.Speed) (SpatialIndex, error) {
	return stubIndex{}, nil
}

func validLocations() []Location {
	return []Location{
		NewLocation("depot", 0, 0, RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		NewLocation("landfill", 10, 0, RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		NewLocation("swts1", 5, 0, RoleSWTS, "SWTS 1", quantity.Zero, quantity.Capacity{}),
		NewLocation("zone1", 1, 0, RoleCollectionZone, "Zone 1", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
	}
}

func validParams() FleetParameters {
	return FleetParameters{
		CVCapacity:    quantity.MustCapacity(10),
		TVCapacity:    quantity.MustCapacity(10),
		CVMaxDuration: quantity.MustDuration(8, quantity.Hours),
		TVMaxDuration: quantity.MustDuration(24, quantity.Hours),
		VehicleSpeed:  quantity.MustSpeed(10),
		Epsilon:       quantity.MustDuration(1, quantity.Seconds),
	}
}

func TestNew_AcceptsValidProblem(t *testing.T) {
	p, err := New(validLocations(), validParams(), stubBuildIndex)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Depot().ID() != "depot" {
		t.Errorf("Depot().ID() = %q, want depot", p.Depot().ID())
	}
	if p.Landfill().ID() != "landfill" {
		t.Errorf("Landfill().ID() = %q, want landfill", p.Landfill().ID())
	}
	if len(p.SWTS()) != 1 {
		t.Errorf("len(SWTS()) = %d, want 1", len(p.SWTS()))
	}
	if len(p.Zones()) != 1 {
		t.Errorf("len(Zones()) = %d, want 1", len(p.Zones()))
	}
}

func TestNew_RejectsEmptyLocationSet(t *testing.T) {
	if _, err := New(nil, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for an empty location set")
	}
}

func TestNew_RejectsDuplicateID(t *testing.T) {
	locs := validLocations()
	locs = append(locs, NewLocation("depot", 2, 2, RoleCollectionZone, "Dup", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(1)))
	if _, err := New(locs, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for a duplicate location id")
	}
}

func TestNew_RejectsMultipleDepots(t *testing.T) {
	locs := validLocations()
	locs = append(locs, NewLocation("depot2", 2, 2, RoleDepot, "Second Depot", quantity.Zero, quantity.Capacity{}))
	if _, err := New(locs, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for a second depot")
	}
}

func TestNew_RejectsMultipleLandfills(t *testing.T) {
	locs := validLocations()
	locs = append(locs, NewLocation("landfill2", 2, 2, RoleLandfill, "Second Landfill", quantity.Zero, quantity.Capacity{}))
	if _, err := New(locs, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for a second landfill")
	}
}

func TestNew_RejectsMissingDepot(t *testing.T) {
	locs := []Location{
		NewLocation("landfill", 10, 0, RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		NewLocation("swts1", 5, 0, RoleSWTS, "SWTS 1", quantity.Zero, quantity.Capacity{}),
		NewLocation("zone1", 1, 0, RoleCollectionZone, "Zone 1", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
	}
	if _, err := New(locs, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for a missing depot")
	}
}

func TestNew_RejectsMissingSWTSOrZones(t *testing.T) {
	noSWTS := []Location{
		NewLocation("depot", 0, 0, RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		NewLocation("landfill", 10, 0, RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		NewLocation("zone1", 1, 0, RoleCollectionZone, "Zone 1", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(3)),
	}
	if _, err := New(noSWTS, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for a problem with no SWTS")
	}

	noZones := []Location{
		NewLocation("depot", 0, 0, RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		NewLocation("landfill", 10, 0, RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		NewLocation("swts1", 5, 0, RoleSWTS, "SWTS 1", quantity.Zero, quantity.Capacity{}),
	}
	if _, err := New(noZones, validParams(), stubBuildIndex); err == nil {
		t.Error("expected an error for a problem with no collection zones")
	}
}

func TestNew_PropagatesIndexBuildError(t *testing.T) {
	failingBuild := func(locations []Location, speed quantity.Speed) (SpatialIndex, error) {
		return nil, errors.New("index build failed")
	}
	if _, err := New(validLocations(), validParams(), failingBuild); err == nil {
		t.Error("expected the index build error to propagate")
	}
}

func TestLocation_LookupMissReturnsFalse(t *testing.T) {
	p, err := New(validLocations(), validParams(), stubBuildIndex)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.Location("nonexistent"); ok {
		t.Error("expected Location lookup of an unknown id to return ok=false")
	}
}

func TestSWTSAndZones_AreStableOrdered(t *testing.T) {
	locs := []Location{
		NewLocation("depot", 0, 0, RoleDepot, "Depot", quantity.Zero, quantity.Capacity{}),
		NewLocation("landfill", 10, 0, RoleLandfill, "Landfill", quantity.Zero, quantity.Capacity{}),
		NewLocation("swts_b", 5, 1, RoleSWTS, "SWTS B", quantity.Zero, quantity.Capacity{}),
		NewLocation("swts_a", 5, 0, RoleSWTS, "SWTS A", quantity.Zero, quantity.Capacity{}),
		NewLocation("zone_b", 1, 1, RoleCollectionZone, "Zone B", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(1)),
		NewLocation("zone_a", 1, 0, RoleCollectionZone, "Zone A", quantity.MustDuration(1, quantity.Minutes), quantity.MustCapacity(1)),
	}
	p, err := New(locs, validParams(), stubBuildIndex)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	swts := p.SWTS()
	if swts[0].ID() != "swts_a" || swts[1].ID() != "swts_b" {
		t.Errorf("SWTS() order = [%s, %s], want [swts_a, swts_b]", swts[0].ID(), swts[1].ID())
	}
	zones := p.Zones()
	if zones[0].ID() != "zone_a" || zones[1].ID() != "zone_b" {
		t.Errorf("Zones() order = [%s, %s], want [zone_a, zone_b]", zones[0].ID(), zones[1].ID())
	}
}
