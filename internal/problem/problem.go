// Package problem defines the immutable value objects the solver operates
// over: Location, LocationRole, and the Problem instance that owns them
// along with the fleet parameters.
package problem

import (
	"fmt"
	"sort"

	"vrpt/internal/quantity"
	"vrpt/pkg/apperror"
)

// LocationRole tags what kind of facility a Location represents.
type LocationRole int

// Supported roles. Exactly one Depot and one Landfill may exist per
// Problem; SWTS and CollectionZone may repeat.
const (
	RoleDepot LocationRole = iota
	RoleCollectionZone
	RoleSWTS
	RoleLandfill
)

// String renders the role name, used in error messages and logging.
func (r LocationRole) String() string {
	switch r {
	case RoleDepot:
		return "depot"
	case RoleCollectionZone:
		return "collection_zone"
	case RoleSWTS:
		return "swts"
	case RoleLandfill:
		return "landfill"
	default:
		return "unknown"
	}
}

// Location is an immutable point on the map: identity, planar coordinates,
// a role, a display name, and — for collection zones only — a non-zero
// service time and waste amount.
type Location struct {
	id          string
	x, y        float64
	role        LocationRole
	name        string
	serviceTime quantity.Duration
	wasteAmount quantity.Capacity
}

// NewLocation constructs a Location.
func NewLocation(id string, x, y float64, role LocationRole, name string, serviceTime quantity.Duration, wasteAmount quantity.Capacity) Location {
	return Location{
		id:          id,
		x:           x,
		y:           y,
		role:        role,
		name:        name,
		serviceTime: serviceTime,
		wasteAmount: wasteAmount,
	}
}

// ID returns the location's stable identifier.
func (l Location) ID() string { return l.id }

// X returns the location's x coordinate.
func (l Location) X() float64 { return l.x }

// Y returns the location's y coordinate.
func (l Location) Y() float64 { return l.y }

// Role returns the location's role.
func (l Location) Role() LocationRole { return l.role }

// Name returns the location's display name.
func (l Location) Name() string { return l.name }

// ServiceTime returns the time a vehicle spends at this location beyond
// travel time. Non-zero only for collection zones.
func (l Location) ServiceTime() quantity.Duration { return l.serviceTime }

// WasteAmount returns the waste a vehicle picks up by visiting this
// location. Non-zero only for collection zones.
func (l Location) WasteAmount() quantity.Capacity { return l.wasteAmount }

// FleetParameters carries the scalar parameters governing both vehicle
// classes.
type FleetParameters struct {
	CVCapacity    quantity.Capacity
	TVCapacity    quantity.Capacity
	CVMaxDuration quantity.Duration
	TVMaxDuration quantity.Duration
	MaxCVFleet    int
	VehicleSpeed  quantity.Speed
	Epsilon       quantity.Duration
}

// Problem is an immutable VRPT-SWTS instance: one Depot, one Landfill, one
// or more SWTS, one or more CollectionZones, and the fleet parameters
// governing feasibility. It owns the spatial index used for distance,
// travel-time, and nearest/k-nearest queries.
type Problem struct {
	locations map[string]Location
	depotID   string
	landfillID string
	swtsIDs   []string
	zoneIDs   []string

	params FleetParameters
	index  SpatialIndex
}

// SpatialIndex is the subset of internal/spatial.Index the Problem depends
// on, kept as an interface here so this package never imports spatial
// (spatial imports problem, not the other way around).
type SpatialIndex interface {
	Distance(fromID, toID string) (quantity.Distance, error)
	TravelTime(fromID, toID string) (quantity.Duration, error)
	Nearest(fromID string, role LocationRole) (string, bool, error)
	KNearest(fromID string, role LocationRole, k int) ([]string, error)
}

// New constructs a Problem from a flat list of locations and fleet
// parameters. It validates the location-role cardinality constraints
// (exactly one depot, exactly one landfill, at least one SWTS and one
// collection zone) and builds the spatial index via the supplied factory.
func New(locations []Location, params FleetParameters, buildIndex func([]Location, quantity.Speed) (SpatialIndex, error)) (*Problem, error) {
	if len(locations) == 0 {
		return nil, apperror.ErrEmptyLocationSet
	}

	p := &Problem{
		locations: make(map[string]Location, len(locations)),
		params:    params,
	}

	for _, loc := range locations {
		if _, exists := p.locations[loc.ID()]; exists {
			return nil, apperror.New(apperror.CodeInvalidArgument, fmt.Sprintf("problem: duplicate location id %q", loc.ID()))
		}
		p.locations[loc.ID()] = loc

		switch loc.Role() {
		case RoleDepot:
			if p.depotID != "" {
				return nil, apperror.New(apperror.CodeInvalidArgument, fmt.Sprintf("problem: more than one depot (%q, %q)", p.depotID, loc.ID()))
			}
			p.depotID = loc.ID()
		case RoleLandfill:
			if p.landfillID != "" {
				return nil, apperror.New(apperror.CodeInvalidArgument, fmt.Sprintf("problem: more than one landfill (%q, %q)", p.landfillID, loc.ID()))
			}
			p.landfillID = loc.ID()
		case RoleSWTS:
			p.swtsIDs = append(p.swtsIDs, loc.ID())
		case RoleCollectionZone:
			p.zoneIDs = append(p.zoneIDs, loc.ID())
		}
	}

	if p.depotID == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "problem: no depot present")
	}
	if p.landfillID == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "problem: no landfill present")
	}
	if len(p.swtsIDs) == 0 {
		return nil, apperror.New(apperror.CodeInvalidArgument, "problem: no SWTS present")
	}
	if len(p.zoneIDs) == 0 {
		return nil, apperror.New(apperror.CodeInvalidArgument, "problem: no collection zones present")
	}

	sort.Strings(p.swtsIDs)
	sort.Strings(p.zoneIDs)

	index, err := buildIndex(locations, params.VehicleSpeed)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.Code(err), "problem: building spatial index: "+err.Error())
	}
	p.index = index

	return p, nil
}

// Location returns the location with the given id.
func (p *Problem) Location(id string) (Location, bool) {
	loc, ok := p.locations[id]
	return loc, ok
}

// Depot returns the problem's single depot location.
func (p *Problem) Depot() Location { return p.locations[p.depotID] }

// Landfill returns the problem's single landfill location.
func (p *Problem) Landfill() Location { return p.locations[p.landfillID] }

// SWTS returns all transfer-station locations, in stable id order.
func (p *Problem) SWTS() []Location {
	result := make([]Location, 0, len(p.swtsIDs))
	for _, id := range p.swtsIDs {
		result = append(result, p.locations[id])
	}
	return result
}

// Zones returns all collection-zone locations, in stable id order.
func (p *Problem) Zones() []Location {
	result := make([]Location, 0, len(p.zoneIDs))
	for _, id := range p.zoneIDs {
		result = append(result, p.locations[id])
	}
	return result
}

// Params returns the fleet parameters governing feasibility.
func (p *Problem) Params() FleetParameters { return p.params }

// Distance returns the cached Euclidean distance between two locations.
func (p *Problem) Distance(fromID, toID string) (quantity.Distance, error) {
	return p.index.Distance(fromID, toID)
}

// TravelTime returns the cached travel time between two locations.
func (p *Problem) TravelTime(fromID, toID string) (quantity.Duration, error) {
	return p.index.TravelTime(fromID, toID)
}

// Nearest returns the nearest location of the given role to fromID.
func (p *Problem) Nearest(fromID string, role LocationRole) (string, bool, error) {
	return p.index.Nearest(fromID, role)
}

// KNearest returns up to k nearest locations of the given role to fromID.
func (p *Problem) KNearest(fromID string, role LocationRole, k int) ([]string, error) {
	return p.index.KNearest(fromID, role, k)
}
