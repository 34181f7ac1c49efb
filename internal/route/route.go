// Package route implements the route data model: CVRoute, TVRoute,
// DeliveryTask, and Solution, each carrying the invariants that make a
// route constructible only through admissible transitions.
package route

import (
	"fmt"
	"sort"

	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/pkg/apperror"
)

// DeliveryTask is the event "at arrival_time a CV unloaded amount at
// swts_id". Produced by CVRoute.AddLocation on an SWTS visit, consumed by
// Phase 2.
type DeliveryTask struct {
	Amount      quantity.Capacity
	SWTSID      string
	ArrivalTime quantity.Duration
}

// CVRoute is an ordered sequence of location ids implicitly starting at
// the depot, carrying a running load/duration and the delivery tasks
// generated by SWTS visits.
type CVRoute struct {
	VehicleID   string
	MaxCapacity quantity.Capacity
	MaxDuration quantity.Duration

	locationIDs  []string
	currentLoad  quantity.Capacity
	totalDuration quantity.Duration
	loadProfile  []quantity.Capacity
	timeProfile  []quantity.Duration
	deliveries   []DeliveryTask
}

// NewCVRoute constructs an empty CVRoute, with the (0, 0) initial profile
// entry already in place.
func NewCVRoute(vehicleID string, maxCapacity quantity.Capacity, maxDuration quantity.Duration) *CVRoute {
	return &CVRoute{
		VehicleID:    vehicleID,
		MaxCapacity:  maxCapacity,
		MaxDuration:  maxDuration,
		loadProfile:  []quantity.Capacity{{}},
		timeProfile:  []quantity.Duration{{}},
	}
}

// Clone returns a deep copy, used by local search operators that must
// mutate a candidate without affecting the caller's route.
func (r *CVRoute) Clone() *CVRoute {
	clone := &CVRoute{
		VehicleID:     r.VehicleID,
		MaxCapacity:   r.MaxCapacity,
		MaxDuration:   r.MaxDuration,
		currentLoad:   r.currentLoad,
		totalDuration: r.totalDuration,
	}
	clone.locationIDs = append([]string(nil), r.locationIDs...)
	clone.loadProfile = append([]quantity.Capacity(nil), r.loadProfile...)
	clone.timeProfile = append([]quantity.Duration(nil), r.timeProfile...)
	clone.deliveries = append([]DeliveryTask(nil), r.deliveries...)
	return clone
}

// LocationIDs returns the ordered sequence of visited non-depot location
// ids.
func (r *CVRoute) LocationIDs() []string { return r.locationIDs }

// CurrentLoad returns the load on board after the last step.
func (r *CVRoute) CurrentLoad() quantity.Capacity { return r.currentLoad }

// TotalDuration returns cumulative duration from the depot through the
// last entry.
func (r *CVRoute) TotalDuration() quantity.Duration { return r.totalDuration }

// Deliveries returns the ordered DeliveryTask list generated by SWTS
// visits.
func (r *CVRoute) Deliveries() []DeliveryTask { return r.deliveries }

// IsEmpty reports whether the route has not yet visited any location.
func (r *CVRoute) IsEmpty() bool { return len(r.locationIDs) == 0 }

// LastLocationID returns the last visited location id, or the depot id if
// the route is empty.
func (r *CVRoute) LastLocationID(p *problem.Problem) string {
	if len(r.locationIDs) == 0 {
		return p.Depot().ID()
	}
	return r.locationIDs[len(r.locationIDs)-1]
}

// ResidualCapacity returns how much more load the vehicle can take on.
func (r *CVRoute) ResidualCapacity() quantity.Capacity {
	return r.MaxCapacity.Sub(r.currentLoad)
}

// ResidualDuration returns how much route duration remains.
func (r *CVRoute) ResidualDuration() quantity.Duration {
	return r.MaxDuration.Sub(r.totalDuration)
}

// CanVisit is the conservative admissibility check from the route model:
// appending locationID must preserve the capacity invariant and leave
// enough remaining duration to still reach the depot, possibly via the
// nearest SWTS.
func (r *CVRoute) CanVisit(locationID string, p *problem.Problem) (bool, error) {
	loc, ok := p.Location(locationID)
	if !ok {
		return false, errLocationNotFound(locationID)
	}

	if loc.Role() == problem.RoleCollectionZone {
		newLoad := r.currentLoad.Add(loc.WasteAmount())
		if newLoad.GreaterThan(r.MaxCapacity) {
			return false, nil
		}
	}

	prevID := r.LastLocationID(p)
	travelTime, err := p.TravelTime(prevID, locationID)
	if err != nil {
		return false, err
	}

	totalTime := r.totalDuration.Add(travelTime)
	if loc.Role() == problem.RoleCollectionZone {
		totalTime = totalTime.Add(loc.ServiceTime())
	}

	var returnTime quantity.Duration
	if loc.Role() != problem.RoleSWTS {
		nearestSWTS, found, err := p.Nearest(locationID, problem.RoleSWTS)
		if err != nil {
			return false, err
		}
		if found {
			toSWTS, err := p.TravelTime(locationID, nearestSWTS)
			if err != nil {
				return false, err
			}
			swtsToDepot, err := p.TravelTime(nearestSWTS, p.Depot().ID())
			if err != nil {
				return false, err
			}
			returnTime = toSWTS.Add(swtsToDepot)
		} else {
			direct, err := p.TravelTime(locationID, p.Depot().ID())
			if err != nil {
				return false, err
			}
			returnTime = direct
		}
	} else {
		direct, err := p.TravelTime(locationID, p.Depot().ID())
		if err != nil {
			return false, err
		}
		returnTime = direct
	}

	return totalTime.Add(returnTime).LessThanOrEqual(r.MaxDuration), nil
}

// AddLocation appends locationID to the route, updating load, duration,
// and the load/time profiles. A SWTS visit records a DeliveryTask if
// current load is non-zero, then resets load to zero. The caller must
// have already confirmed CanVisit; AddLocation does not re-validate.
func (r *CVRoute) AddLocation(locationID string, p *problem.Problem) error {
	loc, ok := p.Location(locationID)
	if !ok {
		return errLocationNotFound(locationID)
	}

	prevID := r.LastLocationID(p)
	travelTime, err := p.TravelTime(prevID, locationID)
	if err != nil {
		return err
	}
	r.totalDuration = r.totalDuration.Add(travelTime)

	switch loc.Role() {
	case problem.RoleCollectionZone:
		r.currentLoad = r.currentLoad.Add(loc.WasteAmount())
		r.totalDuration = r.totalDuration.Add(loc.ServiceTime())
	case problem.RoleSWTS:
		if !r.currentLoad.IsZero() {
			r.deliveries = append(r.deliveries, DeliveryTask{
				Amount:      r.currentLoad,
				SWTSID:      locationID,
				ArrivalTime: r.totalDuration,
			})
		}
		r.currentLoad = quantity.Capacity{}
	}

	r.locationIDs = append(r.locationIDs, locationID)
	r.loadProfile = append(r.loadProfile, r.currentLoad)
	r.timeProfile = append(r.timeProfile, r.totalDuration)

	return nil
}

// IsValid re-audits the full profile: every load within capacity and total
// duration within the max.
func (r *CVRoute) IsValid() bool {
	for _, load := range r.loadProfile {
		if load.GreaterThan(r.MaxCapacity) {
			return false
		}
	}
	return r.totalDuration.LessThanOrEqual(r.MaxDuration)
}

// TVRoute is an ordered sequence of location ids implicitly starting at
// the landfill, carrying a running load/time and the SWTS pickups picked
// up along the way.
type TVRoute struct {
	VehicleID   string
	MaxCapacity quantity.Capacity
	MaxDuration quantity.Duration

	locationIDs []string
	currentTime quantity.Duration
	currentLoad quantity.Capacity
	loadProfile []quantity.Capacity
	timeProfile []quantity.Duration
	pickups     []DeliveryTask
}

// NewTVRoute constructs an empty TVRoute.
func NewTVRoute(vehicleID string, maxCapacity quantity.Capacity, maxDuration quantity.Duration) *TVRoute {
	return &TVRoute{
		VehicleID:   vehicleID,
		MaxCapacity: maxCapacity,
		MaxDuration: maxDuration,
		loadProfile: []quantity.Capacity{{}},
		timeProfile: []quantity.Duration{{}},
	}
}

// Clone returns a deep copy.
func (r *TVRoute) Clone() *TVRoute {
	clone := &TVRoute{
		VehicleID:   r.VehicleID,
		MaxCapacity: r.MaxCapacity,
		MaxDuration: r.MaxDuration,
		currentTime: r.currentTime,
		currentLoad: r.currentLoad,
	}
	clone.locationIDs = append([]string(nil), r.locationIDs...)
	clone.loadProfile = append([]quantity.Capacity(nil), r.loadProfile...)
	clone.timeProfile = append([]quantity.Duration(nil), r.timeProfile...)
	clone.pickups = append([]DeliveryTask(nil), r.pickups...)
	return clone
}

// LocationIDs returns the ordered sequence of visited location ids.
func (r *TVRoute) LocationIDs() []string { return r.locationIDs }

// CurrentLoad returns the load on board after the last step.
func (r *TVRoute) CurrentLoad() quantity.Capacity { return r.currentLoad }

// CurrentTime returns the elapsed time after the last step.
func (r *TVRoute) CurrentTime() quantity.Duration { return r.currentTime }

// Pickups returns the recorded SWTS pickups, in visit order.
func (r *TVRoute) Pickups() []DeliveryTask { return r.pickups }

// IsEmpty reports whether the route has not yet visited any location.
func (r *TVRoute) IsEmpty() bool { return len(r.locationIDs) == 0 }

// LastLocationID returns the last visited location id, or the landfill id
// if the route is empty.
func (r *TVRoute) LastLocationID(p *problem.Problem) string {
	if len(r.locationIDs) == 0 {
		return p.Landfill().ID()
	}
	return r.locationIDs[len(r.locationIDs)-1]
}

// ResidualCapacity returns how much more load the vehicle can take on.
func (r *TVRoute) ResidualCapacity() quantity.Capacity {
	return r.MaxCapacity.Sub(r.currentLoad)
}

// AddPickup models waiting at an SWTS for a CV delivery: current time
// advances to max(current_time + travel_time, arrival_time), free of
// charge, then load increases by amount. Unlike the older reference
// implementation (which always returns true), this reports infeasibility
// explicitly: it returns false without mutating the route if the
// post-pickup state would violate capacity or duration (with an epsilon
// slack on duration).
func (r *TVRoute) AddPickup(swtsID string, arrivalTime quantity.Duration, amount quantity.Capacity, p *problem.Problem) (bool, error) {
	prevID := r.LastLocationID(p)
	travelTime, err := p.TravelTime(prevID, swtsID)
	if err != nil {
		return false, err
	}

	newTime := r.currentTime.Add(travelTime)
	if newTime.LessThan(arrivalTime) {
		newTime = arrivalTime
	}

	newLoad := r.currentLoad.Add(amount)

	if newLoad.GreaterThan(r.MaxCapacity) {
		return false, nil
	}
	if !newTime.WithinEpsilon(r.MaxDuration, p.Params().Epsilon) {
		return false, nil
	}

	r.locationIDs = append(r.locationIDs, swtsID)
	r.currentTime = newTime
	r.currentLoad = newLoad
	r.pickups = append(r.pickups, DeliveryTask{Amount: amount, SWTSID: swtsID, ArrivalTime: arrivalTime})
	r.loadProfile = append(r.loadProfile, r.currentLoad)
	r.timeProfile = append(r.timeProfile, r.currentTime)

	return true, nil
}

// AddLocation appends a non-pickup location (normally the landfill) to
// the route. Visiting the landfill resets load to zero and never fails
// the duration check; any other location is subject to the duration
// check with epsilon slack.
func (r *TVRoute) AddLocation(locationID string, p *problem.Problem) (bool, error) {
	prevID := r.LastLocationID(p)
	travelTime, err := p.TravelTime(prevID, locationID)
	if err != nil {
		return false, err
	}

	newTime := r.currentTime.Add(travelTime)
	isLandfill := locationID == p.Landfill().ID()

	if !isLandfill && !newTime.WithinEpsilon(r.MaxDuration, p.Params().Epsilon) {
		return false, nil
	}

	r.currentTime = newTime
	if isLandfill {
		r.currentLoad = quantity.Capacity{}
	}

	r.locationIDs = append(r.locationIDs, locationID)
	r.loadProfile = append(r.loadProfile, r.currentLoad)
	r.timeProfile = append(r.timeProfile, r.currentTime)

	return true, nil
}

// Finalize appends the landfill if the route does not already end there.
func (r *TVRoute) Finalize(p *problem.Problem) (bool, error) {
	if len(r.locationIDs) == 0 || r.locationIDs[len(r.locationIDs)-1] == p.Landfill().ID() {
		return true, nil
	}
	return r.AddLocation(p.Landfill().ID(), p)
}

// IsValid re-audits the full profile: every load within capacity, total
// time within the max plus the problem's epsilon, and the route ending at
// the landfill.
func (r *TVRoute) IsValid(p *problem.Problem) bool {
	for _, load := range r.loadProfile {
		if load.GreaterThan(r.MaxCapacity) {
			return false
		}
	}
	if !r.currentTime.WithinEpsilon(r.MaxDuration, p.Params().Epsilon) {
		return false
	}
	return len(r.locationIDs) == 0 || r.locationIDs[len(r.locationIDs)-1] == p.Landfill().ID()
}

// Solution is a complete or partial VRPT-SWTS plan: a list of CV routes
// and a (possibly empty) list of TV routes, plus a flag marking whether
// Phase 2 has run.
type Solution struct {
	CVRoutes []*CVRoute
	TVRoutes []*TVRoute
	Complete bool
}

// NewSolution constructs an empty, incomplete Solution.
func NewSolution() *Solution {
	return &Solution{}
}

// Clone returns a deep copy of the solution and every route it holds.
func (s *Solution) Clone() *Solution {
	clone := &Solution{Complete: s.Complete}
	clone.CVRoutes = make([]*CVRoute, len(s.CVRoutes))
	for i, r := range s.CVRoutes {
		clone.CVRoutes[i] = r.Clone()
	}
	clone.TVRoutes = make([]*TVRoute, len(s.TVRoutes))
	for i, r := range s.TVRoutes {
		clone.TVRoutes[i] = r.Clone()
	}
	return clone
}

// AllDeliveryTasks returns every CV route's deliveries, pooled and sorted
// by arrival time — the input Phase 2 consumes.
func (s *Solution) AllDeliveryTasks() []DeliveryTask {
	var all []DeliveryTask
	for _, r := range s.CVRoutes {
		all = append(all, r.Deliveries()...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ArrivalTime.LessThan(all[j].ArrivalTime)
	})
	return all
}

// TotalCVDuration sums TotalDuration across all CV routes.
func (s *Solution) TotalCVDuration() quantity.Duration {
	var total quantity.Duration
	for _, r := range s.CVRoutes {
		total = total.Add(r.TotalDuration())
	}
	return total
}

// VisitedZones counts the distinct collection zones visited across all CV
// routes.
func (s *Solution) VisitedZones(p *problem.Problem) int {
	visited := make(map[string]struct{})
	for _, r := range s.CVRoutes {
		for _, id := range r.LocationIDs() {
			if loc, ok := p.Location(id); ok && loc.Role() == problem.RoleCollectionZone {
				visited[id] = struct{}{}
			}
		}
	}
	return len(visited)
}

// TotalWasteCollected sums the amount across every CV delivery.
func (s *Solution) TotalWasteCollected() quantity.Capacity {
	var total quantity.Capacity
	for _, r := range s.CVRoutes {
		for _, d := range r.Deliveries() {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// CVCount returns the number of CV routes.
func (s *Solution) CVCount() int { return len(s.CVRoutes) }

// TVCount returns the number of TV routes.
func (s *Solution) TVCount() int { return len(s.TVRoutes) }

// IsValid checks every CV route, and — once Complete — every TV route.
func (s *Solution) IsValid(p *problem.Problem) bool {
	for _, r := range s.CVRoutes {
		if !r.IsValid() {
			return false
		}
	}
	if s.Complete {
		for _, r := range s.TVRoutes {
			if !r.IsValid(p) {
				return false
			}
		}
	}
	return true
}

func errLocationNotFound(id string) error {
	return apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("route: unknown location id %q", id), id)
}
