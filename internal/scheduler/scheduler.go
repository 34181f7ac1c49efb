// Package scheduler implements Phase 2 of the VRPT-SWTS solve: assigning
// the delivery tasks a Phase 1 solution generated to Transportation
// Vehicle routes, processed in chronological order against the best
// available (or a newly opened) TV.
package scheduler

import (
	"context"
	"fmt"

	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/internal/route"
	"vrpt/pkg/apperror"
)

// GreedyTVScheduler is Algorithms 3 & 4: it walks delivery tasks in
// arrival-time order and greedily assigns each to whichever open TV route
// can serve it most cheaply, opening a new TV route when none can.
type GreedyTVScheduler struct{}

// NewGreedyTVScheduler constructs a GreedyTVScheduler.
func NewGreedyTVScheduler() *GreedyTVScheduler { return &GreedyTVScheduler{} }

// Name identifies the algorithm for logging and cache keys.
func (s *GreedyTVScheduler) Name() string { return "greedy_tv_scheduler" }

// Schedule completes a Phase 1 solution with TV routes, returning a new
// Solution with Complete set to true. It returns an apperror with code
// CodeSchedulingInfeasible if a delivery task cannot be placed on any
// existing or newly opened TV route.
func (s *GreedyTVScheduler) Schedule(ctx context.Context, p *problem.Problem, phase1 *route.Solution) (*route.Solution, error) {
	solution := phase1.Clone()
	tasks := solution.AllDeliveryTasks()

	if len(tasks) == 0 {
		solution.Complete = true
		return solution, nil
	}

	qMin := tasks[0].Amount
	for _, task := range tasks {
		if task.Amount.LessThanOrEqual(qMin) {
			qMin = task.Amount
		}
	}

	params := p.Params()
	landfillID := p.Landfill().ID()
	var tvRoutes []*route.TVRoute

	for i, task := range tasks {
		select {
		case <-ctx.Done():
			return solution, apperror.Wrap(ctx.Err(), apperror.CodeTimeout, apperror.ErrTimedOut.Message)
		default:
		}

		bestIdx := -1
		var bestCost quantity.Duration
		haveBest := false
		needLandfillReturn := false

		for e, r := range tvRoutes {
			cost, landfillFirst, feasible, err := insertionCost(p, r, task, tasks, i)
			if err != nil {
				return nil, err
			}
			if !feasible {
				continue
			}
			if !haveBest || cost.LessThan(bestCost) {
				bestIdx = e
				bestCost = cost
				haveBest = true
				needLandfillReturn = landfillFirst
			}
		}

		if bestIdx == -1 {
			newRoute := route.NewTVRoute(tvVehicleID(len(tvRoutes)+1), params.TVCapacity, params.TVMaxDuration)
			if ok, err := newRoute.AddLocation(landfillID, p); err != nil {
				return nil, err
			} else if !ok {
				return nil, apperror.New(apperror.CodeSchedulingInfeasible, "failed to start a new TV route at the landfill")
			}

			ok, err := newRoute.AddPickup(task.SWTSID, task.ArrivalTime, task.Amount, p)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperror.New(apperror.CodeSchedulingInfeasible, "failed to add pickup to new TV route")
			}

			returnToLandfill := qMin.GreaterThan(newRoute.ResidualCapacity()) || i == len(tasks)-1
			if !returnToLandfill && i < len(tasks)-1 {
				next := tasks[i+1]
				timeToNext := next.ArrivalTime.Sub(task.ArrivalTime)
				toLandfill, err := p.TravelTime(task.SWTSID, landfillID)
				if err != nil {
					return nil, err
				}
				fromLandfill, err := p.TravelTime(landfillID, next.SWTSID)
				if err != nil {
					return nil, err
				}
				directToNext, err := p.TravelTime(task.SWTSID, next.SWTSID)
				if err != nil {
					return nil, err
				}
				sumViaLandfill := toLandfill.Add(fromLandfill)
				if sumViaLandfill.LessThanOrEqual(timeToNext) &&
					(next.Amount.GreaterThan(newRoute.ResidualCapacity()) || sumViaLandfill.LessThan(directToNext)) {
					returnToLandfill = true
				}
			}

			if returnToLandfill {
				if _, err := newRoute.AddLocation(landfillID, p); err != nil {
					return nil, err
				}
			}

			tvRoutes = append(tvRoutes, newRoute)
			continue
		}

		r := tvRoutes[bestIdx]
		lastLocation := r.LastLocationID(p)

		if needLandfillReturn || task.Amount.GreaterThan(r.ResidualCapacity()) {
			if _, err := r.AddLocation(landfillID, p); err != nil {
				return nil, err
			}
		} else if lastLocation != task.SWTSID {
			travelTime, err := p.TravelTime(lastLocation, task.SWTSID)
			if err != nil {
				return nil, err
			}
			arrival := r.CurrentTime().Add(travelTime)
			if arrival.LessThan(task.ArrivalTime) {
				waiting := task.ArrivalTime.Sub(arrival)
				toLandfill, err := p.TravelTime(lastLocation, landfillID)
				if err != nil {
					return nil, err
				}
				fromLandfill, err := p.TravelTime(landfillID, task.SWTSID)
				if err != nil {
					return nil, err
				}
				if toLandfill.Add(fromLandfill).LessThanOrEqual(waiting) {
					if _, err := r.AddLocation(landfillID, p); err != nil {
						return nil, err
					}
				}
			}
		}

		ok, err := r.AddPickup(task.SWTSID, task.ArrivalTime, task.Amount, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperror.New(apperror.CodeSchedulingInfeasible, "failed to add pickup to existing TV route")
		}

		returnToLandfill := qMin.GreaterThan(r.ResidualCapacity()) || i == len(tasks)-1
		if !returnToLandfill && i < len(tasks)-1 {
			next := tasks[i+1]
			timeToNext := next.ArrivalTime.Sub(task.ArrivalTime)
			toLandfill, err := p.TravelTime(task.SWTSID, landfillID)
			if err != nil {
				return nil, err
			}
			fromLandfill, err := p.TravelTime(landfillID, next.SWTSID)
			if err != nil {
				return nil, err
			}
			directToNext, err := p.TravelTime(task.SWTSID, next.SWTSID)
			if err != nil {
				return nil, err
			}
			sumViaLandfill := toLandfill.Add(fromLandfill)
			if sumViaLandfill.LessThanOrEqual(timeToNext) &&
				(next.Amount.GreaterThan(r.ResidualCapacity()) || sumViaLandfill.LessThan(directToNext)) {
				returnToLandfill = true
			}
		}

		if returnToLandfill {
			if _, err := r.AddLocation(landfillID, p); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range tvRoutes {
		if _, err := r.Finalize(p); err != nil {
			return nil, err
		}
	}

	solution.TVRoutes = append(solution.TVRoutes, tvRoutes...)
	solution.Complete = true

	return solution, nil
}

// insertionCost evaluates whether route r can serve task, and if so at
// what cost (lower is better). needLandfillFirst reports whether a
// capacity shortfall requires visiting the landfill before the pickup.
func insertionCost(p *problem.Problem, r *route.TVRoute, task route.DeliveryTask, tasks []route.DeliveryTask, taskIdx int) (cost quantity.Duration, needLandfillFirst bool, feasible bool, err error) {
	lastLocation := r.LastLocationID(p)
	landfillID := p.Landfill().ID()

	travelTime, err := p.TravelTime(lastLocation, task.SWTSID)
	if err != nil {
		return quantity.Zero, false, false, err
	}

	arrival := r.CurrentTime().Add(travelTime)
	if arrival.GreaterThan(task.ArrivalTime) {
		return quantity.Zero, false, false, nil
	}
	waiting := task.ArrivalTime.Sub(arrival)

	capacityFeasible := r.ResidualCapacity().GreaterThan(task.Amount) || r.ResidualCapacity() == task.Amount

	canVisitLandfillDuringWait := false
	var landfillDetour quantity.Duration
	if !capacityFeasible && waiting.GreaterThan(quantity.Zero) {
		toLandfill, err := p.TravelTime(lastLocation, landfillID)
		if err != nil {
			return quantity.Zero, false, false, err
		}
		fromLandfill, err := p.TravelTime(landfillID, task.SWTSID)
		if err != nil {
			return quantity.Zero, false, false, err
		}
		landfillDetour = toLandfill.Add(fromLandfill)
		if landfillDetour.LessThanOrEqual(waiting) {
			canVisitLandfillDuringWait = true
			capacityFeasible = true
			waiting = waiting.Sub(landfillDetour)
		}
	}

	returnTime, err := p.TravelTime(task.SWTSID, landfillID)
	if err != nil {
		return quantity.Zero, false, false, err
	}

	var effectiveService, totalTime quantity.Duration

	switch {
	case canVisitLandfillDuringWait:
		effectiveService = task.ArrivalTime
		totalTime = effectiveService.Add(returnTime)
	case !capacityFeasible:
		toLandfill, err := p.TravelTime(lastLocation, landfillID)
		if err != nil {
			return quantity.Zero, false, false, err
		}
		fromLandfill, err := p.TravelTime(landfillID, task.SWTSID)
		if err != nil {
			return quantity.Zero, false, false, err
		}
		viaLandfillArrival := r.CurrentTime().Add(toLandfill).Add(fromLandfill)
		if viaLandfillArrival.GreaterThan(task.ArrivalTime) {
			return quantity.Zero, false, false, nil
		}
		effectiveService = task.ArrivalTime
		totalTime = effectiveService.Add(returnTime)
		capacityFeasible = true
		needLandfillFirst = true
	default:
		effectiveService = arrival
		if task.ArrivalTime.GreaterThan(arrival) {
			effectiveService = task.ArrivalTime
		}
		totalTime = effectiveService.Add(returnTime)
	}

	durationFeasible := totalTime.WithinEpsilon(p.Params().TVMaxDuration, p.Params().Epsilon)
	if !capacityFeasible || !durationFeasible {
		return quantity.Zero, false, false, nil
	}

	insertionCost := travelTime
	if taskIdx < len(tasks)-1 {
		next := tasks[taskIdx+1]
		timeToNext := next.ArrivalTime.Sub(effectiveService)
		travelToNext, err := p.TravelTime(task.SWTSID, next.SWTSID)
		if err != nil {
			return quantity.Zero, false, false, err
		}
		if travelToNext.LessThanOrEqual(timeToNext) && !next.Amount.GreaterThan(r.ResidualCapacity().Sub(task.Amount)) {
			insertionCost = quantity.MustDuration(insertionCost.Seconds()*0.8, quantity.Seconds)
		}
	}

	return insertionCost, needLandfillFirst, true, nil
}

func tvVehicleID(n int) string {
	return fmt.Sprintf("TV_%d", n)
}
