// Package spatial implements a 2-D K-D tree over problem.Location values,
// plus a precomputed pairwise distance and travel-time matrix, so that
// role-filtered nearest/k-nearest queries and distance/travel-time lookups
// run without re-walking the full location set.
package spatial

import (
	"fmt"
	"math"
	"sort"

	"vrpt/internal/problem"
	"vrpt/internal/quantity"
	"vrpt/pkg/apperror"
)

type node struct {
	location    problem.Location
	left, right *node
}

// Index is a balanced 2-D K-D tree over a fixed set of locations, built
// once and queried many times. It also owns the O(n^2) precomputed
// distance/travel-time matrices problem.Problem delegates to.
type Index struct {
	root      *node
	locations map[string]problem.Location
	distances map[string]map[string]quantity.Distance
	times     map[string]map[string]quantity.Duration
}

// NewIndex builds an Index over locations, using speed to convert the
// precomputed distances into travel times. The speed is a configurable
// parameter of the Problem rather than the fixed value the reference
// implementation hardcodes.
func NewIndex(locations []problem.Location, speed quantity.Speed) (problem.SpatialIndex, error) {
	if len(locations) == 0 {
		return nil, apperror.ErrEmptyLocationSet
	}

	idx := &Index{
		locations: make(map[string]problem.Location, len(locations)),
		distances: make(map[string]map[string]quantity.Distance, len(locations)),
		times:     make(map[string]map[string]quantity.Duration, len(locations)),
	}

	for _, loc := range locations {
		if _, exists := idx.locations[loc.ID()]; exists {
			return nil, apperror.New(apperror.CodeInvalidArgument, fmt.Sprintf("spatial: duplicate location id %q", loc.ID()))
		}
		idx.locations[loc.ID()] = loc
	}

	for _, a := range locations {
		row := make(map[string]quantity.Distance, len(locations))
		timeRow := make(map[string]quantity.Duration, len(locations))
		for _, b := range locations {
			dist := euclidean(a, b)
			row[b.ID()] = dist
			timeRow[b.ID()] = speed.TravelTime(dist)
		}
		idx.distances[a.ID()] = row
		idx.times[a.ID()] = timeRow
	}

	points := make([]problem.Location, len(locations))
	copy(points, locations)
	idx.root = buildRecursive(points, 0)

	return idx, nil
}

func euclidean(a, b problem.Location) quantity.Distance {
	dx := a.X() - b.X()
	dy := a.Y() - b.Y()
	return quantity.MustDistance(math.Sqrt(dx*dx+dy*dy), quantity.Meters)
}

// buildRecursive splits points on alternating axes (x at even depth, y at
// odd depth) at the median, ties going to the left subtree by virtue of a
// stable sort placing equal elements before the split index.
func buildRecursive(points []problem.Location, depth int) *node {
	if len(points) == 0 {
		return nil
	}

	axis := depth % 2
	sort.SliceStable(points, func(i, j int) bool {
		if axis == 0 {
			return points[i].X() < points[j].X()
		}
		return points[i].Y() < points[j].Y()
	})

	mid := len(points) / 2
	n := &node{location: points[mid]}

	if mid > 0 {
		n.left = buildRecursive(points[:mid], depth+1)
	}
	if mid+1 < len(points) {
		n.right = buildRecursive(points[mid+1:], depth+1)
	}

	return n
}

// Distance returns the precomputed Euclidean distance between two known
// location ids.
func (idx *Index) Distance(fromID, toID string) (quantity.Distance, error) {
	row, ok := idx.distances[fromID]
	if !ok {
		return quantity.Distance{}, apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("spatial: unknown location id %q", fromID), fromID)
	}
	d, ok := row[toID]
	if !ok {
		return quantity.Distance{}, apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("spatial: unknown location id %q", toID), toID)
	}
	return d, nil
}

// TravelTime returns the precomputed travel time between two known
// location ids.
func (idx *Index) TravelTime(fromID, toID string) (quantity.Duration, error) {
	row, ok := idx.times[fromID]
	if !ok {
		return quantity.Duration{}, apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("spatial: unknown location id %q", fromID), fromID)
	}
	d, ok := row[toID]
	if !ok {
		return quantity.Duration{}, apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("spatial: unknown location id %q", toID), toID)
	}
	return d, nil
}

// Nearest returns the id of the nearest location with the given role to
// fromID, or false if no location of that role exists. An fromID the index
// does not hold is a CodeNotFound error.
func (idx *Index) Nearest(fromID string, role problem.LocationRole) (string, bool, error) {
	from, ok := idx.locations[fromID]
	if !ok {
		return "", false, apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("spatial: unknown location id %q", fromID), fromID)
	}

	var best *problem.Location
	bestDist := math.MaxFloat64

	idx.findNearestRecursive(idx.root, from, role, 0, &best, &bestDist)

	if best == nil {
		return "", false, nil
	}
	return best.ID(), true, nil
}

func (idx *Index) findNearestRecursive(n *node, target problem.Location, role problem.LocationRole, depth int, best **problem.Location, bestDist *float64) {
	if n == nil {
		return
	}

	dist := euclidean(n.location, target).Meters()
	if (*best == nil || dist < *bestDist) && n.location.Role() == role {
		loc := n.location
		*best = &loc
		*bestDist = dist
	}

	axis := depth % 2
	var axisDist float64
	var goLeft bool
	if axis == 0 {
		axisDist = math.Abs(n.location.X() - target.X())
		goLeft = target.X() < n.location.X()
	} else {
		axisDist = math.Abs(n.location.Y() - target.Y())
		goLeft = target.Y() < n.location.Y()
	}

	first, second := n.right, n.left
	if goLeft {
		first, second = n.left, n.right
	}

	idx.findNearestRecursive(first, target, role, depth+1, best, bestDist)
	if axisDist < *bestDist {
		idx.findNearestRecursive(second, target, role, depth+1, best, bestDist)
	}
}

// KNearest returns up to k location ids of the given role nearest to
// fromID, nearest first. A non-positive k is a CodeInvalidArgument error.
func (idx *Index) KNearest(fromID string, role problem.LocationRole, k int) ([]string, error) {
	if k <= 0 {
		return nil, apperror.New(apperror.CodeInvalidArgument, fmt.Sprintf("spatial: k must be positive, got %d", k))
	}

	from, ok := idx.locations[fromID]
	if !ok {
		return nil, apperror.NewWithField(apperror.CodeNotFound, fmt.Sprintf("spatial: unknown location id %q", fromID), fromID)
	}

	var heap []locDist
	idx.findKNearestRecursive(idx.root, from, role, k, 0, &heap)

	sort.Slice(heap, func(i, j int) bool { return heap[i].dist < heap[j].dist })

	result := make([]string, len(heap))
	for i, ld := range heap {
		result[i] = ld.id
	}
	return result, nil
}

type locDist struct {
	id   string
	dist float64
}

func (idx *Index) findKNearestRecursive(n *node, target problem.Location, role problem.LocationRole, k, depth int, heap *[]locDist) {
	if n == nil {
		return
	}

	if n.location.Role() == role {
		dist := euclidean(n.location, target).Meters()
		if len(*heap) < k {
			*heap = append(*heap, locDist{id: n.location.ID(), dist: dist})
		} else if worst := worstDist(*heap); dist < worst {
			replaceWorst(heap, locDist{id: n.location.ID(), dist: dist})
		}
	}

	axis := depth % 2
	var axisDist float64
	var goLeft bool
	if axis == 0 {
		axisDist = math.Abs(n.location.X() - target.X())
		goLeft = target.X() < n.location.X()
	} else {
		axisDist = math.Abs(n.location.Y() - target.Y())
		goLeft = target.Y() < n.location.Y()
	}

	first, second := n.right, n.left
	if goLeft {
		first, second = n.left, n.right
	}

	idx.findKNearestRecursive(first, target, role, k, depth+1, heap)
	if len(*heap) < k || axisDist < worstDist(*heap) {
		idx.findKNearestRecursive(second, target, role, k, depth+1, heap)
	}
}

func worstDist(heap []locDist) float64 {
	worst := 0.0
	for _, ld := range heap {
		if ld.dist > worst {
			worst = ld.dist
		}
	}
	return worst
}

func replaceWorst(heap *[]locDist, replacement locDist) {
	worstIdx := 0
	for i, ld := range *heap {
		if ld.dist > (*heap)[worstIdx].dist {
			worstIdx = i
		}
	}
	(*heap)[worstIdx] = replacement
}
