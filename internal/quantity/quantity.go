// Package quantity provides strongly-typed scalar quantities — Capacity,
// Duration, Distance, and Speed — so that a raw float64 can never be passed
// where a unit-specific value is expected. Negative values are rejected at
// construction; Duration stores nanoseconds internally, matching the
// representation time.Duration already uses in the standard library.
package quantity

import "fmt"

// Unit conversion constants, mirrored from the reference implementation so
// that distances/durations computed here match it where the inputs match.
// The nanosecond-to-minute and nanosecond-to-hour factors are the exact
// reciprocals of minutesToNs and hoursToNs, so whole-unit durations convert
// back without rounding drift.
const (
	metersToKilometers = 0.001
	kilometersToMeters = 1000.0
	metersToMiles       = 0.000621371
	milesToMeters       = 1609.34

	nsToSeconds = 1e-9
	secondsToNs = 1e9
	nsToMinutes = 1 / minutesToNs
	minutesToNs = 6e10
	nsToHours   = 1 / hoursToNs
	hoursToNs   = 3.6e12
)

// Capacity is a non-negative quantity of waste, measured in the problem's
// native unit (typically cubic meters or tonnes; the solver is agnostic to
// which, as long as zones, CV capacity, and TV capacity share one unit).
type Capacity struct {
	value float64
}

// NewCapacity constructs a Capacity, rejecting negative values.
func NewCapacity(value float64) (Capacity, error) {
	if value < 0 {
		return Capacity{}, fmt.Errorf("quantity: capacity cannot be negative, got %f", value)
	}
	return Capacity{value: value}, nil
}

// MustCapacity constructs a Capacity and panics on a negative value. Used
// for compile-time-known constants (test fixtures, defaults).
func MustCapacity(value float64) Capacity {
	c, err := NewCapacity(value)
	if err != nil {
		panic(err)
	}
	return c
}

// Value returns the raw capacity amount.
func (c Capacity) Value() float64 { return c.value }

// Add returns c + other.
func (c Capacity) Add(other Capacity) Capacity {
	return Capacity{value: c.value + other.value}
}

// Sub returns c - other. The result is not validated against negativity;
// callers that might underflow should check with c.Value() >= other.Value()
// first, or use TrySub.
func (c Capacity) Sub(other Capacity) Capacity {
	return Capacity{value: c.value - other.value}
}

// TrySub returns c - other, or an error if the result would be negative.
func (c Capacity) TrySub(other Capacity) (Capacity, error) {
	return NewCapacity(c.value - other.value)
}

// LessThanOrEqual reports whether c <= other.
func (c Capacity) LessThanOrEqual(other Capacity) bool {
	return c.value <= other.value
}

// GreaterThan reports whether c > other.
func (c Capacity) GreaterThan(other Capacity) bool {
	return c.value > other.value
}

// IsZero reports whether the capacity is exactly zero.
func (c Capacity) IsZero() bool {
	return c.value == 0
}

// TimeUnit names a unit Duration can be constructed from or converted to.
type TimeUnit int

// Supported time units.
const (
	Nanoseconds TimeUnit = iota
	Seconds
	Minutes
	Hours
)

// Duration is a non-negative span of time, stored internally in
// nanoseconds.
type Duration struct {
	nanoseconds int64
}

// NewDuration constructs a Duration from a value in the given unit,
// rejecting negative values.
func NewDuration(value float64, unit TimeUnit) (Duration, error) {
	ns, err := convertToNanoseconds(value, unit)
	if err != nil {
		return Duration{}, err
	}
	if ns < 0 {
		return Duration{}, fmt.Errorf("quantity: duration cannot be negative, got %f in unit %v", value, unit)
	}
	return Duration{nanoseconds: ns}, nil
}

// MustDuration constructs a Duration and panics on a negative value.
func MustDuration(value float64, unit TimeUnit) Duration {
	d, err := NewDuration(value, unit)
	if err != nil {
		panic(err)
	}
	return d
}

// durationFromNanoseconds constructs a Duration directly from an
// already-non-negative nanosecond count. Used internally by arithmetic
// that is known to stay non-negative.
func durationFromNanoseconds(ns int64) Duration {
	if ns < 0 {
		ns = 0
	}
	return Duration{nanoseconds: ns}
}

func convertToNanoseconds(value float64, unit TimeUnit) (int64, error) {
	switch unit {
	case Nanoseconds:
		return int64(value), nil
	case Seconds:
		return int64(value * secondsToNs), nil
	case Minutes:
		return int64(value * minutesToNs), nil
	case Hours:
		return int64(value * hoursToNs), nil
	default:
		return 0, fmt.Errorf("quantity: unknown time unit %v", unit)
	}
}

// Nanoseconds returns the duration in nanoseconds.
func (d Duration) Nanoseconds() int64 { return d.nanoseconds }

// Seconds returns the duration in seconds.
func (d Duration) Seconds() float64 { return float64(d.nanoseconds) * nsToSeconds }

// Minutes returns the duration in minutes.
func (d Duration) Minutes() float64 { return float64(d.nanoseconds) * nsToMinutes }

// Hours returns the duration in hours.
func (d Duration) Hours() float64 { return float64(d.nanoseconds) * nsToHours }

// Value returns the duration in the given unit.
func (d Duration) Value(unit TimeUnit) float64 {
	switch unit {
	case Nanoseconds:
		return float64(d.nanoseconds)
	case Seconds:
		return d.Seconds()
	case Minutes:
		return d.Minutes()
	case Hours:
		return d.Hours()
	default:
		return 0
	}
}

// Add returns d + other.
func (d Duration) Add(other Duration) Duration {
	return durationFromNanoseconds(d.nanoseconds + other.nanoseconds)
}

// Sub returns d - other, clamped to zero if other is larger. Callers on a
// feasibility boundary should compare durations directly rather than rely
// on the clamp.
func (d Duration) Sub(other Duration) Duration {
	return durationFromNanoseconds(d.nanoseconds - other.nanoseconds)
}

// LessThanOrEqual reports whether d <= other.
func (d Duration) LessThanOrEqual(other Duration) bool {
	return d.nanoseconds <= other.nanoseconds
}

// LessThan reports whether d < other.
func (d Duration) LessThan(other Duration) bool {
	return d.nanoseconds < other.nanoseconds
}

// GreaterThan reports whether d > other.
func (d Duration) GreaterThan(other Duration) bool {
	return d.nanoseconds > other.nanoseconds
}

// WithinEpsilon reports whether d <= other + epsilon, the standard
// feasibility comparison used throughout route construction to absorb
// floating-point drift from distance/speed division.
func (d Duration) WithinEpsilon(other, epsilon Duration) bool {
	return d.nanoseconds <= other.nanoseconds+epsilon.nanoseconds
}

// Zero is the zero Duration.
var Zero = Duration{}

// DistanceUnit names a unit Distance can be constructed from or converted
// to.
type DistanceUnit int

// Supported distance units.
const (
	Meters DistanceUnit = iota
	Kilometers
	Miles
)

// Distance is a non-negative length, stored internally in meters.
type Distance struct {
	meters float64
}

// NewDistance constructs a Distance from a value in the given unit,
// rejecting negative values.
func NewDistance(value float64, unit DistanceUnit) (Distance, error) {
	meters, err := convertToMeters(value, unit)
	if err != nil {
		return Distance{}, err
	}
	if meters < 0 {
		return Distance{}, fmt.Errorf("quantity: distance cannot be negative, got %f in unit %v", value, unit)
	}
	return Distance{meters: meters}, nil
}

// MustDistance constructs a Distance and panics on a negative value.
func MustDistance(value float64, unit DistanceUnit) Distance {
	d, err := NewDistance(value, unit)
	if err != nil {
		panic(err)
	}
	return d
}

func convertToMeters(value float64, unit DistanceUnit) (float64, error) {
	switch unit {
	case Meters:
		return value, nil
	case Kilometers:
		return value * kilometersToMeters, nil
	case Miles:
		return value * milesToMeters, nil
	default:
		return 0, fmt.Errorf("quantity: unknown distance unit %v", unit)
	}
}

// Meters returns the distance in meters.
func (d Distance) Meters() float64 { return d.meters }

// Kilometers returns the distance in kilometers.
func (d Distance) Kilometers() float64 { return d.meters * metersToKilometers }

// Miles returns the distance in miles.
func (d Distance) Miles() float64 { return d.meters * metersToMiles }

// Speed is a strictly positive travel speed in meters per second, used to
// convert a Distance into the Duration a vehicle takes to cover it.
type Speed struct {
	metersPerSecond float64
}

// NewSpeed constructs a Speed, rejecting non-positive values — a zero or
// negative speed would make every travel time infinite or undefined.
func NewSpeed(metersPerSecond float64) (Speed, error) {
	if metersPerSecond <= 0 {
		return Speed{}, fmt.Errorf("quantity: speed must be positive, got %f", metersPerSecond)
	}
	return Speed{metersPerSecond: metersPerSecond}, nil
}

// MustSpeed constructs a Speed and panics on a non-positive value.
func MustSpeed(metersPerSecond float64) Speed {
	s, err := NewSpeed(metersPerSecond)
	if err != nil {
		panic(err)
	}
	return s
}

// MetersPerSecond returns the raw speed value.
func (s Speed) MetersPerSecond() float64 { return s.metersPerSecond }

// TravelTime returns the Duration needed to cover d at speed s.
func (s Speed) TravelTime(d Distance) Duration {
	seconds := d.Meters() / s.metersPerSecond
	return durationFromNanoseconds(int64(seconds * secondsToNs))
}
