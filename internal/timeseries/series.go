// Package timeseries holds the hourly price series primitives shared by the
// market and volatility layers. Timestamps are naive CET wall-clock times
// encoded in UTC, sorted ascending, with at most one point per timestamp.
package timeseries

import (
	"math"
	"sort"
	"time"
)

// Point is a single observation in a series. Value may be NaN to mark a gap.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is an ascending sequence of points.
type Series struct {
	Points []Point
}

// New builds a series from points, sorting by timestamp and dropping
// duplicates (last write wins).
func New(points []Point) Series {
	if len(points) == 0 {
		return Series{}
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for _, p := range sorted {
		if len(out) > 0 && out[len(out)-1].Time.Equal(p.Time) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return Series{Points: out}
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Points) }

// Empty reports whether the series has no points.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Values returns the value column.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// Times returns the timestamp column.
func (s Series) Times() []time.Time {
	ts := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		ts[i] = p.Time
	}
	return ts
}

// At returns the value at the exact timestamp, or NaN if absent.
func (s Series) At(t time.Time) float64 {
	i := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Time.Before(t)
	})
	if i < len(s.Points) && s.Points[i].Time.Equal(t) {
		return s.Points[i].Value
	}
	return math.NaN()
}

// Slice returns the sub-series with from <= t < to.
func (s Series) Slice(from, to time.Time) Series {
	lo := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Time.Before(from)
	})
	hi := sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Time.Before(to)
	})
	return Series{Points: s.Points[lo:hi]}
}

// Tail returns the last n points, or the whole series if shorter.
func (s Series) Tail(n int) Series {
	if n >= len(s.Points) {
		return s
	}
	return Series{Points: s.Points[len(s.Points)-n:]}
}

// DropNaN returns the series without NaN values.
func (s Series) DropNaN() Series {
	out := make([]Point, 0, len(s.Points))
	for _, p := range s.Points {
		if !math.IsNaN(p.Value) {
			out = append(out, p)
		}
	}
	return Series{Points: out}
}

// ResampleHourly buckets points into whole hours and averages each bucket.
// NaN values are skipped; a bucket with no valid values is dropped.
func ResampleHourly(s Series) Series {
	if s.Empty() {
		return Series{}
	}

	type bucket struct {
		sum   float64
		count int
	}
	order := make([]time.Time, 0, len(s.Points))
	buckets := make(map[time.Time]*bucket)

	for _, p := range s.Points {
		if math.IsNaN(p.Value) {
			continue
		}
		hour := p.Time.Truncate(time.Hour)
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{}
			buckets[hour] = b
			order = append(order, hour)
		}
		b.sum += p.Value
		b.count++
	}

	points := make([]Point, 0, len(order))
	for _, hour := range order {
		b := buckets[hour]
		points = append(points, Point{Time: hour, Value: b.sum / float64(b.count)})
	}
	return New(points)
}

// CenteredRollingMean computes a centered moving average over the value
// column. A window position needs at least minPeriods valid neighbours,
// otherwise the output is NaN there. Matches a centered rolling mean with a
// minimum observation count.
func CenteredRollingMean(values []float64, window, minPeriods int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	if minPeriods <= 0 {
		minPeriods = window
	}

	// Centered window of even size w covers [i-w/2, i+w/2-1] with the extra
	// slot on the left, which is the pandas convention.
	before := window / 2
	after := window - before - 1

	for i := 0; i < n; i++ {
		lo := i - before
		if lo < 0 {
			lo = 0
		}
		hi := i + after
		if hi >= n {
			hi = n - 1
		}

		sum := 0.0
		count := 0
		for j := lo; j <= hi; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			count++
		}
		if count < minPeriods {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(count)
		}
	}
	return out
}
