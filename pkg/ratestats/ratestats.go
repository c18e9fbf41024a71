// Package ratestats computes summary statistics over exchange rate samples.
package ratestats

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Stats accumulates rate samples. With a window, only the most recent
// window samples count toward min, max, mean and deviation; First always
// reports the first sample ever added.
type Stats struct {
	window int
	values []decimal.Decimal
	first  decimal.Decimal
	total  int
}

// New creates a Stats over the last window samples. A window below 1 keeps
// every sample.
func New(window int) *Stats {
	if window < 0 {
		window = 0
	}
	return &Stats{window: window}
}

// Add records a sample.
func (s *Stats) Add(v decimal.Decimal) {
	if s.total == 0 {
		s.first = v
	}
	s.total++
	s.values = append(s.values, v)
	if s.window > 0 && len(s.values) > s.window {
		s.values = s.values[1:]
	}
}

// Count returns the number of samples ever added.
func (s *Stats) Count() int {
	return s.total
}

// Len returns the number of samples in the window.
func (s *Stats) Len() int {
	return len(s.values)
}

// First returns the first sample, or zero when empty.
func (s *Stats) First() decimal.Decimal {
	return s.first
}

// Last returns the most recent sample, or zero when empty.
func (s *Stats) Last() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return s.values[len(s.values)-1]
}

// Min returns the smallest sample in the window.
func (s *Stats) Min() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return decimal.Min(s.values[0], s.values[1:]...)
}

// Max returns the largest sample in the window.
func (s *Stats) Max() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return decimal.Max(s.values[0], s.values[1:]...)
}

// Mean returns the arithmetic mean of the window.
func (s *Stats) Mean() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, s.values...).Div(decimal.NewFromInt(int64(len(s.values))))
}

// StdDev returns the population standard deviation of the window.
func (s *Stats) StdDev() decimal.Decimal {
	if len(s.values) < 2 {
		return decimal.Zero
	}
	mean := s.Mean()

	// Variance: sum((x - mean)^2) / n
	var sumSquares decimal.Decimal
	for _, v := range s.values {
		diff := v.Sub(mean)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}
	variance := sumSquares.Div(decimal.NewFromInt(int64(len(s.values))))

	return sqrt(variance)
}

// ChangePct returns the change from the first to the last sample in percent.
func (s *Stats) ChangePct() decimal.Decimal {
	if s.total == 0 || s.first.IsZero() {
		return decimal.Zero
	}
	return s.Last().Sub(s.first).Div(s.first).Mul(hundred)
}

// RangePct returns (max - min) / mean in percent.
func (s *Stats) RangePct() decimal.Decimal {
	mean := s.Mean()
	if mean.IsZero() {
		return decimal.Zero
	}
	return s.Max().Sub(s.Min()).Div(mean).Mul(hundred)
}

// Reset clears all samples.
func (s *Stats) Reset() {
	s.values = s.values[:0]
	s.first = decimal.Zero
	s.total = 0
}

// sqrt calculates the square root of a decimal using Newton's method.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.Zero
	}

	guess := d.Div(decimal.NewFromInt(2))
	if guess.IsZero() {
		guess = decimal.NewFromInt(1)
	}

	// x_new = (x + d/x) / 2
	two := decimal.NewFromInt(2)
	epsilon := decimal.New(1, -12)

	for i := 0; i < 100; i++ {
		next := guess.Add(d.Div(guess)).Div(two)
		if next.Sub(guess).Abs().LessThan(epsilon) {
			return next.Round(12)
		}
		guess = next
	}

	return guess.Round(12)
}
