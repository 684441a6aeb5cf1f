// Package search enumerates seasonal ARIMA candidate orders and runs the
// AIC-driven model selection over them.
package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quantfold/pricecast/pkg/sarima"
)

// InvalidRangeError reports a malformed or out-of-order range spec.
type InvalidRangeError struct {
	Spec   string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("search: invalid range %q: %s", e.Spec, e.Reason)
}

// Range is an inclusive integer interval over one order dimension.
type Range struct {
	Min int
	Max int
}

// Len returns the number of values in the range.
func (r Range) Len() int {
	return r.Max - r.Min + 1
}

func (r Range) String() string {
	if r.Min == r.Max {
		return strconv.Itoa(r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ParseRange parses "lo-hi" or a single value "n" (meaning n-n). Bounds
// must be non-negative and lo <= hi.
func ParseRange(spec string) (Range, error) {
	lo, hi, found := strings.Cut(spec, "-")
	if !found {
		hi = lo
	}

	minVal, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return Range{}, &InvalidRangeError{Spec: spec, Reason: "lower bound is not an integer"}
	}
	maxVal, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return Range{}, &InvalidRangeError{Spec: spec, Reason: "upper bound is not an integer"}
	}
	if minVal < 0 {
		return Range{}, &InvalidRangeError{Spec: spec, Reason: "bounds must be non-negative"}
	}
	if minVal > maxVal {
		return Range{}, &InvalidRangeError{Spec: spec, Reason: "lower bound exceeds upper bound"}
	}
	return Range{Min: minVal, Max: maxVal}, nil
}

// Fixed holds the order components held constant across the whole search:
// the differencing degrees and the seasonal period.
type Fixed struct {
	D  int
	SD int
	S  int
}

// Space is the Cartesian product of ranges over the four searched
// dimensions p, q, P, Q.
type Space struct {
	P  Range
	Q  Range
	SP Range
	SQ Range
}

// Size returns the number of candidate orders in the space.
func (s Space) Size() int {
	return s.P.Len() * s.Q.Len() * s.SP.Len() * s.SQ.Len()
}

func (s Space) String() string {
	return fmt.Sprintf("p=%s q=%s P=%s Q=%s", s.P, s.Q, s.SP, s.SQ)
}

// Enumerate lists every candidate order in lexicographic (p, q, P, Q)
// order. The position in the returned slice is the candidate's canonical
// index, used for deterministic tie-breaking.
func (s Space) Enumerate(fixed Fixed) []sarima.Order {
	orders := make([]sarima.Order, 0, s.Size())
	for p := s.P.Min; p <= s.P.Max; p++ {
		for q := s.Q.Min; q <= s.Q.Max; q++ {
			for sp := s.SP.Min; sp <= s.SP.Max; sp++ {
				for sq := s.SQ.Min; sq <= s.SQ.Max; sq++ {
					orders = append(orders, sarima.Order{
						P: p, D: fixed.D, Q: q,
						SP: sp, SD: fixed.SD, SQ: sq,
						S: fixed.S,
					})
				}
			}
		}
	}
	return orders
}
