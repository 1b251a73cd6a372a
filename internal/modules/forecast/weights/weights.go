// Package weights computes balanced class weights for the binary
// maintenance label.
package weights

import (
	"fmt"
	"strconv"
)

// DegenerateLabelsError is returned when a class has no examples, since a
// balanced weight for it is undefined.
type DegenerateLabelsError struct {
	Class  int8
	Counts map[int8]int
}

func (e *DegenerateLabelsError) Error() string {
	return fmt.Sprintf("class %d has no examples (counts=%v)", e.Class, e.Counts)
}

// Compute returns total/(2*count) for classes 0 and 1, so that
// weight(c)*count(c) is equal for both.
func Compute(labels []int8) (map[int8]float64, error) {
	counts := map[int8]int{0: 0, 1: 0}
	for _, l := range labels {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("label %d is not binary", l)
		}
		counts[l]++
	}
	for _, c := range []int8{0, 1} {
		if counts[c] == 0 {
			return nil, &DegenerateLabelsError{Class: c, Counts: counts}
		}
	}
	total := float64(len(labels))
	return map[int8]float64{
		0: total / (2 * float64(counts[0])),
		1: total / (2 * float64(counts[1])),
	}, nil
}

// Keyed renders weights with string keys for JSON artifacts.
func Keyed(w map[int8]float64) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[strconv.Itoa(int(k))] = v
	}
	return out
}
