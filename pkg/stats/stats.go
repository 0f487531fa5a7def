// Package stats reduces raw timing series to a single representative value.
package stats

import (
	"math"
	"slices"
)

// DefaultTrimFraction is the share of samples dropped from each end.
const DefaultTrimFraction = 0.1

// MinTrimmedSamples is the repetition count from which Summarize switches
// from the plain mean to the trimmed mean.
const MinTrimmedSamples = 5

// Mean returns the arithmetic mean, or 0 for no samples.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// Median returns the middle value (mean of the two middle values for an
// even count), or 0 for no samples. The input is not modified.
func Median(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// TrimmedMean drops floor(n*fraction) samples from each end of the sorted
// series and averages the rest. When trimming would leave nothing it falls
// back to the median.
func TrimmedMean(samples []float64, fraction float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	k := int(math.Floor(float64(n) * fraction))
	if k*2 >= n {
		return Median(samples)
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	kept := sorted[k : n-k]
	if len(kept) == 0 {
		return Median(samples)
	}
	return Mean(kept)
}

// Summarize picks the statistic for a series gathered over repetitions
// iterations: the trimmed mean when repetitions >= MinTrimmedSamples,
// otherwise the mean.
func Summarize(samples []float64, repetitions int, fraction float64) float64 {
	if repetitions >= MinTrimmedSamples {
		return TrimmedMean(samples, fraction)
	}
	return Mean(samples)
}
