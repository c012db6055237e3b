// Package stats holds the latency helpers shared by the bench tools.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
)

// TrimmedMean calculates the mean after trimming trimPercent values from each end.
func TrimmedMean(data []float64, trimPercent float64) float64 {
	trimmed := trim(data, trimPercent)
	if len(trimmed) == 0 {
		return 0
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// Percentile calculates the p-th percentile using linear interpolation.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	k := (p / 100.0) * float64(len(sorted)-1)
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[f]*(float64(c)-k) + sorted[c]*(k-float64(f))
}

func trim(data []float64, trimPercent float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	n := int(float64(len(sorted)) * trimPercent / 100.0)
	if n*2 >= len(sorted) {
		n = (len(sorted) - 1) / 2
	}
	return sorted[n : len(sorted)-n]
}

// WriteCSV saves latencies in milliseconds, one per row.
func WriteCSV(path string, latencies []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"latency_ms"}); err != nil {
		return err
	}
	for _, v := range latencies {
		if err := w.Write([]string{fmt.Sprintf("%.3f", v)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
