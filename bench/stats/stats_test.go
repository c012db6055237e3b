package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimmedMean(t *testing.T) {
	data := []float64{1000, 2, 3, 4, 0}
	// 20% trims one value from each end: mean of 2,3,4
	require.InDelta(t, 3.0, TrimmedMean(data, 20), 1e-9)
	require.Equal(t, []float64{1000, 2, 3, 4, 0}, data, "input must not be reordered")
	require.Zero(t, TrimmedMean(nil, 1))
	require.InDelta(t, 5.0, TrimmedMean([]float64{5}, 50), 1e-9)
}

func TestPercentile(t *testing.T) {
	data := []float64{4, 1, 3, 2, 5}
	require.InDelta(t, 3.0, Percentile(data, 50), 1e-9)
	require.InDelta(t, 5.0, Percentile(data, 100), 1e-9)
	require.InDelta(t, 1.0, Percentile(data, 0), 1e-9)
	require.InDelta(t, 1.5, Percentile([]float64{1, 2}, 50), 1e-9)
	require.Zero(t, Percentile(nil, 90))
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lat.csv")
	require.NoError(t, WriteCSV(path, []float64{1.5, 2}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"latency_ms", "1.500", "2.000"}, strings.Fields(string(b)))
}
