package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(vals ...float32) []float32 {
	var norm float64
	for _, v := range vals {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func TestCosineDistance(t *testing.T) {
	a := unit(1, 0, 0, 0)
	b := unit(0, 1, 0, 0)

	assert.InDelta(t, 0.0, CosineDistance(a, a), 1e-6)
	assert.InDelta(t, 1.0, CosineDistance(a, b), 1e-6)

	neg := unit(-1, 0, 0, 0)
	assert.InDelta(t, 2.0, CosineDistance(a, neg), 1e-6)

	// Near-duplicate: normalize(e1 + 0.2*e2) vs e1.
	near := unit(1, 0.2, 0, 0)
	d := CosineDistance(a, near)
	assert.InDelta(t, 0.0194, d, 0.001)
}

func TestCosineDistanceDegenerate(t *testing.T) {
	a := unit(1, 0, 0, 0)

	assert.Equal(t, 2.0, CosineDistance(a, []float32{1, 0}))
	assert.Equal(t, 2.0, CosineDistance(nil, nil))
	assert.Equal(t, 2.0, CosineDistance(a, []float32{0, 0, 0, 0}))
}

func TestDistanceMatrixSymmetry(t *testing.T) {
	embs := [][]float32{
		unit(1, 0, 0, 0),
		unit(1, 0.2, 0, 0),
		unit(0, 1, 0, 0),
	}
	dist := distanceMatrix(embs)

	require.Len(t, dist, 3)
	for i := range dist {
		assert.Equal(t, 0.0, dist[i][i])
		for j := range dist {
			assert.Equal(t, dist[i][j], dist[j][i])
		}
	}
}

func TestDBSCANSeparatesClusters(t *testing.T) {
	// Three near-duplicates plus two unrelated points.
	embs := [][]float32{
		unit(1, 0, 0, 0),
		unit(1, 0.2, 0, 0),
		unit(1, 0, 0.2, 0),
		unit(0, 1, 0, 0),
		unit(0, 0, 0, 1),
	}
	labels := dbscan(distanceMatrix(embs), 0.1, 1)

	require.Len(t, labels, 5)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.NotEqual(t, labels[0], labels[3])
	assert.NotEqual(t, labels[0], labels[4])
	assert.NotEqual(t, labels[3], labels[4])

	// First-encounter label order.
	assert.Equal(t, 0, labels[0])
	assert.Equal(t, 1, labels[3])
	assert.Equal(t, 2, labels[4])
}

func TestDBSCANSingletons(t *testing.T) {
	// minSamples == 1: isolated points become singleton clusters, never noise.
	embs := [][]float32{
		unit(1, 0, 0, 0),
		unit(0, 1, 0, 0),
		unit(0, 0, 1, 0),
	}
	labels := dbscan(distanceMatrix(embs), 0.1, 1)

	assert.Equal(t, []int{0, 1, 2}, labels)
}

func TestDBSCANChainExpansion(t *testing.T) {
	// a-b and b-c are within eps but a-c is not; density reachability
	// still puts all three in one cluster.
	a := unit(1, 0, 0, 0)
	b := unit(1, 0.3, 0, 0)
	c := unit(1, 0.6, 0, 0)

	dist := distanceMatrix([][]float32{a, b, c})
	eps := dist[0][1] + 0.005
	require.Less(t, eps, dist[0][2])
	require.Greater(t, eps, dist[1][2])

	labels := dbscan(dist, eps, 1)
	assert.Equal(t, []int{0, 0, 0}, labels)
}

func TestDBSCANThresholdRefinement(t *testing.T) {
	// A pair ~0.07 apart: merged at eps 0.1, split at eps 0.05.
	embs := [][]float32{
		unit(1, 0, 0, 0),
		unit(1, 0.4, 0, 0),
	}
	dist := distanceMatrix(embs)
	require.InDelta(t, 0.0715, dist[0][1], 0.005)

	loose := dbscan(dist, 0.1, 1)
	assert.Equal(t, loose[0], loose[1])

	tight := dbscan(dist, 0.05, 1)
	assert.NotEqual(t, tight[0], tight[1])
}

func TestDBSCANEmpty(t *testing.T) {
	labels := dbscan(nil, 0.1, 1)
	assert.Empty(t, labels)
}

func TestDBSCANDeterministic(t *testing.T) {
	embs := [][]float32{
		unit(1, 0.1, 0, 0),
		unit(0, 1, 0.1, 0),
		unit(1, 0, 0.1, 0),
		unit(0, 1, 0, 0.1),
	}
	dist := distanceMatrix(embs)

	first := dbscan(dist, 0.1, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, dbscan(dist, 0.1, 1))
	}
}
