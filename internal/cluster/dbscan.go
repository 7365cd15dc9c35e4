package cluster

import "math"

// CosineDistance computes 1 - cosine_similarity between two vectors.
// The result lies in [0, 2]; invalid or zero vectors map to the maximum.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to handle floating point drift.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

// distanceMatrix precomputes all pairwise cosine distances. Quadratic in
// the number of points; fine for group sizes up to the low thousands.
func distanceMatrix(embeddings [][]float32) [][]float64 {
	n := len(embeddings)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := CosineDistance(embeddings[i], embeddings[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// dbscan runs density-based clustering over a precomputed distance
// matrix. Labels are assigned in first-encounter order starting at 0;
// with minSamples == 1 every point is a core point, so no point is ever
// labeled noise (-1) and isolated points become singleton clusters.
func dbscan(dist [][]float64, eps float64, minSamples int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	for p := 0; p < n; p++ {
		if labels[p] != -1 {
			continue
		}

		neighbors := regionQuery(dist, p, eps)
		if len(neighbors) < minSamples {
			continue // noise; unreachable with minSamples == 1
		}

		labels[p] = next
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if labels[q] != -1 {
				continue
			}
			labels[q] = next

			qn := regionQuery(dist, q, eps)
			if len(qn) >= minSamples {
				queue = append(queue, qn...)
			}
		}
		next++
	}

	return labels
}

// regionQuery returns all points within eps of p, p included.
func regionQuery(dist [][]float64, p int, eps float64) []int {
	var neighbors []int
	for i, d := range dist[p] {
		if d <= eps {
			neighbors = append(neighbors, i)
		}
	}
	return neighbors
}
