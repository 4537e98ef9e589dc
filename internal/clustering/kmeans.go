package clustering

// k-means over cosine distance, used for batches too small for HDBSCAN and
// as its failure fallback. Initialization is deterministic (farthest-point)
// so repeated runs over the same batch agree.

const kmeansMaxIterations = 50

func runKMeans(vectors [][]float64, k int) []int {
	n := len(vectors)
	assignments := make([]int, n)
	if n == 0 {
		return assignments
	}
	if k >= n {
		for i := range assignments {
			assignments[i] = i
		}
		return assignments
	}

	centroids := initCentroids(vectors, k)
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := 0
			bestDist := cosineDistance(v, centroids[0])
			for c := 1; c < k; c++ {
				if d := cosineDistance(v, centroids[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recomputeCentroids(vectors, assignments, k)
	}
	return assignments
}

// initCentroids seeds with the first vector, then repeatedly takes the
// vector farthest from every chosen centroid.
func initCentroids(vectors [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, vectors[0])

	for len(centroids) < k {
		farthest := 0
		farthestDist := -1.0
		for i, v := range vectors {
			nearest := 2.0
			for _, c := range centroids {
				if d := cosineDistance(v, c); d < nearest {
					nearest = d
				}
			}
			if nearest > farthestDist {
				farthestDist = nearest
				farthest = i
			}
		}
		centroids = append(centroids, vectors[farthest])
	}
	return centroids
}

func recomputeCentroids(vectors [][]float64, assignments []int, k int) [][]float64 {
	dim := len(vectors[0])
	centroids := make([][]float64, k)
	counts := make([]int, k)
	for c := range centroids {
		centroids[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for j, val := range v {
			centroids[c][j] += val
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			// Reseed emptied centroids.
			centroids[c] = vectors[0]
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] /= float64(counts[c])
		}
	}
	return centroids
}
