package opt

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// DefaultMaxIterations bounds the assignment/update rounds when the caller passes 0.
	DefaultMaxIterations = 20
	// ConvergenceThreshold is the largest centroid movement still treated as stable.
	ConvergenceThreshold = 0.001
)

// Rand is the randomness source used to re-seed empty clusters.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Cluster is one agent's share of the points.
type Cluster struct {
	Centroid Centroid `json:"centroid"`
	Points   []Point  `json:"points"`
	Color    string   `json:"color"`
}

type KMeansOptions struct {
	MaxIterations int
	Rand          Rand
}

// KMeansResult carries the clusters plus run statistics.
type KMeansResult struct {
	Clusters   []Cluster
	Iterations int
	Converged  bool
	Reseeds    int
}

// KMeans partitions points into k clusters with Lloyd's algorithm.
//
// Centroids are seeded from the first k points in input order. k is clamped to
// len(points). A cluster left empty after assignment is re-seeded from a random
// input point drawn from o.Rand. Iteration stops after o.MaxIterations rounds or
// once no centroid moves more than ConvergenceThreshold.
func KMeans(points []Point, k int, o KMeansOptions) KMeansResult {
	if len(points) == 0 || k <= 0 {
		return KMeansResult{Clusters: []Cluster{}}
	}
	if k > len(points) {
		k = len(points)
	}
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	rng := o.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	centroids := make([]r2.Vec, k)
	for i := range centroids {
		centroids[i] = points[i].vec()
	}

	var res KMeansResult
	var members [][]Point
	for it := 0; it < maxIter; it++ {
		res.Iterations++
		members = assign(points, centroids)

		next := make([]r2.Vec, k)
		for j, m := range members {
			if len(m) == 0 {
				next[j] = points[rng.Intn(len(points))].vec()
				res.Reseeds++
				continue
			}
			next[j] = mean(m)
		}

		converged := true
		for j := range centroids {
			if r2.Norm(r2.Sub(centroids[j], next[j])) > ConvergenceThreshold {
				converged = false
				break
			}
		}
		centroids = next
		if converged {
			res.Converged = true
			break
		}
	}

	res.Clusters = make([]Cluster, k)
	for j := range res.Clusters {
		res.Clusters[j] = Cluster{Centroid: centroidOf(centroids[j]), Points: members[j], Color: ColorFor(j)}
	}
	return res
}

// assign groups points by nearest centroid; ties go to the lowest index.
func assign(points []Point, centroids []r2.Vec) [][]Point {
	out := make([][]Point, len(centroids))
	for j := range out {
		out[j] = make([]Point, 0)
	}
	for _, p := range points {
		pv := p.vec()
		best := 0
		bestDist := math.Inf(1)
		for j, c := range centroids {
			if d := r2.Norm(r2.Sub(pv, c)); d < bestDist {
				bestDist = d
				best = j
			}
		}
		out[best] = append(out[best], p)
	}
	return out
}

func mean(points []Point) r2.Vec {
	var sum r2.Vec
	for _, p := range points {
		sum = r2.Add(sum, p.vec())
	}
	n := float64(len(points))
	return r2.Vec{X: sum.X / n, Y: sum.Y / n}
}
