package opt

import "math"

// BuildTour orders points with the nearest-neighbour heuristic, starting and
// ending at start. Ties go to the earliest point in input order. An empty
// input yields [start, start].
func BuildTour(points []Point, start Point) []Point {
	if len(points) == 0 {
		return []Point{start, start}
	}
	visited := make([]bool, len(points))
	tour := make([]Point, 0, len(points)+2)
	tour = append(tour, start)
	cur := start
	for range points {
		next := nearestUnvisited(cur, points, visited)
		visited[next] = true
		tour = append(tour, points[next])
		cur = points[next]
	}
	return append(tour, start)
}

// nearestUnvisited falls back to the first unvisited point when every
// distance is NaN, so the tour stays complete.
func nearestUnvisited(cur Point, points []Point, visited []bool) int {
	next, first := -1, -1
	best := math.Inf(1)
	for i, p := range points {
		if visited[i] {
			continue
		}
		if first < 0 {
			first = i
		}
		if d := Distance(cur, p); d < best {
			best = d
			next = i
		}
	}
	if next < 0 {
		return first
	}
	return next
}
