package opt

// Route is a closed visiting order for one cluster.
type Route struct {
	Points   []Point `json:"points"`
	Color    string  `json:"color"`
	Distance float64 `json:"distance"`
}

// NewRoute builds the nearest-neighbour tour of c from depot.
func NewRoute(c Cluster, depot Point) Route {
	r := Route{Points: BuildTour(c.Points, depot), Color: c.Color}
	r.Distance = r.Length()
	return r
}

// Length is the sum of consecutive leg lengths, recomputed from Points.
func (r Route) Length() float64 {
	return pathLength(r.Points)
}

// TotalDistance sums the length of every route.
func TotalDistance(routes []Route) float64 {
	total := 0.0
	for _, r := range routes {
		total += r.Length()
	}
	return total
}

func pathLength(pts []Point) float64 {
	total := 0.0
	for i := 0; i < len(pts)-1; i++ {
		total += Distance(pts[i], pts[i+1])
	}
	return total
}
