package opt

// RunStats summarises one clustering/routing run.
type RunStats struct {
	PlanID        string  `json:"planId"`
	Stage         string  `json:"stage"`
	Points        int     `json:"points"`
	K             int     `json:"k"`
	Iterations    int     `json:"iterations"`
	Converged     bool    `json:"converged"`
	Reseeds       int     `json:"reseeds"`
	Routes        int     `json:"routes"`
	TotalDistance float64 `json:"totalDistance"`
	Improved      bool    `json:"improved"`
	Seed          int64   `json:"seed"`
	DurationMs    int64   `json:"durationMs"`
}
