package planner

import (
	"sync"

	"routeplan/internal/opt"
)

const recentRunsPerTenant = 50

// RunLog keeps the most recent runs per tenant in memory.
type RunLog struct {
	mu   sync.Mutex
	max  int
	runs map[string][]opt.RunStats
}

func NewRunLog(max int) *RunLog {
	if max <= 0 {
		max = recentRunsPerTenant
	}
	return &RunLog{max: max, runs: map[string][]opt.RunStats{}}
}

func (l *RunLog) Record(tenant string, s opt.RunStats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lst := append(l.runs[tenant], s)
	if len(lst) > l.max {
		lst = append([]opt.RunStats(nil), lst[len(lst)-l.max:]...)
	}
	l.runs[tenant] = lst
}

// Recent returns the tenant's recorded runs, newest first.
func (l *RunLog) Recent(tenant string) []opt.RunStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	lst := l.runs[tenant]
	out := make([]opt.RunStats, 0, len(lst))
	for i := len(lst) - 1; i >= 0; i-- {
		out = append(out, lst[i])
	}
	return out
}
