package opt

// improveEpsilon keeps floating-point noise from counting as an improvement.
const improveEpsilon = 1e-9

// ImproveTour2Opt applies 2-opt segment reversals to a closed tour. The first
// and last stops (the depot) never move and the result is never longer than
// the input.
func ImproveTour2Opt(tour []Point, iterations int) []Point {
	if iterations <= 0 {
		iterations = 1
	}
	best := append([]Point(nil), tour...)
	bestDist := pathLength(best)
	n := len(best)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				cand := twoOptSwap(best, i, k)
				if d := pathLength(cand); d+improveEpsilon < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(tour []Point, i, k int) []Point {
	out := make([]Point, len(tour))
	copy(out, tour[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = tour[j]
		pos++
	}
	copy(out[pos:], tour[k+1:])
	return out
}
