package qa

// ConfidenceFromDistance maps an L2 distance to (0, 1] via 1/(1+d).
//
// The value is a ranking heuristic, strictly decreasing in distance. It is not
// a calibrated probability and only supports relative comparison and
// threshold gating.
func ConfidenceFromDistance(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
