package pipeline

// SpeedForLoad maps the combined queue depth to a speech-rate multiplier.
// The table is monotonic: a deeper backlog never slows the reader down.
func SpeedForLoad(load int) float64 {
	switch {
	case load <= 5:
		return 1.0
	case load <= 10:
		return 1.2
	case load <= 20:
		return 1.5
	case load <= 30:
		return 2.0
	case load <= 40:
		return 2.5
	default:
		return 3.0
	}
}
