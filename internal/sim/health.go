package sim

// MaxHealth is the ceiling for player and demon health.
const MaxHealth uint8 = 255

// addHealth adds n to h, clamping at MaxHealth.
func addHealth(h, n uint8) uint8 {
	if n > MaxHealth-h {
		return MaxHealth
	}
	return h + n
}

// subHealth removes n from h, clamping at zero.
func subHealth(h, n uint8) uint8 {
	if n >= h {
		return 0
	}
	return h - n
}
