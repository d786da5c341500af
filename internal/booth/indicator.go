package booth

// distressPattern is three short, three long and three short pulses
// followed by a gap, one entry per poll tick.
var distressPattern = buildDistressPattern()

func buildDistressPattern() []bool {
	short := []bool{true, false}
	long := []bool{true, true, true, false}
	var p []bool
	for _, group := range [][]bool{short, long, short} {
		for i := 0; i < 3; i++ {
			p = append(p, group...)
		}
	}
	return append(p, false, false, false, false)
}
