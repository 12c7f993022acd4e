package eventctx

import "math"

// wc1994MedianArea returns the Wells & Coppersmith (1994) median rupture area
// in km² for a magnitude, selecting coefficients by faulting style from the
// rake angle. A NaN rake uses the "all styles" coefficients.
func wc1994MedianArea(mag, rake float64) float64 {
	var a, b float64
	switch {
	case math.IsNaN(rake):
		a, b = -3.49, 0.91
	case (rake > -45 && rake <= 45) || rake > 135 || rake <= -135:
		// strike slip
		a, b = -3.42, 0.90
	case rake > 45 && rake <= 135:
		// reverse
		a, b = -3.99, 0.98
	default:
		// normal
		a, b = -2.87, 0.82
	}
	return math.Pow(10, a+b*mag)
}

// vs30ToZ1pt0 estimates the depth (m) to the 1.0 km/s shear-wave velocity
// horizon from vs30 using the Chiou & Youngs (2014) California relation.
func vs30ToZ1pt0(vs30 float64) float64 {
	const c = 571.0
	num := math.Pow(vs30, 4) + math.Pow(c, 4)
	den := math.Pow(1360, 4) + math.Pow(c, 4)
	return math.Exp(-7.15 / 4 * math.Log(num/den))
}

// vs30ToZ2pt5 estimates the depth (km) to the 2.5 km/s shear-wave velocity
// horizon from vs30 using the Campbell & Bozorgnia (2014) relation.
func vs30ToZ2pt5(vs30 float64) float64 {
	return math.Exp(7.089 - 1.144*math.Log(vs30))
}
