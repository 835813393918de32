package embedding

import "math"

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or with zero magnitude have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, aMag, bMag float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		aMag += x * x
		bMag += y * y
	}

	if aMag == 0 || bMag == 0 {
		return 0
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag))
}
