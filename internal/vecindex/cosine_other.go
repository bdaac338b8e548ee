//go:build !arm64

package vecindex

import "github.com/viant/vec/search"

// cosineDistanceWithMagnitude calls viant/vec's precomputed-magnitude cosine
// distance, which is exported under a different name per architecture.
func cosineDistanceWithMagnitude(q search.Float32s, vec []float32, m1, m2 float32) float32 {
	return q.CosineDistanceWithMagnitudesNeon(vec, m1, m2)
}
