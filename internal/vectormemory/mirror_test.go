package vectormemory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFloat32RoundTrip exercises the same bit-packing Put/Get use, without
// requiring a live Redis instance, guarding against an endianness or
// truncation regression in the raw mirror's embedding encoding.
func TestFloat32RoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 3.14159, -0.0001, math.MaxFloat32}
	for _, v := range values {
		bits := math.Float32bits(v)
		buf := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
		restored := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		require.Equal(t, v, math.Float32frombits(restored))
	}
}
