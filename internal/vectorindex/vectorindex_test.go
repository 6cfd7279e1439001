package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineZeroNormYieldsZero(t *testing.T) {
	zero := []float32{0, 0, 0}
	other := []float32{1, 2, 3}
	assert.Zero(t, cosine(zero, other), "expected 0 for zero-norm vector")
	assert.Zero(t, cosine(other, zero), "expected 0 for zero-norm vector")
}

func TestCosineIdenticalVectorsYieldsOne(t *testing.T) {
	v := []float32{1, 2, 3}
	got := cosine(v, v)
	assert.InDelta(t, 1, got, 1e-9, "expected cosine(v,v)=1")
}

func TestCosineMismatchedLengthsUsesShorter(t *testing.T) {
	a := []float32{1, 0, 0, 99}
	b := []float32{1, 0, 0}
	got := cosine(a, b)
	assert.InDelta(t, 1, got, 1e-9, "expected comparison truncated to min length to yield 1")
}

func TestDecodeFloat32LERoundTrip(t *testing.T) {
	raw := []byte{
		0, 0, 128, 63, // 1.0
		0, 0, 0, 64, // 2.0
	}
	out, err := decodeFloat32LE(raw)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out)
}

func TestDecodeFloat32LERejectsInvalidLength(t *testing.T) {
	_, err := decodeFloat32LE([]byte{1, 2, 3})
	assert.Error(t, err, "expected error for non-multiple-of-4 byte length")
}
