package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.bin")
	content := []byte("the same bytes always hash the same")
	require.NoError(t, os.WriteFile(path, content, 0644))

	got, err := ContentHash(path)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
}

func TestContentHash_MissingFile(t *testing.T) {
	_, err := ContentHash(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, err)
}

// gradient builds an image with a horizontal brightness ramp, which
// produces a stable non-zero dHash.
func gradient(w, h int, slope int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x * slope) % 256)})
		}
	}
	return img
}

func TestPerceptualHashImage_Deterministic(t *testing.T) {
	a := PerceptualHashImage(gradient(100, 80, 2))
	b := PerceptualHashImage(gradient(100, 80, 2))

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestPerceptualHashImage_ScaleInvariant(t *testing.T) {
	// The same ramp at different resolutions lands on the same hash.
	small := PerceptualHashImage(gradient(100, 80, 2))
	large := PerceptualHashImage(gradient(400, 320, 2))

	dist := HammingDistance(small, large)
	assert.LessOrEqual(t, dist, 5, "rescaled image should stay within the exact band")
}

func TestHammingDistance(t *testing.T) {
	assert.Equal(t, 0, HammingDistance("00000000000000ff", "00000000000000ff"))
	assert.Equal(t, 8, HammingDistance("00000000000000ff", "0000000000000000"))
	assert.Equal(t, 64, HammingDistance("0000000000000000", "ffffffffffffffff"))
}

func TestHammingDistance_Incomparable(t *testing.T) {
	assert.Equal(t, IncomparableDistance, HammingDistance("", "00000000000000ff"))
	assert.Equal(t, IncomparableDistance, HammingDistance("not-hex", "00000000000000ff"))
	assert.Equal(t, IncomparableDistance, HammingDistance("00000000000000ff", ""))
}
