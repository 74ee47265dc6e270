package hashing

import (
	"fmt"
	"image"
	"math/bits"
	"os"
	"strconv"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// IncomparableDistance is returned when one or both hashes are missing
// or malformed. Chosen to exceed any real 64-bit distance (max 64).
const IncomparableDistance = 999

const (
	dhashWidth  = 9
	dhashHeight = 8
)

// PerceptualHash computes the 64-bit difference hash of an image file,
// returned as a 16-character hex string. The image is scaled to 9x8
// grayscale and each bit records whether a pixel is brighter than its
// right neighbor.
func PerceptualHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return PerceptualHashImage(img), nil
}

// PerceptualHashImage computes the difference hash of a decoded image
func PerceptualHashImage(img image.Image) string {
	small := image.NewGray(image.Rect(0, 0, dhashWidth, dhashHeight))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	for y := 0; y < dhashHeight; y++ {
		for x := 0; x < dhashWidth-1; x++ {
			left := small.GrayAt(x, y).Y
			right := small.GrayAt(x+1, y).Y
			hash <<= 1
			if left > right {
				hash |= 1
			}
		}
	}

	return fmt.Sprintf("%016x", hash)
}

// HammingDistance counts differing bits between two perceptual hash
// hex strings. Missing or invalid hashes are incomparable, not
// identical, so the sentinel keeps them out of every threshold.
func HammingDistance(hash1, hash2 string) int {
	if hash1 == "" || hash2 == "" {
		return IncomparableDistance
	}

	a, err1 := strconv.ParseUint(hash1, 16, 64)
	b, err2 := strconv.ParseUint(hash2, 16, 64)
	if err1 != nil || err2 != nil {
		return IncomparableDistance
	}

	return bits.OnesCount64(a ^ b)
}
