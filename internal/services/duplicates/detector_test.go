package duplicates

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/mediaparser/internal/models"
)

var detectBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// testFile builds a processed file for detection. offset shifts the
// timestamp from the shared base; pass a negative offset sentinel via
// noTimestamp instead for files without one.
func testFile(id, contentHash, perceptualHash string, offset time.Duration) *models.MediaFile {
	ts := detectBase.Add(offset)
	return &models.MediaFile{
		ID:             id,
		SourcePath:     "/src/" + id + ".jpg",
		ContentHash:    contentHash,
		PerceptualHash: perceptualHash,
		FinalTimestamp: &ts,
	}
}

// hexHash builds a 16-hex perceptual hash with the given number of
// bits flipped relative to zero.
func hexHash(bitsSet int) string {
	var v uint64
	for i := 0; i < bitsSet; i++ {
		v |= 1 << i
	}
	return fmt.Sprintf("%016x", v)
}

func TestDetect_ExactByContentHash(t *testing.T) {
	files := []*models.MediaFile{
		testFile("a", "hash1", "", 0),
		testFile("b", "hash1", "", time.Hour),
		testFile("c", "hash2", "", 2*time.Hour),
	}

	exact, similar := Detect(files, 5*time.Second)

	require.Len(t, exact, 1)
	assert.Empty(t, similar)
	assert.ElementsMatch(t, []string{"a", "b"}, exact[0].FileIDs)
	// A group whose members share one content hash keeps the hash as id.
	assert.Equal(t, "hash1", exact[0].GroupID)
}

func TestDetect_PerceptualExactMerge(t *testing.T) {
	// Distance 3: same image re-encoded. Different content hashes, so
	// the merged group cannot use either hash as its id.
	files := []*models.MediaFile{
		testFile("a", "hash1", hexHash(0), 0),
		testFile("b", "hash2", hexHash(3), time.Second),
	}

	exact, similar := Detect(files, 5*time.Second)

	require.Len(t, exact, 1)
	assert.Empty(t, similar)
	assert.ElementsMatch(t, []string{"a", "b"}, exact[0].FileIDs)
	assert.NotEqual(t, "hash1", exact[0].GroupID)
	assert.NotEqual(t, "hash2", exact[0].GroupID)
	assert.Len(t, exact[0].GroupID, 16)
}

func TestDetect_SimilarTiers(t *testing.T) {
	cases := []struct {
		name     string
		distance int
		want     models.ConfidenceLevel
	}{
		{"distance 8 is high", 8, models.ConfidenceHigh},
		{"distance 12 is medium", 12, models.ConfidenceMedium},
		{"distance 18 is low", 18, models.ConfidenceLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := []*models.MediaFile{
				testFile("a", "hash1", hexHash(0), 0),
				testFile("b", "hash2", hexHash(tc.distance), time.Second),
			}

			exact, similar := Detect(files, 5*time.Second)
			assert.Empty(t, exact)
			require.Len(t, similar, 1)
			assert.Equal(t, tc.want, similar[0].Confidence)
		})
	}
}

func TestDetect_DistanceBeyondSimilarBand(t *testing.T) {
	files := []*models.MediaFile{
		testFile("a", "hash1", hexHash(0), 0),
		testFile("b", "hash2", hexHash(25), time.Second),
	}

	exact, similar := Detect(files, 5*time.Second)
	assert.Empty(t, exact)
	assert.Empty(t, similar)
}

func TestDetect_ClusterWindowBoundary(t *testing.T) {
	window := 5 * time.Second

	t.Run("gap exactly at window compares", func(t *testing.T) {
		files := []*models.MediaFile{
			testFile("a", "hash1", hexHash(0), 0),
			testFile("b", "hash2", hexHash(2), window),
		}
		exact, _ := Detect(files, window)
		require.Len(t, exact, 1)
	})

	t.Run("gap past window never compares", func(t *testing.T) {
		files := []*models.MediaFile{
			testFile("a", "hash1", hexHash(0), 0),
			testFile("b", "hash2", hexHash(2), window+time.Millisecond*1000),
		}
		exact, similar := Detect(files, window)
		assert.Empty(t, exact)
		assert.Empty(t, similar)
	})
}

func TestDetect_FilesWithoutTimestampSkipPassB(t *testing.T) {
	noTS := testFile("b", "hash2", hexHash(2), 0)
	noTS.FinalTimestamp = nil

	files := []*models.MediaFile{
		testFile("a", "hash1", hexHash(0), 0),
		noTS,
	}

	exact, similar := Detect(files, 5*time.Second)
	assert.Empty(t, exact)
	assert.Empty(t, similar)
}

func TestDetect_GroupConfidenceIsWeakestPair(t *testing.T) {
	// a-b at distance 8 (high), b-c at distance 8+? Build a chain where
	// one joining pair is low: a=0 bits, b=8 bits, c=20 bits.
	// a-b: 8 (high), b-c: 12 (medium), a-c: 20 (low).
	files := []*models.MediaFile{
		testFile("a", "h1", hexHash(0), 0),
		testFile("b", "h2", hexHash(8), time.Second),
		testFile("c", "h3", hexHash(20), 2*time.Second),
	}

	_, similar := Detect(files, 5*time.Second)
	require.Len(t, similar, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, similar[0].FileIDs)
	assert.Equal(t, models.ConfidenceLow, similar[0].Confidence)
}

func TestDetect_KindClassification(t *testing.T) {
	t.Run("sub-two-second gaps are a burst", func(t *testing.T) {
		files := []*models.MediaFile{
			testFile("a", "h1", hexHash(0), 0),
			testFile("b", "h2", hexHash(8), 1*time.Second),
		}
		_, similar := Detect(files, 5*time.Second)
		require.Len(t, similar, 1)
		assert.Equal(t, models.GroupKindBurst, similar[0].Kind)
	})

	t.Run("slower sweep is a panorama", func(t *testing.T) {
		files := []*models.MediaFile{
			testFile("a", "h1", hexHash(0), 0),
			testFile("b", "h2", hexHash(8), 4*time.Second),
		}
		_, similar := Detect(files, 5*time.Second)
		require.Len(t, similar, 1)
		assert.Equal(t, models.GroupKindPanorama, similar[0].Kind)
	})
}

// hexBits builds a 16-hex perceptual hash with exactly the given bits
// set, so pairwise Hamming distances can be laid out precisely.
func hexBits(bits ...int) string {
	var v uint64
	for _, b := range bits {
		v |= 1 << b
	}
	return fmt.Sprintf("%016x", v)
}

func TestDetect_ExactPairAnchorsChainedSimilars(t *testing.T) {
	// A burst of five: one pair at distance 3 (exact band), the rest
	// chained through similar-band distances. The near-identical pair
	// pulls the whole closed set into one exact group; no similarity
	// group survives alongside it.
	files := []*models.MediaFile{
		testFile("f1", "h1", hexBits(), 0),
		testFile("f2", "h2", hexBits(0, 1, 2), 400*time.Millisecond),                                 // d(f1,f2)=3
		testFile("f3", "h3", hexBits(10, 11, 12, 13, 14, 15, 16), 800*time.Millisecond),              // d(f1,f3)=7
		testFile("f4", "h4", hexBits(20, 21, 22, 23, 24, 25, 26, 27, 28), 1200*time.Millisecond),     // d(f1,f4)=9
		testFile("f5", "h5", hexBits(30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40, 41), 1600*time.Millisecond), // d(f1,f5)=12
	}

	exact, similar := Detect(files, 5*time.Second)

	require.Len(t, exact, 1)
	assert.ElementsMatch(t, []string{"f1", "f2", "f3", "f4", "f5"}, exact[0].FileIDs)
	assert.Empty(t, similar, "an exact-anchored component must not also form a similarity group")

	// Content hashes differ, so the merged group gets an opaque token.
	assert.Len(t, exact[0].GroupID, 16)
}

func TestDetect_TransitiveClusters(t *testing.T) {
	// a and c are 8s apart but chained through b, 4s from each.
	files := []*models.MediaFile{
		testFile("a", "same", "", 0),
		testFile("b", "same", "", 4*time.Second),
		testFile("c", "same", "", 8*time.Second),
	}

	exact, _ := Detect(files, 5*time.Second)
	require.Len(t, exact, 1)
	assert.Len(t, exact[0].FileIDs, 3)
}

func TestSplitClusters(t *testing.T) {
	files := []*models.MediaFile{
		testFile("a", "", "", 0),
		testFile("b", "", "", 3*time.Second),
		testFile("c", "", "", 10*time.Second),
		testFile("d", "", "", 12*time.Second),
	}

	clusters := splitClusters(files, []int{0, 1, 2, 3}, 5*time.Second)
	require.Len(t, clusters, 2)
	assert.Equal(t, []int{0, 1}, clusters[0])
	assert.Equal(t, []int{2, 3}, clusters[1])
}
