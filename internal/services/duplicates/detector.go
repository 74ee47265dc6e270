// Package duplicates finds byte-identical and visually similar files.
//
// Detection runs two passes. Pass A buckets files by content hash:
// every bucket of two or more is an exact duplicate group keyed by the
// hash itself. Pass B sorts perceptually hashed files by timestamp,
// splits them into clusters wherever adjacent files are more than the
// cluster window apart, and compares pairs only within a cluster.
// Near-identical pairs merge into exact groups, moderately close pairs
// into similarity groups. One union-find spans both bands, so a
// near-identical pair pulls its whole chained set into the exact group.
package duplicates

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/mediaparser/internal/common"
	"github.com/ternarybob/mediaparser/internal/interfaces"
	"github.com/ternarybob/mediaparser/internal/models"
	"github.com/ternarybob/mediaparser/internal/services/hashing"
)

// Hamming distance thresholds
const (
	exactThreshold   = 5  // 0-5: same image, re-encoded or resized
	similarThreshold = 20 // 6-20: same scene

	// Per-pair confidence tiers within the similar band.
	similarHighMax   = 10
	similarMediumMax = 15
)

// Timestamp gap thresholds classifying a similarity group
const (
	burstGap    = 2 * time.Second
	panoramaGap = 30 * time.Second
)

// Detector runs duplicate detection over a job's processed files
type Detector struct {
	files         interfaces.FileStorage
	jobs          interfaces.JobStorage
	clusterWindow time.Duration
	logger        arbor.ILogger
}

// NewDetector creates a detector. clusterWindow bounds how far apart
// two files' timestamps may be and still be compared in Pass B.
func NewDetector(files interfaces.FileStorage, jobs interfaces.JobStorage, clusterWindow time.Duration, logger arbor.ILogger) *Detector {
	if clusterWindow <= 0 {
		clusterWindow = 5 * time.Second
	}
	return &Detector{
		files:         files,
		jobs:          jobs,
		clusterWindow: clusterWindow,
		logger:        logger,
	}
}

// Run executes both passes for a job and persists group assignments.
// Previous assignments are cleared first so re-detection is idempotent.
func (d *Detector) Run(ctx context.Context, jobID string) (int, int, error) {
	files, err := d.files.ProcessedFiles(ctx, jobID)
	if err != nil {
		return 0, 0, err
	}

	if err := d.files.ClearGroups(ctx, jobID); err != nil {
		return 0, 0, err
	}

	exactGroups, similarGroups := Detect(files, d.clusterWindow)

	for _, g := range exactGroups {
		if err := d.files.SetExactGroup(ctx, g.FileIDs, g.GroupID); err != nil {
			return 0, 0, err
		}
	}
	for _, g := range similarGroups {
		if err := d.files.SetSimilarGroup(ctx, g.FileIDs, g.GroupID, g.Kind, g.Confidence); err != nil {
			return 0, 0, err
		}
	}

	if err := d.jobs.SetGroupCounts(ctx, jobID, len(exactGroups), len(similarGroups)); err != nil {
		return 0, 0, err
	}

	d.logger.Info().
		Str("job_id", jobID).
		Int("files", len(files)).
		Int("exact_groups", len(exactGroups)).
		Int("similar_groups", len(similarGroups)).
		Msg("Duplicate detection complete")

	return len(exactGroups), len(similarGroups), nil
}

// ExactAssignment is one exact group ready to persist
type ExactAssignment struct {
	GroupID string
	FileIDs []string
}

// SimilarAssignment is one similarity group ready to persist
type SimilarAssignment struct {
	GroupID    string
	FileIDs    []string
	Kind       models.GroupKind
	Confidence models.ConfidenceLevel
}

// Detect computes group assignments without touching storage.
//
// All matches feed one union-find, so a pair in the exact band chained
// to pairs in the similar band closes into a single component. A
// component containing any exact-band edge (shared content hash or
// Hamming distance <= 5) becomes an exact group covering every member;
// its similar assignment is suppressed. Only components held together
// exclusively by similar-band edges become similarity groups.
func Detect(files []*models.MediaFile, clusterWindow time.Duration) ([]ExactAssignment, []SimilarAssignment) {
	n := len(files)
	uf := newUnionFind(n)

	// Edges are remembered so components can be classified after all
	// unions have settled.
	type edge struct {
		a, b  int
		exact bool
		conf  models.ConfidenceLevel
	}
	var edges []edge

	// Pass A: content hash buckets.
	byHash := make(map[string][]int)
	for i, f := range files {
		if f.ContentHash != "" {
			byHash[f.ContentHash] = append(byHash[f.ContentHash], i)
		}
	}
	for _, members := range byHash {
		for _, m := range members[1:] {
			edges = append(edges, edge{a: members[0], b: m, exact: true})
		}
	}

	// Pass B: timestamp-clustered perceptual comparison. Files without
	// a perceptual hash or timestamp never enter this pass.
	var comparable []int
	for i, f := range files {
		if f.PerceptualHash != "" && f.FinalTimestamp != nil {
			comparable = append(comparable, i)
		}
	}
	sort.Slice(comparable, func(a, b int) bool {
		ta, tb := files[comparable[a]].FinalTimestamp, files[comparable[b]].FinalTimestamp
		if ta.Equal(*tb) {
			return files[comparable[a]].SourcePath < files[comparable[b]].SourcePath
		}
		return ta.Before(*tb)
	})

	for _, cluster := range splitClusters(files, comparable, clusterWindow) {
		for i := 0; i < len(cluster); i++ {
			for j := i + 1; j < len(cluster); j++ {
				a, b := cluster[i], cluster[j]
				dist := hashing.HammingDistance(files[a].PerceptualHash, files[b].PerceptualHash)

				switch {
				case dist <= exactThreshold:
					edges = append(edges, edge{a: a, b: b, exact: true})
				case dist <= similarThreshold:
					edges = append(edges, edge{a: a, b: b, conf: pairTier(dist)})
				}
			}
		}
	}

	for _, e := range edges {
		uf.union(e.a, e.b)
	}

	// Classify each component: one exact edge anywhere anchors the
	// whole closed set as exact. The weakest similar pair that joined a
	// similar-only component sets its confidence.
	exactRoots := make(map[int]bool)
	for _, e := range edges {
		if e.exact {
			exactRoots[uf.find(e.a)] = true
		}
	}
	confByRoot := make(map[int]models.ConfidenceLevel)
	for _, e := range edges {
		if e.exact {
			continue
		}
		root := uf.find(e.a)
		if exactRoots[root] {
			continue
		}
		if existing, ok := confByRoot[root]; !ok || weaker(e.conf, existing) {
			confByRoot[root] = e.conf
		}
	}

	components := make(map[int][]int)
	for i := range files {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	var exact []ExactAssignment
	var similar []SimilarAssignment
	for root, members := range components {
		if len(members) < 2 {
			continue
		}
		if exactRoots[root] {
			exact = append(exact, ExactAssignment{
				GroupID: exactGroupID(files, members),
				FileIDs: memberIDs(files, members),
			})
			continue
		}

		confidence, ok := confByRoot[root]
		if !ok {
			confidence = models.ConfidenceLow
		}
		times := make([]time.Time, 0, len(members))
		for _, m := range members {
			if ts := files[m].FinalTimestamp; ts != nil {
				times = append(times, *ts)
			}
		}
		similar = append(similar, SimilarAssignment{
			GroupID:    common.NewGroupID(),
			FileIDs:    memberIDs(files, members),
			Kind:       classifyKind(times),
			Confidence: confidence,
		})
	}

	sort.Slice(exact, func(i, j int) bool {
		return exact[i].FileIDs[0] < exact[j].FileIDs[0]
	})
	sort.Slice(similar, func(i, j int) bool {
		return similar[i].FileIDs[0] < similar[j].FileIDs[0]
	})
	return exact, similar
}

// exactGroupID names an exact group: the shared content hash when every
// member carries the same one, an opaque token for components bridged
// by perceptual merges.
func exactGroupID(files []*models.MediaFile, members []int) string {
	hash := files[members[0]].ContentHash
	for _, m := range members[1:] {
		if files[m].ContentHash != hash {
			return common.NewGroupID()
		}
	}
	if hash == "" {
		return common.NewGroupID()
	}
	return hash
}

func memberIDs(files []*models.MediaFile, members []int) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = files[m].ID
	}
	sort.Strings(ids)
	return ids
}

// classifyKind labels a group by the widest gap between consecutive
// member timestamps: rapid fire is a burst, a slow sweep is a
// panorama, anything slower is plain similarity.
func classifyKind(times []time.Time) models.GroupKind {
	if len(times) < 2 {
		return models.GroupKindSimilar
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var maxGap time.Duration
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap > maxGap {
			maxGap = gap
		}
	}

	switch {
	case maxGap < burstGap:
		return models.GroupKindBurst
	case maxGap < panoramaGap:
		return models.GroupKindPanorama
	default:
		return models.GroupKindSimilar
	}
}

// splitClusters walks timestamp-sorted indices and cuts wherever the
// gap to the previous file exceeds the window
func splitClusters(files []*models.MediaFile, sorted []int, window time.Duration) [][]int {
	var clusters [][]int
	var current []int

	for _, idx := range sorted {
		if len(current) > 0 {
			prev := files[current[len(current)-1]].FinalTimestamp
			cur := files[idx].FinalTimestamp
			if cur.Sub(*prev) > window {
				clusters = append(clusters, current)
				current = nil
			}
		}
		current = append(current, idx)
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

// pairTier maps a Hamming distance in the similar band to a tier
func pairTier(distance int) models.ConfidenceLevel {
	switch {
	case distance <= similarHighMax:
		return models.ConfidenceHigh
	case distance <= similarMediumMax:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// weaker reports whether a is a weaker tier than b
func weaker(a, b models.ConfidenceLevel) bool {
	return tierRank(a) < tierRank(b)
}

func tierRank(level models.ConfidenceLevel) int {
	switch level {
	case models.ConfidenceHigh:
		return 3
	case models.ConfidenceMedium:
		return 2
	case models.ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// unionFind is a standard disjoint set with path compression
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
