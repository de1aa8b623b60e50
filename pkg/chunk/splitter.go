package chunk

import (
	"sort"

	"github.com/rediverio/reviewd/pkg/classify"
	"github.com/rediverio/reviewd/pkg/review"
)

// Splitter packs changed files into review chunks.
type Splitter struct {
	cfg Config
}

// NewSplitter creates a splitter with the given config.
func NewSplitter(cfg *Config) *Splitter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Splitter{cfg: cfg.normalized()}
}

// EstimateUnits returns the heuristic analysis cost for one file: whichever
// is larger of the line-based and diff-length-based estimates.
func EstimateUnits(f review.FileChange) int {
	lineUnits := f.ChangedLines() * UnitsPerLine
	patchUnits := len(f.Patch) / CharsPerUnit
	if patchUnits > lineUnits {
		return patchUnits
	}
	return lineUnits
}

// sortForPacking drops Skip-tier files and orders the rest by tier
// (most urgent first), then changed-line count descending. The sort is
// stable, so files with equal tier and size keep their input order and the
// result is deterministic.
func (s *Splitter) sortForPacking(files []review.FileChange) []review.FileChange {
	kept := make([]review.FileChange, 0, len(files))
	tiers := make(map[int]classify.Tier, len(files))
	for _, f := range files {
		tier := classify.Classify(f)
		if tier == classify.TierSkip {
			continue
		}
		tiers[len(kept)] = tier
		kept = append(kept, f)
	}

	order := make([]int, len(kept))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := tiers[order[a]], tiers[order[b]]
		if ta != tb {
			return ta.MoreUrgentThan(tb)
		}
		return kept[order[a]].ChangedLines() > kept[order[b]].ChangedLines()
	})

	sorted := make([]review.FileChange, len(kept))
	for i, idx := range order {
		sorted[i] = kept[idx]
	}
	return sorted
}

// Split partitions the files into chunks.
//
// Every non-Skip input file lands in exactly one chunk. A file is packed
// into the current chunk unless doing so would exceed either budget and the
// chunk already holds something; then the chunk is closed and the file
// starts the next one. The non-empty guard is what lets a single oversized
// file exceed the unit budget alone instead of being dropped.
func (s *Splitter) Split(files []review.FileChange) []Chunk {
	sorted := s.sortForPacking(files)

	var chunks []Chunk
	var current []review.FileChange
	currentUnits := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, newChunk(len(chunks)+1, current, currentUnits))
		current = nil
		currentUnits = 0
	}

	for _, f := range sorted {
		units := EstimateUnits(f)
		if len(current) > 0 &&
			(currentUnits+units > s.cfg.MaxUnitsPerChunk || len(current) >= s.cfg.MaxFilesPerChunk) {
			flush()
		}
		current = append(current, f)
		currentUnits += units
	}
	flush()

	return chunks
}

func newChunk(id int, files []review.FileChange, units int) Chunk {
	tier := classify.Classify(files[0])
	totalLines := 0
	for _, f := range files {
		totalLines += f.ChangedLines()
		if t := classify.Classify(f); t.MoreUrgentThan(tier) {
			tier = t
		}
	}
	return Chunk{
		ID:             id,
		Files:          files,
		TotalLines:     totalLines,
		EstimatedUnits: units,
		Tier:           tier,
	}
}

// SkippedPaths returns the paths of files excluded from review by
// classification, in input order.
func SkippedPaths(files []review.FileChange) []string {
	var skipped []string
	for _, f := range files {
		if classify.Classify(f) == classify.TierSkip {
			skipped = append(skipped, f.Filename)
		}
	}
	return skipped
}

// groupTiers fixes the reporting priority for each type group.
var groupTiers = map[string]classify.Tier{
	"backend":  classify.TierCritical,
	"frontend": classify.TierHigh,
	"config":   classify.TierHigh,
	"test":     classify.TierMedium,
	"docs":     classify.TierLow,
	"other":    classify.TierLow,
}

// GroupByType buckets non-skipped files by reporting type. Only non-empty
// groups are returned.
func GroupByType(files []review.FileChange) map[string]*Group {
	groups := make(map[string]*Group)
	for _, f := range files {
		if classify.ShouldSkip(f.Filename) {
			continue
		}
		name := classify.TypeGroup(f.Filename)
		g, ok := groups[name]
		if !ok {
			g = &Group{Name: name, Tier: groupTiers[name]}
			groups[name] = g
		}
		g.Files = append(g.Files, f)
		g.TotalChanges += f.ChangedLines()
	}
	return groups
}
