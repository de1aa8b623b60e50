package chunk

import (
	"github.com/rediverio/reviewd/pkg/classify"
	"github.com/rediverio/reviewd/pkg/review"
)

// Chunk is one bounded group of files reviewed together as a single
// analysis unit. IDs are sequential and 1-based in creation order; the file
// order inside a chunk is pack order.
type Chunk struct {
	ID             int                 `json:"id"`
	Files          []review.FileChange `json:"files"`
	TotalLines     int                 `json:"total_lines"`
	EstimatedUnits int                 `json:"estimated_units"`

	// Tier is the most urgent tier among the member files.
	Tier classify.Tier `json:"tier"`
}

// Group collects files of one reporting type (backend, frontend, test,
// config, docs, other) for the analyze preview. Groups never influence
// packing.
type Group struct {
	Name         string              `json:"name"`
	Files        []review.FileChange `json:"files"`
	TotalChanges int                 `json:"total_changes"`
	Tier         classify.Tier       `json:"tier"`
}
