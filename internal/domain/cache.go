package domain

import "time"

// PendingImagePath is the sentinel stored in a cache row's image path while a
// run is in flight. The row doubles as the cross-instance claim for its hash.
const PendingImagePath = "__pending__"

// GenerationStatus enumerates the states the poll endpoint can report.
type GenerationStatus string

const (
	StatusNotFound GenerationStatus = "not_found"
	StatusPending  GenerationStatus = "pending"
	StatusComplete GenerationStatus = "complete"
	StatusError    GenerationStatus = "error"
)

// CacheEntry is one row of the generated-image cache, keyed by the selections
// hash. Created pending by the slot claim; flipped to complete exactly once by
// the publisher.
type CacheEntry struct {
	SelectionsHash string
	SelectionsJSON []byte
	ImagePath      string
	Prompt         string
	OrgID          string
	PhotoID        string
	SessionID      string
	Fingerprint    string
	Model          string
	Passes         int
	Batches        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Pending reports whether the entry is still a claim placeholder.
func (e *CacheEntry) Pending() bool {
	return e != nil && e.ImagePath == PendingImagePath
}
