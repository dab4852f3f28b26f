package domain

import (
	"encoding/json"
	"time"
)

// Fragment is one chunked and embedded slice of a document, written by the
// webhook consumer after a successful forward
type Fragment struct {
	ID             int64
	Content        *string
	Metadata       json.RawMessage
	HasEmbedding   bool
	DocumentID     string
	ProcessedByN8N bool
	ProcessedAt    *time.Time
	ChunksCount    int
	SourceURL      string
	CreatedAt      time.Time

	Parent *FragmentParent
}

// FragmentParent is the slice of the parent document shown next to a fragment
type FragmentParent struct {
	ID          string
	Title       string
	Description string
	Flow        Flow
}

// FragmentStats summarizes the vectorized fragment table
type FragmentStats struct {
	TotalVectorized int64
	TotalChunks     int64
	PendingCount    int64
	LastProcessed   *LastProcessed
}

// LastProcessed identifies the most recently processed fragment
type LastProcessed struct {
	Title       string
	ProcessedAt time.Time
}

// ScoredFragment is a fragment returned from a similarity search
type ScoredFragment struct {
	Fragment *Fragment
	Score    float64
}

// Contents returns the fragment body as a list of text segments
func (f *Fragment) Contents() []string {
	if f.Content == nil || *f.Content == "" {
		return []string{}
	}
	return []string{*f.Content}
}
