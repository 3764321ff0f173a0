package source

import "context"

// Candidate is one image result returned by an image search.
type Candidate struct {
	URL       string // original image URL
	Thumbnail string
	Title     string
	Source    string // site the image was found on
	Width     int    // 0 when unknown
	Height    int    // 0 when unknown
}

// ImageSearcher finds candidate images for a keyword.
type ImageSearcher interface {
	// GetSourceID returns the stable identifier of the search provider.
	GetSourceID() string

	// Search queries the provider for keyword.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - keyword: free-text search term.
	// Returns:
	//   - []Candidate: results in provider order, possibly empty.
	//   - error: non-nil if the request fails.
	Search(ctx context.Context, keyword string) ([]Candidate, error)
}
