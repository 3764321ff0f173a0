package domain

import (
	"strconv"
)

// Defaults applied to published memes whose analysis left a field blank.
const (
	DefaultTitle   = "무제"
	DefaultUnknown = "알수없음"
)

// PublishedMeme is one entry of the public dataset.
// SourceFile is provenance and is stripped before the public file is written.
type PublishedMeme struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	Situation   string   `json:"situation"`
	Episode     string   `json:"episode"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	Member      string   `json:"member"`
	BlurHash    string   `json:"blurhash,omitempty"`
	SourceFile  string   `json:"_sourceFile,omitempty"`
}

// NumericID returns the integer id, or false when the id is not numeric.
func (m *PublishedMeme) NumericID() (int, bool) {
	n, err := strconv.Atoi(m.ID)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextID returns the max numeric id in memes plus one, or 1 when none exist.
func NextID(memes []PublishedMeme) int {
	max := 0
	for i := range memes {
		if n, ok := memes[i].NumericID(); ok && n > max {
			max = n
		}
	}
	return max + 1
}

// StripProvenance returns a copy of memes without provenance fields.
func StripProvenance(memes []PublishedMeme) []PublishedMeme {
	out := make([]PublishedMeme, len(memes))
	for i, m := range memes {
		m.SourceFile = ""
		out[i] = m
	}
	return out
}

// PublishedSources returns the set of source filenames already published.
func PublishedSources(memes []PublishedMeme) map[string]struct{} {
	set := make(map[string]struct{}, len(memes))
	for _, m := range memes {
		if m.SourceFile != "" {
			set[m.SourceFile] = struct{}{}
		}
	}
	return set
}
