package domain

import (
	"encoding/json"
	"time"
)

// AnalysisEntry is the classification result for one manifest filename.
// When Relevant is false the descriptive fields are empty.
type AnalysisEntry struct {
	Filename    string    `json:"filename"`
	Relevant    bool      `json:"relevant"`
	Title       string    `json:"title,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Situation   string    `json:"situation,omitempty"`
	Description string    `json:"description,omitempty"`
	Member      string    `json:"member,omitempty"`
	Episode     string    `json:"episode,omitempty"`
	Emotion     string    `json:"emotion,omitempty"`
	SourceURL   string    `json:"sourceUrl"`
	Keyword     string    `json:"keyword"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// UnmarshalJSON treats a missing "relevant" key as relevant, so hand-edited
// entries are not silently dropped at publish time.
func (e *AnalysisEntry) UnmarshalJSON(data []byte) error {
	type rawEntry AnalysisEntry
	raw := rawEntry{Relevant: true}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = AnalysisEntry(raw)
	return nil
}

// AnalysisSet holds at most one entry per filename, in insertion order.
type AnalysisSet struct {
	Entries []AnalysisEntry
}

// NewAnalysisSet wraps entries. Later duplicates of a filename win.
func NewAnalysisSet(entries []AnalysisEntry) *AnalysisSet {
	s := &AnalysisSet{Entries: make([]AnalysisEntry, 0, len(entries))}
	for _, e := range entries {
		s.Upsert(e)
	}
	return s
}

// Has reports whether an entry exists for filename.
func (s *AnalysisSet) Has(filename string) bool {
	return s.indexOf(filename) != -1
}

// Get returns the entry for filename, or nil.
func (s *AnalysisSet) Get(filename string) *AnalysisEntry {
	if idx := s.indexOf(filename); idx != -1 {
		return &s.Entries[idx]
	}
	return nil
}

// Upsert removes any prior entry for the same filename and appends e.
func (s *AnalysisSet) Upsert(e AnalysisEntry) {
	if idx := s.indexOf(e.Filename); idx != -1 {
		s.Entries = append(s.Entries[:idx], s.Entries[idx+1:]...)
	}
	s.Entries = append(s.Entries, e)
}

// Relevant returns the entries that are not marked irrelevant.
func (s *AnalysisSet) Relevant() []AnalysisEntry {
	out := make([]AnalysisEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Relevant {
			out = append(out, e)
		}
	}
	return out
}

// Filenames returns the set of analyzed filenames.
func (s *AnalysisSet) Filenames() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		set[e.Filename] = struct{}{}
	}
	return set
}

// Len returns the number of entries.
func (s *AnalysisSet) Len() int {
	return len(s.Entries)
}

func (s *AnalysisSet) indexOf(filename string) int {
	for i := range s.Entries {
		if s.Entries[i].Filename == filename {
			return i
		}
	}
	return -1
}
