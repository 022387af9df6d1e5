package stats

import "fmt"

// UpdateStats counts the work done by inserts, deletes and updates.
type UpdateStats struct {
	BFAccessed    int64 // Filters read, written or compared.
	NodesAccessed int64 // Index nodes touched.
	Splits        int
	Merges        int
	Redistributes int
}

// Clear resets every counter.
func (s *UpdateStats) Clear() {
	*s = UpdateStats{}
}

// Add accumulates other into s.
func (s *UpdateStats) Add(other UpdateStats) {
	s.BFAccessed += other.BFAccessed
	s.NodesAccessed += other.NodesAccessed
	s.Splits += other.Splits
	s.Merges += other.Merges
	s.Redistributes += other.Redistributes
}

func (s UpdateStats) String() string {
	return fmt.Sprintf("bf accessed: %d, nodes accessed: %d, splits: %d, merges: %d, redistributes: %d",
		s.BFAccessed, s.NodesAccessed, s.Splits, s.Merges, s.Redistributes)
}

// SearchStats counts membership checks performed by searches.
type SearchStats struct {
	BFChecks int64
}

// Clear resets every counter.
func (s *SearchStats) Clear() {
	*s = SearchStats{}
}

// Add accumulates other into s.
func (s *SearchStats) Add(other SearchStats) {
	s.BFChecks += other.BFChecks
}

func (s SearchStats) String() string {
	return fmt.Sprintf("bf checks: %d", s.BFChecks)
}

// Update returns s, or a scratch counter if s is nil.
func Update(s *UpdateStats) *UpdateStats {
	if s == nil {
		return &UpdateStats{}
	}
	return s
}

// Search returns s, or a scratch counter if s is nil.
func Search(s *SearchStats) *SearchStats {
	if s == nil {
		return &SearchStats{}
	}
	return s
}
