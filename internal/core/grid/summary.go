package grid

import "github.com/fobi-id/obsmap/internal/core/domain"

// Summarize counts members per source and lists distinct species in
// first-seen order.
func Summarize(cell domain.GridCell) domain.CellSummary {
	s := domain.CellSummary{
		Count:    cell.Count,
		BySource: make(map[domain.Source]int),
		Species:  make([]string, 0),
	}
	seen := make(map[string]struct{})
	for _, m := range cell.Members {
		s.BySource[m.Source]++
		for _, name := range m.SpeciesNames() {
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			s.Species = append(s.Species, name)
		}
		if s.FirstSeen == nil {
			if lat, lon, ok := m.Coordinates(); ok {
				s.FirstSeen = &domain.GeoPoint{Lat: lat, Lon: lon}
			}
		}
	}
	return s
}
