package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the upstream data set an observation belongs to.
type Source string

const (
	SourceFOBI        Source = "fobi"
	SourceTaxa        Source = "taxa"
	SourceBurungnesia Source = "burungnesia"
	SourceKupunesia   Source = "kupunesia"
)

// Sources lists the canonical sources in display order.
var Sources = []Source{SourceFOBI, SourceTaxa, SourceBurungnesia, SourceKupunesia}

// ParseSource normalises a source name. "bird" and "butterfly" are the
// legacy names of burungnesia and kupunesia.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fobi":
		return SourceFOBI, nil
	case "taxa":
		return SourceTaxa, nil
	case "burungnesia", "bird":
		return SourceBurungnesia, nil
	case "kupunesia", "butterfly":
		return SourceKupunesia, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
}

// HasChecklist reports whether observations from this source carry a
// multi-species checklist instead of a single species.
func (s Source) HasChecklist() bool {
	return s == SourceBurungnesia || s == SourceKupunesia
}

// QualifiedID prefixes a raw upstream ID with its source, e.g. "fobi_12".
func QualifiedID(src Source, raw string) string {
	return string(src) + "_" + raw
}

// SingleSpecies is the species payload of fobi and taxa observations.
type SingleSpecies struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name,omitempty"`
	TaxonID        string `json:"taxon_id,omitempty"`
}

// ChecklistEntry is one species line of a burungnesia/kupunesia checklist.
type ChecklistEntry struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name,omitempty"`
	Count          int    `json:"count"`
}

// Observation is one geotagged record. Exactly one of Single or Checklist
// is set, depending on Source. Latitude and Longitude are nil when the
// upstream record had no coordinates.
type Observation struct {
	ID         string           `json:"id"`
	Source     Source           `json:"source"`
	UserID     string           `json:"user_id"`
	Latitude   *float64         `json:"latitude"`
	Longitude  *float64         `json:"longitude"`
	ObservedAt time.Time        `json:"observed_at"`
	Photo      string           `json:"photo,omitempty"`
	Single     *SingleSpecies   `json:"single,omitempty"`
	Checklist  []ChecklistEntry `json:"checklist,omitempty"`
	Payload    map[string]any   `json:"payload,omitempty"`
}

// Coordinates returns the point location and whether both coordinates are present.
func (o Observation) Coordinates() (lat, lon float64, ok bool) {
	if o.Latitude == nil || o.Longitude == nil {
		return 0, 0, false
	}
	return *o.Latitude, *o.Longitude, true
}

// Validate checks that the species variant matches the source and that
// any coordinates present are in range.
func (o Observation) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("observation id is required")
	}
	if _, err := ParseSource(string(o.Source)); err != nil {
		return err
	}
	if o.Source.HasChecklist() {
		if o.Single != nil {
			return fmt.Errorf("observation %s: %s carries a checklist, not a single species", o.ID, o.Source)
		}
	} else if len(o.Checklist) > 0 {
		return fmt.Errorf("observation %s: %s carries a single species, not a checklist", o.ID, o.Source)
	}
	if o.Latitude != nil && !ValidLatitude(*o.Latitude) {
		return fmt.Errorf("observation %s: %w: latitude %v", o.ID, ErrInvalidCoordinate, *o.Latitude)
	}
	if o.Longitude != nil && !ValidLongitude(*o.Longitude) {
		return fmt.Errorf("observation %s: %w: longitude %v", o.ID, ErrInvalidCoordinate, *o.Longitude)
	}
	return nil
}

// SpeciesNames flattens both variants into scientific names.
func (o Observation) SpeciesNames() []string {
	if o.Single != nil {
		return []string{o.Single.ScientificName}
	}
	names := make([]string, 0, len(o.Checklist))
	for _, e := range o.Checklist {
		names = append(names, e.ScientificName)
	}
	return names
}

// ObservationsUpdated is published after observations of a user change.
type ObservationsUpdated struct {
	UserID string    `json:"user_id"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}
