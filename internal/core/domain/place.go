package domain

import "strings"

// Address holds the optional components returned by reverse geocoding.
type Address struct {
	Village string `json:"village,omitempty"`
	Suburb  string `json:"suburb,omitempty"`
	Hamlet  string `json:"hamlet,omitempty"`
	City    string `json:"city,omitempty"`
	Town    string `json:"town,omitempty"`
	County  string `json:"county,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Place is a reverse-geocoding result.
type Place struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Name renders "locality, city, state, country", skipping missing parts,
// and falls back to the display name when no component is present.
func (p Place) Name() string {
	a := p.Address
	parts := make([]string, 0, 4)
	for _, v := range []string{
		firstNonEmpty(a.Village, a.Suburb, a.Hamlet),
		firstNonEmpty(a.City, a.Town, a.County),
		a.State,
		a.Country,
	} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(p.DisplayName)
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
