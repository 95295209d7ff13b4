// Package faction defines faction identities and inter-faction standing.
// Standing is the long-lived diplomatic scale (−100 hostile to +100
// allied); the per-district escalation machinery lives in hostility.
package faction

import "strings"

// ID is a faction identifier. The empty ID means unaffiliated.
type ID string

// Normalize canonicalizes a loosely-formatted faction id string.
func Normalize(raw string) ID {
	return ID(strings.ToLower(strings.TrimSpace(raw)))
}

// HostileStanding is the standing at or below which two factions are
// considered openly hostile.
const HostileStanding = -50.0

// Faction represents one political organization.
type Faction struct {
	ID      ID      `json:"id"`
	Name    string  `json:"name"`
	TaxRate float64 `json:"tax_rate"`

	// Standing with other factions (−100 to +100).
	Relations map[ID]float64 `json:"relations"`
}

// Roster holds every faction and answers standing queries.
type Roster struct {
	factions map[ID]*Faction
	order    []ID
}

// NewRoster builds a roster from faction definitions.
func NewRoster(factions []*Faction) *Roster {
	r := &Roster{factions: make(map[ID]*Faction, len(factions))}
	for _, f := range factions {
		if f.Relations == nil {
			f.Relations = make(map[ID]float64)
		}
		r.factions[f.ID] = f
		r.order = append(r.order, f.ID)
	}
	return r
}

// Get returns the faction with the given id, or nil.
func (r *Roster) Get(id ID) *Faction {
	return r.factions[id]
}

// IDs returns faction ids in definition order.
func (r *Roster) IDs() []ID {
	return r.order
}

// All returns every faction in definition order.
func (r *Roster) All() []*Faction {
	out := make([]*Faction, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.factions[id])
	}
	return out
}

// SetRelation sets a symmetric standing between two factions, clamped
// to [−100, 100].
func (r *Roster) SetRelation(a, b ID, value float64) {
	if value > 100 {
		value = 100
	}
	if value < -100 {
		value = -100
	}
	if fa := r.factions[a]; fa != nil {
		fa.Relations[b] = value
	}
	if fb := r.factions[b]; fb != nil {
		fb.Relations[a] = value
	}
}

// Standing returns the standing between two factions; unknown pairs
// default to 0 (neutral).
func (r *Roster) Standing(a, b ID) float64 {
	if fa := r.factions[a]; fa != nil {
		if v, ok := fa.Relations[b]; ok {
			return v
		}
	}
	return 0
}

// Hostile reports whether standing between two factions is at or below
// the open-hostility threshold.
func (r *Roster) Hostile(a, b ID) bool {
	return r.Standing(a, b) <= HostileStanding
}

// TaxRateOf returns a faction's tax rate, 0 for unknown factions.
func (r *Roster) TaxRateOf(id ID) float64 {
	if f := r.factions[id]; f != nil {
		return f.TaxRate
	}
	return 0
}

// SeedFactions creates the default faction set for the daemon.
func SeedFactions() []*Faction {
	return []*Faction{
		{ID: "crown", Name: "The Crown", TaxRate: 0.12},
		{ID: "compact", Name: "Merchant's Compact", TaxRate: 0.06},
		{ID: "brotherhood", Name: "Iron Brotherhood", TaxRate: 0.10},
		{ID: "ashen", Name: "Ashen Path", TaxRate: 0.02},
	}
}
