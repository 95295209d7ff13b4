package economy

import (
	"github.com/google/uuid"

	"github.com/talgya/wardsim/internal/faction"
)

// TaxKind classifies who levies a tax policy.
type TaxKind int

const (
	TaxSales TaxKind = iota // general sales tax
	TaxLevy                 // official levy on specific goods
	TaxTithe                // faction tithe
)

// TaxPolicy is one active tax rule. A policy with an empty
// Jurisdiction applies everywhere; TargetItems empty means all items.
// Rates are not constrained here; the price resolver clamps.
type TaxPolicy struct {
	ID           string  `json:"id"`
	Kind         TaxKind `json:"kind"`
	Rate         float64 `json:"rate"`
	Jurisdiction string  `json:"jurisdiction"` // district id, "" = global

	ExemptFactions map[faction.ID]struct{} `json:"exempt_factions,omitempty"`
	ExemptItems    map[string]struct{}     `json:"exempt_items,omitempty"`
	TargetItems    map[string]struct{}     `json:"target_items,omitempty"`

	// TurnsRemaining counts economic days; −1 is permanent.
	TurnsRemaining int `json:"turns_remaining"`
}

// TaxRegistry holds every active tax policy.
type TaxRegistry struct {
	policies []*TaxPolicy
	byID     map[string]*TaxPolicy
}

// NewTaxRegistry creates an empty tax registry.
func NewTaxRegistry() *TaxRegistry {
	return &TaxRegistry{byID: make(map[string]*TaxPolicy)}
}

// Add registers a policy, assigning an id if absent, and returns it.
func (r *TaxRegistry) Add(p *TaxPolicy) string {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := r.byID[p.ID]; exists {
		r.Remove(p.ID)
	}
	r.policies = append(r.policies, p)
	r.byID[p.ID] = p
	return p.ID
}

// Remove deletes a policy by id. Unknown ids are a no-op.
func (r *TaxRegistry) Remove(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, p := range r.policies {
		if p.ID == id {
			r.policies = append(r.policies[:i], r.policies[i+1:]...)
			break
		}
	}
}

// Decay ages every finite policy by one day and drops the expired.
func (r *TaxRegistry) Decay() {
	kept := r.policies[:0]
	for _, p := range r.policies {
		if p.TurnsRemaining > 0 {
			p.TurnsRemaining--
		}
		if p.TurnsRemaining == 0 {
			delete(r.byID, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	r.policies = kept
}

// All returns the active policies.
func (r *TaxRegistry) All() []*TaxPolicy {
	out := make([]*TaxPolicy, len(r.policies))
	copy(out, r.policies)
	return out
}

// TotalTax sums the rates of every policy that applies to the given
// district, faction, and item. Missing anything means 0.
func (r *TaxRegistry) TotalTax(districtID string, f faction.ID, item string) float64 {
	total := 0.0
	for _, p := range r.policies {
		if p.Jurisdiction != "" && p.Jurisdiction != districtID {
			continue
		}
		if _, exempt := p.ExemptFactions[f]; exempt {
			continue
		}
		if _, exempt := p.ExemptItems[item]; exempt {
			continue
		}
		if len(p.TargetItems) > 0 {
			if _, targeted := p.TargetItems[item]; !targeted {
				continue
			}
		}
		total += p.Rate
	}
	return total
}
