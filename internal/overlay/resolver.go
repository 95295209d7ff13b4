// Package overlay maintains the set of active inscription layers and
// resolves, for any position, the combined effective ruleset. Layers
// are the only runtime mechanism for locally overriding economic and
// social rules; everything else reads the fold produced here.
package overlay

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/world"
)

// EffectiveRules is the fold of every layer covering a position.
// Zero-value multipliers never appear: a layer contributing exactly 0
// is treated as neutral so a mis-authored token cannot zero the
// whole price pipeline.
type EffectiveRules struct {
	Truce                  bool
	BlackMarketAccess      bool
	TaxEnforcementDisabled bool
	TradeBlocked           bool

	TaxDelta        float64
	PriceMultiplier float64
	SupplyModifier  float64
	DemandModifier  float64

	AllyFaction faction.ID
	HuntFaction faction.ID

	TradeBannedFactions map[faction.ID]struct{}
	TaxExemptFactions   map[faction.ID]struct{}
	TaxDoubleFactions   map[faction.ID]struct{}

	// Item-scoped subsidy/tariff rates recorded from tokens. The price
	// resolver currently applies these globally via PriceMultiplier;
	// the per-item rates are exposed so consumers can inspect them.
	ItemRates map[string]float64

	// Layers is the number of layers that matched the query position.
	Layers int
}

// Neutral returns the ruleset for a position no layer covers.
func Neutral() EffectiveRules {
	return EffectiveRules{
		PriceMultiplier: 1,
		SupplyModifier:  1,
		DemandModifier:  1,
	}
}

// TradeBanned reports whether a faction is in the banned set.
func (r EffectiveRules) TradeBanned(id faction.ID) bool {
	_, ok := r.TradeBannedFactions[id]
	return ok
}

// TaxExempt reports whether a faction is in the exempt set.
func (r EffectiveRules) TaxExempt(id faction.ID) bool {
	_, ok := r.TaxExemptFactions[id]
	return ok
}

// TaxDoubled reports whether a faction is in the double-tax set.
func (r EffectiveRules) TaxDoubled(id faction.ID) bool {
	_, ok := r.TaxDoubleFactions[id]
	return ok
}

// Resolver owns the active layer set. Layers keep registration order;
// priority ties on ally/hunt resolution go to the most recently
// registered layer.
type Resolver struct {
	layers   []*Layer
	byID     map[string]*Layer
	registry *Registry
}

// NewResolver creates an empty resolver. The designer registry may be
// nil, in which case only the built-in grammar applies.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{
		byID:     make(map[string]*Layer),
		registry: registry,
	}
}

// Register parses the layer's tokens, assigns an id if absent, and
// adds it to the active set. Negative radii are clamped to 0.
func (r *Resolver) Register(l *Layer) string {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Radius < 0 {
		l.Radius = 0
	}
	l.derive(r.registry)

	if _, exists := r.byID[l.ID]; exists {
		r.Unregister(l.ID)
	}
	r.layers = append(r.layers, l)
	r.byID[l.ID] = l

	r.logUnknownTokens(l)
	return l.ID
}

// Unregister removes a layer by id. Unknown ids are a no-op.
func (r *Resolver) Unregister(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, l := range r.layers {
		if l.ID == id {
			r.layers = append(r.layers[:i], r.layers[i+1:]...)
			break
		}
	}
}

// Decay ages every finite layer by one day and drops the expired.
// Call once per economic day.
func (r *Resolver) Decay() {
	kept := r.layers[:0]
	for _, l := range r.layers {
		if l.TurnsRemaining > 0 {
			l.TurnsRemaining--
		}
		if l.expired() {
			delete(r.byID, l.ID)
			continue
		}
		kept = append(kept, l)
	}
	r.layers = kept
}

// Get returns the layer with the given id, or nil.
func (r *Resolver) Get(id string) *Layer {
	return r.byID[id]
}

// Active returns the live layers in registration order.
func (r *Resolver) Active() []*Layer {
	out := make([]*Layer, len(r.layers))
	copy(out, r.layers)
	return out
}

// RulesAt folds every non-expired layer covering the point into one
// effective ruleset.
func (r *Resolver) RulesAt(p world.Point) EffectiveRules {
	rules := Neutral()
	bestPriority := 0
	havePriority := false

	for _, l := range r.layers {
		if l.expired() || !l.covers(p) {
			continue
		}
		e := l.effects
		rules.Layers++

		rules.Truce = rules.Truce || e.truce
		rules.BlackMarketAccess = rules.BlackMarketAccess || e.blackMarket
		rules.TaxEnforcementDisabled = rules.TaxEnforcementDisabled || e.officialBlind
		rules.TradeBlocked = rules.TradeBlocked || e.tradeBlocked

		rules.TaxDelta += e.taxDelta
		rules.PriceMultiplier *= guardZero(e.priceMult)
		rules.SupplyModifier *= guardZero(e.supplyMod)
		rules.DemandModifier *= guardZero(e.demandMod)

		unionSet(&rules.TradeBannedFactions, e.tradeBanned)
		unionSet(&rules.TaxExemptFactions, e.taxExempt)
		unionSet(&rules.TaxDoubleFactions, e.taxDouble)
		unionRates(&rules.ItemRates, e.itemRates)

		// ">=" keeps the most recently scanned layer on priority ties.
		if e.allyFaction != "" || e.huntFaction != "" {
			if !havePriority || l.Priority >= bestPriority {
				if e.allyFaction != "" {
					rules.AllyFaction = e.allyFaction
				}
				if e.huntFaction != "" {
					rules.HuntFaction = e.huntFaction
				}
				bestPriority = l.Priority
				havePriority = true
			}
		}
	}

	return rules
}

func (r *Resolver) logUnknownTokens(l *Layer) {
	for _, tok := range l.parsed {
		if tok.Kind != KindUnknown || tok.Raw == "" {
			continue
		}
		suggestion := r.registry.Suggest(tok.Raw)
		if suggestion != "" {
			slog.Debug("unknown inscription token", "layer", l.ID, "token", tok.Raw, "closest", suggestion)
		} else {
			slog.Debug("unknown inscription token", "layer", l.ID, "token", tok.Raw)
		}
	}
}

// guardZero treats an exactly-zero multiplier as neutral.
func guardZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func unionSet(dst *map[faction.ID]struct{}, src map[faction.ID]struct{}) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[faction.ID]struct{}, len(src))
	}
	for id := range src {
		(*dst)[id] = struct{}{}
	}
}

func unionRates(dst *map[string]float64, src map[string]float64) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = make(map[string]float64, len(src))
	}
	for item, rate := range src {
		(*dst)[item] += rate
	}
}
