package overlay

import (
	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/world"
)

// Permanent marks a layer that never expires.
const Permanent = -1

// Layer is one runtime-placed inscription: a spatially-scoped rule
// bundle with a priority and an expiry counter. Effects are derived
// from the token list once, at registration.
type Layer struct {
	ID             string      `json:"id"`
	Center         world.Point `json:"center"`
	Radius         float64     `json:"radius"`
	Priority       int         `json:"priority"`
	TurnsRemaining int         `json:"turns_remaining"` // Permanent (−1) never expires
	Tokens         []string    `json:"tokens"`

	parsed  []Token
	effects layerEffects
}

// layerEffects is the cached pure function of a layer's token list.
type layerEffects struct {
	truce          bool
	blackMarket    bool
	officialBlind  bool
	tradeBlocked   bool
	taxDelta       float64
	priceMult      float64
	supplyMod      float64
	demandMod      float64
	allyFaction    faction.ID
	huntFaction    faction.ID
	tradeBanned    map[faction.ID]struct{}
	taxExempt      map[faction.ID]struct{}
	taxDouble      map[faction.ID]struct{}
	itemRates      map[string]float64
}

// derive recomputes the layer's cached effects from its tokens.
// Tokens apply in list order, which matters for FREE_TRADE: it clears
// any block or ban contributed by earlier tokens of the same layer.
func (l *Layer) derive(reg *Registry) {
	e := layerEffects{
		priceMult: 1,
		supplyMod: 1,
		demandMod: 1,
	}

	l.parsed = ParseAll(l.Tokens, reg)
	for _, tok := range l.parsed {
		switch tok.Kind {
		case KindTruce:
			e.truce = true
		case KindAlly:
			e.allyFaction = tok.Faction
		case KindHunt:
			e.huntFaction = tok.Faction
		case KindTax:
			e.taxDelta += tok.Value
		case KindTaxBreak:
			e.taxDelta -= tok.Value
		case KindTaxExempt:
			addSet(&e.taxExempt, tok.Faction)
		case KindTaxDouble:
			addSet(&e.taxDouble, tok.Faction)
		case KindPrice:
			e.priceMult *= tok.Value
		case KindSubsidy:
			e.priceMult *= 1 - tok.Value
			addRate(&e.itemRates, tok.Item, -tok.Value)
		case KindTariff:
			e.priceMult *= 1 + tok.Value
			addRate(&e.itemRates, tok.Item, tok.Value)
		case KindInflate:
			e.priceMult *= 1 + tok.Value
		case KindDeflate:
			e.priceMult *= 1 - tok.Value
		case KindTradeBan:
			addSet(&e.tradeBanned, tok.Faction)
		case KindFreeTrade:
			e.tradeBlocked = false
			e.tradeBanned = nil
		case KindBlockade:
			e.tradeBlocked = true
		case KindAbundance:
			e.supplyMod *= 2
		case KindScarcity:
			e.supplyMod *= 0.5
		case KindDemandSpike:
			e.demandMod *= 2
		case KindBlackMarket:
			e.blackMarket = true
		case KindOfficialBlind:
			e.officialBlind = true
		}
	}

	l.effects = e
}

// expired reports whether the layer's duration has run out.
func (l *Layer) expired() bool {
	return l.TurnsRemaining == 0
}

// covers reports whether a point is within the layer's radius.
func (l *Layer) covers(p world.Point) bool {
	return world.Distance(l.Center, p) <= l.Radius
}

func addSet(set *map[faction.ID]struct{}, id faction.ID) {
	if id == "" {
		return
	}
	if *set == nil {
		*set = make(map[faction.ID]struct{})
	}
	(*set)[id] = struct{}{}
}

func addRate(rates *map[string]float64, item string, rate float64) {
	if item == "" {
		return
	}
	if *rates == nil {
		*rates = make(map[string]float64)
	}
	(*rates)[item] += rate
}
