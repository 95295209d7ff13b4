package economy

import (
	"math"

	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/territory"
	"github.com/talgya/wardsim/internal/world"
)

// RuleSource answers spatial rule queries; satisfied by
// overlay.Resolver.
type RuleSource interface {
	RulesAt(p world.Point) overlay.EffectiveRules
}

// Breakdown exposes every intermediate step of a price resolution for
// debugging and UI display.
type Breakdown struct {
	Allowed bool `json:"allowed"`

	Base               float64 `json:"base"`
	MerchantMultiplier float64 `json:"merchant_multiplier"`
	OverlayPrice       float64 `json:"overlay_price"`
	Prosperity         float64 `json:"prosperity"`
	Reputation         float64 `json:"reputation"`
	TradeRelation      float64 `json:"trade_relation"`
	SupplyDemand       float64 `json:"supply_demand"`
	TaxRate            float64 `json:"tax_rate"`

	Final float64 `json:"final"`
}

// Resolver composes every economic registry into prices.
type Resolver struct {
	catalog   *Catalog
	rules     RuleSource
	ledger    *territory.Ledger
	atlas     *world.Atlas
	taxes     *TaxRegistry
	relations *TradeRelations
	demand    *DemandEvents
}

// NewResolver wires a price resolver to its registries.
func NewResolver(catalog *Catalog, rules RuleSource, ledger *territory.Ledger, atlas *world.Atlas,
	taxes *TaxRegistry, relations *TradeRelations, demand *DemandEvents) *Resolver {
	return &Resolver{
		catalog:   catalog,
		rules:     rules,
		ledger:    ledger,
		atlas:     atlas,
		taxes:     taxes,
		relations: relations,
		demand:    demand,
	}
}

// IsTradeAllowed reports whether a merchant may trade an item at a
// position, per overlay blocks/bans and the faction trade relation
// with the controlling faction.
func (r *Resolver) IsTradeAllowed(item string, merchant faction.ID, pos world.Point) bool {
	rules := r.rules.RulesAt(pos)
	if rules.TradeBlocked {
		return false
	}

	controller := r.ledger.ControllerAt(pos)
	if rules.TradeBanned(merchant) || (controller != "" && rules.TradeBanned(controller)) {
		return false
	}

	if merchant == controller || controller == "" {
		return true
	}

	rel := r.relations.Get(controller, merchant)
	if rel == nil {
		return true
	}
	if rel.Status == RelationEmbargo {
		return false
	}
	if _, banned := rel.BannedItems[item]; banned {
		return false
	}
	if rel.Status == RelationExclusive && len(rel.ExclusiveItems) > 0 {
		if _, ok := rel.ExclusiveItems[item]; !ok {
			return false
		}
	}
	return true
}

// ResolveBuyPrice computes the final buy price for an item from a
// merchant at a position. Returns 0 (with the breakdown's Allowed
// false) when the item or merchant is unknown or trade is disallowed.
func (r *Resolver) ResolveBuyPrice(itemID string, m *MerchantProfile, pos world.Point) (float64, Breakdown) {
	return r.resolve(itemID, m, pos, true)
}

// ResolveSellPrice mirrors the buy path with the merchant's sell
// multiplier and no tax.
func (r *Resolver) ResolveSellPrice(itemID string, m *MerchantProfile, pos world.Point) (float64, Breakdown) {
	return r.resolve(itemID, m, pos, false)
}

func (r *Resolver) resolve(itemID string, m *MerchantProfile, pos world.Point, buying bool) (float64, Breakdown) {
	var bd Breakdown

	item := r.catalog.Get(itemID)
	if item == nil || m == nil {
		return 0, bd
	}
	if !r.IsTradeAllowed(itemID, m.Faction, pos) {
		return 0, bd
	}
	bd.Allowed = true

	rules := r.rules.RulesAt(pos)
	state := r.ledger.StateAt(pos)
	districtID := ""
	if d := r.atlas.At(pos); d != nil {
		districtID = d.ID
	}
	controller := r.ledger.ControllerAt(pos)

	bd.Base = item.BaseValue
	if buying {
		bd.MerchantMultiplier = m.BuyMultiplier
	} else {
		bd.MerchantMultiplier = m.SellMultiplier
	}
	price := bd.Base * bd.MerchantMultiplier

	bd.OverlayPrice = guardZero(rules.PriceMultiplier)
	bd.Prosperity = 1.0
	if state != nil {
		bd.Prosperity = math.Max(0.01, state.Prosperity)
	}
	bd.Reputation = reputationModifier(m.Reputation)
	bd.TradeRelation = r.tradeRelationModifier(m.Faction, controller)
	bd.SupplyDemand = r.supplyDemandModifier(itemID, state, districtID, rules)

	mult := bd.OverlayPrice * bd.Prosperity * bd.Reputation * bd.TradeRelation * bd.SupplyDemand

	if buying && !rules.TaxEnforcementDisabled {
		tax := rules.TaxDelta
		regTax := r.taxes.TotalTax(districtID, m.Faction, itemID)
		switch {
		case rules.TaxExempt(m.Faction):
			regTax = 0
		case rules.TaxDoubled(m.Faction):
			regTax *= 2
		}
		bd.TaxRate = tax + regTax
	}

	final := math.Round(price * mult * (1 + bd.TaxRate))
	if final < 1 {
		final = 1
	}
	bd.Final = final
	return final, bd
}

// reputationModifier maps reputation in [−100, 100] to a price factor
// lerped from 1.3 (despised) to 0.7 (beloved).
func reputationModifier(rep float64) float64 {
	if rep < -100 {
		rep = -100
	}
	if rep > 100 {
		rep = 100
	}
	return 1.3 - (rep+100)/200*0.6
}

// tradeRelationModifier prices the relation between the merchant's
// faction and the district's controlling faction.
func (r *Resolver) tradeRelationModifier(merchant, controller faction.ID) float64 {
	if merchant == controller || controller == "" {
		return 1
	}
	rel := r.relations.Get(controller, merchant)
	if rel == nil {
		return 1
	}
	switch rel.Status {
	case RelationAlliance, RelationExclusive:
		return clamp(1-rel.TariffRate, 0.1, 2.0)
	default: // Restricted and Open price the tariff straight on
		return 1 + rel.TariffRate
	}
}

// supplyDemandModifier converts the district's supply ratio into a
// price factor via a fixed staircase (scarcity raises price), then
// applies overlay and event-driven demand.
func (r *Resolver) supplyDemandModifier(item string, state *territory.State, districtID string, rules overlay.EffectiveRules) float64 {
	ratio := math.Max(0.01, state.SupplyRatio(item)*guardZero(rules.SupplyModifier))
	return supplyPriceFactor(ratio) * guardZero(rules.DemandModifier) * r.demand.Multiplier(item, districtID)
}

// supplyPriceFactor is the seven-bucket scarcity staircase. The 0.5
// boundary is inclusive: a ratio of exactly 0.5 still reads scarce.
func supplyPriceFactor(ratio float64) float64 {
	switch {
	case ratio < 0.25:
		return 2.0
	case ratio <= 0.5:
		return 1.5
	case ratio < 0.75:
		return 1.2
	case ratio < 1.25:
		return 1.0
	case ratio < 1.5:
		return 0.9
	case ratio < 2.0:
		return 0.75
	default:
		return 0.5
	}
}

func guardZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
