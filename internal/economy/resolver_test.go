package economy

import (
	"math"
	"testing"

	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/territory"
	"github.com/talgya/wardsim/internal/world"
)

const eps = 1e-9

var testFactions = []faction.ID{"crown", "compact", "ashen"}

type fixture struct {
	atlas     *world.Atlas
	ledger    *territory.Ledger
	overlays  *overlay.Resolver
	taxes     *TaxRegistry
	relations *TradeRelations
	demand    *DemandEvents
	resolver  *Resolver
}

// newFixture builds a world with crown controlling d-1 and a wilds
// point at (999,999) outside every district.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	atlas := world.NewAtlas([]*world.District{
		{ID: "d-1", Name: "Dockside", Center: world.Point{X: 0, Y: 0}, Radius: 50},
		{ID: "d-2", Name: "Hilltop", Center: world.Point{X: 200, Y: 0}, Radius: 50},
	})
	ledger, err := territory.NewLedger(atlas, testFactions, territory.DefaultParams())
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ledger.StateByID("d-1").Control[0] = 0.6 // crown controls d-1

	f := &fixture{
		atlas:     atlas,
		ledger:    ledger,
		overlays:  overlay.NewResolver(nil),
		taxes:     NewTaxRegistry(),
		relations: NewTradeRelations(),
		demand:    NewDemandEvents(),
	}
	f.resolver = NewResolver(DefaultCatalog(), f.overlays, ledger, atlas, f.taxes, f.relations, f.demand)
	return f
}

// neutralMerchant prices at exactly base: multiplier 1, reputation 0.
func neutralMerchant(fid faction.ID) *MerchantProfile {
	return &MerchantProfile{ID: "m-test", Faction: fid, BuyMultiplier: 1, SellMultiplier: 1}
}

var inDistrict = world.Point{X: 1, Y: 1}

func TestResolveNeutralBaseline(t *testing.T) {
	f := newFixture(t)
	price, bd := f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict)
	if price != 10 {
		t.Fatalf("price = %v, want the base 10 with everything neutral", price)
	}
	if !bd.Allowed || bd.TaxRate != 0 {
		t.Errorf("breakdown = %+v, want allowed with zero tax", bd)
	}
}

func TestTaxThenScarcityStack(t *testing.T) {
	f := newFixture(t)
	m := neutralMerchant("compact")

	f.taxes.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.2, TurnsRemaining: -1})
	price, _ := f.resolver.ResolveBuyPrice("tools", m, inDistrict)
	if price != 12 {
		t.Fatalf("price with 20%% tax = %v, want 12", price)
	}

	// SCARCITY halves effective supply: ratio 0.5 reads scarce (x1.5).
	f.overlays.Register(&overlay.Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: overlay.Permanent,
		Tokens: []string{"SCARCITY:tools"},
	})
	price, _ = f.resolver.ResolveBuyPrice("tools", m, inDistrict)
	if price != 18 {
		t.Fatalf("price with tax and scarcity = %v, want 18", price)
	}
}

func TestUnknownItemAndNilMerchant(t *testing.T) {
	f := newFixture(t)
	if price, bd := f.resolver.ResolveBuyPrice("no-such-item", neutralMerchant("compact"), inDistrict); price != 0 || bd.Allowed {
		t.Errorf("unknown item price = %v allowed=%v, want 0/false", price, bd.Allowed)
	}
	if price, _ := f.resolver.ResolveBuyPrice("tools", nil, inDistrict); price != 0 {
		t.Errorf("nil merchant price = %v, want 0", price)
	}
}

func TestBlockadeDisallowsTrade(t *testing.T) {
	f := newFixture(t)
	f.overlays.Register(&overlay.Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: overlay.Permanent,
		Tokens: []string{"BLOCKADE"},
	})
	if f.resolver.IsTradeAllowed("tools", "compact", inDistrict) {
		t.Error("blockade should disallow trade")
	}
	if price, bd := f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict); price != 0 || bd.Allowed {
		t.Errorf("blockaded price = %v allowed=%v, want 0/false", price, bd.Allowed)
	}
}

func TestTradeBanByFaction(t *testing.T) {
	f := newFixture(t)
	f.overlays.Register(&overlay.Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: overlay.Permanent,
		Tokens: []string{"TRADE_BAN:ashen"},
	})
	if f.resolver.IsTradeAllowed("tools", "ashen", inDistrict) {
		t.Error("banned merchant faction should be refused")
	}
	if !f.resolver.IsTradeAllowed("tools", "compact", inDistrict) {
		t.Error("other factions should trade freely")
	}
}

func TestRelationGates(t *testing.T) {
	f := newFixture(t)

	// Embargo from the controller blocks entirely.
	f.relations.Set(&TradeRelation{Source: "crown", Target: "ashen", Status: RelationEmbargo})
	if f.resolver.IsTradeAllowed("tools", "ashen", inDistrict) {
		t.Error("embargo should block trade")
	}

	// Restricted with a banned item blocks just that item.
	f.relations.Set(&TradeRelation{
		Source: "crown", Target: "compact", Status: RelationRestricted,
		BannedItems: map[string]struct{}{"weapons": {}},
	})
	if f.resolver.IsTradeAllowed("weapons", "compact", inDistrict) {
		t.Error("banned item should be refused")
	}
	if !f.resolver.IsTradeAllowed("tools", "compact", inDistrict) {
		t.Error("non-banned items should pass")
	}

	// Exclusive with an allowlist refuses anything off-list.
	f.relations.Set(&TradeRelation{
		Source: "crown", Target: "compact", Status: RelationExclusive,
		ExclusiveItems: map[string]struct{}{"grain": {}},
	})
	if f.resolver.IsTradeAllowed("tools", "compact", inDistrict) {
		t.Error("off-list item should be refused under exclusive")
	}
	if !f.resolver.IsTradeAllowed("grain", "compact", inDistrict) {
		t.Error("listed item should pass under exclusive")
	}

	// The controller's own merchants bypass relations.
	if !f.resolver.IsTradeAllowed("weapons", "crown", inDistrict) {
		t.Error("controller faction merchants are never gated by relations")
	}
}

func TestWildsTradeIsOpen(t *testing.T) {
	f := newFixture(t)
	f.relations.Set(&TradeRelation{Source: "crown", Target: "ashen", Status: RelationEmbargo})
	if !f.resolver.IsTradeAllowed("tools", "ashen", world.Point{X: 999, Y: 999}) {
		t.Error("no controller outside districts: relations should not apply")
	}
}

func TestReputationModifier(t *testing.T) {
	tests := []struct {
		rep  float64
		want float64
	}{
		{-100, 1.3},
		{0, 1.0},
		{100, 0.7},
		{-150, 1.3}, // clamps
		{150, 0.7},
	}
	for _, tt := range tests {
		if got := reputationModifier(tt.rep); math.Abs(got-tt.want) > eps {
			t.Errorf("reputationModifier(%v) = %v, want %v", tt.rep, got, tt.want)
		}
	}
}

func TestPriceFloor(t *testing.T) {
	f := newFixture(t)
	m := &MerchantProfile{ID: "m-gen", Faction: "compact", BuyMultiplier: 1, SellMultiplier: 0.1, Reputation: 100}
	// grain base 2 * 0.1 * 0.7 ≈ 0.14 → floors at 1.
	price, _ := f.resolver.ResolveSellPrice("grain", m, inDistrict)
	if price != 1 {
		t.Errorf("sell price = %v, want floor of 1", price)
	}
}

func TestSellPriceSkipsTax(t *testing.T) {
	f := newFixture(t)
	f.taxes.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.5, TurnsRemaining: -1})
	m := neutralMerchant("compact")

	buy, bdBuy := f.resolver.ResolveBuyPrice("tools", m, inDistrict)
	sell, bdSell := f.resolver.ResolveSellPrice("tools", m, inDistrict)
	if buy != 15 || bdBuy.TaxRate != 0.5 {
		t.Errorf("buy = %v tax=%v, want 15 at 0.5", buy, bdBuy.TaxRate)
	}
	if sell != 10 || bdSell.TaxRate != 0 {
		t.Errorf("sell = %v tax=%v, want untaxed 10", sell, bdSell.TaxRate)
	}
}

func TestOfficialBlindDisablesTax(t *testing.T) {
	f := newFixture(t)
	f.taxes.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.5, TurnsRemaining: -1})
	f.overlays.Register(&overlay.Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: overlay.Permanent,
		Tokens: []string{"OFFICIAL_BLIND"},
	})

	price, bd := f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict)
	if price != 10 || bd.TaxRate != 0 {
		t.Errorf("price = %v tax=%v, want untaxed 10 under OFFICIAL_BLIND", price, bd.TaxRate)
	}
}

func TestTaxExemptAndDoubleTokens(t *testing.T) {
	f := newFixture(t)
	f.taxes.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.2, TurnsRemaining: -1})
	f.overlays.Register(&overlay.Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: overlay.Permanent,
		Tokens: []string{"TAX_EXEMPT:compact", "TAX_DOUBLE:ashen"},
	})

	_, bd := f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict)
	if bd.TaxRate != 0 {
		t.Errorf("exempt faction tax = %v, want 0", bd.TaxRate)
	}
	_, bd = f.resolver.ResolveBuyPrice("tools", neutralMerchant("ashen"), inDistrict)
	if math.Abs(bd.TaxRate-0.4) > eps {
		t.Errorf("doubled faction tax = %v, want 0.4", bd.TaxRate)
	}
	_, bd = f.resolver.ResolveBuyPrice("tools", neutralMerchant("crown"), inDistrict)
	if math.Abs(bd.TaxRate-0.2) > eps {
		t.Errorf("unaffected faction tax = %v, want 0.2", bd.TaxRate)
	}
}

func TestAllianceTariffDiscount(t *testing.T) {
	f := newFixture(t)
	f.relations.Set(&TradeRelation{Source: "crown", Target: "compact", Status: RelationAlliance, TariffRate: 0.2})
	_, bd := f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict)
	if math.Abs(bd.TradeRelation-0.8) > eps {
		t.Errorf("alliance modifier = %v, want 1-0.2 = 0.8", bd.TradeRelation)
	}

	// Restricted relations price the tariff straight on.
	f.relations.Set(&TradeRelation{Source: "crown", Target: "compact", Status: RelationRestricted, TariffRate: 0.3})
	_, bd = f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict)
	if math.Abs(bd.TradeRelation-1.3) > eps {
		t.Errorf("restricted modifier = %v, want 1.3", bd.TradeRelation)
	}

	// Alliance discount clamps at the floor.
	f.relations.Set(&TradeRelation{Source: "crown", Target: "compact", Status: RelationAlliance, TariffRate: 5.0})
	_, bd = f.resolver.ResolveBuyPrice("tools", neutralMerchant("compact"), inDistrict)
	if math.Abs(bd.TradeRelation-0.1) > eps {
		t.Errorf("clamped alliance modifier = %v, want 0.1", bd.TradeRelation)
	}
}

func TestSupplyPriceStaircase(t *testing.T) {
	tests := []struct {
		ratio float64
		want  float64
	}{
		{0.1, 2.0},
		{0.24999, 2.0},
		{0.25, 1.5},
		{0.5, 1.5}, // inclusive boundary
		{0.50001, 1.2},
		{0.74999, 1.2},
		{0.75, 1.0},
		{1.0, 1.0},
		{1.24999, 1.0},
		{1.25, 0.9},
		{1.49999, 0.9},
		{1.5, 0.75},
		{1.99999, 0.75},
		{2.0, 0.5},
		{3.0, 0.5},
	}
	for _, tt := range tests {
		if got := supplyPriceFactor(tt.ratio); got != tt.want {
			t.Errorf("supplyPriceFactor(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestDemandEventsStackAdditively(t *testing.T) {
	d := NewDemandEvents()
	d.Add(&DemandEvent{ItemID: "grain", Multiplier: 2.0})
	d.Add(&DemandEvent{ItemID: "grain", Multiplier: 2.0})

	if got := d.Multiplier("grain", "d-1"); math.Abs(got-3.0) > eps {
		t.Errorf("two x2 events = %v, want additive x3", got)
	}
	if got := d.Multiplier("fish", "d-1"); got != 1.0 {
		t.Errorf("unrelated item = %v, want 1.0", got)
	}
}

func TestDemandMultiplierClamps(t *testing.T) {
	d := NewDemandEvents()
	for i := 0; i < 10; i++ {
		d.Add(&DemandEvent{ItemID: "grain", Multiplier: 2.0})
	}
	if got := d.Multiplier("grain", ""); got != MaxDemandMultiplier {
		t.Errorf("stacked multiplier = %v, want clamp at %v", got, MaxDemandMultiplier)
	}

	d = NewDemandEvents()
	d.Add(&DemandEvent{ItemID: "grain", Multiplier: 0.1})
	d.Add(&DemandEvent{ItemID: "grain", Multiplier: 0.1})
	if got := d.Multiplier("grain", ""); got != MinDemandMultiplier {
		t.Errorf("collapsed multiplier = %v, want clamp at %v", got, MinDemandMultiplier)
	}
}

func TestDemandDistrictScope(t *testing.T) {
	d := NewDemandEvents()
	d.Add(&DemandEvent{ItemID: "grain", Multiplier: 3.0, DistrictID: "d-2"})

	if got := d.Multiplier("grain", "d-1"); got != 1.0 {
		t.Errorf("wrong district = %v, want neutral", got)
	}
	if got := d.Multiplier("grain", "d-2"); math.Abs(got-3.0) > eps {
		t.Errorf("scoped district = %v, want 3.0", got)
	}
}

func TestDemandDecay(t *testing.T) {
	d := NewDemandEvents()
	finite := d.Add(&DemandEvent{ItemID: "grain", Multiplier: 2.0, DaysRemaining: 2})
	permanent := d.Add(&DemandEvent{ItemID: "fish", Multiplier: 2.0})

	d.Decay()
	if len(d.All()) != 2 {
		t.Fatalf("after 1 decay: %d events, want 2", len(d.All()))
	}
	d.Decay()
	events := d.All()
	if len(events) != 1 || events[0].ID != permanent {
		t.Errorf("finite event %s should expire, permanent %s should remain", finite, permanent)
	}
	for i := 0; i < 10; i++ {
		d.Decay()
	}
	if len(d.All()) != 1 {
		t.Error("permanent event must never decay")
	}
}

func TestTaxRegistryFilters(t *testing.T) {
	r := NewTaxRegistry()
	r.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.1, TurnsRemaining: -1})                                       // global
	r.Add(&TaxPolicy{Kind: TaxLevy, Rate: 0.2, Jurisdiction: "d-1", TurnsRemaining: -1})                   // d-1 only
	r.Add(&TaxPolicy{Kind: TaxTithe, Rate: 0.3, TurnsRemaining: -1, TargetItems: map[string]struct{}{"weapons": {}}})
	r.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.4, TurnsRemaining: -1, ExemptFactions: map[faction.ID]struct{}{"crown": {}}})
	r.Add(&TaxPolicy{Kind: TaxSales, Rate: 0.5, TurnsRemaining: -1, ExemptItems: map[string]struct{}{"grain": {}}})

	if got := r.TotalTax("d-1", "compact", "tools"); math.Abs(got-(0.1+0.2+0.4+0.5)) > eps {
		t.Errorf("d-1 compact tools = %v, want 1.2", got)
	}
	if got := r.TotalTax("d-2", "compact", "tools"); math.Abs(got-(0.1+0.4+0.5)) > eps {
		t.Errorf("d-2 should skip the d-1 levy, got %v", got)
	}
	if got := r.TotalTax("d-1", "crown", "tools"); math.Abs(got-(0.1+0.2+0.5)) > eps {
		t.Errorf("crown should skip the exempting policy, got %v", got)
	}
	if got := r.TotalTax("d-1", "compact", "grain"); math.Abs(got-(0.1+0.2+0.4)) > eps {
		t.Errorf("grain should skip the item-exempt policy, got %v", got)
	}
	if got := r.TotalTax("d-1", "compact", "weapons"); math.Abs(got-(0.1+0.2+0.3+0.4+0.5)) > eps {
		t.Errorf("weapons should also hit the targeted tithe, got %v", got)
	}
}

func TestTaxRegistryDecay(t *testing.T) {
	r := NewTaxRegistry()
	finite := r.Add(&TaxPolicy{Rate: 0.1, TurnsRemaining: 2})
	permanent := r.Add(&TaxPolicy{Rate: 0.2, TurnsRemaining: -1})

	r.Decay()
	r.Decay()
	policies := r.All()
	if len(policies) != 1 || policies[0].ID != permanent {
		t.Errorf("finite policy %s should expire after 2 days", finite)
	}
}

func TestUpdateDistrictSupplyDrift(t *testing.T) {
	f := newFixture(t)
	roster := faction.NewRoster([]*faction.Faction{
		{ID: "crown", TaxRate: 0.1},
		{ID: "compact", TaxRate: 0.05},
		{ID: "ashen", TaxRate: 0.02},
	})
	d := f.atlas.ByID("d-1")
	d.Produced = []string{"grain"}
	d.Consumed = []string{"tools"}
	d.Population = 100
	d.EconomicValue = 2.0
	s := f.ledger.StateByID("d-1")

	UpdateDistrict(s, d, f.ledger, roster)

	// One lerp step from 1.0: produced toward 2.0, consumed toward 0.5.
	if got := s.Supply["grain"]; math.Abs(got-1.1) > eps {
		t.Errorf("produced supply = %v, want 1.1", got)
	}
	if got := s.Supply["tools"]; math.Abs(got-0.95) > eps {
		t.Errorf("consumed supply = %v, want 0.95", got)
	}

	// Treasury accrues crown's rate against the economic base.
	wantTreasury := 2.0 * 100 * 0.1
	if math.Abs(s.Treasury-wantTreasury) > eps {
		t.Errorf("treasury = %v, want %v", s.Treasury, wantTreasury)
	}

	// Long run converges to the targets without escaping the bounds.
	for i := 0; i < 500; i++ {
		UpdateDistrict(s, d, f.ledger, roster)
	}
	if math.Abs(s.Supply["grain"]-2.0) > 0.01 || math.Abs(s.Supply["tools"]-0.5) > 0.01 {
		t.Errorf("supply should converge: grain=%v tools=%v", s.Supply["grain"], s.Supply["tools"])
	}
	if s.Prosperity < 0.1 || s.Prosperity > 2.0 {
		t.Errorf("prosperity %v escaped [0.1, 2.0]", s.Prosperity)
	}
}

func TestCorruptionCutsTreasury(t *testing.T) {
	f := newFixture(t)
	roster := faction.NewRoster([]*faction.Faction{{ID: "crown", TaxRate: 0.1}})
	d := f.atlas.ByID("d-1")
	d.Population = 100
	d.EconomicValue = 1.0
	s := f.ledger.StateByID("d-1")
	s.Corruption = 0.5

	UpdateDistrict(s, d, f.ledger, roster)
	if math.Abs(s.Treasury-5.0) > eps {
		t.Errorf("treasury = %v, want half of 10 skimmed by corruption", s.Treasury)
	}
}
