package overlay

import (
	"math"
	"testing"

	"github.com/talgya/wardsim/internal/world"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestNeutralOutsideAllLayers(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		Center:         world.Point{X: 0, Y: 0},
		Radius:         10,
		TurnsRemaining: Permanent,
		Tokens:         []string{"TAX:0.5", "PRICE:3.0", "BLOCKADE"},
	})

	rules := r.RulesAt(world.Point{X: 100, Y: 100})
	if rules.Layers != 0 {
		t.Fatalf("expected no matching layers, got %d", rules.Layers)
	}
	if rules.TaxDelta != 0 || !approx(rules.PriceMultiplier, 1) ||
		!approx(rules.SupplyModifier, 1) || !approx(rules.DemandModifier, 1) ||
		rules.TradeBlocked || rules.Truce {
		t.Errorf("outside coverage should be neutral, got %+v", rules)
	}
}

func TestFoldSemantics(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		ID: "a", Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"TAX:0.05", "PRICE:2.0", "TRUCE", "TRADE_BAN:ashen"},
	})
	r.Register(&Layer{
		ID: "b", Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"TAX_BREAK:0.02", "PRICE:0.5", "TAX_EXEMPT:compact"},
	})

	rules := r.RulesAt(world.Point{X: 1, Y: 1})
	if rules.Layers != 2 {
		t.Fatalf("expected 2 matching layers, got %d", rules.Layers)
	}
	if !approx(rules.TaxDelta, 0.03) {
		t.Errorf("TaxDelta = %v, want additive 0.05-0.02 = 0.03", rules.TaxDelta)
	}
	if !approx(rules.PriceMultiplier, 1.0) {
		t.Errorf("PriceMultiplier = %v, want multiplicative 2.0*0.5 = 1.0", rules.PriceMultiplier)
	}
	if !rules.Truce {
		t.Error("Truce should OR across layers")
	}
	if !rules.TradeBanned("ashen") {
		t.Error("banned sets should union across layers")
	}
	if !rules.TaxExempt("compact") {
		t.Error("exempt sets should union across layers")
	}
}

func TestZeroMultiplierGuard(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"PRICE:0"},
	})
	r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"PRICE:1.5"},
	})

	rules := r.RulesAt(world.Point{})
	if !approx(rules.PriceMultiplier, 1.5) {
		t.Errorf("PriceMultiplier = %v, want 1.5 (zero contribution treated as neutral)", rules.PriceMultiplier)
	}
}

func TestAllyHuntPriority(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		ID: "low", Center: world.Point{}, Radius: 50, Priority: 1, TurnsRemaining: Permanent,
		Tokens: []string{"ALLY:crown"},
	})
	r.Register(&Layer{
		ID: "high", Center: world.Point{}, Radius: 50, Priority: 5, TurnsRemaining: Permanent,
		Tokens: []string{"ALLY:compact", "HUNT:ashen"},
	})

	rules := r.RulesAt(world.Point{})
	if rules.AllyFaction != "compact" {
		t.Errorf("AllyFaction = %q, want highest-priority winner compact", rules.AllyFaction)
	}
	if rules.HuntFaction != "ashen" {
		t.Errorf("HuntFaction = %q, want ashen", rules.HuntFaction)
	}

	// Equal priority: most recently registered wins.
	r.Register(&Layer{
		ID: "tie", Center: world.Point{}, Radius: 50, Priority: 5, TurnsRemaining: Permanent,
		Tokens: []string{"ALLY:brotherhood"},
	})
	rules = r.RulesAt(world.Point{})
	if rules.AllyFaction != "brotherhood" {
		t.Errorf("AllyFaction tie = %q, want latest-registered brotherhood", rules.AllyFaction)
	}
	if rules.HuntFaction != "ashen" {
		t.Errorf("tie winner without HUNT should not clear earlier hunt, got %q", rules.HuntFaction)
	}
}

func TestFreeTradeClearsEarlierTokensSameLayer(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		ID: "mixed", Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"BLOCKADE", "TRADE_BAN:ashen", "FREE_TRADE"},
	})

	rules := r.RulesAt(world.Point{})
	if rules.TradeBlocked {
		t.Error("FREE_TRADE after BLOCKADE in the same layer should clear the block")
	}
	if rules.TradeBanned("ashen") {
		t.Error("FREE_TRADE should clear earlier bans in the same layer")
	}

	// But a blockade from a separate layer still applies.
	r.Register(&Layer{
		ID: "siege", Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"BLOCKADE"},
	})
	if !r.RulesAt(world.Point{}).TradeBlocked {
		t.Error("FREE_TRADE must not clear blocks from other layers")
	}
}

func TestSupplyDemandTokens(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"ABUNDANCE:grain", "DEMAND_SPIKE:grain"},
	})
	r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"SCARCITY:grain"},
	})

	rules := r.RulesAt(world.Point{})
	if !approx(rules.SupplyModifier, 1.0) {
		t.Errorf("SupplyModifier = %v, want 2.0*0.5 = 1.0", rules.SupplyModifier)
	}
	if !approx(rules.DemandModifier, 2.0) {
		t.Errorf("DemandModifier = %v, want 2.0", rules.DemandModifier)
	}
}

func TestDecayExpiry(t *testing.T) {
	r := NewResolver(nil)
	finite := r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: 5,
		Tokens: []string{"TRUCE"},
	})
	immortal := r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"TAX:0.1"},
	})

	for i := 0; i < 4; i++ {
		r.Decay()
	}
	if r.Get(finite) == nil {
		t.Fatal("layer with 1 turn left should still be active")
	}
	if !r.RulesAt(world.Point{}).Truce {
		t.Error("not-yet-expired layer should still contribute")
	}

	r.Decay()
	if r.Get(finite) != nil {
		t.Error("layer should be dropped after 5 decays")
	}
	if r.Get(immortal) == nil {
		t.Error("permanent layer must survive decay indefinitely")
	}
	if got := r.RulesAt(world.Point{}); got.Truce || !approx(got.TaxDelta, 0.1) {
		t.Errorf("after expiry only the permanent layer should apply, got %+v", got)
	}
}

func TestRegisterAssignsIDAndClampsRadius(t *testing.T) {
	r := NewResolver(nil)
	l := &Layer{Center: world.Point{}, Radius: -5, TurnsRemaining: Permanent, Tokens: []string{"TRUCE"}}
	id := r.Register(l)
	if id == "" {
		t.Error("Register should assign an id when absent")
	}
	if l.Radius != 0 {
		t.Errorf("negative radius should clamp to 0, got %v", l.Radius)
	}
	// Radius 0 covers exactly the center point.
	if !r.RulesAt(world.Point{}).Truce {
		t.Error("zero-radius layer should still cover its center")
	}
	if r.RulesAt(world.Point{X: 0.1}).Truce {
		t.Error("zero-radius layer should cover nothing else")
	}
}

func TestUnregister(t *testing.T) {
	r := NewResolver(nil)
	id := r.Register(&Layer{Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent, Tokens: []string{"TRUCE"}})

	r.Unregister(id)
	if r.Get(id) != nil || len(r.Active()) != 0 {
		t.Error("unregistered layer should be gone")
	}
	r.Unregister("no-such-id") // must not panic
}

func TestUnknownTokensAreInert(t *testing.T) {
	r := NewResolver(nil)
	r.Register(&Layer{
		Center: world.Point{}, Radius: 50, TurnsRemaining: Permanent,
		Tokens: []string{"GIBBERISH", "TAX:0.1"},
	})

	rules := r.RulesAt(world.Point{})
	if !approx(rules.TaxDelta, 0.1) {
		t.Errorf("known tokens should still apply alongside unknown ones, TaxDelta = %v", rules.TaxDelta)
	}
}
