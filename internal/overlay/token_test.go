package overlay

import "testing"

func TestParseBuiltinGrammar(t *testing.T) {
	tests := []struct {
		raw  string
		want Token
	}{
		{"TRUCE", Token{Kind: KindTruce}},
		{"ALLY:crown", Token{Kind: KindAlly, Faction: "crown"}},
		{"HUNT:Ashen", Token{Kind: KindHunt, Faction: "ashen"}},
		{"TAX:0.05", Token{Kind: KindTax, Value: 0.05}},
		{"TAX_BREAK:0.02", Token{Kind: KindTaxBreak, Value: 0.02}},
		{"TAX_EXEMPT:compact", Token{Kind: KindTaxExempt, Faction: "compact"}},
		{"TAX_DOUBLE:ashen", Token{Kind: KindTaxDouble, Faction: "ashen"}},
		{"PRICE:1.5", Token{Kind: KindPrice, Value: 1.5}},
		{"SUBSIDY:grain:0.2", Token{Kind: KindSubsidy, Item: "grain", Value: 0.2}},
		{"TARIFF:weapons:0.3", Token{Kind: KindTariff, Item: "weapons", Value: 0.3}},
		{"INFLATE:0.1", Token{Kind: KindInflate, Value: 0.1}},
		{"DEFLATE:0.1", Token{Kind: KindDeflate, Value: 0.1}},
		{"TRADE_BAN:brotherhood", Token{Kind: KindTradeBan, Faction: "brotherhood"}},
		{"FREE_TRADE", Token{Kind: KindFreeTrade}},
		{"BLOCKADE", Token{Kind: KindBlockade}},
		{"ABUNDANCE:fish", Token{Kind: KindAbundance, Item: "fish"}},
		{"SCARCITY:Iron_Ore", Token{Kind: KindScarcity, Item: "iron_ore"}},
		{"DEMAND_SPIKE:medicine", Token{Kind: KindDemandSpike, Item: "medicine"}},
		{"BLACK_MARKET_ACCESS", Token{Kind: KindBlackMarket}},
		{"OFFICIAL_BLIND", Token{Kind: KindOfficialBlind}},
		{"  truce  ", Token{Kind: KindTruce}},
	}

	for _, tt := range tests {
		got := Parse(tt.raw, nil)
		if got.Kind != tt.want.Kind || got.Faction != tt.want.Faction ||
			got.Item != tt.want.Item || got.Value != tt.want.Value {
			t.Errorf("Parse(%q) = %+v, want kind=%v faction=%q item=%q value=%v",
				tt.raw, got, tt.want.Kind, tt.want.Faction, tt.want.Item, tt.want.Value)
		}
	}
}

func TestParseMalformedTokens(t *testing.T) {
	malformed := []string{
		"",
		"   ",
		"BOGUS_TOKEN",
		"TAX",           // missing value
		"TAX:abc",       // non-numeric value
		"ALLY",          // missing faction
		"ALLY:",         // empty faction
		"SUBSIDY:grain", // missing rate
		"SUBSIDY::0.2",  // missing item
		"ABUNDANCE",     // missing item
	}
	for _, raw := range malformed {
		if got := Parse(raw, nil); got.Kind != KindUnknown {
			t.Errorf("Parse(%q) = kind %v, want KindUnknown", raw, got.Kind)
		}
	}
}

func TestParseKeepsRawText(t *testing.T) {
	got := Parse("NOT_A_TOKEN", nil)
	if got.Raw != "NOT_A_TOKEN" {
		t.Errorf("Raw = %q, want original text preserved", got.Raw)
	}
}

func TestRegistryWinsOverGrammar(t *testing.T) {
	reg := NewRegistry(map[string]Token{
		"TRUCE":       {Kind: KindBlockade}, // deliberately shadows the builtin
		"KINGS_PEACE": {Kind: KindTruce},
	})

	if got := Parse("TRUCE", reg); got.Kind != KindBlockade {
		t.Errorf("registry entry should shadow builtin grammar, got kind %v", got.Kind)
	}
	if got := Parse("kings_peace", reg); got.Kind != KindTruce {
		t.Errorf("registry match should be case-insensitive, got kind %v", got.Kind)
	}
	if got := Parse("BLOCKADE", reg); got.Kind != KindBlockade {
		t.Errorf("non-registry tokens should fall through to grammar, got kind %v", got.Kind)
	}
}

func TestRegistrySuggest(t *testing.T) {
	reg := NewRegistry(map[string]Token{
		"KINGS_PEACE": {Kind: KindTruce},
	})

	if got := reg.Suggest("KINGS_PEAC"); got != "KINGS_PEACE" {
		t.Errorf("Suggest near-miss = %q, want KINGS_PEACE", got)
	}
	if got := reg.Suggest("COMPLETELY_DIFFERENT"); got != "" {
		t.Errorf("Suggest far token = %q, want empty", got)
	}

	var nilReg *Registry
	if got := nilReg.Suggest("anything"); got != "" {
		t.Errorf("nil registry Suggest = %q, want empty", got)
	}
}
