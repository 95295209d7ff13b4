// Inscription token grammar. Tokens are author-facing strings carved
// into a layer; they are parsed once at registration into a typed form
// and never re-interpreted on query.
package overlay

import (
	"strconv"
	"strings"

	"github.com/talgya/wardsim/internal/faction"
)

// Kind identifies what a parsed token does.
type Kind int

const (
	KindUnknown Kind = iota
	KindTruce
	KindAlly
	KindHunt
	KindTax
	KindTaxBreak
	KindTaxExempt
	KindTaxDouble
	KindPrice
	KindSubsidy
	KindTariff
	KindInflate
	KindDeflate
	KindTradeBan
	KindFreeTrade
	KindBlockade
	KindAbundance
	KindScarcity
	KindDemandSpike
	KindBlackMarket
	KindOfficialBlind
)

var kindNames = map[Kind]string{
	KindUnknown:       "UNKNOWN",
	KindTruce:         "TRUCE",
	KindAlly:          "ALLY",
	KindHunt:          "HUNT",
	KindTax:           "TAX",
	KindTaxBreak:      "TAX_BREAK",
	KindTaxExempt:     "TAX_EXEMPT",
	KindTaxDouble:     "TAX_DOUBLE",
	KindPrice:         "PRICE",
	KindSubsidy:       "SUBSIDY",
	KindTariff:        "TARIFF",
	KindInflate:       "INFLATE",
	KindDeflate:       "DEFLATE",
	KindTradeBan:      "TRADE_BAN",
	KindFreeTrade:     "FREE_TRADE",
	KindBlockade:      "BLOCKADE",
	KindAbundance:     "ABUNDANCE",
	KindScarcity:      "SCARCITY",
	KindDemandSpike:   "DEMAND_SPIKE",
	KindBlackMarket:   "BLACK_MARKET_ACCESS",
	KindOfficialBlind: "OFFICIAL_BLIND",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is the typed result of parsing one inscription token string.
// Unknown tokens keep their raw text and are otherwise inert.
type Token struct {
	Kind    Kind
	Faction faction.ID // ALLY, HUNT, TAX_EXEMPT, TAX_DOUBLE, TRADE_BAN
	Item    string     // SUBSIDY, TARIFF, ABUNDANCE, SCARCITY, DEMAND_SPIKE
	Value   float64    // TAX, TAX_BREAK, PRICE, SUBSIDY, TARIFF, INFLATE, DEFLATE
	Raw     string
}

// Parse interprets a single token string. A designer registry, when
// provided, wins over the built-in grammar on an exact match of the
// trimmed, upper-cased token. Unrecognized tokens parse to KindUnknown.
func Parse(raw string, reg *Registry) Token {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Token{Kind: KindUnknown, Raw: raw}
	}

	if reg != nil {
		if tok, ok := reg.Resolve(trimmed); ok {
			tok.Raw = raw
			return tok
		}
	}

	parts := strings.Split(trimmed, ":")
	keyword := strings.ToUpper(strings.TrimSpace(parts[0]))

	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	arg2 := ""
	if len(parts) > 2 {
		arg2 = strings.TrimSpace(parts[2])
	}

	switch keyword {
	case "TRUCE":
		return Token{Kind: KindTruce, Raw: raw}
	case "ALLY":
		return factionToken(KindAlly, arg, raw)
	case "HUNT":
		return factionToken(KindHunt, arg, raw)
	case "TAX":
		return valueToken(KindTax, arg, raw)
	case "TAX_BREAK":
		return valueToken(KindTaxBreak, arg, raw)
	case "TAX_EXEMPT":
		return factionToken(KindTaxExempt, arg, raw)
	case "TAX_DOUBLE":
		return factionToken(KindTaxDouble, arg, raw)
	case "PRICE":
		return valueToken(KindPrice, arg, raw)
	case "SUBSIDY":
		return itemRateToken(KindSubsidy, arg, arg2, raw)
	case "TARIFF":
		return itemRateToken(KindTariff, arg, arg2, raw)
	case "INFLATE":
		return valueToken(KindInflate, arg, raw)
	case "DEFLATE":
		return valueToken(KindDeflate, arg, raw)
	case "TRADE_BAN":
		return factionToken(KindTradeBan, arg, raw)
	case "FREE_TRADE":
		return Token{Kind: KindFreeTrade, Raw: raw}
	case "BLOCKADE":
		return Token{Kind: KindBlockade, Raw: raw}
	case "ABUNDANCE":
		return itemToken(KindAbundance, arg, raw)
	case "SCARCITY":
		return itemToken(KindScarcity, arg, raw)
	case "DEMAND_SPIKE":
		return itemToken(KindDemandSpike, arg, raw)
	case "BLACK_MARKET_ACCESS":
		return Token{Kind: KindBlackMarket, Raw: raw}
	case "OFFICIAL_BLIND":
		return Token{Kind: KindOfficialBlind, Raw: raw}
	}

	return Token{Kind: KindUnknown, Raw: raw}
}

// ParseAll parses every token in a layer's token list.
func ParseAll(raws []string, reg *Registry) []Token {
	out := make([]Token, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Parse(raw, reg))
	}
	return out
}

func factionToken(kind Kind, arg, raw string) Token {
	if arg == "" {
		return Token{Kind: KindUnknown, Raw: raw}
	}
	return Token{Kind: kind, Faction: faction.Normalize(arg), Raw: raw}
}

func valueToken(kind Kind, arg, raw string) Token {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return Token{Kind: KindUnknown, Raw: raw}
	}
	return Token{Kind: kind, Value: v, Raw: raw}
}

func itemToken(kind Kind, arg, raw string) Token {
	if arg == "" {
		return Token{Kind: KindUnknown, Raw: raw}
	}
	return Token{Kind: kind, Item: strings.ToLower(arg), Raw: raw}
}

func itemRateToken(kind Kind, item, rate, raw string) Token {
	v, err := strconv.ParseFloat(rate, 64)
	if err != nil || item == "" {
		return Token{Kind: KindUnknown, Raw: raw}
	}
	return Token{Kind: kind, Item: strings.ToLower(item), Value: v, Raw: raw}
}
