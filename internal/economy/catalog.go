// Package economy composes tax policies, supply, trade relations,
// demand events, overlay rules, and district prosperity into the
// buy/sell prices gameplay sees. Every lookup degrades to a neutral
// default: the pipeline answers queries, it never fails them.
package economy

import "github.com/talgya/wardsim/internal/faction"

// Item is a tradeable good definition.
type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	BaseValue float64 `json:"base_value"`
}

// Catalog indexes all item definitions.
type Catalog struct {
	items map[string]*Item
}

// NewCatalog builds a catalog from item definitions.
func NewCatalog(items []*Item) *Catalog {
	c := &Catalog{items: make(map[string]*Item, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// Get returns an item by id, or nil.
func (c *Catalog) Get(id string) *Item {
	return c.items[id]
}

// All returns every item.
func (c *Catalog) All() []*Item {
	out := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	return out
}

// DefaultCatalog returns the base goods table used by the daemon.
func DefaultCatalog() *Catalog {
	return NewCatalog([]*Item{
		{ID: "grain", Name: "Grain", BaseValue: 2},
		{ID: "fish", Name: "Fish", BaseValue: 2},
		{ID: "timber", Name: "Timber", BaseValue: 3},
		{ID: "stone", Name: "Stone", BaseValue: 3},
		{ID: "iron_ore", Name: "Iron Ore", BaseValue: 4},
		{ID: "coal", Name: "Coal", BaseValue: 4},
		{ID: "herbs", Name: "Herbs", BaseValue: 5},
		{ID: "furs", Name: "Furs", BaseValue: 6},
		{ID: "clothing", Name: "Clothing", BaseValue: 8},
		{ID: "tools", Name: "Tools", BaseValue: 10},
		{ID: "medicine", Name: "Medicine", BaseValue: 12},
		{ID: "weapons", Name: "Weapons", BaseValue: 15},
		{ID: "gems", Name: "Gems", BaseValue: 15},
		{ID: "luxuries", Name: "Luxuries", BaseValue: 25},
	})
}

// MerchantProfile carries the per-merchant pricing inputs.
type MerchantProfile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Faction        faction.ID `json:"faction"`
	BuyMultiplier  float64    `json:"buy_multiplier"`
	SellMultiplier float64    `json:"sell_multiplier"`

	// Reputation with the customer, −100 to +100. High reputation
	// earns better prices.
	Reputation float64 `json:"reputation"`
}
