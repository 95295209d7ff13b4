package economy

import "github.com/talgya/wardsim/internal/faction"

// RelationStatus gates cross-faction commerce.
type RelationStatus int

const (
	RelationOpen RelationStatus = iota
	RelationRestricted
	RelationEmbargo
	RelationExclusive
	RelationAlliance
)

func (s RelationStatus) String() string {
	switch s {
	case RelationOpen:
		return "open"
	case RelationRestricted:
		return "restricted"
	case RelationEmbargo:
		return "embargo"
	case RelationExclusive:
		return "exclusive"
	case RelationAlliance:
		return "alliance"
	default:
		return "unknown"
	}
}

// TradeRelation is a directed policy from a source faction (the
// jurisdiction holder) toward a target faction (the trader).
type TradeRelation struct {
	Source faction.ID     `json:"source"`
	Target faction.ID     `json:"target"`
	Status RelationStatus `json:"status"`

	TariffRate float64 `json:"tariff_rate"`

	BannedItems    map[string]struct{} `json:"banned_items,omitempty"`
	ExclusiveItems map[string]struct{} `json:"exclusive_items,omitempty"`
}

type relationKey struct {
	source, target faction.ID
}

// TradeRelations holds every directed faction-pair trade policy.
// Absent pairs behave as Open with zero tariff.
type TradeRelations struct {
	relations map[relationKey]*TradeRelation
}

// NewTradeRelations creates an empty relation registry.
func NewTradeRelations() *TradeRelations {
	return &TradeRelations{relations: make(map[relationKey]*TradeRelation)}
}

// Set installs or replaces a directed relation.
func (t *TradeRelations) Set(rel *TradeRelation) {
	t.relations[relationKey{rel.Source, rel.Target}] = rel
}

// Get returns the relation from source to target, or nil (Open/0).
func (t *TradeRelations) Get(source, target faction.ID) *TradeRelation {
	return t.relations[relationKey{source, target}]
}

// Remove deletes a directed relation.
func (t *TradeRelations) Remove(source, target faction.ID) {
	delete(t.relations, relationKey{source, target})
}

// All returns every relation (persistence snapshot).
func (t *TradeRelations) All() []*TradeRelation {
	out := make([]*TradeRelation, 0, len(t.relations))
	for _, rel := range t.relations {
		out = append(out, rel)
	}
	return out
}
