// Package engine ties every registry together and advances the world
// one turn at a time. All mutation funnels through the simulation's
// single mutex; everything below it is written for one writer.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/wardsim/internal/economy"
	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/hostility"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/territory"
	"github.com/talgya/wardsim/internal/world"
)

// DefaultTurnsPerDay is how many gameplay turns make one economic day.
const DefaultTurnsPerDay = 24

const maxEvents = 512

// Event is a notable occurrence in the world.
type Event struct {
	Turn        uint64 `json:"turn"`
	Description string `json:"description"`
	Category    string `json:"category"` // "territory", "hostility", "economy", "overlay"
}

// Simulation owns every registry and mutator of the core. It is the
// explicit context handed to queries and ticks; nothing in the core is
// global.
type Simulation struct {
	mu sync.Mutex

	Atlas     *world.Atlas
	Factions  *faction.Roster
	Overlays  *overlay.Resolver
	Territory *territory.Ledger
	Hostility *hostility.Pipeline
	Catalog   *economy.Catalog
	Taxes     *economy.TaxRegistry
	Relations *economy.TradeRelations
	Demand    *economy.DemandEvents
	Prices    *economy.Resolver

	Merchants map[string]*economy.MerchantProfile

	Turn        uint64
	Day         uint64
	TurnsPerDay int

	events []Event
}

// NewSimulation wires a simulation from its world definition. The
// faction set is fixed for the session; an empty one is a
// construction error, never a runtime condition.
func NewSimulation(atlas *world.Atlas, roster *faction.Roster, registry *overlay.Registry, params territory.Params) (*Simulation, error) {
	ledger, err := territory.NewLedger(atlas, roster.IDs(), params)
	if err != nil {
		return nil, fmt.Errorf("build territory ledger: %w", err)
	}

	overlays := overlay.NewResolver(registry)
	catalog := economy.DefaultCatalog()
	taxes := economy.NewTaxRegistry()
	relations := economy.NewTradeRelations()
	demand := economy.NewDemandEvents()

	s := &Simulation{
		Atlas:       atlas,
		Factions:    roster,
		Overlays:    overlays,
		Territory:   ledger,
		Hostility:   hostility.NewPipeline(atlas, overlays, roster, nil),
		Catalog:     catalog,
		Taxes:       taxes,
		Relations:   relations,
		Demand:      demand,
		Prices:      economy.NewResolver(catalog, overlays, ledger, atlas, taxes, relations, demand),
		Merchants:   make(map[string]*economy.MerchantProfile),
		TurnsPerDay: DefaultTurnsPerDay,
	}
	return s, nil
}

// Lock serializes external mutation or multi-read sequences against
// the tick loop.
func (s *Simulation) Lock() { s.mu.Lock() }

// Unlock releases the simulation lock.
func (s *Simulation) Unlock() { s.mu.Unlock() }

// AdvanceTurn advances the turn counter and, on day boundaries, runs
// the daily tick.
func (s *Simulation) AdvanceTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Turn++
	if s.TurnsPerDay > 0 && s.Turn%uint64(s.TurnsPerDay) == 0 {
		s.tickDay()
	}
}

// TickDay forces a daily tick regardless of the turn counter. Used by
// tests and the snapshot tooling.
func (s *Simulation) TickDay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickDay()
}

// tickDay runs the fixed daily phase order. Later phases read state
// produced by earlier ones, so the order is load-bearing: territory
// advance, tax and overlay decay, demand decay, per-district economic
// update, hostility decay.
func (s *Simulation) tickDay() {
	s.Day++

	notices := s.Territory.AdvanceDay()
	for _, n := range notices {
		s.recordNotice(n)
	}

	s.Taxes.Decay()
	s.Overlays.Decay()

	s.Demand.Decay()

	for _, d := range s.Atlas.All() {
		st := s.Territory.StateByID(d.ID)
		economy.UpdateDistrict(st, d, s.Territory, s.Factions)
	}

	s.Hostility.EvaluateEscalation(s.Turn)

	slog.Debug("economic day complete", "day", s.Day, "turn", s.Turn)
}

// RecordEvent appends to the event ring buffer.
func (s *Simulation) RecordEvent(category, description string) {
	s.events = append(s.events, Event{
		Turn:        s.Turn,
		Description: description,
		Category:    category,
	})
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// Events returns a copy of the recent event ring.
func (s *Simulation) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Simulation) recordNotice(n territory.Notice) {
	d := s.Atlas.ByID(n.DistrictID)
	name := n.DistrictID
	if d != nil {
		name = d.Name
	}
	switch n.Kind {
	case territory.NoticeContested:
		s.RecordEvent("territory", fmt.Sprintf("%s is contested between %s and %s", name, n.FactionA, n.FactionB))
	case territory.NoticeNeutralized:
		s.RecordEvent("territory", fmt.Sprintf("%s slipped from %s's grasp and is neutral ground", name, n.FactionA))
	}
}
