// Package territory tracks per-district, per-faction control, patrol,
// and heat, advanced by a fixed rule once per economic day. Edit and
// cleanup pressure accumulate between days and are consumed by the
// advance; patrol can also be nudged immediately for interactive
// rebalancing.
package territory

import (
	"errors"
	"math"

	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/world"
)

// Params tunes the daily control update.
type Params struct {
	PatrolInvestRate   float64 // fraction of invested patrol applied per day
	PatrolHeatResponse float64 // patrol gained per point of heat
	PatrolHeatPenalty  float64 // patrol lost per point of heat
	ControlGrowth      float64 // control gained from patrol into open share
	ControlHeatDecay   float64 // control lost to heat
	HeatFromEdit       float64 // heat per unit of edit pressure
	HeatFromCleanup    float64 // heat removed per unit of cleanup
	HeatBaselineDecay  float64 // heat bled off every day

	LostThreshold float64 // control below this counts as a lost day
	LostDays      int     // consecutive lost days before neutralization
	NeutralReset  float64 // control/patrol after neutralization

	ContestGap   float64 // max control gap for a contested district
	ContestFloor float64 // both contenders must hold at least this
	ContestDays  int     // consecutive days before the contest signal
}

// DefaultParams returns the tuning used by the daemon.
func DefaultParams() Params {
	return Params{
		PatrolInvestRate:   0.5,
		PatrolHeatResponse: 0.10,
		PatrolHeatPenalty:  0.05,
		ControlGrowth:      0.10,
		ControlHeatDecay:   0.15,
		HeatFromEdit:       0.15,
		HeatFromCleanup:    0.20,
		HeatBaselineDecay:  0.02,
		LostThreshold:      0.15,
		LostDays:           5,
		NeutralReset:       0.05,
		ContestGap:         0.15,
		ContestFloor:       0.10,
		ContestDays:        3,
	}
}

// State is the mutable per-district ledger entry. Per-faction slices
// are indexed by the ledger's faction order, fixed at construction.
type State struct {
	DistrictID string    `json:"district_id"`
	Control    []float64 `json:"control"`
	Patrol     []float64 `json:"patrol"`
	Heat       []float64 `json:"heat"`
	LossStreak []int     `json:"loss_streak"`

	Prosperity float64            `json:"prosperity"`
	Treasury   float64            `json:"treasury"`
	Corruption float64            `json:"corruption"`
	Supply     map[string]float64 `json:"supply"`

	ContestStreak int  `json:"contest_streak"`
	Contested     bool `json:"contested"`

	// Day-scoped accumulators, reset by AdvanceDay.
	editPressure    float64
	cleanupPressure float64
	patrolInvest    []float64
}

// NoticeKind classifies a ledger signal raised by AdvanceDay.
type NoticeKind int

const (
	NoticeContested NoticeKind = iota
	NoticeNeutralized
)

// Notice is a signal raised during a daily advance.
type Notice struct {
	Kind       NoticeKind
	DistrictID string
	FactionA   faction.ID // leading contender / former controller
	FactionB   faction.ID // trailing contender (contested only)
}

// Ledger owns territory state for every district.
type Ledger struct {
	atlas    *world.Atlas
	factions []faction.ID
	states   map[string]*State
	params   Params
}

// ErrNoFactions rejects ledger construction with an empty faction set.
var ErrNoFactions = errors.New("territory: ledger requires at least one faction")

// NewLedger creates a ledger with one state per district. Every faction
// slice is sized to the faction list, which is fixed for the session.
func NewLedger(atlas *world.Atlas, factions []faction.ID, params Params) (*Ledger, error) {
	if len(factions) == 0 {
		return nil, ErrNoFactions
	}

	l := &Ledger{
		atlas:    atlas,
		factions: factions,
		states:   make(map[string]*State, atlas.Len()),
		params:   params,
	}
	for _, d := range atlas.All() {
		n := len(factions)
		l.states[d.ID] = &State{
			DistrictID:   d.ID,
			Control:      make([]float64, n),
			Patrol:       make([]float64, n),
			Heat:         make([]float64, n),
			LossStreak:   make([]int, n),
			Prosperity:   1.0,
			Supply:       make(map[string]float64),
			patrolInvest: make([]float64, n),
		}
	}
	return l, nil
}

// Factions returns the faction order used by per-faction slices.
func (l *Ledger) Factions() []faction.ID {
	return l.factions
}

// FactionIndex maps a faction id to its slice index, −1 if unknown.
func (l *Ledger) FactionIndex(id faction.ID) int {
	for i, f := range l.factions {
		if f == id {
			return i
		}
	}
	return -1
}

// StateByID returns the state for a district id, or nil.
func (l *Ledger) StateByID(id string) *State {
	return l.states[id]
}

// StateAt returns the state for the district containing the point,
// or nil when the point is outside every district.
func (l *Ledger) StateAt(p world.Point) *State {
	d := l.atlas.At(p)
	if d == nil {
		return nil
	}
	return l.states[d.ID]
}

// ControllingFaction returns the arg-max control index for a state,
// or −1 when no faction holds any control.
func (l *Ledger) ControllingFaction(s *State) int {
	best := -1
	bestControl := 0.0
	for i, c := range s.Control {
		if c > bestControl {
			best = i
			bestControl = c
		}
	}
	return best
}

// ControllerAt resolves the controlling faction id at a position.
// Returns "" when the point is outside every district or the district
// is uncontrolled.
func (l *Ledger) ControllerAt(p world.Point) faction.ID {
	s := l.StateAt(p)
	if s == nil {
		return ""
	}
	idx := l.ControllingFaction(s)
	if idx < 0 {
		return ""
	}
	return l.factions[idx]
}

// FlagEdit records overlay edit pressure against a district for the
// current day.
func (l *Ledger) FlagEdit(districtID string, magnitude float64) {
	if s := l.states[districtID]; s != nil && magnitude > 0 {
		s.editPressure += magnitude
	}
}

// FlagCleanup records cleanup pressure against a district for the
// current day.
func (l *Ledger) FlagCleanup(districtID string, intensity float64) {
	if s := l.states[districtID]; s != nil && intensity > 0 {
		s.cleanupPressure += intensity
	}
}

// InvestPatrol accumulates patrol investment for a faction, consumed
// by the next AdvanceDay.
func (l *Ledger) InvestPatrol(districtID string, factionIdx int, amount float64) {
	s := l.states[districtID]
	if s == nil || factionIdx < 0 || factionIdx >= len(s.patrolInvest) || amount <= 0 {
		return
	}
	s.patrolInvest[factionIdx] += amount
}

// AdjustPatrol applies an immediate out-of-band patrol delta and
// recomputes that faction's control against current heat, so
// interactive rebalancing shows effect without waiting for the next
// day. Investment and heat-decay terms are deliberately absent here.
func (l *Ledger) AdjustPatrol(districtID string, factionIdx int, delta float64) {
	s := l.states[districtID]
	if s == nil || factionIdx < 0 || factionIdx >= len(s.Patrol) {
		return
	}
	p := &l.params

	s.Patrol[factionIdx] = clamp01(s.Patrol[factionIdx] + delta)
	c := s.Control[factionIdx]
	h := s.Heat[factionIdx]
	s.Control[factionIdx] = clamp01(c + p.ControlGrowth*s.Patrol[factionIdx]*(1-c) - p.ControlHeatDecay*h*c)
}

// AdvanceDay applies the daily update rule to every district and
// returns any contest or neutralization notices. Day-scoped pressure
// accumulators are consumed and reset.
func (l *Ledger) AdvanceDay() []Notice {
	var notices []Notice
	for _, d := range l.atlas.All() {
		s := l.states[d.ID]
		notices = append(notices, l.advanceDistrict(s)...)
	}
	return notices
}

func (l *Ledger) advanceDistrict(s *State) []Notice {
	p := &l.params
	deltaHeat := p.HeatFromEdit*s.editPressure - p.HeatFromCleanup*s.cleanupPressure - p.HeatBaselineDecay

	for f := range l.factions {
		h := s.Heat[f]

		patrol := clamp01(s.Patrol[f] +
			s.patrolInvest[f]*p.PatrolInvestRate +
			p.PatrolHeatResponse*h -
			p.PatrolHeatPenalty*h)
		s.Patrol[f] = patrol

		c := s.Control[f]
		c = clamp01(c + p.ControlGrowth*patrol*(1-c) - p.ControlHeatDecay*h*c)
		s.Control[f] = c

		s.Heat[f] = clamp01(h + deltaHeat)

		if c < p.LostThreshold {
			s.LossStreak[f]++
		} else {
			s.LossStreak[f] = 0
		}

		s.patrolInvest[f] = 0
	}
	s.editPressure = 0
	s.cleanupPressure = 0

	var notices []Notice

	controller := l.ControllingFaction(s)
	if controller >= 0 && s.LossStreak[controller] >= p.LostDays {
		for f := range l.factions {
			s.Control[f] = p.NeutralReset
			s.Patrol[f] = p.NeutralReset
			s.LossStreak[f] = 0
		}
		notices = append(notices, Notice{
			Kind:       NoticeNeutralized,
			DistrictID: s.DistrictID,
			FactionA:   l.factions[controller],
		})
	}

	if lead, second, ok := l.topTwo(s); ok &&
		s.Control[lead] > p.ContestFloor && s.Control[second] > p.ContestFloor &&
		s.Control[lead]-s.Control[second] < p.ContestGap {
		s.ContestStreak++
	} else {
		s.ContestStreak = 0
	}

	wasContested := s.Contested
	s.Contested = s.ContestStreak >= p.ContestDays
	if s.Contested && !wasContested {
		lead, second, _ := l.topTwo(s)
		notices = append(notices, Notice{
			Kind:       NoticeContested,
			DistrictID: s.DistrictID,
			FactionA:   l.factions[lead],
			FactionB:   l.factions[second],
		})
	}

	return notices
}

// topTwo returns the indices of the two highest-control factions.
func (l *Ledger) topTwo(s *State) (lead, second int, ok bool) {
	if len(s.Control) < 2 {
		return 0, 0, false
	}
	lead, second = 0, 1
	if s.Control[second] > s.Control[lead] {
		lead, second = second, lead
	}
	for i := 2; i < len(s.Control); i++ {
		switch {
		case s.Control[i] > s.Control[lead]:
			second = lead
			lead = i
		case s.Control[i] > s.Control[second]:
			second = i
		}
	}
	return lead, second, true
}

// SupplyRatio returns a district's supply ratio for an item; missing
// entries read as the neutral 1.0.
func (s *State) SupplyRatio(item string) float64 {
	if s == nil {
		return 1.0
	}
	if v, ok := s.Supply[item]; ok {
		return math.Max(0.01, v)
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
