// Package hostility tracks per-faction-pair, per-district tension and
// is the single authorization gate for combat. Tension accumulates
// from reported incidents, decays daily, and maps onto five escalation
// stages; fight authorization composes truce overlays, legacy faction
// standing, the escalation stage, and a short retaliation window in a
// fixed short-circuit order.
package hostility

import (
	"log/slog"

	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/world"
)

// Tuning constants for the escalation pipeline.
const (
	// DailyDecay is subtracted from every record's tension per day.
	DailyDecay = 0.05

	// GraceWindow preserves zero-tension records with enough history
	// for this many turns after their last incident.
	GraceWindow = 100

	// graceIncidents is the history size that earns a grace window.
	graceIncidents = 3

	// RetaliationWindow is how many turns a defender may strike back.
	RetaliationWindow = 3
)

// IncidentType names a reported incident for delta lookup.
type IncidentType string

// DefaultIncidentDeltas is the tension added per incident type.
// Pipelines may be constructed with an overriding table.
var DefaultIncidentDeltas = map[IncidentType]float64{
	"murder":    0.40,
	"raid":      0.20,
	"assault":   0.15,
	"sabotage":  0.10,
	"theft":     0.08,
	"vandalism": 0.05,
	"insult":    0.03,
}

// Record is the tension state for one faction pair in one district.
// FactionA sorts lexicographically before FactionB.
type Record struct {
	FactionA   faction.ID   `json:"faction_a"`
	FactionB   faction.ID   `json:"faction_b"`
	DistrictID string       `json:"district_id"`
	Tension    float64      `json:"tension"`
	Stage      Stage        `json:"stage"`
	LastTurn   uint64       `json:"last_incident_turn"`
	LastType   IncidentType `json:"last_incident_type"`
	Incidents  int          `json:"incident_count"`
}

// Transition is one entry of the stage transition log.
type Transition struct {
	FactionA   faction.ID `json:"faction_a"`
	FactionB   faction.ID `json:"faction_b"`
	DistrictID string     `json:"district_id"`
	From       Stage      `json:"from"`
	To         Stage      `json:"to"`
	Turn       uint64     `json:"turn"`
}

// Combatant carries the identity and position needed to authorize a
// fight.
type Combatant struct {
	ID      string
	Faction faction.ID
	Pos     world.Point
}

// Decision is the outcome of AuthorizeFight.
type Decision struct {
	Authorized bool    `json:"authorized"`
	Reason     string  `json:"reason"`
	Stage      Stage   `json:"stage"`
	Tension    float64 `json:"tension"`
}

type pairKey struct {
	a, b     faction.ID
	district string
}

type retaliation struct {
	attackerID string
	turn       uint64
}

// RuleSource answers spatial rule queries; satisfied by
// overlay.Resolver.
type RuleSource interface {
	RulesAt(p world.Point) overlay.EffectiveRules
}

// Pipeline is the escalation state machine for every faction pair.
type Pipeline struct {
	atlas   *world.Atlas
	rules   RuleSource
	roster  *faction.Roster
	deltas  map[IncidentType]float64
	records map[pairKey]*Record

	// One slot per defender identity, overwritten on each new hit.
	retaliations map[string]retaliation

	transitions []Transition
	maxLog      int
}

// NewPipeline creates an escalation pipeline. A nil delta table uses
// DefaultIncidentDeltas.
func NewPipeline(atlas *world.Atlas, rules RuleSource, roster *faction.Roster, deltas map[IncidentType]float64) *Pipeline {
	if deltas == nil {
		deltas = DefaultIncidentDeltas
	}
	return &Pipeline{
		atlas:        atlas,
		rules:        rules,
		roster:       roster,
		deltas:       deltas,
		records:      make(map[pairKey]*Record),
		retaliations: make(map[string]retaliation),
		maxLog:       256,
	}
}

// normalizeKey orders the faction pair lexicographically and pairs it
// with the district id ("" when the position is outside any district).
func normalizeKey(a, b faction.ID, district string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b, district: district}
}

// ReportIncident adds tension between two factions at a position.
// Empty or identical faction ids are a no-op.
func (p *Pipeline) ReportIncident(typ IncidentType, pos world.Point, a, b faction.ID, turn uint64) {
	if a == "" || b == "" || a == b {
		return
	}

	district := ""
	if d := p.atlas.At(pos); d != nil {
		district = d.ID
	}

	key := normalizeKey(a, b, district)
	rec, ok := p.records[key]
	if !ok {
		rec = &Record{FactionA: key.a, FactionB: key.b, DistrictID: district}
		p.records[key] = rec
	}

	rec.Tension = clamp01(rec.Tension + p.deltas[typ])
	p.setStage(rec, turn)
	rec.Incidents++
	rec.LastTurn = turn
	rec.LastType = typ
}

// EvaluateEscalation decays every record by the daily constant and
// prunes spent records. Records with a real incident history are kept
// for a grace window after reaching zero so downstream grievance
// queries still see them. Call once per economic day.
func (p *Pipeline) EvaluateEscalation(turn uint64) {
	for key, rec := range p.records {
		rec.Tension -= DailyDecay
		if rec.Tension < 0 {
			rec.Tension = 0
		}
		p.setStage(rec, turn)

		if rec.Tension == 0 {
			inGrace := rec.Incidents >= graceIncidents && turn-rec.LastTurn <= GraceWindow
			if !inGrace {
				delete(p.records, key)
			}
		}
	}
}

// RecordRetaliation notes that a defender was hit by an attacker on
// the given turn. One slot per defender; each new hit overwrites.
func (p *Pipeline) RecordRetaliation(defenderID, attackerID string, turn uint64) {
	if defenderID == "" || attackerID == "" {
		return
	}
	p.retaliations[defenderID] = retaliation{attackerID: attackerID, turn: turn}
}

// AuthorizeFight decides whether an attack may proceed. Checks apply
// in order and short-circuit: truce always beats escalation, and the
// legacy standing rule is evaluated before the escalation stage for
// behavioral compatibility.
func (p *Pipeline) AuthorizeFight(attacker, target Combatant, turn uint64) Decision {
	if attacker.ID == "" || target.ID == "" || attacker.ID == target.ID {
		return Decision{Reason: "invalid combatants"}
	}
	if attacker.Faction != "" && attacker.Faction == target.Faction {
		return Decision{Reason: "same faction"}
	}

	rec := p.recordAt(attacker.Faction, target.Faction, attacker.Pos)
	stage, tension := StageCalm, 0.0
	if rec != nil {
		stage, tension = rec.Stage, rec.Tension
	}

	if p.rules.RulesAt(attacker.Pos).Truce || p.rules.RulesAt(target.Pos).Truce {
		return Decision{Reason: "truce zone", Stage: stage, Tension: tension}
	}

	if p.roster.Hostile(attacker.Faction, target.Faction) {
		return Decision{Authorized: true, Reason: "hostile standing", Stage: stage, Tension: tension}
	}

	if stage >= StageExplosive {
		return Decision{Authorized: true, Reason: "tension explosive", Stage: stage, Tension: tension}
	}

	if ret, ok := p.retaliations[attacker.ID]; ok &&
		ret.attackerID == target.ID && turn-ret.turn <= RetaliationWindow {
		return Decision{Authorized: true, Reason: "retaliation", Stage: stage, Tension: tension}
	}

	return Decision{Reason: "no grounds", Stage: stage, Tension: tension}
}

// Tension returns the tension for a pair in a district, 0 if no record
// exists.
func (p *Pipeline) Tension(a, b faction.ID, district string) float64 {
	if rec := p.records[normalizeKey(a, b, district)]; rec != nil {
		return rec.Tension
	}
	return 0
}

// StageFor returns the stage for a pair in a district.
func (p *Pipeline) StageFor(a, b faction.ID, district string) Stage {
	if rec := p.records[normalizeKey(a, b, district)]; rec != nil {
		return rec.Stage
	}
	return StageCalm
}

// PeakTension scans every district for the pair and returns the
// highest-tension record, or nil. Region-agnostic, for dialogue and
// narrative queries.
func (p *Pipeline) PeakTension(a, b faction.ID) *Record {
	if b < a {
		a, b = b, a
	}
	var peak *Record
	for _, rec := range p.records {
		if rec.FactionA != a || rec.FactionB != b {
			continue
		}
		if peak == nil || rec.Tension > peak.Tension {
			peak = rec
		}
	}
	return peak
}

// Records returns every live tension record (persistence snapshot).
func (p *Pipeline) Records() []*Record {
	out := make([]*Record, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec)
	}
	return out
}

// Restore replaces the record map from a persisted snapshot.
func (p *Pipeline) Restore(records []*Record) {
	p.records = make(map[pairKey]*Record, len(records))
	for _, rec := range records {
		key := normalizeKey(rec.FactionA, rec.FactionB, rec.DistrictID)
		rec.FactionA, rec.FactionB = key.a, key.b
		rec.Stage = StageForTension(rec.Tension)
		p.records[key] = rec
	}
}

// Transitions returns the recent stage transition log.
func (p *Pipeline) Transitions() []Transition {
	out := make([]Transition, len(p.transitions))
	copy(out, p.transitions)
	return out
}

// recordAt resolves the pair's record for the district at a position.
func (p *Pipeline) recordAt(a, b faction.ID, pos world.Point) *Record {
	district := ""
	if d := p.atlas.At(pos); d != nil {
		district = d.ID
	}
	return p.records[normalizeKey(a, b, district)]
}

func (p *Pipeline) setStage(rec *Record, turn uint64) {
	next := StageForTension(rec.Tension)
	if next == rec.Stage {
		return
	}
	p.transitions = append(p.transitions, Transition{
		FactionA:   rec.FactionA,
		FactionB:   rec.FactionB,
		DistrictID: rec.DistrictID,
		From:       rec.Stage,
		To:         next,
		Turn:       turn,
	})
	if len(p.transitions) > p.maxLog {
		p.transitions = p.transitions[len(p.transitions)-p.maxLog:]
	}
	if next > rec.Stage {
		slog.Debug("tension escalated",
			"factions", string(rec.FactionA)+"/"+string(rec.FactionB),
			"district", rec.DistrictID,
			"stage", next.String(),
		)
	}
	rec.Stage = next
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
