// Package persistence provides SQLite-based storage for everything the
// core must carry across restarts: district ledgers, overlay layers
// (raw tokens, re-parsed on load), tax policies, trade relations,
// demand events, and tension records. Retaliation entries are a short
// turn window and are deliberately dropped on restart.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/wardsim/internal/economy"
	"github.com/talgya/wardsim/internal/engine"
	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/hostility"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/world"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS district_states (
		district_id TEXT PRIMARY KEY,
		prosperity REAL NOT NULL,
		treasury REAL NOT NULL,
		corruption REAL NOT NULL,
		contest_streak INTEGER NOT NULL,
		contested INTEGER NOT NULL,
		control_json TEXT NOT NULL,
		patrol_json TEXT NOT NULL,
		heat_json TEXT NOT NULL,
		loss_json TEXT NOT NULL,
		supply_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS overlay_layers (
		id TEXT PRIMARY KEY,
		cx REAL NOT NULL,
		cy REAL NOT NULL,
		radius REAL NOT NULL,
		priority INTEGER NOT NULL,
		turns_remaining INTEGER NOT NULL,
		tokens_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tax_policies (
		id TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		rate REAL NOT NULL,
		jurisdiction TEXT NOT NULL,
		turns_remaining INTEGER NOT NULL,
		exempt_factions_json TEXT NOT NULL,
		exempt_items_json TEXT NOT NULL,
		target_items_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_relations (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		status INTEGER NOT NULL,
		tariff REAL NOT NULL,
		banned_json TEXT NOT NULL,
		exclusive_json TEXT NOT NULL,
		PRIMARY KEY (source, target)
	);

	CREATE TABLE IF NOT EXISTS demand_events (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		multiplier REAL NOT NULL,
		days_remaining INTEGER NOT NULL,
		district_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tension_records (
		faction_a TEXT NOT NULL,
		faction_b TEXT NOT NULL,
		district_id TEXT NOT NULL,
		tension REAL NOT NULL,
		last_turn INTEGER NOT NULL,
		last_type TEXT NOT NULL,
		incidents INTEGER NOT NULL,
		PRIMARY KEY (faction_a, faction_b, district_id)
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// HasWorldState reports whether a previous session was saved.
func (db *DB) HasWorldState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM sim_meta"); err != nil {
		return false
	}
	return count > 0
}

// GetMeta reads one metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// SetMeta writes one metadata value.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO sim_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// SaveWorldState writes the full simulation state (full replace).
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveDistricts(tx, sim); err != nil {
		return fmt.Errorf("save districts: %w", err)
	}
	if err := saveLayers(tx, sim.Overlays.Active()); err != nil {
		return fmt.Errorf("save layers: %w", err)
	}
	if err := saveTaxes(tx, sim.Taxes.All()); err != nil {
		return fmt.Errorf("save taxes: %w", err)
	}
	if err := saveRelations(tx, sim.Relations.All()); err != nil {
		return fmt.Errorf("save relations: %w", err)
	}
	if err := saveDemand(tx, sim.Demand.All()); err != nil {
		return fmt.Errorf("save demand: %w", err)
	}
	if err := saveTension(tx, sim.Hostility.Records()); err != nil {
		return fmt.Errorf("save tension: %w", err)
	}

	meta := map[string]string{
		"turn": strconv.FormatUint(sim.Turn, 10),
		"day":  strconv.FormatUint(sim.Day, 10),
	}
	for k, v := range meta {
		if _, err := tx.Exec(
			"INSERT INTO sim_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadWorldState restores a saved session into a freshly constructed
// simulation. Overlay tokens are re-parsed through Register.
func (db *DB) LoadWorldState(sim *engine.Simulation) error {
	if err := db.loadDistricts(sim); err != nil {
		return fmt.Errorf("load districts: %w", err)
	}
	if err := db.loadLayers(sim); err != nil {
		return fmt.Errorf("load layers: %w", err)
	}
	if err := db.loadTaxes(sim); err != nil {
		return fmt.Errorf("load taxes: %w", err)
	}
	if err := db.loadRelations(sim); err != nil {
		return fmt.Errorf("load relations: %w", err)
	}
	if err := db.loadDemand(sim); err != nil {
		return fmt.Errorf("load demand: %w", err)
	}
	if err := db.loadTension(sim); err != nil {
		return fmt.Errorf("load tension: %w", err)
	}

	if v, err := db.GetMeta("turn"); err == nil {
		if turn, err := strconv.ParseUint(v, 10, 64); err == nil {
			sim.Turn = turn
		}
	}
	if v, err := db.GetMeta("day"); err == nil {
		if day, err := strconv.ParseUint(v, 10, 64); err == nil {
			sim.Day = day
		}
	}

	slog.Info("world state restored", "turn", sim.Turn, "day", sim.Day)
	return nil
}

func saveDistricts(tx *sqlx.Tx, sim *engine.Simulation) error {
	if _, err := tx.Exec("DELETE FROM district_states"); err != nil {
		return err
	}
	stmt, err := tx.Preparex(`INSERT INTO district_states
		(district_id, prosperity, treasury, corruption, contest_streak, contested,
		 control_json, patrol_json, heat_json, loss_json, supply_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range sim.Atlas.All() {
		s := sim.Territory.StateByID(d.ID)
		controlJSON, _ := json.Marshal(s.Control)
		patrolJSON, _ := json.Marshal(s.Patrol)
		heatJSON, _ := json.Marshal(s.Heat)
		lossJSON, _ := json.Marshal(s.LossStreak)
		supplyJSON, _ := json.Marshal(s.Supply)

		contested := 0
		if s.Contested {
			contested = 1
		}
		if _, err := stmt.Exec(
			s.DistrictID, s.Prosperity, s.Treasury, s.Corruption, s.ContestStreak, contested,
			string(controlJSON), string(patrolJSON), string(heatJSON), string(lossJSON), string(supplyJSON),
		); err != nil {
			return fmt.Errorf("insert district %s: %w", s.DistrictID, err)
		}
	}
	return nil
}

func (db *DB) loadDistricts(sim *engine.Simulation) error {
	rows, err := db.conn.Queryx(`SELECT district_id, prosperity, treasury, corruption,
		contest_streak, contested, control_json, patrol_json, heat_json, loss_json, supply_json
		FROM district_states`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                                  string
			prosperity, treasury, corruption                    float64
			contestStreak, contested                            int
			controlJSON, patrolJSON, heatJSON, lossJSON, supply string
		)
		if err := rows.Scan(&id, &prosperity, &treasury, &corruption,
			&contestStreak, &contested, &controlJSON, &patrolJSON, &heatJSON, &lossJSON, &supply); err != nil {
			return err
		}

		s := sim.Territory.StateByID(id)
		if s == nil {
			slog.Warn("saved state for unknown district, skipping", "district", id)
			continue
		}
		s.Prosperity = prosperity
		s.Treasury = treasury
		s.Corruption = corruption
		s.ContestStreak = contestStreak
		s.Contested = contested != 0
		unmarshalInto(controlJSON, &s.Control, len(sim.Factions.IDs()))
		unmarshalInto(patrolJSON, &s.Patrol, len(sim.Factions.IDs()))
		unmarshalInto(heatJSON, &s.Heat, len(sim.Factions.IDs()))
		unmarshalIntsInto(lossJSON, &s.LossStreak, len(sim.Factions.IDs()))
		json.Unmarshal([]byte(supply), &s.Supply)
		if s.Supply == nil {
			s.Supply = make(map[string]float64)
		}
	}
	return rows.Err()
}

func saveLayers(tx *sqlx.Tx, layers []*overlay.Layer) error {
	if _, err := tx.Exec("DELETE FROM overlay_layers"); err != nil {
		return err
	}
	for _, l := range layers {
		tokensJSON, _ := json.Marshal(l.Tokens)
		if _, err := tx.Exec(`INSERT INTO overlay_layers
			(id, cx, cy, radius, priority, turns_remaining, tokens_json)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Center.X, l.Center.Y, l.Radius, l.Priority, l.TurnsRemaining, string(tokensJSON),
		); err != nil {
			return fmt.Errorf("insert layer %s: %w", l.ID, err)
		}
	}
	return nil
}

func (db *DB) loadLayers(sim *engine.Simulation) error {
	rows, err := db.conn.Queryx(
		"SELECT id, cx, cy, radius, priority, turns_remaining, tokens_json FROM overlay_layers")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, tokensJSON          string
			cx, cy, radius          float64
			priority, turnsRemaining int
		)
		if err := rows.Scan(&id, &cx, &cy, &radius, &priority, &turnsRemaining, &tokensJSON); err != nil {
			return err
		}
		var tokens []string
		json.Unmarshal([]byte(tokensJSON), &tokens)

		sim.Overlays.Register(&overlay.Layer{
			ID:             id,
			Center:         world.Point{X: cx, Y: cy},
			Radius:         radius,
			Priority:       priority,
			TurnsRemaining: turnsRemaining,
			Tokens:         tokens,
		})
	}
	return rows.Err()
}

func saveTaxes(tx *sqlx.Tx, policies []*economy.TaxPolicy) error {
	if _, err := tx.Exec("DELETE FROM tax_policies"); err != nil {
		return err
	}
	for _, p := range policies {
		exemptFactions, _ := json.Marshal(factionSetToList(p.ExemptFactions))
		exemptItems, _ := json.Marshal(stringSetToList(p.ExemptItems))
		targetItems, _ := json.Marshal(stringSetToList(p.TargetItems))
		if _, err := tx.Exec(`INSERT INTO tax_policies
			(id, kind, rate, jurisdiction, turns_remaining,
			 exempt_factions_json, exempt_items_json, target_items_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, int(p.Kind), p.Rate, p.Jurisdiction, p.TurnsRemaining,
			string(exemptFactions), string(exemptItems), string(targetItems),
		); err != nil {
			return fmt.Errorf("insert tax policy %s: %w", p.ID, err)
		}
	}
	return nil
}

func (db *DB) loadTaxes(sim *engine.Simulation) error {
	rows, err := db.conn.Queryx(`SELECT id, kind, rate, jurisdiction, turns_remaining,
		exempt_factions_json, exempt_items_json, target_items_json FROM tax_policies`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, jurisdiction                           string
			kind, turnsRemaining                       int
			rate                                       float64
			exemptFactions, exemptItems, targetItems   string
		)
		if err := rows.Scan(&id, &kind, &rate, &jurisdiction, &turnsRemaining,
			&exemptFactions, &exemptItems, &targetItems); err != nil {
			return err
		}
		sim.Taxes.Add(&economy.TaxPolicy{
			ID:             id,
			Kind:           economy.TaxKind(kind),
			Rate:           rate,
			Jurisdiction:   jurisdiction,
			TurnsRemaining: turnsRemaining,
			ExemptFactions: listToFactionSet(unmarshalList(exemptFactions)),
			ExemptItems:    listToStringSet(unmarshalList(exemptItems)),
			TargetItems:    listToStringSet(unmarshalList(targetItems)),
		})
	}
	return rows.Err()
}

func saveRelations(tx *sqlx.Tx, relations []*economy.TradeRelation) error {
	if _, err := tx.Exec("DELETE FROM trade_relations"); err != nil {
		return err
	}
	for _, rel := range relations {
		banned, _ := json.Marshal(stringSetToList(rel.BannedItems))
		exclusive, _ := json.Marshal(stringSetToList(rel.ExclusiveItems))
		if _, err := tx.Exec(`INSERT INTO trade_relations
			(source, target, status, tariff, banned_json, exclusive_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(rel.Source), string(rel.Target), int(rel.Status), rel.TariffRate,
			string(banned), string(exclusive),
		); err != nil {
			return fmt.Errorf("insert relation %s→%s: %w", rel.Source, rel.Target, err)
		}
	}
	return nil
}

func (db *DB) loadRelations(sim *engine.Simulation) error {
	rows, err := db.conn.Queryx(
		"SELECT source, target, status, tariff, banned_json, exclusive_json FROM trade_relations")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source, target, banned, exclusive string
			status                            int
			tariff                            float64
		)
		if err := rows.Scan(&source, &target, &status, &tariff, &banned, &exclusive); err != nil {
			return err
		}
		sim.Relations.Set(&economy.TradeRelation{
			Source:         faction.ID(source),
			Target:         faction.ID(target),
			Status:         economy.RelationStatus(status),
			TariffRate:     tariff,
			BannedItems:    listToStringSet(unmarshalList(banned)),
			ExclusiveItems: listToStringSet(unmarshalList(exclusive)),
		})
	}
	return rows.Err()
}

func saveDemand(tx *sqlx.Tx, events []*economy.DemandEvent) error {
	if _, err := tx.Exec("DELETE FROM demand_events"); err != nil {
		return err
	}
	for _, e := range events {
		if _, err := tx.Exec(`INSERT INTO demand_events
			(id, item_id, multiplier, days_remaining, district_id)
			VALUES (?, ?, ?, ?, ?)`,
			e.ID, e.ItemID, e.Multiplier, e.DaysRemaining, e.DistrictID,
		); err != nil {
			return fmt.Errorf("insert demand event %s: %w", e.ID, err)
		}
	}
	return nil
}

func (db *DB) loadDemand(sim *engine.Simulation) error {
	rows, err := db.conn.Queryx(
		"SELECT id, item_id, multiplier, days_remaining, district_id FROM demand_events")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e economy.DemandEvent
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Multiplier, &e.DaysRemaining, &e.DistrictID); err != nil {
			return err
		}
		ev := e
		sim.Demand.Add(&ev)
	}
	return rows.Err()
}

func saveTension(tx *sqlx.Tx, records []*hostility.Record) error {
	if _, err := tx.Exec("DELETE FROM tension_records"); err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := tx.Exec(`INSERT INTO tension_records
			(faction_a, faction_b, district_id, tension, last_turn, last_type, incidents)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(rec.FactionA), string(rec.FactionB), rec.DistrictID,
			rec.Tension, rec.LastTurn, string(rec.LastType), rec.Incidents,
		); err != nil {
			return fmt.Errorf("insert tension %s/%s: %w", rec.FactionA, rec.FactionB, err)
		}
	}
	return nil
}

func (db *DB) loadTension(sim *engine.Simulation) error {
	rows, err := db.conn.Queryx(`SELECT faction_a, faction_b, district_id,
		tension, last_turn, last_type, incidents FROM tension_records`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var records []*hostility.Record
	for rows.Next() {
		var (
			a, b, district, lastType string
			tension                  float64
			lastTurn                 uint64
			incidents                int
		)
		if err := rows.Scan(&a, &b, &district, &tension, &lastTurn, &lastType, &incidents); err != nil {
			return err
		}
		records = append(records, &hostility.Record{
			FactionA:   faction.ID(a),
			FactionB:   faction.ID(b),
			DistrictID: district,
			Tension:    tension,
			LastTurn:   lastTurn,
			LastType:   hostility.IncidentType(lastType),
			Incidents:  incidents,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sim.Hostility.Restore(records)
	return nil
}

func unmarshalInto(data string, dst *[]float64, n int) {
	var vals []float64
	json.Unmarshal([]byte(data), &vals)
	for i := 0; i < n && i < len(vals); i++ {
		(*dst)[i] = vals[i]
	}
}

func unmarshalIntsInto(data string, dst *[]int, n int) {
	var vals []int
	json.Unmarshal([]byte(data), &vals)
	for i := 0; i < n && i < len(vals); i++ {
		(*dst)[i] = vals[i]
	}
}

func unmarshalList(data string) []string {
	var list []string
	json.Unmarshal([]byte(data), &list)
	return list
}

func stringSetToList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

func factionSetToList(set map[faction.ID]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, string(id))
	}
	return out
}

func listToStringSet(list []string) map[string]struct{} {
	if len(list) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

func listToFactionSet(list []string) map[faction.ID]struct{} {
	if len(list) == 0 {
		return nil
	}
	set := make(map[faction.ID]struct{}, len(list))
	for _, s := range list {
		set[faction.ID(s)] = struct{}{}
	}
	return set
}
