// Package api provides the HTTP API for querying and steering the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/wardsim/internal/economy"
	"github.com/talgya/wardsim/internal/engine"
	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/hostility"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/persistence"
	"github.com/talgya/wardsim/internal/world"
)

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Loop     *engine.Loop
	DB       *persistence.DB
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only — anyone can check in on the world).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/districts", s.handleDistricts)
	mux.HandleFunc("/api/v1/district/", s.handleDistrictDetail)
	mux.HandleFunc("/api/v1/factions", s.handleFactions)
	mux.HandleFunc("/api/v1/rules", s.handleRules)
	mux.HandleFunc("/api/v1/tension", s.handleTension)
	mux.HandleFunc("/api/v1/price", s.handlePrice)
	mux.HandleFunc("/api/v1/merchants", s.handleMerchants)
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/overlays", s.adminOnly(s.handleOverlays))
	mux.HandleFunc("/api/v1/overlays/remove", s.adminOnly(s.handleOverlayRemove))
	mux.HandleFunc("/api/v1/patrol", s.adminOnly(s.handlePatrol))
	mux.HandleFunc("/api/v1/incident", s.adminOnly(s.handleIncident))
	mux.HandleFunc("/api/v1/fight", s.adminOnly(s.handleFight))
	mux.HandleFunc("/api/v1/tax", s.adminOnly(s.handleTax))
	mux.HandleFunc("/api/v1/tax/remove", s.adminOnly(s.handleTaxRemove))
	mux.HandleFunc("/api/v1/demand", s.adminOnly(s.handleDemand))
	mux.HandleFunc("/api/v1/relation", s.adminOnly(s.handleRelation))
	mux.HandleFunc("/api/v1/merchant", s.adminOnly(s.handleMerchant))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/tick", s.adminOnly(s.handleTick))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		handler := corsMiddleware(mux)
		if err := http.ListenAndServe(s.Addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WARDSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.Sim.Lock()
	defer s.Sim.Unlock()

	var treasury float64
	for _, d := range s.Sim.Atlas.All() {
		treasury += s.Sim.Territory.StateByID(d.ID).Treasury
	}

	writeJSON(w, map[string]any{
		"name":           "Wardsim",
		"turn":           s.Sim.Turn,
		"day":            s.Sim.Day,
		"turns_per_day":  s.Sim.TurnsPerDay,
		"speed":          s.Loop.Speed,
		"running":        s.Loop.Running,
		"districts":      s.Sim.Atlas.Len(),
		"factions":       len(s.Sim.Factions.IDs()),
		"overlays":       len(s.Sim.Overlays.Active()),
		"total_treasury": humanize.Commaf(treasury),
	})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	type districtSummary struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Radius     float64 `json:"radius"`
		Population int     `json:"population"`
		Controller string  `json:"controller"`
		Contested  bool    `json:"contested"`
		Prosperity float64 `json:"prosperity"`
		Treasury   string  `json:"treasury"`
	}

	s.Sim.Lock()
	defer s.Sim.Unlock()

	factions := s.Sim.Territory.Factions()
	result := make([]districtSummary, 0, s.Sim.Atlas.Len())
	for _, d := range s.Sim.Atlas.All() {
		st := s.Sim.Territory.StateByID(d.ID)
		controller := ""
		if idx := s.Sim.Territory.ControllingFaction(st); idx >= 0 {
			controller = string(factions[idx])
		}
		result = append(result, districtSummary{
			ID:         d.ID,
			Name:       d.Name,
			X:          d.Center.X,
			Y:          d.Center.Y,
			Radius:     d.Radius,
			Population: d.Population,
			Controller: controller,
			Contested:  st.Contested,
			Prosperity: st.Prosperity,
			Treasury:   humanize.Commaf(st.Treasury),
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleDistrictDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing district id", http.StatusBadRequest)
		return
	}
	id := parts[4]

	s.Sim.Lock()
	defer s.Sim.Unlock()

	d := s.Sim.Atlas.ByID(id)
	st := s.Sim.Territory.StateByID(id)
	if d == nil || st == nil {
		http.Error(w, "district not found", http.StatusNotFound)
		return
	}

	// Per-faction standings keyed by faction ID.
	factions := s.Sim.Territory.Factions()
	control := make(map[string]float64, len(factions))
	patrol := make(map[string]float64, len(factions))
	heat := make(map[string]float64, len(factions))
	for i, f := range factions {
		control[string(f)] = st.Control[i]
		patrol[string(f)] = st.Patrol[i]
		heat[string(f)] = st.Heat[i]
	}

	controller := ""
	if idx := s.Sim.Territory.ControllingFaction(st); idx >= 0 {
		controller = string(factions[idx])
	}

	writeJSON(w, map[string]any{
		"id":             d.ID,
		"name":           d.Name,
		"x":              d.Center.X,
		"y":              d.Center.Y,
		"radius":         d.Radius,
		"population":     d.Population,
		"economic_value": d.EconomicValue,
		"produced":       d.Produced,
		"consumed":       d.Consumed,
		"controller":     controller,
		"contested":      st.Contested,
		"contest_streak": st.ContestStreak,
		"control":        control,
		"patrol":         patrol,
		"heat":           heat,
		"prosperity":     st.Prosperity,
		"treasury":       st.Treasury,
		"corruption":     st.Corruption,
		"supply":         st.Supply,
	})
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	type factionSummary struct {
		ID        string             `json:"id"`
		Name      string             `json:"name"`
		TaxRate   float64            `json:"tax_rate"`
		Relations map[string]float64 `json:"relations"`
	}

	s.Sim.Lock()
	defer s.Sim.Unlock()

	var result []factionSummary
	for _, f := range s.Sim.Factions.All() {
		relations := make(map[string]float64, len(f.Relations))
		for other, standing := range f.Relations {
			relations[string(other)] = standing
		}
		result = append(result, factionSummary{
			ID:        string(f.ID),
			Name:      f.Name,
			TaxRate:   f.TaxRate,
			Relations: relations,
		})
	}
	writeJSON(w, result)
}

// handleRules returns the folded rule set at a world position.
// GET /api/v1/rules?x=120&y=340
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	pos, ok := parsePoint(w, r)
	if !ok {
		return
	}

	s.Sim.Lock()
	rules := s.Sim.Overlays.RulesAt(pos)
	s.Sim.Unlock()

	writeJSON(w, rules)
}

// handleTension returns the tension record between two factions.
// GET /api/v1/tension?a=crown&b=ashen[&district=d-3]
func (s *Server) handleTension(w http.ResponseWriter, r *http.Request) {
	a := faction.Normalize(r.URL.Query().Get("a"))
	b := faction.Normalize(r.URL.Query().Get("b"))

	s.Sim.Lock()
	defer s.Sim.Unlock()

	if a == "" || b == "" {
		// No pair given: dump all active records.
		writeJSON(w, s.Sim.Hostility.Records())
		return
	}

	if district := r.URL.Query().Get("district"); district != "" {
		writeJSON(w, map[string]any{
			"tension": s.Sim.Hostility.Tension(a, b, district),
			"stage":   s.Sim.Hostility.StageFor(a, b, district).String(),
		})
		return
	}

	peak := s.Sim.Hostility.PeakTension(a, b)
	if peak == nil {
		writeJSON(w, map[string]any{"tension": 0.0, "stage": hostility.StageCalm.String()})
		return
	}
	writeJSON(w, peak)
}

// handlePrice resolves a quoted price with its full breakdown.
// GET /api/v1/price?merchant=m-1&item=grain&x=120&y=340&side=buy
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	merchantID := r.URL.Query().Get("merchant")
	itemID := r.URL.Query().Get("item")
	if merchantID == "" || itemID == "" {
		http.Error(w, "merchant and item required", http.StatusBadRequest)
		return
	}
	pos, ok := parsePoint(w, r)
	if !ok {
		return
	}

	s.Sim.Lock()
	defer s.Sim.Unlock()

	m := s.Sim.Merchants[merchantID]
	if m == nil {
		http.Error(w, "merchant not found", http.StatusNotFound)
		return
	}

	var price float64
	var breakdown economy.Breakdown
	if r.URL.Query().Get("side") == "sell" {
		price, breakdown = s.Sim.Prices.ResolveSellPrice(itemID, m, pos)
	} else {
		price, breakdown = s.Sim.Prices.ResolveBuyPrice(itemID, m, pos)
	}

	writeJSON(w, map[string]any{
		"price":     price,
		"breakdown": breakdown,
	})
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	s.Sim.Lock()
	defer s.Sim.Unlock()

	result := make([]*economy.MerchantProfile, 0, len(s.Sim.Merchants))
	for _, m := range s.Sim.Merchants {
		result = append(result, m)
	}
	writeJSON(w, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	s.Sim.Lock()
	events := s.Sim.Events()
	s.Sim.Unlock()

	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

// handleOverlays lists active layers (GET) or registers a new one (POST).
func (s *Server) handleOverlays(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			ID             string   `json:"id,omitempty"`
			X              float64  `json:"x"`
			Y              float64  `json:"y"`
			Radius         float64  `json:"radius"`
			Priority       int      `json:"priority"`
			TurnsRemaining int      `json:"turns_remaining"`
			Tokens         []string `json:"tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if len(req.Tokens) == 0 {
			http.Error(w, "tokens required", http.StatusBadRequest)
			return
		}

		s.Sim.Lock()
		id := s.Sim.Overlays.Register(&overlay.Layer{
			ID:             req.ID,
			Center:         world.Point{X: req.X, Y: req.Y},
			Radius:         req.Radius,
			Priority:       req.Priority,
			TurnsRemaining: req.TurnsRemaining,
			Tokens:         req.Tokens,
		})
		s.Sim.RecordEvent("overlay", "rule layer "+id+" registered")
		s.Sim.Unlock()

		writeJSON(w, map[string]any{"success": true, "id": id})
		return
	}

	s.Sim.Lock()
	layers := s.Sim.Overlays.Active()
	s.Sim.Unlock()
	writeJSON(w, layers)
}

func (s *Server) handleOverlayRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	s.Sim.Overlays.Unregister(req.ID)
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true})
}

// handlePatrol adjusts or invests patrol presence for one faction in a district.
// POST {"district": "d-3", "faction": "crown", "amount": 0.2, "mode": "invest"}
func (s *Server) handlePatrol(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		District string  `json:"district"`
		Faction  string  `json:"faction"`
		Amount   float64 `json:"amount"`
		Mode     string  `json:"mode"` // "invest" (applied on day tick) or "adjust" (immediate)
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	defer s.Sim.Unlock()

	idx := s.Sim.Territory.FactionIndex(faction.Normalize(req.Faction))
	if idx < 0 {
		http.Error(w, "faction not found", http.StatusNotFound)
		return
	}
	if s.Sim.Territory.StateByID(req.District) == nil {
		http.Error(w, "district not found", http.StatusNotFound)
		return
	}

	if req.Mode == "adjust" {
		s.Sim.Territory.AdjustPatrol(req.District, idx, req.Amount)
	} else {
		s.Sim.Territory.InvestPatrol(req.District, idx, req.Amount)
	}
	writeJSON(w, map[string]any{"success": true})
}

// handleIncident reports a hostile incident between two factions.
// POST {"type": "raid", "x": 120, "y": 340, "a": "crown", "b": "ashen"}
func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Type string  `json:"type"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		A    string  `json:"a"`
		B    string  `json:"b"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	s.Sim.Hostility.ReportIncident(
		hostility.IncidentType(req.Type),
		world.Point{X: req.X, Y: req.Y},
		faction.Normalize(req.A), faction.Normalize(req.B),
		s.Sim.Turn,
	)
	s.Sim.RecordEvent("hostility", req.Type+" reported between "+req.A+" and "+req.B)
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true})
}

// handleFight asks the escalation pipeline whether a fight may start.
// POST with attacker/target combatant descriptions.
func (s *Server) handleFight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type combatant struct {
		ID      string  `json:"id"`
		Faction string  `json:"faction"`
		X       float64 `json:"x"`
		Y       float64 `json:"y"`
	}
	var req struct {
		Attacker combatant `json:"attacker"`
		Target   combatant `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	decision := s.Sim.Hostility.AuthorizeFight(
		hostility.Combatant{
			ID:      req.Attacker.ID,
			Faction: faction.Normalize(req.Attacker.Faction),
			Pos:     world.Point{X: req.Attacker.X, Y: req.Attacker.Y},
		},
		hostility.Combatant{
			ID:      req.Target.ID,
			Faction: faction.Normalize(req.Target.Faction),
			Pos:     world.Point{X: req.Target.X, Y: req.Target.Y},
		},
		s.Sim.Turn,
	)
	if decision.Authorized {
		// The defender earns a retaliation window against this attacker.
		s.Sim.Hostility.RecordRetaliation(req.Target.ID, req.Attacker.ID, s.Sim.Turn)
	}
	s.Sim.Unlock()

	writeJSON(w, decision)
}

// handleTax registers a new tax policy.
func (s *Server) handleTax(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.Sim.Lock()
		policies := s.Sim.Taxes.All()
		s.Sim.Unlock()
		writeJSON(w, policies)
		return
	}

	var req struct {
		Kind           int      `json:"kind"`
		Rate           float64  `json:"rate"`
		Jurisdiction   string   `json:"jurisdiction"`
		TurnsRemaining int      `json:"turns_remaining"`
		ExemptFactions []string `json:"exempt_factions,omitempty"`
		ExemptItems    []string `json:"exempt_items,omitempty"`
		TargetItems    []string `json:"target_items,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	policy := &economy.TaxPolicy{
		Kind:           economy.TaxKind(req.Kind),
		Rate:           req.Rate,
		Jurisdiction:   req.Jurisdiction,
		TurnsRemaining: req.TurnsRemaining,
	}
	for _, f := range req.ExemptFactions {
		if policy.ExemptFactions == nil {
			policy.ExemptFactions = make(map[faction.ID]struct{})
		}
		policy.ExemptFactions[faction.Normalize(f)] = struct{}{}
	}
	for _, item := range req.ExemptItems {
		if policy.ExemptItems == nil {
			policy.ExemptItems = make(map[string]struct{})
		}
		policy.ExemptItems[item] = struct{}{}
	}
	for _, item := range req.TargetItems {
		if policy.TargetItems == nil {
			policy.TargetItems = make(map[string]struct{})
		}
		policy.TargetItems[item] = struct{}{}
	}

	s.Sim.Lock()
	id := s.Sim.Taxes.Add(policy)
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true, "id": id})
}

func (s *Server) handleTaxRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	s.Sim.Taxes.Remove(req.ID)
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true})
}

// handleDemand registers a demand event for an item.
func (s *Server) handleDemand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.Sim.Lock()
		events := s.Sim.Demand.All()
		s.Sim.Unlock()
		writeJSON(w, events)
		return
	}

	var req struct {
		ItemID        string  `json:"item_id"`
		Multiplier    float64 `json:"multiplier"`
		DaysRemaining int     `json:"days_remaining"`
		DistrictID    string  `json:"district_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ItemID == "" || req.Multiplier <= 0 {
		http.Error(w, "item_id and positive multiplier required", http.StatusBadRequest)
		return
	}

	s.Sim.Lock()
	id := s.Sim.Demand.Add(&economy.DemandEvent{
		ItemID:        req.ItemID,
		Multiplier:    req.Multiplier,
		DaysRemaining: req.DaysRemaining,
		DistrictID:    req.DistrictID,
	})
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true, "id": id})
}

// handleRelation sets a directed trade relation between two factions.
func (s *Server) handleRelation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.Sim.Lock()
		relations := s.Sim.Relations.All()
		s.Sim.Unlock()
		writeJSON(w, relations)
		return
	}

	var req struct {
		Source         string   `json:"source"`
		Target         string   `json:"target"`
		Status         int      `json:"status"`
		TariffRate     float64  `json:"tariff_rate"`
		BannedItems    []string `json:"banned_items,omitempty"`
		ExclusiveItems []string `json:"exclusive_items,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	rel := &economy.TradeRelation{
		Source:     faction.Normalize(req.Source),
		Target:     faction.Normalize(req.Target),
		Status:     economy.RelationStatus(req.Status),
		TariffRate: req.TariffRate,
	}
	for _, item := range req.BannedItems {
		if rel.BannedItems == nil {
			rel.BannedItems = make(map[string]struct{})
		}
		rel.BannedItems[item] = struct{}{}
	}
	for _, item := range req.ExclusiveItems {
		if rel.ExclusiveItems == nil {
			rel.ExclusiveItems = make(map[string]struct{})
		}
		rel.ExclusiveItems[item] = struct{}{}
	}

	s.Sim.Lock()
	s.Sim.Relations.Set(rel)
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true})
}

// handleMerchant registers or updates a merchant profile.
func (s *Server) handleMerchant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var m economy.MerchantProfile
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if m.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	if m.BuyMultiplier <= 0 {
		m.BuyMultiplier = 1.0
	}
	if m.SellMultiplier <= 0 {
		m.SellMultiplier = 1.0
	}
	m.Faction = faction.Normalize(string(m.Faction))

	s.Sim.Lock()
	s.Sim.Merchants[m.ID] = &m
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"success": true, "id": m.ID})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Loop.Speed = req.Speed
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Loop.Speed})
}

// handleTick steps the simulation forward without waiting for the loop.
// POST {"turns": 24} or {"days": 1}.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Turns int `json:"turns"`
		Days  int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Turns < 0 || req.Turns > 10000 || req.Days < 0 || req.Days > 365 {
		http.Error(w, "turns must be 0-10000, days 0-365", http.StatusBadRequest)
		return
	}

	// AdvanceTurn and TickDay take the simulation lock themselves.
	for i := 0; i < req.Turns; i++ {
		s.Sim.AdvanceTurn()
	}
	for i := 0; i < req.Days; i++ {
		s.Sim.TickDay()
	}

	s.Sim.Lock()
	turn, day := s.Sim.Turn, s.Sim.Day
	s.Sim.Unlock()

	writeJSON(w, map[string]any{"turn": turn, "day": day})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	s.Sim.Lock()
	err := s.DB.SaveWorldState(s.Sim)
	turn := s.Sim.Turn
	s.Sim.Unlock()

	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"turn": turn, "message": "snapshot saved"})
}

func parsePoint(w http.ResponseWriter, r *http.Request) (world.Point, bool) {
	x, err1 := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, err2 := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "x and y query parameters required", http.StatusBadRequest)
		return world.Point{}, false
	}
	return world.Point{X: x, Y: y}, true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("JSON encode failed", "error", err)
	}
}
