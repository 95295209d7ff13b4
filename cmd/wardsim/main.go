// Command wardsim runs the ward territorial and economic simulation daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/wardsim/internal/api"
	"github.com/talgya/wardsim/internal/config"
	"github.com/talgya/wardsim/internal/economy"
	"github.com/talgya/wardsim/internal/engine"
	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/overlay"
	"github.com/talgya/wardsim/internal/persistence"
	"github.com/talgya/wardsim/internal/territory"
	"github.com/talgya/wardsim/internal/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Wardsim — territorial, political and economic core")

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Designer token registry ───────────────────────────────────────
	var registry *overlay.Registry
	if cfg.TokenRegistryPath != "" {
		registry, err = overlay.LoadRegistry(cfg.TokenRegistryPath)
		if err != nil {
			slog.Error("failed to load token registry", "path", cfg.TokenRegistryPath, "error", err)
			os.Exit(1)
		}
		slog.Info("token registry loaded", "path", cfg.TokenRegistryPath)
	}

	// ── World (always regenerated — deterministic from seed) ──────────
	genCfg := world.DefaultGenConfig()
	genCfg.Seed = cfg.Seed
	genCfg.Districts = cfg.Districts
	atlas := world.NewAtlas(world.Generate(genCfg))
	slog.Info("districts generated", "count", atlas.Len(), "seed", cfg.Seed)

	roster := faction.NewRoster(faction.SeedFactions())
	roster.SetRelation("crown", "ashen", -65)
	roster.SetRelation("crown", "brotherhood", -20)
	roster.SetRelation("crown", "compact", 40)
	roster.SetRelation("compact", "brotherhood", 10)
	roster.SetRelation("compact", "ashen", -30)
	roster.SetRelation("brotherhood", "ashen", 15)

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.NewSimulation(atlas, roster, registry, territory.DefaultParams())
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	sim.TurnsPerDay = cfg.TurnsPerDay
	seedMerchants(sim)

	if db.HasWorldState() {
		slog.Info("found saved world state, loading...")
		if err := db.LoadWorldState(sim); err != nil {
			slog.Error("failed to load world state", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("no saved state found, starting fresh")
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	loop := engine.NewLoop(sim)
	loop.Speed = cfg.Speed
	loop.OnDay = func(day uint64) {
		sim.Lock()
		err := db.SaveWorldState(sim)
		sim.Unlock()
		if err != nil {
			slog.Error("daily save failed", "error", err, "day", day)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("WARDSIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}
	server := &api.Server{
		Sim:      sim,
		Loop:     loop,
		DB:       db,
		Addr:     cfg.ListenAddr,
		AdminKey: cfg.AdminKey,
	}
	server.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		loop.Stop()
	}()

	fmt.Printf("\n%d wards under %d factions. API: http://localhost%s/api/v1/status\n",
		atlas.Len(), len(roster.IDs()), cfg.ListenAddr)
	if sim.Turn > 0 {
		fmt.Printf("Resuming from turn %d (day %d)\n", sim.Turn, sim.Day)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	loop.Run()

	slog.Info("final save...")
	sim.Lock()
	err = db.SaveWorldState(sim)
	sim.Unlock()
	if err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. World state saved.")
}

// seedMerchants installs a small default merchant roster so price
// queries work out of the box.
func seedMerchants(sim *engine.Simulation) {
	for _, m := range []*economy.MerchantProfile{
		{ID: "m-provisioner", Name: "Ward Provisioner", Faction: "crown", BuyMultiplier: 1.0, SellMultiplier: 0.5, Reputation: 10},
		{ID: "m-fence", Name: "Back-Alley Fence", Faction: "ashen", BuyMultiplier: 1.4, SellMultiplier: 0.7, Reputation: -40},
		{ID: "m-guildhall", Name: "Compact Guildhall", Faction: "compact", BuyMultiplier: 0.9, SellMultiplier: 0.45, Reputation: 35},
	} {
		sim.Merchants[m.ID] = m
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
