package engine

import (
	"fmt"
	"log/slog"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/agents"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/config"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// Bootstrap generates the initial world for cfg: habitat sites, their
// mosquitoes, the human population and the seeded infections. seed must
// already be resolved; every random stream of the run derives from it.
func Bootstrap(cfg config.Config, seed int64) (*Simulation, error) {
	siting, err := world.ParseSiting(cfg.Habitats.Siting)
	if err != nil {
		return nil, err
	}

	geo := cfg.Geometry()
	params := ParamsFromConfig(cfg)

	// Habitats are kept a flight radius apart where the siting strategy can.
	sites := world.PlaceHabitats(geo, cfg.Habitats.Count, cfg.Habitats.Margin, siting, params.Flight.Radius, seed)
	if len(sites) != cfg.Habitats.Count {
		return nil, fmt.Errorf("placed %d of %d habitats", len(sites), cfg.Habitats.Count)
	}

	spawner := agents.NewSpawner(seed, geo)
	habitats := spawner.SpawnHabitats(sites, agents.HabitatConfig{
		InitialMin: cfg.Habitats.InitialMin,
		InitialMax: cfg.Habitats.InitialMax,
		Capacity:   cfg.Habitats.Capacity,
		Jitter:     cfg.Mosquitoes.SpawnJitter,
		Radius:     params.Flight.Radius,
	})
	humans := spawner.SpawnHumans(agents.HumanConfig{
		Count:           cfg.Humans.Count,
		ClusterFraction: cfg.Humans.ClusterFraction,
		ClusterSpread:   cfg.Humans.ClusterSpread,
	}, habitats)
	spawner.SeedInfections(agents.SeedConfig{
		InfectedHumans:    cfg.Humans.SeedInfected,
		ExposedHumans:     cfg.Humans.SeedExposed,
		RecoveredHumans:   cfg.Humans.SeedRecovered,
		InfectedMosquitos: cfg.Mosquitoes.SeedInfected,
	}, humans, habitats)

	sim := NewSimulation(geo, params, humans, habitats, seed)
	initial := sim.Latest()
	slog.Info("world generated",
		"world", geo.String(),
		"siting", string(siting),
		"habitats", len(habitats),
		"flight_radius", params.Flight.Radius,
		"humans", initial.Humans(),
		"mosquitoes", initial.Mosquitoes(),
		"infected_humans", initial.HumanI,
		"infected_mosquitoes", initial.MosquitoI,
	)
	return sim, nil
}
