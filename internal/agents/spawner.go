// Agent spawning: creates the initial habitats, mosquitoes and humans, and
// seeds the first infections.
package agents

import (
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// HabitatConfig controls the initial mosquito population of each habitat.
type HabitatConfig struct {
	InitialMin int
	InitialMax int
	Capacity   int     // Initial populations are truncated to it
	Jitter     float64 // Initial mosquitoes start within ±Jitter of the habitat
	Radius     float64 // Flight radius; jittered positions never leave it
}

// jitterAttempts bounds the redraws of an initial position that falls
// outside the flight disk. The anchor itself is used after that.
const jitterAttempts = 16

// HumanConfig controls initial human placement.
type HumanConfig struct {
	Count           int
	ClusterFraction float64 // Share of humans placed near a random habitat
	ClusterSpread   float64 // Half-width of the square around that habitat
}

// SeedConfig controls initial compartment assignment.
type SeedConfig struct {
	InfectedHumans    int
	ExposedHumans     int
	RecoveredHumans   int
	InfectedMosquitos int
}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng *rand.Rand
	geo world.Geometry
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64, g world.Geometry) *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(seed + 300)),
		geo: g,
	}
}

// SpawnHabitats creates one habitat per site, each with a random number of
// susceptible mosquitoes drawn from [InitialMin, InitialMax].
func (s *Spawner) SpawnHabitats(sites []orb.Point, cfg HabitatConfig) []*Habitat {
	habitats := make([]*Habitat, 0, len(sites))
	for i, site := range sites {
		n := cfg.InitialMin
		if cfg.InitialMax > cfg.InitialMin {
			n += s.rng.Intn(cfg.InitialMax - cfg.InitialMin + 1)
		}
		if n > cfg.Capacity {
			n = cfg.Capacity
		}

		h := &Habitat{ID: i, Position: site, Mosquitoes: make([]*Mosquito, 0, n)}
		for k := 0; k < n; k++ {
			m := NewMosquito(site)
			m.Position = s.jitter(site, cfg.Jitter, cfg.Radius)
			h.Mosquitoes = append(h.Mosquitoes, m)
		}
		habitats = append(habitats, h)
	}
	return habitats
}

// jitter draws a point within ±spread of anchor on each axis, clamped to
// the world and inside the flight disk.
func (s *Spawner) jitter(anchor orb.Point, spread, radius float64) orb.Point {
	if spread <= 0 {
		return anchor
	}
	r2 := radius * radius
	for range jitterAttempts {
		p := s.geo.Clamp(orb.Point{
			anchor[0] + (s.rng.Float64()*2-1)*spread,
			anchor[1] + (s.rng.Float64()*2-1)*spread,
		})
		if world.DistanceSquared(p, anchor) <= r2 {
			return p
		}
	}
	return anchor
}

// SpawnHumans places the population. A ClusterFraction share lands within
// ClusterSpread of a random habitat; the rest are uniform over the world.
func (s *Spawner) SpawnHumans(cfg HumanConfig, habitats []*Habitat) []*Human {
	humans := make([]*Human, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		var p orb.Point
		if len(habitats) > 0 && s.rng.Float64() < cfg.ClusterFraction {
			h := habitats[s.rng.Intn(len(habitats))]
			p = s.geo.Clamp(orb.Point{
				h.Position[0] + (s.rng.Float64()*2-1)*cfg.ClusterSpread,
				h.Position[1] + (s.rng.Float64()*2-1)*cfg.ClusterSpread,
			})
		} else {
			p = orb.Point{s.rng.Float64() * s.geo.Width(), s.rng.Float64() * s.geo.Height()}
		}
		humans = append(humans, &Human{ID: HumanID(i), Position: p})
	}
	return humans
}

// SeedInfections assigns initial compartments. Humans are drawn without
// replacement so the infected, exposed and recovered groups never overlap;
// each group is truncated to what is left of the population.
func (s *Spawner) SeedInfections(cfg SeedConfig, humans []*Human, habitats []*Habitat) {
	order := s.rng.Perm(len(humans))
	next := 0
	take := func(n int) []int {
		if n > len(order)-next {
			n = len(order) - next
		}
		if n < 0 {
			n = 0
		}
		picked := order[next : next+n]
		next += n
		return picked
	}

	for _, idx := range take(cfg.InfectedHumans) {
		humans[idx].State = HumanInfectious
		humans[idx].InfectiousHours = 0
	}
	for _, idx := range take(cfg.ExposedHumans) {
		humans[idx].State = HumanExposed
		humans[idx].ExposedHours = 0
	}
	for _, idx := range take(cfg.RecoveredHumans) {
		humans[idx].State = HumanRecovered
		humans[idx].RecoveredHours = 0
	}

	var all []*Mosquito
	for _, h := range habitats {
		all = append(all, h.Mosquitoes...)
	}
	n := cfg.InfectedMosquitos
	if n > len(all) {
		n = len(all)
	}
	for _, idx := range s.rng.Perm(len(all))[:n] {
		all[idx].Infect()
	}
}
