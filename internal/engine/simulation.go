// Simulation ties together the agent populations and runs one tick at a time.
package engine

import (
	"math/rand"
	"sync"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/agents"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/config"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// Counts is one entry of the output time series: compartment sizes at the
// end of a tick.
type Counts struct {
	Tick      uint64 `json:"tick" db:"tick"`
	HumanS    int    `json:"h_s" db:"h_s"`
	HumanE    int    `json:"h_e" db:"h_e"`
	HumanI    int    `json:"h_i" db:"h_i"`
	HumanR    int    `json:"h_r" db:"h_r"`
	MosquitoS int    `json:"v_s" db:"v_s"`
	MosquitoI int    `json:"v_i" db:"v_i"`
}

// Humans returns the total human population.
func (c Counts) Humans() int { return c.HumanS + c.HumanE + c.HumanI + c.HumanR }

// Mosquitoes returns the total mosquito population.
func (c Counts) Mosquitoes() int { return c.MosquitoS + c.MosquitoI }

// SimStats tracks cumulative event totals since tick 0.
type SimStats struct {
	Births           int `json:"births" db:"births"`
	Deaths           int `json:"deaths" db:"deaths"`
	Contacts         int `json:"contacts" db:"contacts"`                   // Bites that found a human in range
	HostInfections   int `json:"host_infections" db:"host_infections"`     // S -> E through a bite
	VectorInfections int `json:"vector_infections" db:"vector_infections"` // S -> I through a bite
}

// Params is the per-tick rule set derived from the configuration once.
type Params struct {
	HumanStep       int
	Disease         agents.DiseaseParams
	Flight          agents.FlightParams
	Life            agents.LifeParams
	Reproduction    float64
	Capacity        int
	GlobalCap       int
	BetaHost        float64
	BetaVector      float64
	ContagionRadius float64
	Window          BitingWindow
	SampleSize      int
}

// ParamsFromConfig derives the rule set from a validated config.
func ParamsFromConfig(cfg config.Config) Params {
	return Params{
		HumanStep: cfg.Humans.Step,
		Disease: agents.DiseaseParams{
			LatencyHours:    cfg.Disease.LatencyHours,
			InfectiousHours: cfg.Disease.InfectiousHours,
			ImmunityHours:   cfg.Disease.ImmunityHours,
		},
		Flight: agents.FlightParams{
			Radius: cfg.FlightRadius(),
			Step:   cfg.Mosquitoes.Step,
		},
		Life: agents.LifeParams{
			Lifespan:   cfg.Mosquitoes.Lifespan,
			Starvation: cfg.Mosquitoes.Starvation,
		},
		Reproduction:    cfg.Mosquitoes.Reproduction,
		Capacity:        cfg.Habitats.Capacity,
		GlobalCap:       cfg.GlobalCap(),
		BetaHost:        cfg.Disease.BetaHost,
		BetaVector:      cfg.Disease.BetaVector,
		ContagionRadius: cfg.Disease.ContagionRadius,
		Window:          BitingWindow{Start: cfg.Biting.Start, Duration: cfg.Biting.Duration},
		SampleSize:      cfg.Biting.SampleSize,
	}
}

// Simulation holds the complete world state. Step is the only mutator; the
// mutex lets observers read consistent copies from other goroutines.
type Simulation struct {
	mu sync.RWMutex

	Geo      world.Geometry
	Params   Params
	Humans   []*agents.Human
	Habitats []*agents.Habitat
	Series   []Counts
	Stats    SimStats
	LastTick uint64

	rng     *rand.Rand
	sample  []int // Index permutation reused by the biting sampler
	metrics *instruments
}

// NewSimulation creates a Simulation from generated components.
func NewSimulation(g world.Geometry, p Params, humans []*agents.Human, habitats []*agents.Habitat, seed int64) *Simulation {
	sample := make([]int, len(humans))
	for i := range sample {
		sample[i] = i
	}
	s := &Simulation{
		Geo:      g,
		Params:   p,
		Humans:   humans,
		Habitats: habitats,
		rng:      rand.New(rand.NewSource(seed + 400)),
		sample:   sample,
	}
	s.metrics = mustInstruments(s)
	return s
}

// Step executes tick: humans move and progress, habitats run demography,
// mosquitoes bite inside the active window, then counts are recorded.
func (s *Simulation) Step(tick uint64) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	s.advanceHumans()
	s.processDemography()
	if s.Params.Window.Active(tick) {
		s.processBiting()
	}

	c := s.count(tick)
	s.Series = append(s.Series, c)
	return c
}

// advanceHumans moves every human and runs its disease state machine.
func (s *Simulation) advanceHumans() {
	for _, h := range s.Humans {
		h.Move(s.rng, s.Params.HumanStep, s.Geo)
		h.Advance(s.Params.Disease)
	}
}

func (s *Simulation) count(tick uint64) Counts {
	c := Counts{Tick: tick}
	for _, h := range s.Humans {
		switch h.State {
		case agents.HumanSusceptible:
			c.HumanS++
		case agents.HumanExposed:
			c.HumanE++
		case agents.HumanInfectious:
			c.HumanI++
		case agents.HumanRecovered:
			c.HumanR++
		}
	}
	for _, hab := range s.Habitats {
		for _, m := range hab.Mosquitoes {
			if m.Infectious() {
				c.MosquitoI++
			} else {
				c.MosquitoS++
			}
		}
	}
	return c
}

// Latest returns the most recent series entry, or the initial counts if no
// tick has run yet.
func (s *Simulation) Latest() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := len(s.Series); n > 0 {
		return s.Series[n-1]
	}
	return s.count(0)
}

// SeriesCopy returns entries with from <= tick < to.
func (s *Simulation) SeriesCopy(from, to uint64) []Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Counts, 0)
	for _, c := range s.Series {
		if c.Tick >= from && c.Tick < to {
			out = append(out, c)
		}
	}
	return out
}

// CurrentStats returns the cumulative event totals.
func (s *Simulation) CurrentStats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// MosquitoTotal returns the live mosquito count across habitats. Callers
// must not race with Step.
func (s *Simulation) MosquitoTotal() int {
	total := 0
	for _, h := range s.Habitats {
		total += len(h.Mosquitoes)
	}
	return total
}

// Close releases the metric callbacks registered for the simulation. The
// state stays readable. The lock is not taken since a collection in flight
// may be reading through Latest.
func (s *Simulation) Close() error {
	return s.metrics.unregister()
}

// Completed returns the number of ticks executed so far.
func (s *Simulation) Completed() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.Series))
}
