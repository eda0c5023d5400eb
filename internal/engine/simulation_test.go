package engine

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/agents"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/config"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

func testParams() Params {
	return Params{
		HumanStep:       3,
		Disease:         agents.DiseaseParams{LatencyHours: 48, InfectiousHours: 120},
		Flight:          agents.FlightParams{Radius: 72, Step: 2.5},
		Life:            agents.LifeParams{Lifespan: 360, Starvation: 48},
		Capacity:        500,
		GlobalCap:       2000,
		BetaHost:        0.25,
		BetaVector:      0.2,
		ContagionRadius: 10,
		Window:          BitingWindow{Start: 18, Duration: 12},
		SampleSize:      12,
	}
}

// stillParams freezes movement so a mosquito and a human sharing a point
// stay in contact every tick.
func stillParams() Params {
	p := testParams()
	p.HumanStep = 0
	p.Flight.Step = 0
	p.BetaHost = 1
	p.BetaVector = 1
	p.Window = BitingWindow{Start: 0, Duration: 24}
	return p
}

func habitatAt(id int, pos orb.Point, mosquitoes ...*agents.Mosquito) *agents.Habitat {
	return &agents.Habitat{ID: id, Position: pos, Mosquitoes: mosquitoes}
}

func newTestSim(p Params, humans []*agents.Human, habitats []*agents.Habitat) *Simulation {
	return NewSimulation(world.NewGeometry(800, 600), p, humans, habitats, 1)
}

func bootstrap(t *testing.T, mutate func(*config.Config)) *Simulation {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())
	sim, err := Bootstrap(cfg, 42)
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })
	return sim
}

func TestBitingWindow_Active(t *testing.T) {
	night := BitingWindow{Start: 18, Duration: 12}
	for h := uint64(0); h < 24; h++ {
		want := h >= 18 || h < 6
		assert.Equal(t, want, night.Active(h), "hour %d", h)
		assert.Equal(t, want, night.Active(h+24*10), "hour %d on day 11", h)
	}

	for h := uint64(0); h < 24; h++ {
		assert.False(t, BitingWindow{Start: 5, Duration: 0}.Active(h))
		assert.True(t, BitingWindow{Start: 5, Duration: 24}.Active(h))
	}

	day := BitingWindow{Start: 6, Duration: 3}
	assert.False(t, day.Active(5))
	assert.True(t, day.Active(6))
	assert.True(t, day.Active(8))
	assert.False(t, day.Active(9))
}

func TestStep_ConservesHumansAndRecordsSeries(t *testing.T) {
	sim := bootstrap(t, nil)

	for tick := uint64(0); tick < 200; tick++ {
		c := sim.Step(tick)
		require.Equal(t, 200, c.Humans(), "tick %d", tick)
		require.Equal(t, tick, c.Tick)
	}

	series := sim.SeriesCopy(0, 1000)
	require.Len(t, series, 200)
	assert.Equal(t, uint64(0), series[0].Tick)
	assert.Equal(t, uint64(199), series[199].Tick)
	assert.Equal(t, series[199], sim.Latest())
	assert.Len(t, sim.SeriesCopy(24, 48), 24)
}

func TestStep_RecoveredNeverDecreasesWithoutWaning(t *testing.T) {
	sim := bootstrap(t, func(c *config.Config) {
		c.Humans.SeedInfected = 20
		c.Disease.InfectiousHours = 24
	})

	prev := sim.Latest().HumanR
	for tick := uint64(0); tick < 300; tick++ {
		c := sim.Step(tick)
		require.GreaterOrEqual(t, c.HumanR, prev, "tick %d", tick)
		prev = c.HumanR
	}
	assert.GreaterOrEqual(t, prev, 20, "every seeded case has recovered")
}

func TestStep_AgentsStayInBoundsAndTethered(t *testing.T) {
	sim := bootstrap(t, nil)
	r2 := sim.Params.Flight.Radius * sim.Params.Flight.Radius

	for tick := uint64(0); tick < 300; tick++ {
		sim.Step(tick)
		for _, h := range sim.Humans {
			require.True(t, sim.Geo.Contains(h.Position), "human %d at %v", h.ID, h.Position)
		}
		for _, hab := range sim.Habitats {
			for _, m := range hab.Mosquitoes {
				require.True(t, sim.Geo.Contains(m.Position))
				require.Equal(t, hab.Position, m.Anchor)
				require.LessOrEqual(t, world.DistanceSquared(m.Position, m.Anchor), r2)
			}
		}
	}
}

func TestBootstrap_WideJitterStartsTethered(t *testing.T) {
	cfg := config.Default()
	cfg.Mosquitoes.SpawnJitter = 200
	sim, err := Bootstrap(cfg, 42)
	require.NoError(t, err)

	r2 := sim.Params.Flight.Radius * sim.Params.Flight.Radius
	require.Positive(t, sim.MosquitoTotal())
	for _, hab := range sim.Habitats {
		for _, m := range hab.Mosquitoes {
			require.LessOrEqual(t, world.DistanceSquared(m.Position, m.Anchor), r2)
		}
	}
}

func TestStep_CapacityIsNeverExceeded(t *testing.T) {
	sim := bootstrap(t, func(c *config.Config) {
		c.Habitats.Capacity = 25
		c.Mosquitoes.Reproduction = 0.5
	})

	for tick := uint64(0); tick < 200; tick++ {
		sim.Step(tick)
		for _, hab := range sim.Habitats {
			require.LessOrEqual(t, hab.Count(), 25, "tick %d habitat %d", tick, hab.ID)
		}
	}
}

func TestDemography_FillsToCapacity(t *testing.T) {
	p := testParams()
	p.Reproduction = 1
	p.Capacity = 6

	anchor := orb.Point{100, 100}
	hab := habitatAt(0, anchor)
	for i := 0; i < 5; i++ {
		hab.Mosquitoes = append(hab.Mosquitoes, agents.NewMosquito(anchor))
	}
	sim := newTestSim(p, nil, []*agents.Habitat{hab})

	sim.Step(0)
	require.Equal(t, 6, hab.Count())
	assert.Equal(t, 1, sim.Stats.Births)
	// Newborns are appended after the survivors and do not move on their
	// birth tick.
	assert.Equal(t, anchor, hab.Mosquitoes[5].Position)
	assert.Zero(t, hab.Mosquitoes[5].Age)

	sim.Step(1)
	assert.Equal(t, 6, hab.Count())
	assert.Equal(t, 1, sim.Stats.Births)
}

func TestDemography_GlobalCap(t *testing.T) {
	p := testParams()
	p.Reproduction = 1
	p.Capacity = 10
	p.GlobalCap = 12

	var habitats []*agents.Habitat
	for i, pos := range []orb.Point{{100, 100}, {500, 400}} {
		hab := habitatAt(i, pos)
		for k := 0; k < 5; k++ {
			hab.Mosquitoes = append(hab.Mosquitoes, agents.NewMosquito(pos))
		}
		habitats = append(habitats, hab)
	}
	sim := newTestSim(p, nil, habitats)

	sim.Step(0)
	assert.Equal(t, 12, sim.MosquitoTotal())
	assert.Equal(t, 7, habitats[0].Count(), "earlier habitats claim the headroom first")
	assert.Equal(t, 5, habitats[1].Count())
}

// A mosquito is removed once age exceeds the lifespan, so one at
// lifespan-1 survives the next tick (age == lifespan) and dies on the one
// after. This is a tick later than a ">=" rule would remove it.
func TestDemography_Lifespan(t *testing.T) {
	p := testParams()
	anchor := orb.Point{200, 200}

	atMax := agents.NewMosquito(anchor)
	atMax.Age = p.Life.Lifespan
	oneBefore := agents.NewMosquito(anchor)
	oneBefore.Age = p.Life.Lifespan - 1
	starving := agents.NewMosquito(anchor)
	starving.Hunger = p.Life.Starvation

	hab := habitatAt(0, anchor, atMax, oneBefore, starving)
	sim := newTestSim(p, nil, []*agents.Habitat{hab})

	sim.Step(6)
	require.Equal(t, []*agents.Mosquito{oneBefore}, hab.Mosquitoes)
	assert.Equal(t, 2, sim.Stats.Deaths)

	sim.Step(7)
	assert.Empty(t, hab.Mosquitoes)
	assert.Equal(t, 3, sim.Stats.Deaths)
}

func TestBiting_GuaranteedContactExposesHuman(t *testing.T) {
	spot := orb.Point{50, 50}
	human := &agents.Human{ID: 1, Position: spot}
	m := agents.NewMosquito(spot)
	m.Infect()
	m.Hunger = 10

	sim := newTestSim(stillParams(), []*agents.Human{human}, []*agents.Habitat{habitatAt(0, spot, m)})

	c := sim.Step(0)
	assert.Equal(t, agents.HumanExposed, human.State)
	assert.Equal(t, 1, c.HumanE)
	assert.Zero(t, m.Hunger, "contact feeds the mosquito")
	assert.Equal(t, 1, sim.Stats.Contacts)
	assert.Equal(t, 1, sim.Stats.HostInfections)

	// Exposed humans are not re-exposed by later bites.
	sim.Step(1)
	assert.Equal(t, 1, sim.Stats.HostInfections)
	assert.Equal(t, 1, human.ExposedHours)
}

func TestBiting_InfectiousHumanInfectsMosquito(t *testing.T) {
	spot := orb.Point{300, 300}
	human := &agents.Human{ID: 1, Position: spot, State: agents.HumanInfectious}
	m := agents.NewMosquito(spot)

	sim := newTestSim(stillParams(), []*agents.Human{human}, []*agents.Habitat{habitatAt(0, spot, m)})

	c := sim.Step(0)
	assert.True(t, m.Infectious())
	assert.Equal(t, 1, c.MosquitoI)
	assert.Equal(t, 1, sim.Stats.VectorInfections)
}

func TestBiting_OneContactPerMosquito(t *testing.T) {
	spot := orb.Point{50, 50}
	humans := []*agents.Human{
		{ID: 0, Position: spot},
		{ID: 1, Position: spot},
	}
	m := agents.NewMosquito(spot)
	m.Infect()

	sim := newTestSim(stillParams(), humans, []*agents.Habitat{habitatAt(0, spot, m)})

	c := sim.Step(0)
	assert.Equal(t, 1, c.HumanE)
	assert.Equal(t, 1, c.HumanS)
	assert.Equal(t, 1, sim.Stats.Contacts)
}

func TestBiting_InertOutsideWindow(t *testing.T) {
	p := stillParams()
	p.Window = BitingWindow{Start: 18, Duration: 12}

	spot := orb.Point{50, 50}
	human := &agents.Human{ID: 1, Position: spot}
	m := agents.NewMosquito(spot)
	m.Infect()
	sim := newTestSim(p, []*agents.Human{human}, []*agents.Habitat{habitatAt(0, spot, m)})

	for tick := uint64(6); tick < 18; tick++ {
		sim.Step(tick)
	}
	assert.Equal(t, agents.HumanSusceptible, human.State)
	assert.Equal(t, 12, m.Hunger, "hunger accumulates while the window is closed")
	assert.Zero(t, sim.Stats.Contacts)

	sim.Step(18)
	assert.Equal(t, agents.HumanExposed, human.State)
	assert.Zero(t, m.Hunger)
}

func TestBiting_ZeroSampleSize(t *testing.T) {
	p := stillParams()
	p.SampleSize = 0

	spot := orb.Point{50, 50}
	human := &agents.Human{ID: 1, Position: spot}
	m := agents.NewMosquito(spot)
	m.Infect()
	sim := newTestSim(p, []*agents.Human{human}, []*agents.Habitat{habitatAt(0, spot, m)})

	sim.Step(0)
	assert.Equal(t, agents.HumanSusceptible, human.State)
	assert.Zero(t, sim.Stats.Contacts)
}

func TestStep_ZeroContagionRadius(t *testing.T) {
	sim := bootstrap(t, func(c *config.Config) {
		c.Disease.ContagionRadius = 0
		c.Disease.BetaHost = 1
		c.Disease.BetaVector = 1
	})
	initial := sim.Latest()

	for tick := uint64(0); tick < 96; tick++ {
		c := sim.Step(tick)
		require.Zero(t, c.HumanE)
		require.LessOrEqual(t, c.MosquitoI, initial.MosquitoI)
	}
	assert.Zero(t, sim.Stats.Contacts)
}

func TestStep_NoHabitats(t *testing.T) {
	sim := bootstrap(t, func(c *config.Config) { c.Habitats.Count = 0 })
	prevI := sim.Latest().HumanI

	for tick := uint64(0); tick < 200; tick++ {
		c := sim.Step(tick)
		require.Zero(t, c.Mosquitoes())
		require.Zero(t, c.HumanE)
		require.LessOrEqual(t, c.HumanI, prevI)
		prevI = c.HumanI
	}
}

func TestStep_NoHumans(t *testing.T) {
	sim := bootstrap(t, func(c *config.Config) { c.Humans.Count = 0 })
	for tick := uint64(0); tick < 48; tick++ {
		c := sim.Step(tick)
		require.Zero(t, c.Humans())
	}
	assert.Zero(t, sim.Stats.Contacts)
}

func TestStep_Deterministic(t *testing.T) {
	run := func() []Counts {
		sim := bootstrap(t, nil)
		for tick := uint64(0); tick < 150; tick++ {
			sim.Step(tick)
		}
		return sim.SeriesCopy(0, 150)
	}
	assert.Equal(t, run(), run())
}

func TestSnapshot(t *testing.T) {
	sim := bootstrap(t, nil)
	sim.Step(0)

	snap := sim.Snapshot(false)
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Len(t, snap.Humans, 200)
	assert.Len(t, snap.Habitats, 4)
	assert.Nil(t, snap.Mosquitoes)

	total := 0
	for _, h := range snap.Habitats {
		assert.Equal(t, h.Total, h.Susceptible+h.Infectious)
		total += h.Total
	}
	assert.Equal(t, snap.Counts.Mosquitoes(), total)

	full := sim.Snapshot(true)
	assert.Len(t, full.Mosquitoes, total)
}
