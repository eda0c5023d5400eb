package agents

import (
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// NewMosquito creates a susceptible newborn at its habitat.
func NewMosquito(anchor orb.Point) *Mosquito {
	return &Mosquito{
		Position: anchor,
		Anchor:   anchor,
		State:    MosquitoSusceptible,
	}
}

// Move proposes a continuous displacement in [-step, step] per axis. The
// proposal is rejected, leaving the mosquito in place, when it would leave
// the flight disk around the anchor.
func (m *Mosquito) Move(rng *rand.Rand, f FlightParams, g world.Geometry) {
	dx := (rng.Float64()*2 - 1) * f.Step
	dy := (rng.Float64()*2 - 1) * f.Step
	next := orb.Point{m.Position[0] + dx, m.Position[1] + dy}
	if world.DistanceSquared(next, m.Anchor) > f.Radius*f.Radius {
		return
	}
	// The anchor is inside the world, so clamping never moves a point
	// further from it.
	m.Position = g.Clamp(next)
}

// Grow advances age and hunger by one hour.
func (m *Mosquito) Grow() {
	m.Age++
	m.Hunger++
}

// Expired reports whether the mosquito has outlived its lifespan or starved.
func (m *Mosquito) Expired(l LifeParams) bool {
	return m.Age > l.Lifespan || m.Hunger > l.Starvation
}

// AttemptReproduce returns a newborn at the anchor with probability p.
func (m *Mosquito) AttemptReproduce(rng *rand.Rand, p float64) *Mosquito {
	if rng.Float64() < p {
		return NewMosquito(m.Anchor)
	}
	return nil
}

// Feed records a bite contact.
func (m *Mosquito) Feed() {
	m.Hunger = 0
}

// Infect moves a susceptible mosquito to Infectious. Returns false if it
// already was.
func (m *Mosquito) Infect() bool {
	if m.State == MosquitoInfectious {
		return false
	}
	m.State = MosquitoInfectious
	m.Hunger = 0
	return true
}

// Infectious reports whether the mosquito carries the parasite.
func (m *Mosquito) Infectious() bool {
	return m.State == MosquitoInfectious
}

// Count returns the number of mosquitoes in the habitat.
func (h *Habitat) Count() int {
	return len(h.Mosquitoes)
}
