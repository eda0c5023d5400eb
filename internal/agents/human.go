package agents

import (
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// Move displaces the human by a uniform whole-unit offset in [-step, step]
// on each axis, then clamps it to the world.
func (h *Human) Move(rng *rand.Rand, step int, g world.Geometry) {
	span := 2*step + 1
	dx := rng.Intn(span) - step
	dy := rng.Intn(span) - step
	h.Position = g.Clamp(orb.Point{h.Position[0] + float64(dx), h.Position[1] + float64(dy)})
}

// Advance runs one hour of the host state machine. Susceptible humans only
// leave their compartment through Expose.
func (h *Human) Advance(p DiseaseParams) {
	switch h.State {
	case HumanExposed:
		h.ExposedHours++
		if h.ExposedHours >= p.LatencyHours {
			h.State = HumanInfectious
			h.InfectiousHours = 0
		}
	case HumanInfectious:
		h.InfectiousHours++
		if h.InfectiousHours >= p.InfectiousHours {
			h.State = HumanRecovered
			h.RecoveredHours = 0
		}
	case HumanRecovered:
		if p.ImmunityHours <= 0 {
			return
		}
		h.RecoveredHours++
		if h.RecoveredHours >= p.ImmunityHours {
			h.State = HumanSusceptible
			h.RecoveredHours = 0
		}
	}
}

// Expose moves a susceptible human to Exposed. Returns false for any other state.
func (h *Human) Expose() bool {
	if h.State != HumanSusceptible {
		return false
	}
	h.State = HumanExposed
	h.ExposedHours = 0
	return true
}

// Infectious reports whether the human can infect a biting mosquito.
func (h *Human) Infectious() bool {
	return h.State == HumanInfectious
}
