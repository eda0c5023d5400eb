// Mosquito demography: movement, aging, starvation and capacity-limited births.
package engine

import (
	"context"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/agents"
)

// processDemography rebuilds every habitat's collection for the next tick.
func (s *Simulation) processDemography() {
	total := s.MosquitoTotal()
	births, deaths := 0, 0

	for _, hab := range s.Habitats {
		// projected is what the collection would hold if every not yet
		// processed mosquito survives, so births never push it past the cap.
		projected := len(hab.Mosquitoes)
		next := make([]*agents.Mosquito, 0, len(hab.Mosquitoes))
		var born []*agents.Mosquito

		for _, m := range hab.Mosquitoes {
			m.Move(s.rng, s.Params.Flight, s.Geo)
			m.Grow()

			if m.Expired(s.Params.Life) {
				projected--
				total--
				deaths++
				continue
			}

			if projected < s.Params.Capacity && total < s.Params.GlobalCap {
				if child := m.AttemptReproduce(s.rng, s.Params.Reproduction); child != nil {
					born = append(born, child)
					projected++
					total++
					births++
				}
			}
			next = append(next, m)
		}

		hab.Mosquitoes = append(next, born...)
	}

	s.Stats.Births += births
	s.Stats.Deaths += deaths
	ctx := context.Background()
	s.metrics.births.Add(ctx, int64(births))
	s.metrics.deaths.Add(ctx, int64(deaths))
}
