// Vector transmission: each mosquito samples humans and bites the first one in reach.
package engine

import (
	"context"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/agents"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// BitingWindow is the daily feeding period, which may wrap past midnight.
type BitingWindow struct {
	Start    int // Hour of day, [0, 24)
	Duration int // Hours, [0, 24]
}

// Active reports whether tick falls inside the window.
func (w BitingWindow) Active(tick uint64) bool {
	h := HourOfDay(tick)
	offset := ((h-w.Start)%24 + 24) % 24
	return offset < w.Duration
}

// processBiting gives every mosquito one feeding attempt this tick.
func (s *Simulation) processBiting() {
	n := len(s.Humans)
	if n == 0 {
		return
	}
	k := min(s.Params.SampleSize, n)
	r2 := s.Params.ContagionRadius * s.Params.ContagionRadius

	var contacts, hostInf, vectorInf int
	for _, hab := range s.Habitats {
		for _, m := range hab.Mosquitoes {
			h := s.findContact(m, k, r2)
			if h == nil {
				continue
			}
			contacts++

			switch {
			case m.Infectious() && h.State == agents.HumanSusceptible:
				if s.rng.Float64() < s.Params.BetaHost && h.Expose() {
					hostInf++
				}
			case !m.Infectious() && h.Infectious():
				if s.rng.Float64() < s.Params.BetaVector && m.Infect() {
					vectorInf++
				}
			}
			m.Feed()
		}
	}

	s.Stats.Contacts += contacts
	s.Stats.HostInfections += hostInf
	s.Stats.VectorInfections += vectorInf

	ctx := context.Background()
	s.metrics.contacts.Add(ctx, int64(contacts))
	s.metrics.hostInfections.Add(ctx, int64(hostInf))
	s.metrics.vectorInfections.Add(ctx, int64(vectorInf))
}

// findContact draws k distinct humans without replacement and returns the
// first within r2 of the mosquito, or nil.
func (s *Simulation) findContact(m *agents.Mosquito, k int, r2 float64) *agents.Human {
	idx := s.sample
	n := len(idx)
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		h := s.Humans[idx[i]]
		if world.DistanceSquared(m.Position, h.Position) <= r2 {
			return h
		}
	}
	return nil
}
