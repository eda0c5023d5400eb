package engine

// HumanView is the read-only projection of a human served to observers.
type HumanView struct {
	ID    uint32  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	State string  `json:"state"`
}

// HabitatView summarises one breeding site.
type HabitatView struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Susceptible int     `json:"susceptible"`
	Infectious  int     `json:"infectious"`
	Total       int     `json:"total"`
}

// MosquitoView is the position and state of a single mosquito.
type MosquitoView struct {
	Habitat int     `json:"habitat"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	State   string  `json:"state"`
	Age     int     `json:"age"`
	Hunger  int     `json:"hunger"`
}

// Snapshot is a consistent copy of the world taken between ticks.
type Snapshot struct {
	Tick       uint64         `json:"tick"`
	Counts     Counts         `json:"counts"`
	Stats      SimStats       `json:"stats"`
	Humans     []HumanView    `json:"humans"`
	Habitats   []HabitatView  `json:"habitats"`
	Mosquitoes []MosquitoView `json:"mosquitoes,omitempty"`
}

// Snapshot copies the current state. Mosquito positions are included only
// when withMosquitoes is set, since the population can reach thousands.
func (s *Simulation) Snapshot(withMosquitoes bool) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tick:     s.LastTick,
		Stats:    s.Stats,
		Humans:   make([]HumanView, 0, len(s.Humans)),
		Habitats: s.habitatViews(),
	}
	if n := len(s.Series); n > 0 {
		snap.Counts = s.Series[n-1]
	} else {
		snap.Counts = s.count(0)
	}

	for _, h := range s.Humans {
		snap.Humans = append(snap.Humans, HumanView{
			ID:    uint32(h.ID),
			X:     h.Position[0],
			Y:     h.Position[1],
			State: h.State.String(),
		})
	}
	if withMosquitoes {
		for _, hab := range s.Habitats {
			for _, m := range hab.Mosquitoes {
				snap.Mosquitoes = append(snap.Mosquitoes, MosquitoView{
					Habitat: hab.ID,
					X:       m.Position[0],
					Y:       m.Position[1],
					State:   m.State.String(),
					Age:     m.Age,
					Hunger:  m.Hunger,
				})
			}
		}
	}
	return snap
}

// HabitatViews returns per-habitat population summaries.
func (s *Simulation) HabitatViews() []HabitatView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.habitatViews()
}

func (s *Simulation) habitatViews() []HabitatView {
	views := make([]HabitatView, 0, len(s.Habitats))
	for _, hab := range s.Habitats {
		v := HabitatView{ID: hab.ID, X: hab.Position[0], Y: hab.Position[1], Total: len(hab.Mosquitoes)}
		for _, m := range hab.Mosquitoes {
			if m.Infectious() {
				v.Infectious++
			}
		}
		v.Susceptible = v.Total - v.Infectious
		views = append(views, v)
	}
	return views
}
