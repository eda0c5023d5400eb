// Package agents provides the human and mosquito data model, their movement
// rules and disease state machines, and the habitats mosquitoes breed in.
package agents

import (
	"github.com/paulmach/orb"
)

// HumanState is a host compartment in the SEIR model.
type HumanState uint8

const (
	HumanSusceptible HumanState = iota
	HumanExposed
	HumanInfectious
	HumanRecovered
)

var humanStateNames = [...]string{"S", "E", "I", "R"}

func (s HumanState) String() string {
	if int(s) < len(humanStateNames) {
		return humanStateNames[s]
	}
	return "?"
}

// MosquitoState is a vector compartment in the SI model.
type MosquitoState uint8

const (
	MosquitoSusceptible MosquitoState = iota
	MosquitoInfectious
)

func (s MosquitoState) String() string {
	switch s {
	case MosquitoSusceptible:
		return "S"
	case MosquitoInfectious:
		return "I"
	default:
		return "?"
	}
}

// HumanID identifies a human within a run.
type HumanID uint32

// Human is a mobile host. Humans never die or leave during a run.
type Human struct {
	ID       HumanID    `json:"id"`
	Position orb.Point  `json:"position"`
	State    HumanState `json:"state"`

	// Hours spent in the current compartment.
	ExposedHours    int `json:"exposed_hours"`
	InfectiousHours int `json:"infectious_hours"`
	RecoveredHours  int `json:"recovered_hours"` // Only advanced when immunity wanes
}

// Mosquito is a vector tethered to the habitat it was born at.
type Mosquito struct {
	Position orb.Point     `json:"position"`
	Anchor   orb.Point     `json:"anchor"` // Habitat location, never changes
	State    MosquitoState `json:"state"`
	Hunger   int           `json:"hunger"` // Hours since the last bite contact
	Age      int           `json:"age"`    // Hours since birth
}

// Habitat is a fixed breeding site owning the mosquitoes bound to it.
type Habitat struct {
	ID         int         `json:"id"`
	Position   orb.Point   `json:"position"`
	Mosquitoes []*Mosquito `json:"-"`
}

// DiseaseParams holds the host progression durations, in hours.
type DiseaseParams struct {
	LatencyHours    int // E -> I
	InfectiousHours int // I -> R
	ImmunityHours   int // R -> S; 0 keeps Recovered terminal
}

// FlightParams holds the vector movement rule.
type FlightParams struct {
	Radius float64 // Maximum distance from the anchor
	Step   float64 // Half-width of the per-axis displacement
}

// LifeParams holds the vector death thresholds, in hours.
type LifeParams struct {
	Lifespan   int
	Starvation int
}
