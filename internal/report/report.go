// Package report resamples the hourly compartment series into daily and
// weekly views.
package report

import (
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
)

const (
	HoursPerDay  = engine.TicksPerSimDay
	HoursPerWeek = engine.TicksPerSimWeek
	WeeksPerYear = 52
)

// Day is the state at the end of one complete simulated day.
type Day struct {
	Day int `json:"day"` // 1-based
	engine.Counts
}

// Week holds the mean compartment sizes over one complete simulated week.
type Week struct {
	Week      int     `json:"week"` // 1-based
	HumanS    float64 `json:"h_s"`
	HumanE    float64 `json:"h_e"`
	HumanI    float64 `json:"h_i"`
	HumanR    float64 `json:"h_r"`
	MosquitoS float64 `json:"v_s"`
	MosquitoI float64 `json:"v_i"`
}

// Mosquitoes returns the mean total mosquito population of the week.
func (w Week) Mosquitoes() float64 { return w.MosquitoS + w.MosquitoI }

// Daily takes the last entry of every complete block of 24 entries. A
// trailing partial day is dropped. Days are numbered from the start of the
// run, so series should begin on a day boundary.
func Daily(series []engine.Counts) []Day {
	n := len(series) / HoursPerDay
	days := make([]Day, 0, n)
	for d := 0; d < n; d++ {
		c := series[(d+1)*HoursPerDay-1]
		days = append(days, Day{Day: int(c.Tick/HoursPerDay) + 1, Counts: c})
	}
	return days
}

// Weekly averages every complete block of 168 entries. Weeks are numbered
// from the start of the run and only the first 52 of the run are reported.
// A series shorter than one week yields nothing.
func Weekly(series []engine.Counts) []Week {
	n := len(series) / HoursPerWeek
	weeks := make([]Week, 0, min(n, WeeksPerYear))
	for w := 0; w < n; w++ {
		block := series[w*HoursPerWeek : (w+1)*HoursPerWeek]
		number := int(block[0].Tick/HoursPerWeek) + 1
		if number > WeeksPerYear {
			break
		}
		weeks = append(weeks, Average(number, block))
	}
	return weeks
}

// Average returns the mean compartment sizes of block as week number.
func Average(number int, block []engine.Counts) Week {
	return Week{
		Week:      number,
		HumanS:    mean(block, func(c engine.Counts) int { return c.HumanS }),
		HumanE:    mean(block, func(c engine.Counts) int { return c.HumanE }),
		HumanI:    mean(block, func(c engine.Counts) int { return c.HumanI }),
		HumanR:    mean(block, func(c engine.Counts) int { return c.HumanR }),
		MosquitoS: mean(block, func(c engine.Counts) int { return c.MosquitoS }),
		MosquitoI: mean(block, func(c engine.Counts) int { return c.MosquitoI }),
	}
}

// Peak returns the entry with the highest infectious human count, earliest
// first on ties. ok is false for an empty series.
func Peak(series []engine.Counts) (peak engine.Counts, ok bool) {
	for i, c := range series {
		if i == 0 || c.HumanI > peak.HumanI {
			peak = c
		}
	}
	return peak, len(series) > 0
}

func mean[T any](xs []T, field func(T) int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += field(x)
	}
	return float64(sum) / float64(len(xs))
}
