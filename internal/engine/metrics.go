package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments are the OpenTelemetry counters fed by the tick phases. They
// are no-ops unless the process installs a global MeterProvider.
type instruments struct {
	births           metric.Int64Counter
	deaths           metric.Int64Counter
	contacts         metric.Int64Counter
	hostInfections   metric.Int64Counter
	vectorInfections metric.Int64Counter
	population       metric.Int64ObservableGauge
	registration     metric.Registration // Gauge callback; nil for no-op instruments
}

func newInstruments(s *Simulation, m metric.Meter) (*instruments, error) {
	in := &instruments{}

	var err error
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&in.births, "vector.births", "Mosquitoes born"},
		{&in.deaths, "vector.deaths", "Mosquitoes dead of age or starvation"},
		{&in.contacts, "vector.bites", "Bites that reached a human in range"},
		{&in.hostInfections, "host.infections", "Humans exposed through a bite"},
		{&in.vectorInfections, "vector.infections", "Mosquitoes infected through a bite"},
	}
	for _, c := range counters {
		*c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	in.population, err = m.Int64ObservableGauge(
		"compartment.size",
		metric.WithDescription("Current number of agents per compartment"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating compartment gauge: %w", err)
	}

	in.registration, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			c := s.Latest()
			for _, obs := range []struct {
				name string
				n    int
			}{
				{"h_s", c.HumanS}, {"h_e", c.HumanE}, {"h_i", c.HumanI}, {"h_r", c.HumanR},
				{"v_s", c.MosquitoS}, {"v_i", c.MosquitoI},
			} {
				o.ObserveInt64(in.population, int64(obs.n),
					metric.WithAttributes(attribute.String("compartment", obs.name)))
			}
			return nil
		},
		in.population,
	)
	if err != nil {
		return nil, fmt.Errorf("registering compartment callback: %w", err)
	}
	return in, nil
}

// unregister detaches the gauge callback so the meter no longer holds the
// simulation.
func (in *instruments) unregister() error {
	if in.registration == nil {
		return nil
	}
	err := in.registration.Unregister()
	in.registration = nil
	return err
}

// noopInstruments is the fallback when the meter refuses an instrument.
func noopInstruments() *instruments {
	m := noop.Meter{}
	in := &instruments{}
	in.births, _ = m.Int64Counter("")
	in.deaths, _ = m.Int64Counter("")
	in.contacts, _ = m.Int64Counter("")
	in.hostInfections, _ = m.Int64Counter("")
	in.vectorInfections, _ = m.Int64Counter("")
	in.population, _ = m.Int64ObservableGauge("")
	return in
}

func mustInstruments(s *Simulation) *instruments {
	in, err := newInstruments(s, meter())
	if err != nil {
		slog.Warn("metrics disabled", "error", err)
		return noopInstruments()
	}
	return in
}
