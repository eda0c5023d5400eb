package main

import (
	"log/slog"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/export"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/influx"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/persistence"
)

// outputs fans each series entry out to the configured sinks. Database rows
// are buffered and written once per sim-day.
type outputs struct {
	runID   string
	db      *persistence.DB
	csv     *export.CSVWriter
	influx  *influx.Sink
	pending []engine.Counts
}

func (o *outputs) record(c engine.Counts) {
	if o.db != nil {
		o.pending = append(o.pending, c)
	}
	if o.csv != nil {
		if err := o.csv.Record(c); err != nil {
			slog.Error("csv write failed", "tick", c.Tick, "error", err)
		}
	}
	if o.influx != nil {
		if err := o.influx.Write(c); err != nil {
			slog.Error("influxdb write failed", "tick", c.Tick, "error", err)
		}
	}
}

func (o *outputs) flush() {
	if o.db != nil && len(o.pending) > 0 {
		if err := o.db.AppendSeries(o.runID, o.pending); err != nil {
			slog.Error("series flush failed", "error", err)
			return
		}
		o.pending = o.pending[:0]
	}
	if o.csv != nil {
		if err := o.csv.Flush(); err != nil {
			slog.Error("csv flush failed", "error", err)
		}
	}
}

func (o *outputs) close() {
	o.flush()
	if o.csv != nil {
		if err := o.csv.Close(); err != nil {
			slog.Error("csv close failed", "error", err)
		}
		slog.Info("csv written", "rows", o.csv.Rows())
	}
	if o.influx != nil {
		if err := o.influx.Close(); err != nil {
			slog.Error("influxdb close failed", "error", err)
		}
	}
}
