// Package influx streams the compartment series to InfluxDB v2, falling
// back to a gzip line-protocol file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/config"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
)

// Measurement is the name every point is written under.
const Measurement = "compartments"

// Sink writes one point per tick for a single run.
type Sink struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	backupFile *os.File
	backup     *gzip.Writer

	runID string
	epoch time.Time
}

// Connect creates a sink for runID. Tick t is stamped epoch + t hours.
func Connect(ctx context.Context, cfg config.InfluxConfig, runID string, epoch time.Time) (*Sink, error) {
	s := &Sink{runID: runID, epoch: epoch}

	s.client = influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := s.client.Ping(ctx)
	if err != nil || !running {
		s.client.Close()
		s.client = nil
		slog.Warn("influxdb unreachable, writing to backup file", "url", cfg.URL, "backup", cfg.BackupPath, "error", err)
		if err := s.openBackup(cfg.BackupPath); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.ensureBucket(ctx, cfg.Org, cfg.Bucket); err != nil {
		s.client.Close()
		return nil, err
	}

	s.writer = s.client.WriteAPI(cfg.Org, cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			slog.Error("error sending data to influxdb", "bucket", cfg.Bucket, "error", writeErr)
		}
	}(s.writer.Errors())

	slog.Info("influxdb sink connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return s, nil
}

func (s *Sink) openBackup(path string) error {
	if path == "" {
		return fmt.Errorf("influxdb unreachable and no backup path configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	s.backupFile = f
	s.backup = gzip.NewWriter(f)
	return nil
}

// ensureBucket creates the organization and bucket when missing.
func (s *Sink) ensureBucket(ctx context.Context, orgName, bucket string) error {
	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		slog.Info("organization not found, creating", "org", orgName)
		org, err = s.client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", orgName, err)
		}
	}

	if _, err := s.client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
		return nil
	}
	slog.Info("bucket not found, creating", "bucket", bucket)
	rule := domain.RetentionRuleTypeExpire
	_, err = s.client.BucketsAPI().CreateBucketWithName(ctx, org, bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 90, // 90 days
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Online reports whether points go to the server rather than the backup.
func (s *Sink) Online() bool { return s.writer != nil }

// Point builds the line for one series entry.
func Point(runID string, epoch time.Time, c engine.Counts) *influxdb2_write.Point {
	return influxdb2.NewPoint(Measurement,
		map[string]string{"run_id": runID},
		map[string]any{
			"hS":         c.HumanS,
			"hE":         c.HumanE,
			"hI":         c.HumanI,
			"hR":         c.HumanR,
			"vS":         c.MosquitoS,
			"vI":         c.MosquitoI,
			"mosq_total": c.Mosquitoes(),
		},
		epoch.Add(time.Duration(c.Tick)*time.Hour),
	)
}

// Write queues c. Writes to the server are batched and asynchronous;
// failures are logged by the error drain.
func (s *Sink) Write(c engine.Counts) error {
	p := Point(s.runID, s.epoch, c)
	if s.writer != nil {
		s.writer.WritePoint(p)
		return nil
	}
	if s.backup == nil {
		return fmt.Errorf("influxdb sink is closed")
	}
	line := influxdb2_write.PointToLineProtocol(p, time.Second)
	if _, err := s.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to influxdb backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the connection or backup file.
func (s *Sink) Close() error {
	if s.writer != nil {
		s.writer.Flush()
		s.client.Close()
		s.writer = nil
		return nil
	}
	if s.backup == nil {
		return nil
	}
	err := s.backup.Close()
	if cerr := s.backupFile.Close(); err == nil {
		err = cerr
	}
	s.backup = nil
	return err
}
