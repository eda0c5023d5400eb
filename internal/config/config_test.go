package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 800.0, cfg.World.Width)
	assert.Equal(t, uint64(8760), cfg.Run.Horizon)
	assert.Equal(t, 12, cfg.Biting.SampleSize)
	assert.Equal(t, time.Duration(0), cfg.Run.Interval)
	require.NoError(t, cfg.Validate())
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "malaria.json")
	body := `{
		"world": { "width": 600, "height": 1100 },
		"run": { "seed": 7, "interval": "250ms" },
		"disease": { "betaVector": 0.73, "immunityHours": 240 },
		"biting": { "start": 18, "duration": 16 }
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 600.0, cfg.World.Width)
	assert.Equal(t, 1100.0, cfg.World.Height)
	assert.Equal(t, int64(7), cfg.Run.Seed)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.Interval)
	assert.Equal(t, 0.73, cfg.Disease.BetaVector)
	assert.Equal(t, 240, cfg.Disease.ImmunityHours)
	assert.Equal(t, 16, cfg.Biting.Duration)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.25, cfg.Disease.BetaHost)
	assert.Equal(t, 200, cfg.Humans.Count)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/malaria.json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MALARIA_HUMANS_COUNT", "1000")
	t.Setenv("MALARIA_HABITATS_SITING", "moisture")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Humans.Count)
	assert.Equal(t, "moisture", cfg.Habitats.Siting)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "malaria.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run": {"seed": 7, "horizon": 100}}`), 0644))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--seed", "99", "--csv", "out.csv"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Run.Seed)
	assert.Equal(t, uint64(100), cfg.Run.Horizon, "unset flag does not mask the file")
	assert.Equal(t, "out.csv", cfg.Output.CSVPath)
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.Humans.Count = -1
	cfg.Habitats.Capacity = -5
	cfg.Habitats.InitialMin = 50
	cfg.Habitats.InitialMax = 10
	cfg.Disease.BetaHost = 1.5
	cfg.Biting.Start = 24
	cfg.Biting.SampleSize = -1
	cfg.Run.StartDate = "yesterday"
	cfg.Habitats.Siting = "swamp"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"humans.count",
		"habitats.capacity",
		"initial range",
		"disease.betaHost",
		"biting.start",
		"biting.sampleSize",
		"run.startDate",
		"habitat siting",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_JitterBeyondFlightRadius(t *testing.T) {
	cfg := Default()
	cfg.Mosquitoes.SpawnJitter = cfg.FlightRadius()
	require.NoError(t, cfg.Validate())

	cfg.Mosquitoes.SpawnJitter = 200
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mosquitoes.spawnJitter")
}

func TestValidate_DegenerateButValid(t *testing.T) {
	cfg := Default()
	cfg.Humans.Count = 0
	cfg.Habitats.Count = 0
	cfg.Biting.SampleSize = 0
	cfg.Disease.ContagionRadius = 0
	require.NoError(t, cfg.Validate())
}

func TestDerivedValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 72.0, cfg.FlightRadius())
	assert.Equal(t, 2000, cfg.GlobalCap())

	cfg.Habitats.GlobalCap = 800
	assert.Equal(t, 800, cfg.GlobalCap())

	epoch, err := cfg.Epoch()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), epoch)
}
