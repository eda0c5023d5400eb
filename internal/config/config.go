// Package config loads and validates the run configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/world"
)

// Config is the immutable parameter bundle of one run.
type Config struct {
	World      WorldConfig    `mapstructure:"world" json:"world"`
	Run        RunConfig      `mapstructure:"run" json:"run"`
	Humans     HumansConfig   `mapstructure:"humans" json:"humans"`
	Habitats   HabitatsConfig `mapstructure:"habitats" json:"habitats"`
	Mosquitoes MosquitoConfig `mapstructure:"mosquitoes" json:"mosquitoes"`
	Disease    DiseaseConfig  `mapstructure:"disease" json:"disease"`
	Biting     BitingConfig   `mapstructure:"biting" json:"biting"`
	Output     OutputConfig   `mapstructure:"output" json:"output"`
	Influx     InfluxConfig   `mapstructure:"influx" json:"influx"`
	API        APIConfig      `mapstructure:"api" json:"api"`
	Logging    LoggingConfig  `mapstructure:"logging" json:"logging"`
}

type WorldConfig struct {
	Width  float64 `mapstructure:"width" json:"width"`
	Height float64 `mapstructure:"height" json:"height"`
}

type RunConfig struct {
	Horizon      uint64        `mapstructure:"horizon" json:"horizon"` // Ticks (hours)
	Seed         int64         `mapstructure:"seed" json:"seed"`       // 0 draws a fresh seed
	RandomOrgKey string        `mapstructure:"randomOrgKey" json:"-"`  // Optional source for fresh seeds
	StartDate    string        `mapstructure:"startDate" json:"startDate"`
	Interval     time.Duration `mapstructure:"interval" json:"interval"` // Wall time per tick; 0 runs flat out
	Speed        float64       `mapstructure:"speed" json:"speed"`
}

type HumansConfig struct {
	Count           int     `mapstructure:"count" json:"count"`
	Step            int     `mapstructure:"step" json:"step"`
	ClusterFraction float64 `mapstructure:"clusterFraction" json:"clusterFraction"`
	ClusterSpread   float64 `mapstructure:"clusterSpread" json:"clusterSpread"`
	SeedInfected    int     `mapstructure:"seedInfected" json:"seedInfected"`
	SeedExposed     int     `mapstructure:"seedExposed" json:"seedExposed"`
	SeedRecovered   int     `mapstructure:"seedRecovered" json:"seedRecovered"`
}

type HabitatsConfig struct {
	Count      int     `mapstructure:"count" json:"count"`
	Margin     float64 `mapstructure:"margin" json:"margin"`
	InitialMin int     `mapstructure:"initialMin" json:"initialMin"`
	InitialMax int     `mapstructure:"initialMax" json:"initialMax"`
	Capacity   int     `mapstructure:"capacity" json:"capacity"`
	GlobalCap  int     `mapstructure:"globalCap" json:"globalCap"` // 0 means Count * Capacity
	Siting     string  `mapstructure:"siting" json:"siting"`
}

type MosquitoConfig struct {
	FlightRadiusFactor float64 `mapstructure:"flightRadiusFactor" json:"flightRadiusFactor"`
	MinFlightRadius    float64 `mapstructure:"minFlightRadius" json:"minFlightRadius"`
	Step               float64 `mapstructure:"step" json:"step"`
	SpawnJitter        float64 `mapstructure:"spawnJitter" json:"spawnJitter"`
	Lifespan           int     `mapstructure:"lifespan" json:"lifespan"`
	Starvation         int     `mapstructure:"starvation" json:"starvation"`
	Reproduction       float64 `mapstructure:"reproduction" json:"reproduction"`
	SeedInfected       int     `mapstructure:"seedInfected" json:"seedInfected"`
}

type DiseaseConfig struct {
	BetaHost        float64 `mapstructure:"betaHost" json:"betaHost"`
	BetaVector      float64 `mapstructure:"betaVector" json:"betaVector"`
	LatencyHours    int     `mapstructure:"latencyHours" json:"latencyHours"`
	InfectiousHours int     `mapstructure:"infectiousHours" json:"infectiousHours"`
	ImmunityHours   int     `mapstructure:"immunityHours" json:"immunityHours"`
	ContagionRadius float64 `mapstructure:"contagionRadius" json:"contagionRadius"`
}

type BitingConfig struct {
	Start      int `mapstructure:"start" json:"start"`
	Duration   int `mapstructure:"duration" json:"duration"`
	SampleSize int `mapstructure:"sampleSize" json:"sampleSize"`
}

type OutputConfig struct {
	CSVPath  string `mapstructure:"csvPath" json:"csvPath"`
	CSVEvery uint64 `mapstructure:"csvEvery" json:"csvEvery"`
	DBPath   string `mapstructure:"dbPath" json:"dbPath"`
}

type InfluxConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	URL        string `mapstructure:"url" json:"url"`
	Token      string `mapstructure:"token" json:"-"`
	Org        string `mapstructure:"org" json:"org"`
	Bucket     string `mapstructure:"bucket" json:"bucket"`
	BackupPath string `mapstructure:"backupPath" json:"backupPath"` // gzip line protocol when the server is unreachable
}

type APIConfig struct {
	Port     int    `mapstructure:"port" json:"port"` // 0 disables the HTTP API
	AdminKey string `mapstructure:"adminKey" json:"-"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" json:"level"`
	ProgressEvery uint64 `mapstructure:"progressEvery" json:"progressEvery"`
	File          string `mapstructure:"file" json:"file"` // Appended to in addition to stdout when set
}

// Default returns the reference parameterisation: an 800x600 world, 200
// humans and four habitats over one simulated year.
func Default() Config {
	return Config{
		World: WorldConfig{Width: 800, Height: 600},
		Run: RunConfig{
			Horizon:   8760,
			Seed:      42,
			StartDate: "2025-01-01",
			Speed:     1,
		},
		Humans: HumansConfig{
			Count:           200,
			Step:            3,
			ClusterFraction: 0.6,
			ClusterSpread:   40,
			SeedInfected:    3,
		},
		Habitats: HabitatsConfig{
			Count:      4,
			Margin:     30,
			InitialMin: 10,
			InitialMax: 40,
			Capacity:   500,
			Siting:     string(world.SitingUniform),
		},
		Mosquitoes: MosquitoConfig{
			FlightRadiusFactor: 0.12,
			MinFlightRadius:    5,
			Step:               2.5,
			SpawnJitter:        2,
			Lifespan:           15 * 24,
			Starvation:         48,
			Reproduction:       0.02,
			SeedInfected:       8,
		},
		Disease: DiseaseConfig{
			BetaHost:        0.25,
			BetaVector:      0.2,
			LatencyHours:    2 * 24,
			InfectiousHours: 5 * 24,
			ContagionRadius: 10,
		},
		Biting: BitingConfig{Start: 18, Duration: 12, SampleSize: 12},
		Output: OutputConfig{CSVEvery: 4, DBPath: "data/malaria.db"},
		Influx: InfluxConfig{
			URL:        "http://localhost:8086",
			Org:        "malaria",
			Bucket:     "compartments",
			BackupPath: "data/compartments.lp.gz",
		},
		Logging: LoggingConfig{Level: "info", ProgressEvery: 200},
	}
}

// setDefaults registers every key of Default with v so that files, env and
// flags only need to name what they override.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("world.width", d.World.Width)
	v.SetDefault("world.height", d.World.Height)

	v.SetDefault("run.horizon", d.Run.Horizon)
	v.SetDefault("run.seed", d.Run.Seed)
	v.SetDefault("run.randomOrgKey", d.Run.RandomOrgKey)
	v.SetDefault("run.startDate", d.Run.StartDate)
	v.SetDefault("run.interval", d.Run.Interval.String())
	v.SetDefault("run.speed", d.Run.Speed)

	v.SetDefault("humans.count", d.Humans.Count)
	v.SetDefault("humans.step", d.Humans.Step)
	v.SetDefault("humans.clusterFraction", d.Humans.ClusterFraction)
	v.SetDefault("humans.clusterSpread", d.Humans.ClusterSpread)
	v.SetDefault("humans.seedInfected", d.Humans.SeedInfected)
	v.SetDefault("humans.seedExposed", d.Humans.SeedExposed)
	v.SetDefault("humans.seedRecovered", d.Humans.SeedRecovered)

	v.SetDefault("habitats.count", d.Habitats.Count)
	v.SetDefault("habitats.margin", d.Habitats.Margin)
	v.SetDefault("habitats.initialMin", d.Habitats.InitialMin)
	v.SetDefault("habitats.initialMax", d.Habitats.InitialMax)
	v.SetDefault("habitats.capacity", d.Habitats.Capacity)
	v.SetDefault("habitats.globalCap", d.Habitats.GlobalCap)
	v.SetDefault("habitats.siting", d.Habitats.Siting)

	v.SetDefault("mosquitoes.flightRadiusFactor", d.Mosquitoes.FlightRadiusFactor)
	v.SetDefault("mosquitoes.minFlightRadius", d.Mosquitoes.MinFlightRadius)
	v.SetDefault("mosquitoes.step", d.Mosquitoes.Step)
	v.SetDefault("mosquitoes.spawnJitter", d.Mosquitoes.SpawnJitter)
	v.SetDefault("mosquitoes.lifespan", d.Mosquitoes.Lifespan)
	v.SetDefault("mosquitoes.starvation", d.Mosquitoes.Starvation)
	v.SetDefault("mosquitoes.reproduction", d.Mosquitoes.Reproduction)
	v.SetDefault("mosquitoes.seedInfected", d.Mosquitoes.SeedInfected)

	v.SetDefault("disease.betaHost", d.Disease.BetaHost)
	v.SetDefault("disease.betaVector", d.Disease.BetaVector)
	v.SetDefault("disease.latencyHours", d.Disease.LatencyHours)
	v.SetDefault("disease.infectiousHours", d.Disease.InfectiousHours)
	v.SetDefault("disease.immunityHours", d.Disease.ImmunityHours)
	v.SetDefault("disease.contagionRadius", d.Disease.ContagionRadius)

	v.SetDefault("biting.start", d.Biting.Start)
	v.SetDefault("biting.duration", d.Biting.Duration)
	v.SetDefault("biting.sampleSize", d.Biting.SampleSize)

	v.SetDefault("output.csvPath", d.Output.CSVPath)
	v.SetDefault("output.csvEvery", d.Output.CSVEvery)
	v.SetDefault("output.dbPath", d.Output.DBPath)

	v.SetDefault("influx.enabled", d.Influx.Enabled)
	v.SetDefault("influx.url", d.Influx.URL)
	v.SetDefault("influx.token", d.Influx.Token)
	v.SetDefault("influx.org", d.Influx.Org)
	v.SetDefault("influx.bucket", d.Influx.Bucket)
	v.SetDefault("influx.backupPath", d.Influx.BackupPath)

	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.adminKey", d.API.AdminKey)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.progressEvery", d.Logging.ProgressEvery)
	v.SetDefault("logging.file", d.Logging.File)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"seed":      "run.seed",
	"horizon":   "run.horizon",
	"csv":       "output.csvPath",
	"db":        "output.dbPath",
	"port":      "api.port",
	"log-level": "logging.level",
}

// RegisterFlags adds the overridable flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a JSON, YAML or TOML config file")
	fs.Int64("seed", d.Run.Seed, "random seed (0 draws one)")
	fs.Uint64("horizon", d.Run.Horizon, "ticks (hours) to simulate")
	fs.String("csv", d.Output.CSVPath, "CSV time-series output path")
	fs.String("db", d.Output.DBPath, "SQLite run store path (empty disables)")
	fs.Int("port", d.API.Port, "HTTP API port (0 disables)")
	fs.String("log-level", d.Logging.Level, "log level: debug, info, warn, error")
}

// Load builds a Config from defaults, an optional file at path, MALARIA_*
// environment variables and any flags set in fs, in increasing precedence.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MALARIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid parameter at once. A run must not start
// with a config that fails validation.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	prob := func(name string, p float64) {
		check(p >= 0 && p <= 1, "%s must be within [0, 1], got %g", name, p)
	}

	check(c.World.Width > 0 && c.World.Height > 0, "world size must be positive, got %gx%g", c.World.Width, c.World.Height)

	check(c.Humans.Count >= 0, "humans.count must be >= 0, got %d", c.Humans.Count)
	check(c.Humans.Step >= 0, "humans.step must be >= 0, got %d", c.Humans.Step)
	prob("humans.clusterFraction", c.Humans.ClusterFraction)
	check(c.Humans.ClusterSpread >= 0, "humans.clusterSpread must be >= 0")
	check(c.Humans.SeedInfected >= 0 && c.Humans.SeedExposed >= 0 && c.Humans.SeedRecovered >= 0,
		"human seed counts must be >= 0")

	check(c.Habitats.Count >= 0, "habitats.count must be >= 0, got %d", c.Habitats.Count)
	check(c.Habitats.Margin >= 0, "habitats.margin must be >= 0")
	check(c.Habitats.InitialMin >= 0 && c.Habitats.InitialMin <= c.Habitats.InitialMax,
		"habitats initial range [%d, %d] is invalid", c.Habitats.InitialMin, c.Habitats.InitialMax)
	check(c.Habitats.Capacity >= 0, "habitats.capacity must be >= 0, got %d", c.Habitats.Capacity)
	check(c.Habitats.GlobalCap >= 0, "habitats.globalCap must be >= 0, got %d", c.Habitats.GlobalCap)
	if _, err := world.ParseSiting(c.Habitats.Siting); err != nil {
		errs = append(errs, err)
	}

	check(c.Mosquitoes.FlightRadiusFactor > 0, "mosquitoes.flightRadiusFactor must be > 0")
	check(c.Mosquitoes.MinFlightRadius >= 0, "mosquitoes.minFlightRadius must be >= 0")
	check(c.Mosquitoes.Step >= 0, "mosquitoes.step must be >= 0")
	check(c.Mosquitoes.SpawnJitter >= 0, "mosquitoes.spawnJitter must be >= 0")
	if c.World.Width > 0 && c.World.Height > 0 && c.Mosquitoes.FlightRadiusFactor > 0 {
		check(c.Mosquitoes.SpawnJitter <= c.FlightRadius(),
			"mosquitoes.spawnJitter %g exceeds the flight radius %g", c.Mosquitoes.SpawnJitter, c.FlightRadius())
	}
	check(c.Mosquitoes.Lifespan >= 0 && c.Mosquitoes.Starvation >= 0, "mosquito lifespan and starvation must be >= 0")
	prob("mosquitoes.reproduction", c.Mosquitoes.Reproduction)
	check(c.Mosquitoes.SeedInfected >= 0, "mosquitoes.seedInfected must be >= 0")

	prob("disease.betaHost", c.Disease.BetaHost)
	prob("disease.betaVector", c.Disease.BetaVector)
	check(c.Disease.LatencyHours >= 0 && c.Disease.InfectiousHours >= 0 && c.Disease.ImmunityHours >= 0,
		"disease durations must be >= 0")
	check(c.Disease.ContagionRadius >= 0, "disease.contagionRadius must be >= 0")

	check(c.Biting.Start >= 0 && c.Biting.Start < 24, "biting.start must be within [0, 24), got %d", c.Biting.Start)
	check(c.Biting.Duration >= 0 && c.Biting.Duration <= 24, "biting.duration must be within [0, 24], got %d", c.Biting.Duration)
	check(c.Biting.SampleSize >= 0, "biting.sampleSize must be >= 0, got %d", c.Biting.SampleSize)

	check(c.Run.Speed >= 0, "run.speed must be >= 0")
	check(c.Run.Interval >= 0, "run.interval must be >= 0")
	if _, err := c.Epoch(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Geometry returns the world the run takes place in.
func (c Config) Geometry() world.Geometry {
	return world.NewGeometry(c.World.Width, c.World.Height)
}

// FlightRadius is the mosquito tether length for this world.
func (c Config) FlightRadius() float64 {
	return c.Geometry().FlightRadius(c.Mosquitoes.FlightRadiusFactor, c.Mosquitoes.MinFlightRadius)
}

// GlobalCap is the safety ceiling on the total mosquito population.
func (c Config) GlobalCap() int {
	if c.Habitats.GlobalCap > 0 {
		return c.Habitats.GlobalCap
	}
	return c.Habitats.Count * c.Habitats.Capacity
}

// Epoch is the calendar instant of tick 0.
func (c Config) Epoch() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, c.Run.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("run.startDate %q: %w", c.Run.StartDate, err)
	}
	return t, nil
}
