package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/detections"
	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/history"
	"codeberg.org/mutker/dronedash/internal/logger"
	"codeberg.org/mutker/dronedash/internal/mission"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = string(LogLevelInfo)
	DefaultListen   = ":8080"

	defaultEnvPrefix  = "DRONEDASH"
	defaultEnvFile    = ".env"
	defaultConfigName = "dronedash"
	defaultConfigType = "toml"
	defaultConfigDir  = "/etc"
	pidFileName       = "dronedash.pid"
)

type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	Listen     string           `mapstructure:"listen"`
	PIDFile    string           `mapstructure:"pid_file"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	History    HistoryConfig    `mapstructure:"history"`
	Arena      ArenaConfig      `mapstructure:"arena"`
	Geofence   GeofenceConfig   `mapstructure:"geofence"`
	Detections DetectionsConfig `mapstructure:"detections"`

	// ConfigFile is the file the values were read from, empty for none
	ConfigFile string `mapstructure:"-"`
}

type TelemetryConfig struct {
	ParamsDir        string        `mapstructure:"params_dir"`
	CollectInterval  time.Duration `mapstructure:"collect_interval"`
	PositionInterval time.Duration `mapstructure:"position_interval"`
}

type HistoryConfig struct {
	Dir              string `mapstructure:"dir"`
	MaxPartitionSize int    `mapstructure:"max_partition_size"`
	Timezone         string `mapstructure:"timezone"`
}

type ArenaConfig struct {
	Source    string        `mapstructure:"source"`
	Path      string        `mapstructure:"path"`
	Interval  time.Duration `mapstructure:"interval"`
	MockFirst bool          `mapstructure:"mock_first"`
}

type GeofenceConfig struct {
	Width             float64 `mapstructure:"width"`
	Height            float64 `mapstructure:"height"`
	Threshold         float64 `mapstructure:"threshold"`
	ExpectedTargets   int     `mapstructure:"expected_targets"`
	NEDScale          float64 `mapstructure:"ned_scale"`
	FallbackOriginLat float64 `mapstructure:"fallback_origin_lat"`
	FallbackOriginLng float64 `mapstructure:"fallback_origin_lng"`
	FallbackScale     float64 `mapstructure:"fallback_scale"`
}

type DetectionsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
	Restore bool   `mapstructure:"restore"`
}

func setDefaults(v *viper.Viper) {
	tel := telemetry.DefaultConfig()
	hist := history.DefaultConfig()
	ar := arena.DefaultConfig()
	geo := geofence.DefaultConfig()
	det := detections.DefaultConfig()

	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("pid_file", filepath.Join(os.TempDir(), pidFileName))

	v.SetDefault("telemetry.params_dir", tel.ParamsDir)
	v.SetDefault("telemetry.collect_interval", 5*time.Second)
	v.SetDefault("telemetry.position_interval", mission.DefaultPositionInterval)

	v.SetDefault("history.dir", hist.Dir)
	v.SetDefault("history.max_partition_size", hist.MaxPartitionSize)
	v.SetDefault("history.timezone", "Local")

	v.SetDefault("arena.source", string(ar.Source))
	v.SetDefault("arena.path", ar.Path)
	v.SetDefault("arena.interval", ar.Interval)
	v.SetDefault("arena.mock_first", ar.MockFirst)

	v.SetDefault("geofence.width", geo.Width)
	v.SetDefault("geofence.height", geo.Height)
	v.SetDefault("geofence.threshold", geo.Threshold)
	v.SetDefault("geofence.expected_targets", geo.ExpectedTargets)
	v.SetDefault("geofence.ned_scale", geo.NEDScale)
	v.SetDefault("geofence.fallback_origin_lat", geo.FallbackOrigin.Lat)
	v.SetDefault("geofence.fallback_origin_lng", geo.FallbackOrigin.Lng)
	v.SetDefault("geofence.fallback_scale", geo.FallbackScale)

	v.SetDefault("detections.enabled", det.Enabled)
	v.SetDefault("detections.db_path", det.DBPath)
	v.SetDefault("detections.restore", det.Restore)
}

// flagBindings maps command line flags onto configuration keys
var flagBindings = map[string]string{
	"log-level":          "log_level",
	"listen":             "listen",
	"pid-file":           "pid_file",
	"params-dir":         "telemetry.params_dir",
	"collect-interval":   "telemetry.collect_interval",
	"position-interval":  "telemetry.position_interval",
	"history-dir":        "history.dir",
	"arena-source":       "arena.source",
	"arena-path":         "arena.path",
	"arena-mock-first":   "arena.mock_first",
	"detections":         "detections.enabled",
	"detections-db":      "detections.db_path",
	"restore-detections": "detections.restore",
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.String("config", "", "Path to configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("listen", DefaultListen, "HTTP listen address")
	fs.String("pid-file", "", "Path to PID file")
	fs.String("params-dir", "", "Directory of telemetry channel dumps")
	fs.Duration("collect-interval", 0, "Telemetry collection interval")
	fs.Duration("position-interval", 0, "Agent position feed interval")
	fs.String("history-dir", "", "Directory of history partitions")
	fs.String("arena-source", "", "Arena provider (file, yaml, mock)")
	fs.String("arena-path", "", "Arena data file")
	fs.Bool("arena-mock-first", false, "Serve mock arena data for the first fetch")
	fs.Bool("detections", false, "Enable the detection log")
	fs.String("detections-db", "", "Path to the detection log database")
	fs.Bool("restore-detections", false, "Resume the latest mission from the detection log")

	return fs
}

// Load reads configuration from defaults, the config file, a dotenv file,
// the environment and args, in increasing order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o, err := newOptions(opts)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	fs := newFlagSet(defaultConfigName)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return nil, errFactory.WithData(errors.ErrReadConfig, struct {
				Path  string
				Error string
			}{
				Path:  o.envFile,
				Error: err.Error(),
			})
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagBindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	configPath := o.configPath
	if p := os.Getenv(o.envPrefix + "_CONFIG"); p != "" {
		configPath = p
	}
	if f := fs.Lookup("config"); f != nil && f.Changed {
		configPath = f.Value.String()
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType(defaultConfigType)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType(defaultConfigType)
		v.AddConfigPath(defaultConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, errFactory.WithData(errors.ErrReadConfig, struct {
				Path  string
				Error string
			}{
				Path:  configPath,
				Error: err.Error(),
			})
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values and the derived component configs
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Telemetry.CollectInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Key   string
			Value string
		}{"telemetry.collect_interval", c.Telemetry.CollectInterval.String()})
	}
	if c.Telemetry.PositionInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Key   string
			Value string
		}{"telemetry.position_interval", c.Telemetry.PositionInterval.String()})
	}

	if c.Listen == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "listen address is required")
	}

	if err := c.TelemetryConfig().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	hist, err := c.HistoryConfig()
	if err != nil {
		return err
	}
	if err := hist.Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := c.ArenaConfig().Validate(); err != nil {
		if errors.HasCode(err, errors.ErrInvalidInterval) {
			return err
		}
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := c.GeofenceConfig().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := c.DetectionsConfig().Validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return nil
}

// Level returns the configured log level for the logger
func (c *Config) Level() logger.LogLevel {
	return LogLevel(strings.ToLower(c.LogLevel)).Level()
}

func (c *Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{ParamsDir: c.Telemetry.ParamsDir}
}

// HistoryConfig resolves the configured timezone name
func (c *Config) HistoryConfig() (history.Config, error) {
	loc, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return history.Config{}, errors.New().WithData(errors.ErrInvalidConfig, struct {
			Key   string
			Value string
			Error string
		}{"history.timezone", c.History.Timezone, err.Error()})
	}

	return history.Config{
		Dir:              c.History.Dir,
		MaxPartitionSize: c.History.MaxPartitionSize,
		Location:         loc,
	}, nil
}

func (c *Config) ArenaConfig() arena.Config {
	return arena.Config{
		Source:    arena.SourceKind(strings.ToLower(c.Arena.Source)),
		Path:      c.Arena.Path,
		Interval:  c.Arena.Interval,
		MockFirst: c.Arena.MockFirst,
	}
}

func (c *Config) GeofenceConfig() geofence.Config {
	return geofence.Config{
		Width:           c.Geofence.Width,
		Height:          c.Geofence.Height,
		Threshold:       c.Geofence.Threshold,
		ExpectedTargets: c.Geofence.ExpectedTargets,
		NEDScale:        c.Geofence.NEDScale,
		FallbackOrigin: geofence.GPSPoint{
			Lat: c.Geofence.FallbackOriginLat,
			Lng: c.Geofence.FallbackOriginLng,
		},
		FallbackScale: c.Geofence.FallbackScale,
	}
}

func (c *Config) DetectionsConfig() detections.Config {
	return detections.Config{
		DBPath:  c.Detections.DBPath,
		Enabled: c.Detections.Enabled,
		Restore: c.Detections.Restore,
	}
}

func (c *Config) MissionConfig() mission.Config {
	return mission.Config{PositionInterval: c.Telemetry.PositionInterval}
}
