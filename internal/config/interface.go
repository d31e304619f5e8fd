package config

import "codeberg.org/mutker/dronedash/internal/logger"

// Option adjusts how Load locates its inputs
type Option func(*options) error

type options struct {
	configPath string
	envPrefix  string
	envFile    string
}

func newOptions(opts []Option) (*options, error) {
	o := &options{
		envPrefix: defaultEnvPrefix,
		envFile:   defaultEnvFile,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// WithConfigFile sets the config file. $DRONEDASH_CONFIG and --config take
// precedence over it.
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix replaces the DRONEDASH environment prefix
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// WithEnvFile sets the dotenv file read before the environment. An empty
// path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(o *options) error {
		o.envFile = path
		return nil
	}
}

// LogLevel is a configured log level name
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

var loggerLevels = map[LogLevel]logger.LogLevel{
	LogLevelDebug:   logger.DebugLevel,
	LogLevelInfo:    logger.InfoLevel,
	LogLevelWarning: logger.WarnLevel,
	LogLevelError:   logger.ErrorLevel,
}

func (l LogLevel) IsValid() bool {
	_, ok := loggerLevels[l]
	return ok
}

// Level maps l onto the logger's level, defaulting to info
func (l LogLevel) Level() logger.LogLevel {
	if level, ok := loggerLevels[l]; ok {
		return level
	}
	return logger.InfoLevel
}

func (l LogLevel) String() string {
	return string(l)
}
