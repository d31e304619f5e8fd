package arena

import (
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
)

// SourceKind selects the arena provider
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceYAML SourceKind = "yaml"
	SourceMock SourceKind = "mock"

	DefaultInterval = 30 * time.Second

	defaultPath = "/var/lib/dronedash/safe_zone_data.txt"
)

type Config struct {
	Source   SourceKind
	Path     string
	Interval time.Duration
	// MockFirst serves the built-in mock arena for the first fetch so the
	// dashboard has targets before the vision system reports in
	MockFirst bool
}

func DefaultConfig() Config {
	return Config{
		Source:   SourceFile,
		Path:     defaultPath,
		Interval: DefaultInterval,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Source {
	case SourceFile, SourceYAML:
		if c.Path == "" {
			return errFactory.WithData(ErrMissingPath, c.Source)
		}
	case SourceMock:
	default:
		return errFactory.WithData(ErrInvalidSource, c.Source)
	}

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	}

	return nil
}

// NewProvider builds the provider selected by cfg
func NewProvider(cfg Config) (Provider, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	switch cfg.Source {
	case SourceYAML:
		return NewYAMLProvider(cfg.Path), nil
	case SourceMock:
		return NewMockProvider(), nil
	default:
		return NewFileProvider(cfg.Path), nil
	}
}
