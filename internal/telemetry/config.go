package telemetry

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	defaultParamsDir = "/var/lib/dronedash/params"
	fileExtension    = ".json"
)

type Config struct {
	ParamsDir string
}

func DefaultConfig() Config {
	return Config{
		ParamsDir: defaultParamsDir,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.ParamsDir == "" {
		return errFactory.New(ErrInvalidParamsDir)
	}
	return nil
}
