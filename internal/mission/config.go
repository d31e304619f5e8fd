package mission

import (
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
)

const DefaultPositionInterval = 250 * time.Millisecond

type Config struct {
	PositionInterval time.Duration
}

func DefaultConfig() Config {
	return Config{PositionInterval: DefaultPositionInterval}
}

func (c Config) Validate() error {
	if c.PositionInterval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, c.PositionInterval.String())
	}
	return nil
}
