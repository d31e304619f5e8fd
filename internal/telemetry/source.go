package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/dronedash/internal/errors"
)

// FileSource reads channel dumps written by the flight-controller bridge,
// one JSON file per MAVLink message in a flat directory.
type FileSource struct {
	dir string
}

func NewFileSource(cfg Config) (*FileSource, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &FileSource{dir: cfg.ParamsDir}, nil
}

// Dir returns the directory the source reads from
func (s *FileSource) Dir() string {
	return s.dir
}

// FetchLatest reads <CHANNEL>.json, falling back to the lower-case name some
// bridge versions write. A missing file is not an error.
func (s *FileSource) FetchLatest(ctx context.Context, channel Channel) ([]byte, bool, error) {
	errFactory := errors.New()

	if channel == "" {
		return nil, false, errFactory.New(ErrUnknownChannel)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, errFactory.Wrap(errors.ErrTimeout, err)
	}

	names := []string{string(channel) + fileExtension}
	if lower := strings.ToLower(string(channel)) + fileExtension; lower != names[0] {
		names = append(names, lower)
	}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err == nil {
			return data, true, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, errFactory.WithData(ErrChannelRead, struct {
				Channel string
				Error   string
			}{
				Channel: string(channel),
				Error:   err.Error(),
			})
		}
	}

	return nil, false, nil
}
