package arena

import (
	"bytes"
	"context"
	"os"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"gopkg.in/yaml.v3"
)

// FileProvider reads the safe-zone text file the vision system drops on disk
type FileProvider struct {
	path string
	now  func() time.Time
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path, now: time.Now}
}

func (p *FileProvider) Fetch(ctx context.Context) (Data, error) {
	errFactory := errors.New()

	content, err := readFile(ctx, p.path)
	if err != nil {
		return Data{}, err
	}

	boundary, targets, err := Parse(bytes.NewReader(content))
	if err != nil {
		return Data{}, errFactory.WithData(ErrParseFailed, struct {
			Path  string
			Error string
		}{
			Path:  p.path,
			Error: err.Error(),
		})
	}

	return Data{
		Boundary:  boundary,
		Targets:   targets,
		Timestamp: p.now(),
		Status:    StatusSuccess,
	}, nil
}

// YAMLProvider reads arena data from a YAML document with boundary and
// targets lists. A missing timestamp is filled with the fetch time.
type YAMLProvider struct {
	path string
	now  func() time.Time
}

func NewYAMLProvider(path string) *YAMLProvider {
	return &YAMLProvider{path: path, now: time.Now}
}

func (p *YAMLProvider) Fetch(ctx context.Context) (Data, error) {
	errFactory := errors.New()

	content, err := readFile(ctx, p.path)
	if err != nil {
		return Data{}, err
	}

	var data Data
	if err := yaml.Unmarshal(content, &data); err != nil {
		return Data{}, errFactory.WithData(ErrParseFailed, struct {
			Path  string
			Error string
		}{
			Path:  p.path,
			Error: err.Error(),
		})
	}

	if data.Timestamp.IsZero() {
		data.Timestamp = p.now()
	}
	data.Status = StatusSuccess

	return data, nil
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrTimeout, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		code := ErrReadFailed
		if os.IsNotExist(err) {
			code = ErrUnavailable
		}
		return nil, errFactory.WithData(code, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	return content, nil
}

// MockProvider always returns the built-in mock arena
type MockProvider struct {
	now func() time.Time
}

func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

func (p *MockProvider) Fetch(_ context.Context) (Data, error) {
	return MockData(p.now()), nil
}

// MockData returns a fixed arena of four corners and three safe spots
// around 12.03N 77.12E, stamped with ts.
func MockData(ts time.Time) Data {
	return Data{
		Boundary: []geofence.GPSPoint{
			{Lat: 12.0345, Lng: 77.1234},
			{Lat: 12.0345, Lng: 77.1265},
			{Lat: 12.0315, Lng: 77.1265},
			{Lat: 12.0315, Lng: 77.1234},
		},
		Targets: []geofence.Target{
			{ID: "Spot1", Lat: 12.0331, Lng: 77.1245},
			{ID: "Spot2", Lat: 12.0320, Lng: 77.1255},
			{ID: "Spot3", Lat: 12.0330, Lng: 77.1239},
		},
		Timestamp: ts,
		Status:    StatusSuccess,
	}
}
