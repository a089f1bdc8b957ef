package graph

import (
	"context"
	"fmt"

	"roiflow/vol"
)

// FetchFunc fetches a sub-volume from an external provider.
type FetchFunc func(ctx context.Context, roi vol.ROI) (*vol.Array, error)

// Source adapts any external data provider -- anything that can report
// metadata and serve sub-volume reads -- into a graph node.  The library
// never assumes a specific storage format behind the fetch function.
type Source struct {
	name  string
	meta  Metadata
	fetch FetchFunc
}

func NewSource(name string, meta Metadata, fetch FetchFunc) *Source {
	return &Source{name: name, meta: meta, fetch: fetch}
}

// NewArraySource wraps an in-memory array as a graph source, mostly useful
// for tests and for seeding small pipelines.
func NewArraySource(name string, axes vol.Axes, drange *[2]float64, a *vol.Array) *Source {
	meta := Metadata{Shape: a.Shape(), Axes: axes, DType: a.DataType(), DataRange: drange}
	return NewSource(name, meta, func(_ context.Context, roi vol.ROI) (*vol.Array, error) {
		return a.SubVolume(roi)
	})
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) SetInput(port string, _ *Input) error {
	return fmt.Errorf("source %q has no input ports, got %q", s.name, port)
}

func (s *Source) Configure() error {
	if s.fetch == nil {
		return fmt.Errorf("source %q has no fetch function", s.name)
	}
	return s.meta.Validate()
}

func (s *Source) Metadata(port string) (Metadata, error) {
	if port != OutPort {
		return Metadata{}, fmt.Errorf("source %q has no output port %q", s.name, port)
	}
	return s.meta.Clone(), nil
}

func (s *Source) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != OutPort {
		return nil, fmt.Errorf("source %q has no output port %q", s.name, port)
	}
	return s.fetch(ctx, roi)
}

func (s *Source) PropagateDirty(input string, _ vol.ROI) ([]PortROI, error) {
	return nil, fmt.Errorf("source %q has no input port %q", s.name, input)
}
