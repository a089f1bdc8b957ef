package ops

import (
	"context"
	"fmt"

	"roiflow/graph"
	"roiflow/vol"
)

// GaussianSmoothing smooths its input with a per-spatial-axis Gaussian.
// The output element type is always float32 regardless of the input type,
// since the kernel cannot operate losslessly on integer data.
//
// Execute extends the requested ROI by the kernel halo before fetching
// input, then restricts the convolution result to the original region.
// PropagateDirty applies the same halo extension in the forward direction;
// halo extension is symmetric, so one formula serves both.  A sigma change
// invalidates the whole output: reconfigure and mark the full ROI dirty.
type GaussianSmoothing struct {
	// Sigmas holds one smoothing scale per spatial axis of the input.
	Sigmas map[vol.AxisTag]float64

	// SmoothFn is the convolution kernel, GaussianSmooth unless replaced.
	SmoothFn SmoothFunc

	in         *graph.Input
	meta       graph.Metadata
	axisSigmas []float64 // aligned with the input axes, 0 for non-spatial
}

func (op *GaussianSmoothing) Name() string { return "GaussianSmoothing" }

func (op *GaussianSmoothing) SetInput(port string, in *graph.Input) error {
	if port != "in" {
		return fmt.Errorf("GaussianSmoothing has no input port %q", port)
	}
	op.in = in
	return nil
}

func (op *GaussianSmoothing) Configure() error {
	if !op.in.Connected() {
		return fmt.Errorf("GaussianSmoothing input is not connected")
	}
	inMeta, err := op.in.Metadata()
	if err != nil {
		return err
	}
	if err := inMeta.Validate(); err != nil {
		return err
	}

	// Exactly one sigma per spatial axis of the input, no extras.
	spatial := make(map[vol.AxisTag]bool)
	for _, i := range inMeta.Axes.SpatialIndices() {
		spatial[inMeta.Axes[i]] = true
	}
	for tag := range op.Sigmas {
		if !spatial[tag] {
			return fmt.Errorf("sigma given for axis %q which is not a spatial axis of %s", tag, inMeta.Axes)
		}
	}
	op.axisSigmas = make([]float64, len(inMeta.Axes))
	for i, tag := range inMeta.Axes {
		if !tag.Spatial() {
			continue
		}
		sigma, found := op.Sigmas[tag]
		if !found {
			return fmt.Errorf("no sigma given for spatial axis %q", tag)
		}
		if sigma < 0 {
			return fmt.Errorf("negative sigma %g for axis %q", sigma, tag)
		}
		op.axisSigmas[i] = sigma
	}

	op.meta = inMeta.WithDType(vol.Float32)
	if op.SmoothFn == nil {
		op.SmoothFn = GaussianSmooth
	}
	return nil
}

func (op *GaussianSmoothing) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("GaussianSmoothing has no output port %q", port)
	}
	return op.meta.Clone(), nil
}

// halo returns the per-axis input margin required by the current sigmas.
func (op *GaussianSmoothing) halo() vol.Point {
	return vol.GaussianHalo(op.axisSigmas)
}

func (op *GaussianSmoothing) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("GaussianSmoothing has no output port %q", port)
	}
	inputROI, offset, err := roi.Extend(op.halo(), op.meta.Shape)
	if err != nil {
		return nil, err
	}

	timelog := vol.NewTimeLog()
	data, err := op.in.Pull(ctx, inputROI)
	if err != nil {
		return nil, err
	}
	timelog.Debugf("smoothing input fetch for %s", inputROI)

	data = data.ConvertFloat32()
	inner, err := vol.NewROI(offset, offset.Add(roi.Shape()))
	if err != nil {
		return nil, err
	}
	smoothed, err := op.SmoothFn(data, op.axisSigmas, inner)
	if err != nil {
		return nil, err
	}
	if !smoothed.Shape().Equals(roi.Shape()) {
		return nil, fmt.Errorf("smoothed shape %s differs from requested %s: %w",
			smoothed.Shape(), roi.Shape(), graph.ErrShapeMismatch)
	}
	return smoothed, nil
}

func (op *GaussianSmoothing) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	if input != "in" {
		return nil, fmt.Errorf("GaussianSmoothing has no input port %q", input)
	}
	// A changed input voxel affects every output voxel whose kernel window
	// touches it, which is the same halo extension used during Execute.
	dirty, _, err := roi.Extend(op.halo(), op.meta.Shape)
	if err != nil {
		return nil, err
	}
	return []graph.PortROI{{Port: graph.OutPort, ROI: dirty}}, nil
}
