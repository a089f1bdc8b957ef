package ops

import (
	"context"
	"fmt"

	"roiflow/graph"
	"roiflow/vol"
)

// LabelVolume computes connected components of its input's non-zero
// elements as uint32 labels.  Labeling is a global operation: any ROI read
// labels the entire spatial volume and slices out the requested region, and
// any input change invalidates the whole output since label integers have
// no stable identity across recomputation.  Wrap the output in a block
// cache when serving repeated ROI reads.
type LabelVolume struct {
	// LabelFn is the labeling kernel, LabelConnectedComponents unless replaced.
	LabelFn LabelFunc

	in   *graph.Input
	meta graph.Metadata
}

func (op *LabelVolume) Name() string { return "LabelVolume" }

func (op *LabelVolume) SetInput(port string, in *graph.Input) error {
	if port != "in" {
		return fmt.Errorf("LabelVolume has no input port %q", port)
	}
	op.in = in
	return nil
}

func (op *LabelVolume) Configure() error {
	if !op.in.Connected() {
		return fmt.Errorf("LabelVolume input is not connected")
	}
	inMeta, err := op.in.Metadata()
	if err != nil {
		return err
	}
	if err := inMeta.Validate(); err != nil {
		return err
	}
	// One spatial volume only: channel and time axes must be singleton.
	for i, tag := range inMeta.Axes {
		if !tag.Spatial() && inMeta.Shape[i] != 1 {
			return fmt.Errorf("LabelVolume needs singleton %q axis, got extent %d", tag, inMeta.Shape[i])
		}
	}
	op.meta = inMeta.WithDType(vol.Uint32)
	op.meta.DataRange = nil
	if op.LabelFn == nil {
		op.LabelFn = LabelConnectedComponents
	}
	return nil
}

func (op *LabelVolume) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("LabelVolume has no output port %q", port)
	}
	return op.meta.Clone(), nil
}

func (op *LabelVolume) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("LabelVolume has no output port %q", port)
	}
	timelog := vol.NewTimeLog()
	mask, err := op.in.Pull(ctx, op.meta.FullROI())
	if err != nil {
		return nil, err
	}
	labeled, err := op.LabelFn(mask, op.meta.Axes.SpatialIndices())
	if err != nil {
		return nil, err
	}
	timelog.Debugf("labeled %d voxels", labeled.NumElements())

	if labeled.DataType() != vol.Uint32 || !labeled.Shape().Equals(op.meta.Shape) {
		return nil, fmt.Errorf("label kernel returned %s volume of shape %s, expected uint32 %s",
			labeled.DataType(), labeled.Shape(), op.meta.Shape)
	}
	return labeled.SubVolume(roi)
}

func (op *LabelVolume) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	if input != "in" {
		return nil, fmt.Errorf("LabelVolume has no input port %q", input)
	}
	return []graph.PortROI{{Port: graph.OutPort, ROI: op.meta.FullROI()}}, nil
}
