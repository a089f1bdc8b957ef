package ops

import (
	"context"
	"fmt"

	"roiflow/graph"
	"roiflow/vol"
)

// Threshold binarizes its input: output is 1 where input > threshold, else
// 0, as uint8.  Fraction is interpreted against the input's declared data
// range, so a Fraction of 0.5 over a [0,255] range thresholds at 127.5.
// Inputs without a declared range are thresholded at Fraction directly.
type Threshold struct {
	Fraction float64

	in       *graph.Input
	meta     graph.Metadata
	absolute float64
}

func (op *Threshold) Name() string { return "Threshold" }

func (op *Threshold) SetInput(port string, in *graph.Input) error {
	if port != "in" {
		return fmt.Errorf("Threshold has no input port %q", port)
	}
	op.in = in
	return nil
}

func (op *Threshold) Configure() error {
	if !op.in.Connected() {
		return fmt.Errorf("Threshold input is not connected")
	}
	inMeta, err := op.in.Metadata()
	if err != nil {
		return err
	}
	if err := inMeta.Validate(); err != nil {
		return err
	}
	op.absolute = op.Fraction
	if drange := inMeta.DataRange; drange != nil {
		if drange[0] != 0 {
			return fmt.Errorf("can't threshold data with range [%g,%g]: range must start at 0",
				drange[0], drange[1])
		}
		op.absolute = op.Fraction * drange[1]
	}
	op.meta = inMeta.WithDType(vol.Uint8)
	op.meta.DataRange = &[2]float64{0, 1}
	return nil
}

func (op *Threshold) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("Threshold has no output port %q", port)
	}
	return op.meta.Clone(), nil
}

func (op *Threshold) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("Threshold has no output port %q", port)
	}
	data, err := op.in.Pull(ctx, roi)
	if err != nil {
		return nil, err
	}
	out, err := vol.NewArray(vol.Uint8, roi.Shape())
	if err != nil {
		return nil, err
	}
	mask := out.Uint8s()
	for i := int64(0); i < data.NumElements(); i++ {
		if data.ValueFloat(i) > op.absolute {
			mask[i] = 1
		}
	}
	return out, nil
}

func (op *Threshold) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	if input != "in" {
		return nil, fmt.Errorf("Threshold has no input port %q", input)
	}
	// Pointwise: a dirty input region dirties exactly that output region.
	return []graph.PortROI{{Port: graph.OutPort, ROI: roi}}, nil
}
