package ops

import (
	"context"
	"fmt"

	"roiflow/graph"
	"roiflow/vol"
)

// SelectChannel feeds a single channel of a multi-channel volume downstream.
// The output keeps the channel axis with extent 1.
//
// A configured channel beyond the input's channel count silently falls back
// to channel 0.  This mirrors long-standing behavior that downstream tools
// rely on when channels have been deleted from a data set; it is logged as
// a warning rather than failing configuration.
type SelectChannel struct {
	Channel int

	in        *graph.Input
	meta      graph.Metadata
	cidx      int
	effective int32
}

func (op *SelectChannel) Name() string { return "SelectChannel" }

func (op *SelectChannel) SetInput(port string, in *graph.Input) error {
	if port != "in" {
		return fmt.Errorf("SelectChannel has no input port %q", port)
	}
	op.in = in
	return nil
}

func (op *SelectChannel) Configure() error {
	if !op.in.Connected() {
		return fmt.Errorf("SelectChannel input is not connected")
	}
	inMeta, err := op.in.Metadata()
	if err != nil {
		return err
	}
	if err := inMeta.Validate(); err != nil {
		return err
	}
	if op.Channel < 0 {
		return fmt.Errorf("channel index %d is negative", op.Channel)
	}
	op.cidx = inMeta.Axes.ChannelIndex()
	op.effective = int32(op.Channel)
	if op.effective >= inMeta.Shape[op.cidx] {
		vol.Warningf("channel %d out of range for %d-channel input, falling back to channel 0\n",
			op.Channel, inMeta.Shape[op.cidx])
		op.effective = 0
	}
	op.meta = inMeta.Clone()
	op.meta.Shape[op.cidx] = 1
	return nil
}

func (op *SelectChannel) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("SelectChannel has no output port %q", port)
	}
	return op.meta.Clone(), nil
}

func (op *SelectChannel) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("SelectChannel has no output port %q", port)
	}
	start := roi.Start()
	stop := roi.Stop()
	start[op.cidx] = op.effective
	stop[op.cidx] = op.effective + 1
	inROI, err := vol.NewROI(start, stop)
	if err != nil {
		return nil, err
	}
	return op.in.Pull(ctx, inROI)
}

func (op *SelectChannel) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	if input != "in" {
		return nil, fmt.Errorf("SelectChannel has no input port %q", input)
	}
	// Only changes to the selected channel affect the output.
	if roi.Start()[op.cidx] > op.effective || roi.Stop()[op.cidx] <= op.effective {
		return nil, nil
	}
	start := roi.Start()
	stop := roi.Stop()
	start[op.cidx] = 0
	stop[op.cidx] = 1
	out, err := vol.NewROI(start, stop)
	if err != nil {
		return nil, err
	}
	return []graph.PortROI{{Port: graph.OutPort, ROI: out}}, nil
}
