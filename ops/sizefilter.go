package ops

import (
	"context"
	"fmt"

	"roiflow/graph"
	"roiflow/vol"
)

// FilterLabels removes connected components whose voxel count falls outside
// the inclusive [MinSize, MaxSize] bounds.  Surviving components keep their
// original label values; rejected components become background.  Counting
// is global, so like LabelVolume this operator reads its full input per
// request and should sit behind a cache for repeated ROI reads.
type FilterLabels struct {
	MinSize int64
	MaxSize int64

	in   *graph.Input
	meta graph.Metadata
}

func (op *FilterLabels) Name() string { return "FilterLabels" }

func (op *FilterLabels) SetInput(port string, in *graph.Input) error {
	if port != "in" {
		return fmt.Errorf("FilterLabels has no input port %q", port)
	}
	op.in = in
	return nil
}

func (op *FilterLabels) Configure() error {
	if !op.in.Connected() {
		return fmt.Errorf("FilterLabels input is not connected")
	}
	if op.MinSize < 0 {
		return fmt.Errorf("negative MinSize %d", op.MinSize)
	}
	if op.MinSize > op.MaxSize {
		return fmt.Errorf("MinSize %d exceeds MaxSize %d", op.MinSize, op.MaxSize)
	}
	inMeta, err := op.in.Metadata()
	if err != nil {
		return err
	}
	if err := inMeta.Validate(); err != nil {
		return err
	}
	if inMeta.DType != vol.Uint32 {
		return fmt.Errorf("FilterLabels needs a uint32 label volume, got %s", inMeta.DType)
	}
	op.meta = inMeta.Clone()
	return nil
}

func (op *FilterLabels) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("FilterLabels has no output port %q", port)
	}
	return op.meta.Clone(), nil
}

func (op *FilterLabels) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("FilterLabels has no output port %q", port)
	}
	labeled, err := op.in.Pull(ctx, op.meta.FullROI())
	if err != nil {
		return nil, err
	}
	labels := labeled.Uint32s()

	counts := make(map[uint32]int64)
	for _, label := range labels {
		if label != 0 {
			counts[label]++
		}
	}
	rejected := make(map[uint32]bool)
	for label, count := range counts {
		if count < op.MinSize || count > op.MaxSize {
			rejected[label] = true
		}
	}
	if len(rejected) > 0 {
		// The pulled volume is this request's private copy, so filtering
		// in place is safe.
		for i, label := range labels {
			if rejected[label] {
				labels[i] = 0
			}
		}
	}
	vol.Debugf("size filter [%d,%d] kept %d of %d components\n",
		op.MinSize, op.MaxSize, len(counts)-len(rejected), len(counts))
	return labeled.SubVolume(roi)
}

func (op *FilterLabels) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	if input != "in" {
		return nil, fmt.Errorf("FilterLabels has no input port %q", input)
	}
	return []graph.PortROI{{Port: graph.OutPort, ROI: op.meta.FullROI()}}, nil
}
