package ops

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"roiflow/graph"
	"roiflow/vol"
)

// SelectLabels produces a binary mask keeping the full footprint of every
// component of the coarse "big" label volume that overlaps at least one
// component of the fine, already size-filtered "small" label volume.
// Overlap is a global relation between components, so execution always
// works on the whole volume and slices out the requested region.
//
// Both inputs are typically whole-volume label arrays, so this operator is
// extremely memory-conscious: it fetches the small labels first, reduces
// them to a boolean mask, drops the label data, and only then fetches the
// big labels.  Peak usage is bounded by one label volume plus one boolean
// mask.  Fetching both inputs before reducing either would double the peak
// and violates this operator's memory contract.
type SelectLabels struct {
	small *graph.Input
	big   *graph.Input
	meta  graph.Metadata
}

func (op *SelectLabels) Name() string { return "SelectLabels" }

func (op *SelectLabels) SetInput(port string, in *graph.Input) error {
	switch port {
	case "smallLabels":
		op.small = in
	case "bigLabels":
		op.big = in
	default:
		return fmt.Errorf("SelectLabels has no input port %q", port)
	}
	return nil
}

func (op *SelectLabels) Configure() error {
	if !op.small.Connected() || !op.big.Connected() {
		return fmt.Errorf("SelectLabels needs both smallLabels and bigLabels connected")
	}
	smallMeta, err := op.small.Metadata()
	if err != nil {
		return err
	}
	bigMeta, err := op.big.Metadata()
	if err != nil {
		return err
	}
	if err := bigMeta.Validate(); err != nil {
		return err
	}
	if !smallMeta.Shape.Equals(bigMeta.Shape) {
		return fmt.Errorf("label volume shapes differ: small %s vs big %s",
			smallMeta.Shape, bigMeta.Shape)
	}
	if bigMeta.DType != vol.Uint32 {
		return fmt.Errorf("SelectLabels expects uint32 big labels, got %s", bigMeta.DType)
	}
	op.meta = bigMeta.WithDType(vol.Uint8)
	op.meta.DataRange = &[2]float64{0, 1}
	return nil
}

func (op *SelectLabels) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("SelectLabels has no output port %q", port)
	}
	return op.meta.Clone(), nil
}

func (op *SelectLabels) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("SelectLabels has no output port %q", port)
	}
	full := op.meta.FullROI()
	numVoxels := full.NumVoxels()
	timelog := vol.NewTimeLog()

	// Phase 1: small labels, reduced immediately so the label data goes out
	// of scope before the big fetch.  The two fetches must stay sequential.
	smallNonZero := make([]bool, numVoxels)
	var smallBytes int
	{
		smallLabels, err := op.small.Pull(ctx, full)
		if err != nil {
			return nil, err
		}
		smallBytes = len(smallLabels.Bytes())
		for i := int64(0); i < numVoxels; i++ {
			smallNonZero[i] = smallLabels.ValueFloat(i) != 0
		}
	}
	timelog.Debugf("select labels reduced small volume (%s)",
		humanize.Bytes(uint64(smallBytes)))

	// Phase 2: big labels.  A big component passes if any of its voxels
	// coincides with a surviving small label; the mask then covers the
	// component's whole footprint, not just the overlap.
	big, err := op.big.Pull(ctx, full)
	if err != nil {
		return nil, err
	}
	bigLabels := big.Uint32s()
	passed := make(map[uint32]struct{})
	for i := int64(0); i < numVoxels; i++ {
		if smallNonZero[i] && bigLabels[i] != 0 {
			passed[bigLabels[i]] = struct{}{}
		}
	}

	out, err := vol.NewArray(vol.Uint8, full.Shape())
	if err != nil {
		return nil, err
	}
	mask := out.Uint8s()
	for i := int64(0); i < numVoxels; i++ {
		if _, keep := passed[bigLabels[i]]; keep {
			mask[i] = 1
		}
	}
	timelog.Debugf("select labels kept %d big components over %s voxels",
		len(passed), humanize.Comma(numVoxels))
	if roi.Equals(full) {
		return out, nil
	}
	return out.SubVolume(roi)
}

func (op *SelectLabels) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	switch input {
	case "smallLabels", "bigLabels":
		// Overlap is a global relation between components, so any change
		// to either labeling can flip the whole mask.
		return []graph.PortROI{{Port: graph.OutPort, ROI: op.meta.FullROI()}}, nil
	default:
		return nil, fmt.Errorf("SelectLabels has no input port %q", input)
	}
}
