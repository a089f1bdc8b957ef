package ops

import (
	"context"
	"testing"

	"roiflow/graph"
	"roiflow/vol"
)

func TestSelectLabelsKeepsOverlappingComponents(t *testing.T) {
	shape := vol.Point{10, 10, 1, 1}

	// Big labels: component A at x in [1,4), component B at x in [6,9).
	big, err := vol.NewArray(vol.Uint32, shape)
	if err != nil {
		t.Fatal(err)
	}
	bigLabels := big.Uint32s()
	inA := func(x, y int64) bool { return x >= 1 && x < 4 && y >= 1 && y < 9 }
	inB := func(x, y int64) bool { return x >= 6 && x < 9 && y >= 1 && y < 9 }
	for x := int64(0); x < 10; x++ {
		for y := int64(0); y < 10; y++ {
			switch {
			case inA(x, y):
				bigLabels[x*10+y] = 1
			case inB(x, y):
				bigLabels[x*10+y] = 2
			}
		}
	}

	// Small labels: one surviving component touching only part of A and
	// nothing of B.
	small, err := vol.NewArray(vol.Uint32, shape)
	if err != nil {
		t.Fatal(err)
	}
	smallLabels := small.Uint32s()
	for x := int64(2); x < 3; x++ {
		for y := int64(2); y < 5; y++ {
			smallLabels[x*10+y] = 7
		}
	}

	g := graph.NewGraph()
	op := &SelectLabels{}
	if err := g.Add("big", graph.NewArraySource("big", vol.XYZC, nil, big)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("small", graph.NewArraySource("small", vol.XYZC, nil, small)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("select", op); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("big", graph.OutPort, "select", "bigLabels"); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("small", graph.OutPort, "select", "smallLabels"); err != nil {
		t.Fatal(err)
	}
	if err := g.Configure(); err != nil {
		t.Fatal(err)
	}

	result, err := g.Pull(context.Background(), "select", graph.OutPort, vol.FullROI(shape))
	if err != nil {
		t.Fatal(err)
	}
	if result.DataType() != vol.Uint8 {
		t.Fatalf("mask must be uint8, got %s", result.DataType())
	}
	// The mask must cover all of A, not just the overlap with the small
	// component; B and the background contribute nothing.
	mask := result.Uint8s()
	for x := int64(0); x < 10; x++ {
		for y := int64(0); y < 10; y++ {
			want := uint8(0)
			if inA(x, y) {
				want = 1
			}
			if mask[x*10+y] != want {
				t.Fatalf("mask at (%d,%d) is %d, want %d", x, y, mask[x*10+y], want)
			}
		}
	}

	// Either input going dirty invalidates the whole mask.
	roi := mustROI(t, vol.Point{0, 0, 0, 0}, vol.Point{1, 1, 1, 1})
	for _, port := range []string{"smallLabels", "bigLabels"} {
		dirtied, err := op.PropagateDirty(port, roi)
		if err != nil {
			t.Fatal(err)
		}
		if len(dirtied) != 1 || !dirtied[0].ROI.Equals(vol.FullROI(shape)) {
			t.Errorf("dirty %s: expected whole-output invalidation, got %v", port, dirtied)
		}
	}
}

func TestSelectLabelsShapeMismatchRejected(t *testing.T) {
	big, _ := vol.NewArray(vol.Uint32, vol.Point{4, 4, 1, 1})
	small, _ := vol.NewArray(vol.Uint32, vol.Point{5, 5, 1, 1})

	g := graph.NewGraph()
	if err := g.Add("big", graph.NewArraySource("big", vol.XYZC, nil, big)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("small", graph.NewArraySource("small", vol.XYZC, nil, small)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("select", &SelectLabels{}); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("big", graph.OutPort, "select", "bigLabels"); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("small", graph.OutPort, "select", "smallLabels"); err != nil {
		t.Fatal(err)
	}
	if err := g.Configure(); err == nil {
		t.Errorf("expected configuration error for mismatched label volume shapes")
	}
}
