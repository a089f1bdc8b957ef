package ops

import (
	"context"
	"testing"

	"roiflow/graph"
	"roiflow/vol"
)

// chain wires src -> op in a fresh graph and returns a pull function for
// the operator's primary output.
func chain(t *testing.T, src *vol.Array, axes vol.Axes, drange *[2]float64,
	op graph.Operator) (*graph.Graph, func(vol.ROI) *vol.Array) {

	t.Helper()
	g := graph.NewGraph()
	if err := g.Add("src", graph.NewArraySource("src", axes, drange, src)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add("op", op); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("src", graph.OutPort, "op", "in"); err != nil {
		t.Fatal(err)
	}
	if err := g.Configure(); err != nil {
		t.Fatal(err)
	}
	return g, func(roi vol.ROI) *vol.Array {
		t.Helper()
		result, err := g.Pull(context.Background(), "op", graph.OutPort, roi)
		if err != nil {
			t.Fatalf("pull of %s failed: %v", roi, err)
		}
		return result
	}
}

// mustROI builds a ROI or fails the test.
func mustROI(t *testing.T, start, stop vol.Point) vol.ROI {
	t.Helper()
	roi, err := vol.NewROI(start, stop)
	if err != nil {
		t.Fatal(err)
	}
	return roi
}

// newUint8Volume builds a zeroed uint8 array with a set function in
// (x, y, z) coordinates for xyzc-shaped test volumes.
func newUint8Volume(t *testing.T, shape vol.Point) (*vol.Array, func(x, y, z int32, value uint8)) {
	t.Helper()
	a, err := vol.NewArray(vol.Uint8, shape)
	if err != nil {
		t.Fatal(err)
	}
	vals := a.Uint8s()
	return a, func(x, y, z int32, value uint8) {
		vals[((int64(x)*int64(shape[1])+int64(y))*int64(shape[2])+int64(z))*int64(shape[3])] = value
	}
}
