package ops

import (
	"context"
	"testing"

	"roiflow/vol"
)

func TestConnectedComponents(t *testing.T) {
	// Two blobs touching only diagonally must stay separate components
	// under face connectivity.
	mask, set := newUint8Volume(t, vol.Point{6, 6, 1, 1})
	set(1, 1, 0, 1)
	set(1, 2, 0, 1)
	set(2, 1, 0, 1)
	set(3, 3, 0, 1) // diagonal neighbor of (2,2), itself background
	set(3, 4, 0, 1)

	labeled, err := LabelConnectedComponents(mask, []int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	labels := labeled.Uint32s()
	at := func(x, y int32) uint32 {
		return labels[(int64(x)*6+int64(y))*1*1]
	}
	if at(1, 1) == 0 || at(1, 1) != at(1, 2) || at(1, 1) != at(2, 1) {
		t.Errorf("first blob not labeled as one component")
	}
	if at(3, 3) == 0 || at(3, 3) != at(3, 4) {
		t.Errorf("second blob not labeled as one component")
	}
	if at(1, 1) == at(3, 3) {
		t.Errorf("diagonally touching blobs merged under face connectivity")
	}
	if at(0, 0) != 0 {
		t.Errorf("background got label %d", at(0, 0))
	}
}

func TestLabelVolumeServesROIs(t *testing.T) {
	mask, set := newUint8Volume(t, vol.Point{8, 8, 1, 1})
	set(0, 0, 0, 1)
	set(7, 7, 0, 1)

	op := &LabelVolume{}
	_, pull := chain(t, mask, vol.XYZC, nil, op)

	// A ROI holding only the second blob still sees a consistent global
	// labeling: the blob is labeled and distinct from background.
	roi := mustROI(t, vol.Point{6, 6, 0, 0}, vol.Point{8, 8, 1, 1})
	result := pull(roi)
	if result.DataType() != vol.Uint32 {
		t.Fatalf("labels must be uint32, got %s", result.DataType())
	}
	labels := result.Uint32s()
	if labels[3] == 0 {
		t.Errorf("blob voxel not labeled")
	}
	if labels[0] != 0 {
		t.Errorf("background voxel labeled %d", labels[0])
	}

	// Any input change dirties the whole labeling.
	dirtied, err := op.PropagateDirty("in", roi)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirtied) != 1 || !dirtied[0].ROI.Equals(vol.FullROI(mask.Shape())) {
		t.Errorf("label dirtiness must cover the whole output, got %v", dirtied)
	}
}

func TestFilterLabelsSizeBounds(t *testing.T) {
	// Components of sizes 2, 3, 5, and 6 voxels along separated rows.
	mask, set := newUint8Volume(t, vol.Point{9, 8, 1, 1})
	sizes := []int32{2, 3, 5, 6}
	for row, size := range sizes {
		for i := int32(0); i < size; i++ {
			set(int32(row)*2, i, 0, 1)
		}
	}

	g, _ := chain(t, mask, vol.XYZC, nil, &LabelVolume{})

	filter := &FilterLabels{MinSize: 3, MaxSize: 5}
	if err := g.Add("filter", filter); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect("op", "out", "filter", "in"); err != nil {
		t.Fatal(err)
	}
	if err := g.Configure(); err != nil {
		t.Fatal(err)
	}

	result, err := filter.Execute(context.Background(), "out", vol.FullROI(mask.Shape()))
	if err != nil {
		t.Fatal(err)
	}
	labels := result.Uint32s()
	countAt := func(row int32) int {
		var n int
		for y := int64(0); y < 8; y++ {
			if labels[(int64(row)*2*8+y)*1*1] != 0 {
				n++
			}
		}
		return n
	}
	// MinSize-1 dropped, MinSize kept, MaxSize kept, MaxSize+1 dropped:
	// the bounds are inclusive on both ends.
	for row, want := range []int{0, 3, 5, 0} {
		if got := countAt(int32(row)); got != want {
			t.Errorf("component of size %d: %d voxels survived, want %d", sizes[row], got, want)
		}
	}
}
