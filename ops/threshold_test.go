package ops

import (
	"testing"

	"roiflow/vol"
)

func TestThresholdScalesByDataRange(t *testing.T) {
	src, err := vol.NewArray(vol.Float32, vol.Point{4, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	vals := src.Float32s()
	vals[0], vals[1], vals[2], vals[3] = 10, 127, 128, 250

	// Fraction 0.5 of declared range [0,255] thresholds at 127.5.
	drange := &[2]float64{0, 255}
	op := &Threshold{Fraction: 0.5}
	_, pull := chain(t, src, vol.XYZC, drange, op)

	result := pull(vol.FullROI(src.Shape()))
	mask := result.Uint8s()
	for i, want := range []uint8{0, 0, 1, 1} {
		if mask[i] != want {
			t.Errorf("element %d: got %d, want %d", i, mask[i], want)
		}
	}
	meta, err := op.Metadata("out")
	if err != nil {
		t.Fatal(err)
	}
	if meta.DType != vol.Uint8 || meta.DataRange == nil || *meta.DataRange != [2]float64{0, 1} {
		t.Errorf("bad output metadata: %+v", meta)
	}
}

func TestThresholdWithoutRangeIsAbsolute(t *testing.T) {
	src, err := vol.NewArray(vol.Float32, vol.Point{3, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	vals := src.Float32s()
	vals[0], vals[1], vals[2] = 0.1, 0.3, 0.7

	op := &Threshold{Fraction: 0.3}
	_, pull := chain(t, src, vol.XYZC, nil, op)

	mask := pull(vol.FullROI(src.Shape())).Uint8s()
	// Strictly greater-than: a value equal to the threshold stays 0.
	for i, want := range []uint8{0, 0, 1} {
		if mask[i] != want {
			t.Errorf("element %d: got %d, want %d", i, mask[i], want)
		}
	}
}

func TestSelectChannel(t *testing.T) {
	shape := vol.Point{2, 2, 1, 3}
	src, err := vol.NewArray(vol.Uint8, shape)
	if err != nil {
		t.Fatal(err)
	}
	vals := src.Uint8s()
	for i := range vals {
		vals[i] = uint8(i) // channel value = flat index % 3
	}

	op := &SelectChannel{Channel: 2}
	_, pull := chain(t, src, vol.XYZC, nil, op)

	meta, err := op.Metadata("out")
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Shape.Equals(vol.Point{2, 2, 1, 1}) {
		t.Fatalf("bad output shape %s", meta.Shape)
	}
	result := pull(vol.FullROI(meta.Shape))
	for i, v := range result.Uint8s() {
		if want := uint8(i*3 + 2); v != want {
			t.Errorf("element %d: got %d, want %d", i, v, want)
		}
	}

	// Dirtiness on another channel doesn't touch the output.
	otherChannel := mustROI(t, vol.Point{0, 0, 0, 0}, vol.Point{2, 2, 1, 1})
	dirtied, err := op.PropagateDirty("in", otherChannel)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirtied) != 0 {
		t.Errorf("dirty channel 0 should not dirty the channel-2 output: %v", dirtied)
	}
	sameChannel := mustROI(t, vol.Point{0, 0, 0, 2}, vol.Point{1, 2, 1, 3})
	dirtied, err = op.PropagateDirty("in", sameChannel)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirtied) != 1 || !dirtied[0].ROI.Equals(mustROI(t, vol.Point{0, 0, 0, 0}, vol.Point{1, 2, 1, 1})) {
		t.Errorf("bad dirty mapping for selected channel: %v", dirtied)
	}
}

func TestSelectChannelOutOfRangeFallsBack(t *testing.T) {
	shape := vol.Point{2, 1, 1, 2}
	src, err := vol.NewArray(vol.Uint8, shape)
	if err != nil {
		t.Fatal(err)
	}
	vals := src.Uint8s()
	vals[0], vals[1], vals[2], vals[3] = 10, 11, 20, 21

	// Channel 5 of a 2-channel volume falls back to channel 0, preserved
	// legacy behavior for data sets with deleted channels.
	op := &SelectChannel{Channel: 5}
	_, pull := chain(t, src, vol.XYZC, nil, op)

	result := pull(mustROI(t, vol.Point{0, 0, 0, 0}, vol.Point{2, 1, 1, 1}))
	got := result.Uint8s()
	if got[0] != 10 || got[1] != 20 {
		t.Errorf("fallback channel read %v, want channel 0 values [10 20]", got)
	}
}
