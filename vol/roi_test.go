package vol

import "testing"

func TestROIClip(t *testing.T) {
	shape := Point{100, 80, 60, 1}
	roi, err := NewROI(Point{-5, 10, 50, 0}, Point{20, 90, 70, 1})
	if err != nil {
		t.Fatalf("bad ROI construction: %v", err)
	}
	clipped, err := roi.Clip(shape)
	if err != nil {
		t.Fatalf("clip failed: %v", err)
	}
	if !clipped.Start().Equals(Point{0, 10, 50, 0}) || !clipped.Stop().Equals(Point{20, 80, 60, 1}) {
		t.Errorf("bad clip result: %s", clipped)
	}

	outside, _ := NewROI(Point{200, 0, 0, 0}, Point{210, 10, 10, 1})
	if _, err := outside.Clip(shape); err == nil {
		t.Errorf("expected error clipping ROI fully outside bounds")
	}
}

func TestROIExtendOffset(t *testing.T) {
	shape := Point{100, 100, 100, 1}
	roi, _ := NewROI(Point{10, 20, 30, 0}, Point{40, 50, 60, 1})
	radius := Point{3, 5, 0, 0}

	ext, offset, err := roi.Extend(radius, shape)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if !ext.Start().Equals(Point{7, 15, 30, 0}) || !ext.Stop().Equals(Point{43, 55, 60, 1}) {
		t.Errorf("bad extended ROI: %s", ext)
	}
	if !offset.Equals(Point{3, 5, 0, 0}) {
		t.Errorf("bad offset: %s", offset)
	}

	// Near the volume edge the extension is clipped and the offset shrinks
	// to match, so the original region is still locatable.
	edge, _ := NewROI(Point{1, 0, 98, 0}, Point{5, 4, 100, 1})
	ext, offset, err = edge.Extend(radius, shape)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if !ext.Start().Equals(Point{0, 0, 98, 0}) {
		t.Errorf("bad clipped extension: %s", ext)
	}
	if !offset.Equals(Point{1, 0, 0, 0}) {
		t.Errorf("bad clipped offset: %s", offset)
	}
	inner, _ := NewROI(offset, offset.Add(edge.Shape()))
	if !ext.Start().Add(inner.Start()).Equals(edge.Start()) {
		t.Errorf("offset doesn't locate the original ROI inside the extension")
	}
}

func TestROIExtendRejectsNegativeRadius(t *testing.T) {
	shape := Point{10, 10, 1}
	roi, _ := NewROI(Point{0, 0, 0}, Point{5, 5, 1})
	if _, _, err := roi.Extend(Point{-1, 0, 0}, shape); err == nil {
		t.Errorf("expected error for negative halo radius")
	}
}

func TestGaussianHaloRoundTrip(t *testing.T) {
	// Extending by the halo and re-deriving the original from the returned
	// offset must reproduce the request exactly.
	shape := Point{64, 64, 64, 1}
	sigmas := []float64{1.0, 2.5, 0.3, 0}
	radius := GaussianHalo(sigmas)
	if !radius.Equals(Point{2, 5, 1, 0}) {
		t.Fatalf("unexpected halo radii: %s", radius)
	}

	roi, _ := NewROI(Point{10, 10, 10, 0}, Point{20, 30, 40, 1})
	ext, offset, err := roi.Extend(radius, shape)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	recovered, err := NewROI(ext.Start().Add(offset), ext.Start().Add(offset).Add(roi.Shape()))
	if err != nil {
		t.Fatalf("bad recovered ROI: %v", err)
	}
	if !recovered.Equals(roi) {
		t.Errorf("halo round trip got %s, want %s", recovered, roi)
	}
}

func TestROIIntersect(t *testing.T) {
	a, _ := NewROI(Point{0, 0}, Point{10, 10})
	b, _ := NewROI(Point{5, 8}, Point{20, 20})
	isect, ok := a.Intersect(b)
	if !ok {
		t.Fatalf("expected overlap")
	}
	if !isect.Start().Equals(Point{5, 8}) || !isect.Stop().Equals(Point{10, 10}) {
		t.Errorf("bad intersection: %s", isect)
	}

	c, _ := NewROI(Point{10, 10}, Point{12, 12})
	if _, ok := a.Intersect(c); ok {
		t.Errorf("expected empty intersection for touching ROIs")
	}
}

func TestAxesValidate(t *testing.T) {
	if err := XYZC.Validate(); err != nil {
		t.Errorf("standard axes failed validation: %v", err)
	}
	if err := (Axes{AxisX, AxisY}).Validate(); err == nil {
		t.Errorf("expected error for missing channel axis")
	}
	if err := (Axes{AxisX, AxisX, AxisC}).Validate(); err == nil {
		t.Errorf("expected error for duplicated axis")
	}
	if got := XYZC.ChannelIndex(); got != 3 {
		t.Errorf("bad channel index: %d", got)
	}
	if got := XYZC.SpatialIndices(); len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("bad spatial indices: %v", got)
	}
}
