package vol

import (
	"bytes"
	"testing"
)

// fillSequential numbers the elements of a uint8 array in flat C order.
func fillSequential(a *Array) {
	data := a.Uint8s()
	for i := range data {
		data[i] = uint8(i % 251)
	}
}

func TestSubVolume(t *testing.T) {
	a, err := NewArray(Uint8, Point{4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	fillSequential(a)

	roi, _ := NewROI(Point{1, 2, 3}, Point{3, 4, 6})
	sub, err := a.SubVolume(roi)
	if err != nil {
		t.Fatalf("subvolume failed: %v", err)
	}
	if !sub.Shape().Equals(Point{2, 2, 3}) {
		t.Fatalf("bad subvolume shape: %s", sub.Shape())
	}
	src := a.Uint8s()
	got := sub.Uint8s()
	i := 0
	for x := int32(1); x < 3; x++ {
		for y := int32(2); y < 4; y++ {
			for z := int32(3); z < 6; z++ {
				want := src[x*5*6+y*6+z]
				if got[i] != want {
					t.Fatalf("element (%d,%d,%d): got %d, want %d", x, y, z, got[i], want)
				}
				i++
			}
		}
	}

	bad, _ := NewROI(Point{0, 0, 0}, Point{5, 5, 6})
	if _, err := a.SubVolume(bad); err == nil {
		t.Errorf("expected error for out-of-bounds subvolume")
	}
}

func TestPasteRoundTrip(t *testing.T) {
	a, _ := NewArray(Uint32, Point{6, 6, 1})
	src := a.Uint32s()
	for i := range src {
		src[i] = uint32(i + 1)
	}

	roi, _ := NewROI(Point{2, 1, 0}, Point{5, 4, 1})
	sub, err := a.SubVolume(roi)
	if err != nil {
		t.Fatal(err)
	}

	b, _ := NewArray(Uint32, Point{6, 6, 1})
	if err := b.Paste(sub, roi.Start()); err != nil {
		t.Fatalf("paste failed: %v", err)
	}
	restored, _ := b.SubVolume(roi)
	if !bytes.Equal(restored.Bytes(), sub.Bytes()) {
		t.Errorf("paste/subvolume round trip mismatch")
	}
}

func TestConvertFloat32(t *testing.T) {
	a, _ := NewArray(Uint16, Point{2, 3, 1})
	vals := a.Uint16s()
	for i := range vals {
		vals[i] = uint16(i * 1000)
	}
	f := a.ConvertFloat32()
	if f.DataType() != Float32 {
		t.Fatalf("bad converted type: %s", f.DataType())
	}
	for i, v := range f.Float32s() {
		if v != float32(i*1000) {
			t.Errorf("element %d: got %f", i, v)
		}
	}
	if same := f.ConvertFloat32(); same != f {
		t.Errorf("converting a float32 array should be a no-op")
	}
}

func TestSerializeDataRoundTrip(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i / 64) // compressible
	}
	for _, compress := range []Compression{Uncompressed, Snappy} {
		s, err := SerializeData(data, compress, CRC32)
		if err != nil {
			t.Fatalf("%s: serialize failed: %v", compress, err)
		}
		restored, err := DeserializeData(s)
		if err != nil {
			t.Fatalf("%s: deserialize failed: %v", compress, err)
		}
		if !bytes.Equal(restored, data) {
			t.Errorf("%s: round trip mismatch", compress)
		}
	}

	// Corruption must be caught by the checksum.
	s, _ := SerializeData(data, Snappy, CRC32)
	s[len(s)-1] ^= 0xff
	if _, err := DeserializeData(s); err == nil {
		t.Errorf("expected checksum failure for corrupted data")
	}
}
