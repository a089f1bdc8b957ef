package ops

import (
	"fmt"

	"roiflow/vol"
)

// LabelFunc computes connected components of the non-zero elements of a
// volume.  Connectivity is face adjacency along the given axes (6-neighbor
// in 3-d, 4-neighbor in 2-d).  The result is a uint32 volume of the same
// shape with 0 for background and labels numbered 1..N.  Label values carry
// no identity across invocations: a recomputation may assign different
// integers to the same physical component.
type LabelFunc func(mask *vol.Array, connectAxes []int) (*vol.Array, error)

// LabelConnectedComponents is the default LabelFunc, a two-pass union-find.
func LabelConnectedComponents(mask *vol.Array, connectAxes []int) (*vol.Array, error) {
	shape := mask.Shape()
	for _, axis := range connectAxes {
		if axis < 0 || axis >= len(shape) {
			return nil, fmt.Errorf("connectivity axis %d out of range for shape %s", axis, shape)
		}
	}
	n := mask.NumElements()
	out, err := vol.NewArray(vol.Uint32, shape)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return out, nil
	}

	foreground := make([]bool, n)
	for i := int64(0); i < n; i++ {
		foreground[i] = mask.ValueFloat(i) != 0
	}

	parent := make([]int64, n)
	for i := range parent {
		parent[i] = int64(i)
	}
	var find func(int64) int64
	find = func(i int64) int64 {
		for parent[i] != i {
			parent[i] = parent[parent[i]] // path halving
			i = parent[i]
		}
		return i
	}
	union := func(a, b int64) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	strides := elemStrides(shape)
	coord := vol.NewPoint(len(shape))
	for flat := int64(0); flat < n; flat++ {
		if foreground[flat] {
			// Union with the negative-direction neighbor along each
			// connectivity axis; positive neighbors are covered when the
			// scan reaches them.
			for _, axis := range connectAxes {
				if coord[axis] > 0 {
					neighbor := flat - strides[axis]
					if foreground[neighbor] {
						union(neighbor, flat)
					}
				}
			}
		}
		for k := len(coord) - 1; k >= 0; k-- {
			coord[k]++
			if coord[k] < shape[k] {
				break
			}
			coord[k] = 0
		}
	}

	// Second pass: compact root ids into labels 1..N.
	labels := out.Uint32s()
	next := uint32(0)
	compact := make(map[int64]uint32)
	for flat := int64(0); flat < n; flat++ {
		if !foreground[flat] {
			continue
		}
		root := find(flat)
		label, found := compact[root]
		if !found {
			next++
			label = next
			compact[root] = label
		}
		labels[flat] = label
	}
	return out, nil
}
