/*
Package blockcache caches one operator output at the granularity of
fixed-extent blocks.

Arbitrary ROI reads are served by materializing only the blocks that
intersect the request and assembling them into a contiguous result.
Dirty notifications invalidate at block granularity, so a later read
recomputes only the touched blocks.  Clean blocks can be exported to and
seeded from an external persistence collaborator without invoking the
wrapped producer.
*/
package blockcache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"roiflow/graph"
	"roiflow/vol"
)

// DefaultBlockSize is the default block extent along spatial axes.
const DefaultBlockSize int32 = 32

// FullExtent is a BlockShape sentinel giving every axis the volume's full
// extent, so the whole output is one block.  Used for caching whole-volume
// computations like labelings, where per-block materialization would
// re-trigger the full computation once per block.
var FullExtent = vol.Point{}

// Config tunes one cache instance.
type Config struct {
	// BlockShape gives per-axis block extents.  A zero component means
	// "full extent along this axis".  Nil picks DefaultBlockSize on
	// spatial axes and full extent elsewhere.
	BlockShape vol.Point

	// MaxBlocks bounds the number of resident blocks, evicting the least
	// recently used clean block beyond it.  0 means unbounded.
	MaxBlocks int

	// Compression is used when exporting block data.  Defaults to Snappy.
	Compression vol.Compression
}

type blockEntry struct {
	idx  vol.Point
	data *vol.Array
	gen  uint64
}

// Cache is a graph operator wrapping a producer with block-granular
// caching.  Reads of disjoint blocks proceed independently; concurrent
// reads of the same absent block coalesce into a single producer
// invocation per block generation.
type Cache struct {
	name   string
	config Config

	in         *graph.Input
	meta       graph.Metadata
	haveMeta   bool
	blockShape vol.Point
	gridShape  vol.Point

	mu         sync.Mutex
	blocks     map[string]*blockEntry
	evict      *lru.Cache // tracks use order when MaxBlocks > 0, keys only
	generation map[string]uint64

	flights       singleflight.Group
	producerCalls atomic.Int64
}

func New(name string, config Config) *Cache {
	if config.Compression == 0 {
		config.Compression = vol.Snappy
	}
	c := &Cache{
		name:       name,
		config:     config,
		blocks:     make(map[string]*blockEntry),
		generation: make(map[string]uint64),
	}
	if config.MaxBlocks > 0 {
		c.evict = &lru.Cache{
			MaxEntries: config.MaxBlocks,
			OnEvicted: func(key lru.Key, _ interface{}) {
				delete(c.blocks, key.(string))
			},
		}
	}
	return c
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) SetInput(port string, in *graph.Input) error {
	if port != "in" {
		return fmt.Errorf("cache %q has no input port %q", c.name, port)
	}
	c.in = in
	return nil
}

func (c *Cache) Configure() error {
	if !c.in.Connected() {
		return fmt.Errorf("cache %q input is not connected", c.name)
	}
	meta, err := c.in.Metadata()
	if err != nil {
		return err
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	if n := len(c.config.BlockShape); c.config.BlockShape != nil && n != 0 && n != len(meta.Shape) {
		return fmt.Errorf("cache %q block shape %s does not match rank %d volume",
			c.name, c.config.BlockShape, len(meta.Shape))
	}
	blockShape := make(vol.Point, len(meta.Shape))
	for i := range blockShape {
		var want int32
		switch {
		case c.config.BlockShape == nil:
			if meta.Axes[i].Spatial() {
				want = DefaultBlockSize
			}
		case len(c.config.BlockShape) > i:
			want = c.config.BlockShape[i]
		}
		if want <= 0 || want > meta.Shape[i] {
			want = meta.Shape[i] // full extent
		}
		blockShape[i] = want
	}
	gridShape := make(vol.Point, len(meta.Shape))
	for i := range gridShape {
		gridShape[i] = (meta.Shape[i] + blockShape[i] - 1) / blockShape[i]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveMeta && !c.meta.Equal(meta) {
		// The producer changed underneath us: all cached data is invalid.
		vol.Infof("cache %q dropping %d blocks after metadata change\n", c.name, len(c.blocks))
		c.blocks = make(map[string]*blockEntry)
		c.generation = make(map[string]uint64)
		if c.evict != nil {
			c.evict.Clear()
		}
	}
	c.meta = meta
	c.haveMeta = true
	c.blockShape = blockShape
	c.gridShape = gridShape
	return nil
}

func (c *Cache) Metadata(port string) (graph.Metadata, error) {
	if port != graph.OutPort {
		return graph.Metadata{}, fmt.Errorf("cache %q has no output port %q", c.name, port)
	}
	if !c.haveMeta {
		return graph.Metadata{}, fmt.Errorf("cache %q is not configured", c.name)
	}
	return c.meta.Clone(), nil
}

func blockKey(idx vol.Point) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

// BlockROI returns the global extent of the given block, clipped to the
// volume shape on the high edges.
func (c *Cache) BlockROI(idx vol.Point) (vol.ROI, error) {
	for i, v := range idx {
		if v < 0 || v >= c.gridShape[i] {
			return vol.ROI{}, fmt.Errorf("block index %s outside grid %s", idx, c.gridShape)
		}
	}
	start := make(vol.Point, len(idx))
	stop := make(vol.Point, len(idx))
	for i, v := range idx {
		start[i] = v * c.blockShape[i]
		stop[i] = start[i] + c.blockShape[i]
		if stop[i] > c.meta.Shape[i] {
			stop[i] = c.meta.Shape[i]
		}
	}
	return vol.NewROI(start, stop)
}

// blockRange returns the inclusive block index bounds intersecting a ROI.
func (c *Cache) blockRange(roi vol.ROI) (lo, hi vol.Point) {
	start := roi.Start()
	stop := roi.Stop()
	lo = make(vol.Point, len(start))
	hi = make(vol.Point, len(start))
	for i := range start {
		lo[i] = start[i] / c.blockShape[i]
		hi[i] = (stop[i] - 1) / c.blockShape[i]
	}
	return
}

// eachBlock calls f with every block index in the inclusive range [lo,hi].
func eachBlock(lo, hi vol.Point, f func(idx vol.Point)) {
	idx := lo.Clone()
	for {
		f(idx.Clone())
		axis := len(idx) - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] <= hi[axis] {
				break
			}
			idx[axis] = lo[axis]
			axis--
		}
		if axis < 0 {
			return
		}
	}
}

func (c *Cache) Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error) {
	if port != graph.OutPort {
		return nil, fmt.Errorf("cache %q has no output port %q", c.name, port)
	}
	result, err := vol.NewArray(c.meta.DType, roi.Shape())
	if err != nil {
		return nil, err
	}
	// An empty request intersects no blocks.
	if roi.NumVoxels() == 0 {
		return result, nil
	}

	lo, hi := c.blockRange(roi)
	var indices []vol.Point
	eachBlock(lo, hi, func(idx vol.Point) {
		indices = append(indices, idx)
	})

	// Materialize intersecting blocks in parallel; each writes a disjoint
	// region of the result.
	eg, egCtx := errgroup.WithContext(ctx)
	for _, idx := range indices {
		idx := idx
		eg.Go(func() error {
			data, blockROI, err := c.materialize(egCtx, idx)
			if err != nil {
				return err
			}
			isect, ok := blockROI.Intersect(roi)
			if !ok {
				return fmt.Errorf("block %s unexpectedly disjoint from request %s", idx, roi)
			}
			src, err := vol.NewROI(isect.Start().Sub(blockROI.Start()),
				isect.Stop().Sub(blockROI.Start()))
			if err != nil {
				return err
			}
			return vol.CopyRegion(result, isect.Start().Sub(roi.Start()), data, src)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	resident := len(c.blocks)
	usage := size.Of(c.blocks)
	c.mu.Unlock()
	vol.Debugf("cache %q served %s from %d blocks, %d resident (%s)\n",
		c.name, roi, len(indices), resident, humanize.Bytes(uint64(usage)))
	return result, nil
}

// materialize returns the block's data and global extent, invoking the
// producer only if no clean copy is resident.  Requests for the same block
// generation share a single producer call.
func (c *Cache) materialize(ctx context.Context, idx vol.Point) (*vol.Array, vol.ROI, error) {
	key := blockKey(idx)
	blockROI, err := c.BlockROI(idx)
	if err != nil {
		return nil, vol.ROI{}, err
	}

	c.mu.Lock()
	gen := c.generation[key]
	if e, found := c.blocks[key]; found && e.gen == gen {
		c.touch(key)
		c.mu.Unlock()
		return e.data, blockROI, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flights.Do(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		data, err := c.in.Pull(ctx, blockROI)
		if err != nil {
			return nil, err
		}
		c.producerCalls.Add(1)
		c.mu.Lock()
		if c.generation[key] == gen {
			c.store(key, idx, data, gen)
		}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, vol.ROI{}, err
	}
	return v.(*vol.Array), blockROI, nil
}

// store inserts a clean block.  Caller holds c.mu.
func (c *Cache) store(key string, idx vol.Point, data *vol.Array, gen uint64) {
	c.blocks[key] = &blockEntry{idx: idx, data: data, gen: gen}
	if c.evict != nil {
		c.evict.Add(key, nil)
	}
}

// touch refreshes the eviction order for a block.  Caller holds c.mu.
func (c *Cache) touch(key string) {
	if c.evict != nil {
		c.evict.Get(key)
	}
}

func (c *Cache) PropagateDirty(input string, roi vol.ROI) ([]graph.PortROI, error) {
	if input != "in" {
		return nil, fmt.Errorf("cache %q has no input port %q", c.name, input)
	}
	clipped, err := roi.Clip(c.meta.Shape)
	if err != nil {
		return nil, err
	}
	lo, hi := c.blockRange(clipped)

	c.mu.Lock()
	var dropped int
	eachBlock(lo, hi, func(idx vol.Point) {
		key := blockKey(idx)
		c.generation[key]++
		if _, found := c.blocks[key]; found {
			delete(c.blocks, key)
			dropped++
			if c.evict != nil {
				c.evict.Remove(key)
			}
		}
	})
	c.mu.Unlock()
	vol.Debugf("cache %q dirtied %s, dropped %d blocks\n", c.name, clipped, dropped)

	// Downstream sees the block-aligned region actually invalidated.
	start := make(vol.Point, len(lo))
	stop := make(vol.Point, len(lo))
	for i := range lo {
		start[i] = lo[i] * c.blockShape[i]
		stop[i] = (hi[i] + 1) * c.blockShape[i]
		if stop[i] > c.meta.Shape[i] {
			stop[i] = c.meta.Shape[i]
		}
	}
	aligned, err := vol.NewROI(start, stop)
	if err != nil {
		return nil, err
	}
	return []graph.PortROI{{Port: graph.OutPort, ROI: aligned}}, nil
}

// CleanBlocks returns the indices of all resident clean blocks in
// lexicographic order, for external persistence.
func (c *Cache) CleanBlocks() []vol.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	var indices []vol.Point
	for key, e := range c.blocks {
		if e.gen == c.generation[key] {
			indices = append(indices, e.idx)
		}
	}
	sort.Slice(indices, func(i, j int) bool {
		a, b := indices[i], indices[j]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return indices
}

// BlockData serializes a clean block's data for write-out.
func (c *Cache) BlockData(idx vol.Point) ([]byte, error) {
	key := blockKey(idx)
	c.mu.Lock()
	e, found := c.blocks[key]
	if !found || e.gen != c.generation[key] {
		c.mu.Unlock()
		return nil, fmt.Errorf("block %s of cache %q is not clean", idx, c.name)
	}
	raw := e.data.Bytes()
	c.mu.Unlock()
	return vol.SerializeData(raw, c.config.Compression, vol.CRC32)
}

// SeedBlock installs externally supplied block data, e.g. restored from a
// previous session, marking the block clean without invoking the producer.
func (c *Cache) SeedBlock(idx vol.Point, serialized []byte) error {
	blockROI, err := c.BlockROI(idx)
	if err != nil {
		return err
	}
	raw, err := vol.DeserializeData(serialized)
	if err != nil {
		return fmt.Errorf("seeding block %s of cache %q: %v", idx, c.name, err)
	}
	data, err := vol.ArrayFromBytes(c.meta.DType, blockROI.Shape(), raw)
	if err != nil {
		return fmt.Errorf("seeding block %s of cache %q: %v", idx, c.name, err)
	}
	key := blockKey(idx)
	c.mu.Lock()
	c.store(key, idx, data, c.generation[key])
	c.mu.Unlock()
	return nil
}

// ProducerCalls returns how many times the wrapped producer has been
// invoked, mostly for tests and diagnostics.
func (c *Cache) ProducerCalls() int64 {
	return c.producerCalls.Load()
}
