/*
Package pipeline composes the operator library into the two-level
(hysteresis) thresholding unit: select channel, smooth, threshold at a low
and a high fraction of the data range, label both masks, size-filter the
high-threshold components, and keep every low-threshold component that
overlaps a surviving high-threshold component.

The primary output and each debug tap are independently wrapped in block
caches so random-access re-reads do not re-trigger the chain.
*/
package pipeline

import (
	"context"
	"fmt"

	"roiflow/blockcache"
	"roiflow/graph"
	"roiflow/ops"
	"roiflow/vol"
)

// Node ids within the internal graph.
const (
	nodeInput       = "input"
	nodeChannel     = "channel"
	nodeSmooth      = "smooth"
	nodeLowThresh   = "lowthresh"
	nodeHighThresh  = "highthresh"
	nodeBigLabels   = "biglabels"
	nodeSmallLabels = "smalllabels"
	nodeSizeFilter  = "sizefilter"
	nodeSelect      = "select"

	cacheOutput   = "outcache"
	cacheSmoothed = "smoothcache"
	cacheLow      = "lowcache"
	cacheHigh     = "highcache"
	cacheFiltered = "filtercache"
)

// ThresholdTwoLevels owns the wired pipeline graph.  It performs no
// computation itself: every read is served by one of the caches.
type ThresholdTwoLevels struct {
	name   string
	g      *graph.Graph
	params Params

	channel    *ops.SelectChannel
	smooth     *ops.GaussianSmoothing
	lowThresh  *ops.Threshold
	highThresh *ops.Threshold
	sizeFilter *ops.FilterLabels

	outCache *blockcache.Cache
}

// New wires and configures a pipeline reading from the given source
// operator.  cacheConfig applies to the voxelwise taps (smoothed data and
// the two threshold masks); the label-derived outputs always cache as a
// single whole-volume block since labeling is a whole-volume computation.
func New(name string, source graph.Operator, params Params, cacheConfig blockcache.Config) (*ThresholdTwoLevels, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &ThresholdTwoLevels{
		name:       name,
		g:          graph.NewGraph(),
		params:     params,
		channel:    &ops.SelectChannel{Channel: params.Channel},
		smooth:     &ops.GaussianSmoothing{Sigmas: params.axisSigmas()},
		lowThresh:  &ops.Threshold{Fraction: params.LowThreshold},
		highThresh: &ops.Threshold{Fraction: params.HighThreshold},
		sizeFilter: &ops.FilterLabels{MinSize: params.MinSize, MaxSize: params.MaxSize},
	}

	p.outCache = blockcache.New(cacheOutput, singleBlock(cacheConfig))

	nodes := map[graph.NodeID]graph.Operator{
		nodeInput:       source,
		nodeChannel:     p.channel,
		nodeSmooth:      p.smooth,
		nodeLowThresh:   p.lowThresh,
		nodeHighThresh:  p.highThresh,
		nodeBigLabels:   &ops.LabelVolume{},
		nodeSmallLabels: &ops.LabelVolume{},
		nodeSizeFilter:  p.sizeFilter,
		nodeSelect:      &ops.SelectLabels{},
		cacheOutput:     p.outCache,
		cacheSmoothed:   blockcache.New(cacheSmoothed, cacheConfig),
		cacheLow:        blockcache.New(cacheLow, cacheConfig),
		cacheHigh:       blockcache.New(cacheHigh, cacheConfig),
		cacheFiltered:   blockcache.New(cacheFiltered, singleBlock(cacheConfig)),
	}
	for id, op := range nodes {
		if err := p.g.Add(id, op); err != nil {
			return nil, err
		}
	}

	wires := []struct {
		src     graph.NodeID
		dst     graph.NodeID
		dstPort string
	}{
		{nodeInput, nodeChannel, "in"},
		{nodeChannel, nodeSmooth, "in"},
		{nodeSmooth, nodeLowThresh, "in"},
		{nodeSmooth, nodeHighThresh, "in"},
		{nodeLowThresh, nodeBigLabels, "in"},
		{nodeHighThresh, nodeSmallLabels, "in"},
		{nodeSmallLabels, nodeSizeFilter, "in"},
		{nodeBigLabels, nodeSelect, "bigLabels"},
		{nodeSizeFilter, nodeSelect, "smallLabels"},
		{nodeSelect, cacheOutput, "in"},
		{nodeSmooth, cacheSmoothed, "in"},
		{nodeLowThresh, cacheLow, "in"},
		{nodeHighThresh, cacheHigh, "in"},
		{nodeSizeFilter, cacheFiltered, "in"},
	}
	for _, w := range wires {
		if err := p.g.Connect(w.src, graph.OutPort, w.dst, w.dstPort); err != nil {
			return nil, err
		}
	}
	if err := p.g.Configure(); err != nil {
		return nil, err
	}
	return p, nil
}

// singleBlock forces a one-block grid covering the whole volume, with no
// eviction.  Evicting a whole-volume block would just mean recomputing it.
func singleBlock(config blockcache.Config) blockcache.Config {
	config.BlockShape = blockcache.FullExtent
	config.MaxBlocks = 0
	return config
}

func (p *ThresholdTwoLevels) Name() string { return p.name }

// Params returns the current configuration.
func (p *ThresholdTwoLevels) Params() Params { return p.params }

// Metadata describes the primary output: a uint8 mask over the selected
// channel's spatial extent.
func (p *ThresholdTwoLevels) Metadata() (graph.Metadata, error) {
	return p.outCache.Metadata(graph.OutPort)
}

// Output reads the final mask, served from the output cache.
func (p *ThresholdTwoLevels) Output(ctx context.Context, roi vol.ROI) (*vol.Array, error) {
	return p.g.Pull(ctx, cacheOutput, graph.OutPort, roi)
}

// Execute exists to document the composition contract: the unit computes
// nothing itself, so direct execution of its primary output is a
// programming error.  Use Output.
func (p *ThresholdTwoLevels) Execute(context.Context, string, vol.ROI) (*vol.Array, error) {
	return nil, fmt.Errorf("pipeline %q output is only served through its cache", p.name)
}

// Smoothed reads the smoothed float32 debug tap.
func (p *ThresholdTwoLevels) Smoothed(ctx context.Context, roi vol.ROI) (*vol.Array, error) {
	return p.g.Pull(ctx, cacheSmoothed, graph.OutPort, roi)
}

// BigRegions reads the low-threshold mask debug tap.
func (p *ThresholdTwoLevels) BigRegions(ctx context.Context, roi vol.ROI) (*vol.Array, error) {
	return p.g.Pull(ctx, cacheLow, graph.OutPort, roi)
}

// SmallRegions reads the high-threshold mask debug tap.
func (p *ThresholdTwoLevels) SmallRegions(ctx context.Context, roi vol.ROI) (*vol.Array, error) {
	return p.g.Pull(ctx, cacheHigh, graph.OutPort, roi)
}

// FilteredSmallLabels reads the size-filtered high-threshold label volume.
func (p *ThresholdTwoLevels) FilteredSmallLabels(ctx context.Context, roi vol.ROI) (*vol.Array, error) {
	return p.g.Pull(ctx, cacheFiltered, graph.OutPort, roi)
}

// SetParams reconfigures the pipeline and invalidates exactly the outputs
// downstream of each changed parameter.
func (p *ThresholdTwoLevels) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	old := p.params

	var changed []graph.NodeID
	if params.Channel != old.Channel {
		p.channel.Channel = params.Channel
		changed = append(changed, nodeChannel)
	}
	if !sigmasEqual(params.Sigmas, old.Sigmas) {
		p.smooth.Sigmas = params.axisSigmas()
		changed = append(changed, nodeSmooth)
	}
	if params.LowThreshold != old.LowThreshold {
		p.lowThresh.Fraction = params.LowThreshold
		changed = append(changed, nodeLowThresh)
	}
	if params.HighThreshold != old.HighThreshold {
		p.highThresh.Fraction = params.HighThreshold
		changed = append(changed, nodeHighThresh)
	}
	if params.MinSize != old.MinSize || params.MaxSize != old.MaxSize {
		p.sizeFilter.MinSize = params.MinSize
		p.sizeFilter.MaxSize = params.MaxSize
		changed = append(changed, nodeSizeFilter)
	}
	p.params = params
	if len(changed) == 0 {
		return nil
	}

	p.g.Invalidate()
	if err := p.g.Configure(); err != nil {
		return err
	}
	// A parameter change invalidates the changed operator's whole output;
	// the graph walks that through every downstream cache.
	for _, id := range changed {
		op, _ := p.g.Operator(id)
		meta, err := op.Metadata(graph.OutPort)
		if err != nil {
			return err
		}
		if err := p.g.SetDirty(id, graph.OutPort, meta.FullROI()); err != nil {
			return err
		}
	}
	return nil
}

func sigmasEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, found := b[k]; !found || bv != v {
			return false
		}
	}
	return true
}

// MarkSourceDirty announces that the upstream data changed in the given
// region of the source volume, invalidating everything it affects.
func (p *ThresholdTwoLevels) MarkSourceDirty(roi vol.ROI) error {
	return p.g.SetDirty(nodeInput, graph.OutPort, roi)
}

// CleanBlocks, BlockData, and SeedBlock expose the output cache's
// persistence surface for external write-out and restore.

func (p *ThresholdTwoLevels) CleanBlocks() []vol.Point {
	return p.outCache.CleanBlocks()
}

func (p *ThresholdTwoLevels) BlockData(idx vol.Point) ([]byte, error) {
	return p.outCache.BlockData(idx)
}

func (p *ThresholdTwoLevels) SeedBlock(idx vol.Point, serialized []byte) error {
	return p.outCache.SeedBlock(idx, serialized)
}
