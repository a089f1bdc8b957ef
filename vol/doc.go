/*
Package vol provides the foundation types for n-dimensional volume processing:
element types, integer points, tagged axes, regions of interest (ROIs) with
halo extension, dense arrays, block serialization, and leveled logging.

All higher-level packages (graph, ops, blockcache, pipeline) build on this
package and none of them duplicate the halo formula or ROI algebra defined
here.
*/
package vol
