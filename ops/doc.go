/*
Package ops provides the concrete operators of the thresholding pipeline:
channel selection, anisotropic Gaussian smoothing, pixel thresholding,
connected-component labeling, label size filtering, and overlap-based
label selection.

The numeric kernels (separable Gaussian convolution, union-find connected
components) are plain functions with documented contracts.  Operators call
them through function fields, so callers with an optimized implementation
can substitute their own without touching the operator logic.
*/
package ops
