/*
Package graph implements a pull-based operator graph over n-dimensional
volumes.

Operators are nodes in an explicit directed acyclic graph, addressed by
stable string identifiers, with typed input/output ports connected by
edges.  Requests for data flow from consumers to producers through
Pull/Execute; dirty notifications flow the opposite direction through
SetDirty/PropagateDirty.  Every operator obeys the same contract:

  - Configure computes output metadata from current inputs and parameters
    and may be called repeatedly.
  - Execute returns exactly the requested sub-volume for an output port.
  - PropagateDirty maps an invalidated input region to the minimal output
    regions affected.  Over-reporting is wasteful but safe; under-reporting
    corrupts downstream caches and is a bug.
*/
package graph
