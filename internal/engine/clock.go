package engine

import "time"

// nowFunc is indirected so tests can pin the execution timestamp embedded
// in ExecutionFilterDescriptor without depending on wall-clock time.
var nowFunc = time.Now
