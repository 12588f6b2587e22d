package compute

import (
	"sync/atomic"
	"time"
)

// Metrics accumulates per-backend operation counts and cumulative
// similarity-pass durations. Counters are atomic and monotonically
// non-decreasing, so overlapping retrieve calls may record while
// other goroutines snapshot.
type Metrics struct {
	seqOps     atomic.Int64
	seqNanos   atomic.Int64
	accelOps   atomic.Int64
	accelNanos atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one completed similarity pass for the named backend.
// Unknown names are attributed to the sequential backend.
func (m *Metrics) Record(backend string, d time.Duration) {
	if backend == NameParallel {
		m.accelOps.Add(1)
		m.accelNanos.Add(int64(d))
		return
	}
	m.seqOps.Add(1)
	m.seqNanos.Add(int64(d))
}

// BackendStats is a point-in-time view of one backend's counters.
type BackendStats struct {
	Operations int64
	Total      time.Duration
	Average    time.Duration
}

// Snapshot is a read-only copy of all backend counters.
type Snapshot struct {
	Sequential BackendStats
	Parallel   BackendStats
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Sequential: stats(m.seqOps.Load(), m.seqNanos.Load()),
		Parallel:   stats(m.accelOps.Load(), m.accelNanos.Load()),
	}
}

func stats(ops, nanos int64) BackendStats {
	s := BackendStats{
		Operations: ops,
		Total:      time.Duration(nanos),
	}
	if ops > 0 {
		s.Average = time.Duration(nanos / ops)
	}
	return s
}
