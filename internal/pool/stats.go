package pool

import "sync/atomic"

// Stats holds the pool's monotonic counters. All fields are read and
// written without locks.
type Stats struct {
	warmHits   atomic.Uint64
	coldMisses atomic.Uint64
	created    atomic.Uint64
	destroyed  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	WarmHits   uint64
	ColdMisses uint64
	Created    uint64
	Destroyed  uint64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		WarmHits:   s.warmHits.Load(),
		ColdMisses: s.coldMisses.Load(),
		Created:    s.created.Load(),
		Destroyed:  s.destroyed.Load(),
	}
}

// HitRate is hits/(hits+misses), or 0 when there are no samples yet.
func (s StatsSnapshot) HitRate() float64 {
	total := s.WarmHits + s.ColdMisses
	if total == 0 {
		return 0
	}
	return float64(s.WarmHits) / float64(total)
}
