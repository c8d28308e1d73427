package bloom

import "sync"

// ScalableFilter maintains a list of Filters with geometric capacity
// growth n*r^i (default r=2). Add writes to every filter; Contains ORs
// across all. Bounded false-positive rate per filter, unbounded total
// capacity without ever rebuilding.
type ScalableFilter struct {
	mu              sync.Mutex
	initialCapacity uint64
	errorRate       float64
	scaleFactor     uint64
	filters         []*Filter
}

// NewScalableFilter builds a ScalableFilter seeded with one filter sized
// for initialCapacity at errorRate.
func NewScalableFilter(initialCapacity uint64, errorRate float64, scaleFactor uint64) *ScalableFilter {
	if scaleFactor == 0 {
		scaleFactor = 2
	}
	s := &ScalableFilter{
		initialCapacity: initialCapacity,
		errorRate:       errorRate,
		scaleFactor:     scaleFactor,
	}
	s.addFilter()
	return s
}

func (s *ScalableFilter) addFilter() {
	i := len(s.filters)
	capacity := s.initialCapacity
	for n := 0; n < i; n++ {
		capacity *= s.scaleFactor
	}
	s.filters = append(s.filters, NewFilter(capacity, s.errorRate))
}

// Add writes the fingerprint into every filter, growing a fresh one when
// the newest filter is at capacity.
func (s *ScalableFilter) Add(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.filters[len(s.filters)-1]
	if last.Count() >= last.capacity {
		s.addFilter()
		last = s.filters[len(s.filters)-1]
	}
	for _, f := range s.filters {
		f.Add(fp)
	}
}

// Contains ORs membership across all filters.
func (s *ScalableFilter) Contains(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.filters {
		if f.Contains(fp) {
			return true
		}
	}
	return false
}

// Clear resets to a single fresh filter.
func (s *ScalableFilter) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = nil
	s.addFilter()
}

// scalableSeenSet adapts ScalableFilter to SeenSet.
type scalableSeenSet struct{ s *ScalableFilter }

// NewScalableSeenSet builds a SeenSet backed by a ScalableFilter.
func NewScalableSeenSet(initialCapacity uint64, errorRate float64, scaleFactor uint64) SeenSet {
	return &scalableSeenSet{s: NewScalableFilter(initialCapacity, errorRate, scaleFactor)}
}

func (s *scalableSeenSet) Add(fp string) error {
	s.s.Add(fp)
	return nil
}

func (s *scalableSeenSet) Contains(fp string) (bool, error) {
	return s.s.Contains(fp), nil
}
