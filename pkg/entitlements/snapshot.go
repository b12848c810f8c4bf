package entitlements

// Snapshot is the complete per-source result of one provider fan-out.
// Resolution over a snapshot depends only on the priority order, never on
// the order in which providers answered.
type Snapshot struct {
	UserID   string
	priority Priority
	bySource map[AccessSource]FeatureSet
	failed   map[AccessSource]bool
}

func newSnapshot(userID string, priority Priority) *Snapshot {
	return &Snapshot{
		UserID:   userID,
		priority: priority.Clone(),
		bySource: make(map[AccessSource]FeatureSet, len(priority)),
		failed:   make(map[AccessSource]bool),
	}
}

// NewSnapshot builds a snapshot from precomputed per-source sets.
func NewSnapshot(userID string, priority Priority, bySource map[AccessSource]FeatureSet) *Snapshot {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	snap := newSnapshot(userID, priority)
	for src, set := range bySource {
		snap.add(src, set)
	}
	return snap
}

func (s *Snapshot) add(src AccessSource, set FeatureSet) {
	existing, ok := s.bySource[src]
	if !ok {
		existing = make(FeatureSet, len(set))
		s.bySource[src] = existing
	}
	existing.Merge(set)
}

func (s *Snapshot) markFailed(src AccessSource) {
	s.failed[src] = true
}

// Failed lists sources whose provider failed, in priority order.
func (s *Snapshot) Failed() []AccessSource {
	var out []AccessSource
	for _, src := range s.priority {
		if s.failed[src] {
			out = append(out, src)
		}
	}
	return out
}

// Enabled returns the features granted by one source.
func (s *Snapshot) Enabled(src AccessSource) FeatureSet {
	out := FeatureSet{}
	out.Merge(s.bySource[src])
	return out
}

// Sources returns, in priority order, every source that enables key.
func (s *Snapshot) Sources(key FeatureKey) []AccessSource {
	var out []AccessSource
	for _, src := range s.priority {
		if s.bySource[src].Has(key) {
			out = append(out, src)
		}
	}
	return out
}

// All returns the union of every source's features.
func (s *Snapshot) All() FeatureSet {
	out := FeatureSet{}
	for _, src := range s.priority {
		out.Merge(s.bySource[src])
	}
	return out
}
