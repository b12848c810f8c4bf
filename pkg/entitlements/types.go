// Package entitlements resolves which gated features a user may use and why.
//
// Access to a feature can come from five independent sources (subscription,
// program plan, add-on, track membership, org sponsorship). Each source is
// represented by a Provider; the Aggregator queries all of them concurrently
// and resolves a single primary source per feature using a configured
// priority order.
package entitlements

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureKey identifies a gateable capability (e.g. "ai_insights").
type FeatureKey string

// AccessSource is the channel through which a feature is granted.
type AccessSource string

const (
	SourceSubscription AccessSource = "subscription"
	SourceProgramPlan  AccessSource = "program_plan"
	SourceAddOn        AccessSource = "add_on"
	SourceTrack        AccessSource = "track"
	SourceOrgSponsored AccessSource = "org_sponsored"
)

// AllSources lists every access source in default priority order.
var AllSources = []AccessSource{
	SourceSubscription,
	SourceProgramPlan,
	SourceAddOn,
	SourceTrack,
	SourceOrgSponsored,
}

// Valid reports whether s is a known access source.
func (s AccessSource) Valid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// ParseAccessSource parses a source name, tolerating case and surrounding space.
func ParseAccessSource(raw string) (AccessSource, error) {
	s := AccessSource(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown access source %q", raw)
	}
	return s, nil
}

// Priority is a total order over access sources, highest priority first.
type Priority []AccessSource

// DefaultPriority ranks subscription highest and org sponsorship lowest.
var DefaultPriority = Priority(AllSources)

// ParsePriority parses a comma-separated priority list. Sources omitted from
// the list are appended in default order so the result is always total.
func ParsePriority(raw string) (Priority, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPriority.Clone(), nil
	}

	seen := make(map[AccessSource]bool, len(AllSources))
	out := make(Priority, 0, len(AllSources))
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		src, err := ParseAccessSource(part)
		if err != nil {
			return nil, err
		}
		if seen[src] {
			return nil, fmt.Errorf("access source %q listed twice in priority", src)
		}
		seen[src] = true
		out = append(out, src)
	}
	for _, src := range DefaultPriority {
		if !seen[src] {
			out = append(out, src)
		}
	}
	return out, nil
}

// Clone returns an independent copy of p.
func (p Priority) Clone() Priority {
	if p == nil {
		return nil
	}
	out := make(Priority, len(p))
	copy(out, p)
	return out
}

// Rank returns the zero-based position of s (0 is highest), or -1 if absent.
func (p Priority) Rank(s AccessSource) int {
	for i, src := range p {
		if src == s {
			return i
		}
	}
	return -1
}

// String renders the priority as a comma-separated list.
func (p Priority) String() string {
	parts := make([]string, len(p))
	for i, src := range p {
		parts[i] = string(src)
	}
	return strings.Join(parts, ",")
}

// FeatureSet is an unordered set of feature keys.
type FeatureSet map[FeatureKey]struct{}

// NewFeatureSet builds a set from keys, ignoring empty keys.
func NewFeatureSet(keys ...FeatureKey) FeatureSet {
	set := make(FeatureSet, len(keys))
	for _, k := range keys {
		set.Add(k)
	}
	return set
}

// Add inserts k into the set.
func (s FeatureSet) Add(k FeatureKey) {
	if k == "" {
		return
	}
	s[k] = struct{}{}
}

// Has reports whether k is in the set.
func (s FeatureSet) Has(k FeatureKey) bool {
	_, ok := s[k]
	return ok
}

// Merge adds every key of other into s.
func (s FeatureSet) Merge(other FeatureSet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Sorted returns the keys in lexical order.
func (s FeatureSet) Sorted() []FeatureKey {
	out := make([]FeatureKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Record is the resolved access decision for one feature. It is a value
// produced fresh by every resolution and never mutated afterwards.
type Record struct {
	Feature FeatureKey    `json:"feature"`
	Enabled bool          `json:"enabled"`
	Source  *AccessSource `json:"source"`

	// RemainingUsage is nil when no usage cap applies to the resolved source.
	RemainingUsage *int64 `json:"remaining_usage"`
}

// LimitReached reports whether a usage cap applies and is exhausted.
func (r Record) LimitReached() bool {
	return r.RemainingUsage != nil && *r.RemainingUsage <= 0
}

// Usable reports whether the feature may actually be used right now.
// An enabled feature with no remaining usage is functionally disabled.
func (r Record) Usable() bool {
	return r.Enabled && !r.LimitReached()
}

// SourceName returns the resolved source or "" when none.
func (r Record) SourceName() string {
	if r.Source == nil {
		return ""
	}
	return string(*r.Source)
}

func sourcePtr(s AccessSource) *AccessSource {
	return &s
}

func int64Ptr(v int64) *int64 {
	return &v
}
