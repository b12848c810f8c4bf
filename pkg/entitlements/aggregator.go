package entitlements

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Aggregator merges the results of every provider into per-feature decisions.
type Aggregator struct {
	userID    string
	providers []Provider
	priority  Priority
	meter     UsageMeter
	onFailure func(source AccessSource, err error)
	onResolve func(rec Record)
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithPriority overrides the default source priority order.
func WithPriority(p Priority) AggregatorOption {
	return func(a *Aggregator) {
		if len(p) > 0 {
			a.priority = p.Clone()
		}
	}
}

// WithUsageMeter enables usage-cap awareness during resolution.
func WithUsageMeter(m UsageMeter) AggregatorOption {
	return func(a *Aggregator) { a.meter = m }
}

// WithFailureHook is called once per provider that fails during a fan-out.
func WithFailureHook(fn func(source AccessSource, err error)) AggregatorOption {
	return func(a *Aggregator) { a.onFailure = fn }
}

// WithResolveHook is called with every record produced by Resolve.
func WithResolveHook(fn func(rec Record)) AggregatorOption {
	return func(a *Aggregator) { a.onResolve = fn }
}

// NewAggregator creates an aggregator for a single user.
func NewAggregator(userID string, providers []Provider, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		userID:    userID,
		providers: providers,
		priority:  DefaultPriority.Clone(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Priority returns the order used for resolution.
func (a *Aggregator) Priority() Priority {
	return a.priority.Clone()
}

// Snapshot queries every provider concurrently and returns the combined
// per-source result. A failing provider contributes an empty set; the
// snapshot is only abandoned when ctx is cancelled.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	results := make([]FeatureSet, len(a.providers))
	failures := make([]error, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		if p == nil {
			continue
		}
		g.Go(func() error {
			set, err := queryProvider(ctx, p, a.userID)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = set
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := newSnapshot(a.userID, a.priority)
	for i, p := range a.providers {
		if p == nil {
			continue
		}
		src := p.Source()
		if err := failures[i]; err != nil {
			snap.markFailed(src)
			log.Warn().
				Err(err).
				Str("user_id", a.userID).
				Str("source", string(src)).
				Msg("Entitlement source unavailable, continuing without it")
			if a.onFailure != nil {
				a.onFailure(src, err)
			}
			continue
		}
		snap.add(src, results[i])
	}
	return snap, nil
}

func queryProvider(ctx context.Context, p Provider, userID string) (set FeatureSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = nil
			err = fmt.Errorf("provider %s panicked: %v", p.Source(), r)
		}
	}()
	set, err = p.EnabledFeatures(ctx, userID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = FeatureSet{}
	}
	return set, nil
}

// Resolve returns the decision for key: the highest-priority source that
// enables it and still has usage remaining.
func (a *Aggregator) Resolve(ctx context.Context, key FeatureKey) (Record, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return Record{}, err
	}
	return a.ResolveFrom(ctx, snap, key)
}

// ResolveFrom resolves key against an existing snapshot.
func (a *Aggregator) ResolveFrom(ctx context.Context, snap *Snapshot, key FeatureKey) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	rec := Record{Feature: key}
	exhausted := false
	for _, src := range snap.Sources(key) {
		remaining, capped := a.remaining(ctx, key, src)
		if !capped {
			rec.Enabled = true
			rec.Source = sourcePtr(src)
			break
		}
		if remaining > 0 {
			rec.Enabled = true
			rec.Source = sourcePtr(src)
			rec.RemainingUsage = int64Ptr(remaining)
			break
		}
		exhausted = true
	}
	if !rec.Enabled && exhausted {
		rec.RemainingUsage = int64Ptr(0)
	}

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if a.onResolve != nil {
		a.onResolve(rec)
	}
	return rec, nil
}

// ResolveMany resolves several keys from a single provider fan-out.
func (a *Aggregator) ResolveMany(ctx context.Context, keys []FeatureKey) (map[FeatureKey]Record, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[FeatureKey]Record, len(keys))
	for _, key := range keys {
		rec, err := a.ResolveFrom(ctx, snap, key)
		if err != nil {
			return nil, err
		}
		out[key] = rec
	}
	return out, nil
}

// ResolveAll returns every feature enabled by any source, ignoring priority
// and usage caps.
func (a *Aggregator) ResolveAll(ctx context.Context) (FeatureSet, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.All(), nil
}

// AccessSource returns the source that wins resolution for key, or nil.
func (a *Aggregator) AccessSource(ctx context.Context, key FeatureKey) (*AccessSource, error) {
	rec, err := a.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return rec.Source, nil
}

func (a *Aggregator) remaining(ctx context.Context, key FeatureKey, src AccessSource) (int64, bool) {
	if a.meter == nil {
		return 0, false
	}
	remaining, capped, err := a.meter.Remaining(ctx, a.userID, key, src)
	if err != nil {
		log.Warn().
			Err(err).
			Str("user_id", a.userID).
			Str("feature", string(key)).
			Str("source", string(src)).
			Msg("Usage lookup failed, treating feature as uncapped")
		return 0, false
	}
	return remaining, capped
}
