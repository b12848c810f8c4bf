// Package access is the entry point the API and CLI use to answer access
// questions and to perform access-affecting mutations.
package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/internal/metrics"
	"github.com/rcourtman/coachkit/internal/providers"
	"github.com/rcourtman/coachkit/internal/settings"
	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/audit"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// Store is everything the service reads and writes.
type Store interface {
	providers.Store
	providers.UsageStore
	settings.Store

	UserRoles(ctx context.Context, userID string) ([]string, error)
	LatestEnrollment(ctx context.Context, userID, programID string) (*store.Enrollment, error)
	IsOrgManaged(ctx context.Context, userID string) (bool, error)
	Plans(ctx context.Context) ([]store.Plan, error)

	AddOnExists(ctx context.Context, id string) (bool, error)
	AddOnGrant(ctx context.Context, userID, addOnID string) (*store.AddOnGrant, error)
	GrantAddOn(ctx context.Context, userID, addOnID string, expiresAt *time.Time) (*store.AddOnGrant, error)
	RevokeAddOn(ctx context.Context, userID, addOnID string) (bool, error)
	SetSetting(ctx context.Context, key, value string) (previous string, existed bool, err error)
	ConsumeUsage(ctx context.Context, userID, feature, source string, since time.Time) (remaining int64, capped bool, err error)
}

// Service builds per-user aggregators and applies the alumni lifecycle.
type Service struct {
	store    Store
	priority func() entitlements.Priority
	settings *settings.Loader
	audit    audit.Logger
	metrics  *metrics.EntitlementMetrics
	clock    providers.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithPriority sets the function consulted for the source priority on every
// request, so runtime config reloads take effect without a restart.
func WithPriority(fn func() entitlements.Priority) Option {
	return func(s *Service) { s.priority = fn }
}

// WithSettings sets the settings loader. Without one, defaults are used.
func WithSettings(l *settings.Loader) Option {
	return func(s *Service) { s.settings = l }
}

// WithAuditLogger sets the audit sink. Without one, the global sink is used.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

// WithMetrics sets the metrics recorder. Without one, the process-wide
// recorder is used.
func WithMetrics(m *metrics.EntitlementMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(c providers.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a service over st.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{store: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Get()
	}
	if s.settings == nil {
		s.settings = settings.NewLoader(st, settings.DefaultTTL)
	}
	return s
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

func (s *Service) currentPriority() entitlements.Priority {
	if s.priority == nil {
		return entitlements.DefaultPriority.Clone()
	}
	return s.priority()
}

// Aggregator returns an aggregator for userID wired to the store, the usage
// meter, and metrics.
func (s *Service) Aggregator(userID string) *entitlements.Aggregator {
	return entitlements.NewAggregator(userID,
		providers.Default(s.store, s.clock),
		entitlements.WithPriority(s.currentPriority()),
		entitlements.WithUsageMeter(providers.NewMonthlyMeter(s.store, s.clock)),
		entitlements.WithFailureHook(func(src entitlements.AccessSource, _ error) {
			s.metrics.RecordProviderFailure(string(src))
		}),
		entitlements.WithResolveHook(func(rec entitlements.Record) {
			s.metrics.RecordResolution(rec.SourceName())
		}),
	)
}

func (s *Service) observe(start time.Time) {
	s.metrics.ObserveSnapshot(time.Since(start))
}

// Settings returns the current typed settings.
func (s *Service) Settings(ctx context.Context) settings.Settings {
	return s.settings.Load(ctx)
}

// Resolve returns the access record for feature. An anonymous user gets a
// disabled record.
func (s *Service) Resolve(ctx context.Context, userID string, feature entitlements.FeatureKey) (entitlements.Record, error) {
	if strings.TrimSpace(string(feature)) == "" {
		return entitlements.Record{}, fmt.Errorf("feature key is required: %w", internalerrors.ErrInvalidInput)
	}
	if userID == "" {
		return entitlements.Record{Feature: feature}, nil
	}
	defer s.observe(time.Now())
	return s.Aggregator(userID).Resolve(ctx, feature)
}

// ResolveAll returns every feature enabled for userID, sorted.
func (s *Service) ResolveAll(ctx context.Context, userID string) ([]entitlements.FeatureKey, error) {
	if userID == "" {
		return []entitlements.FeatureKey{}, nil
	}
	defer s.observe(time.Now())
	all, err := s.Aggregator(userID).ResolveAll(ctx)
	if err != nil {
		return nil, err
	}
	return all.Sorted(), nil
}

// AccessSource returns the winning source for feature, or nil.
func (s *Service) AccessSource(ctx context.Context, userID string, feature entitlements.FeatureKey) (*entitlements.AccessSource, error) {
	rec, err := s.Resolve(ctx, userID, feature)
	if err != nil {
		return nil, err
	}
	return rec.Source, nil
}

// Gate decides how a gate for feature renders for userID.
func (s *Service) Gate(ctx context.Context, userID string, feature entitlements.FeatureKey) (entitlements.GateDecision, error) {
	rec, err := s.Resolve(ctx, userID, feature)
	if err != nil {
		return entitlements.GateDecision{}, err
	}
	d := entitlements.Evaluate(feature, &rec, s.gateContext(ctx, userID))
	s.metrics.RecordGateDecision(string(d.State), string(d.Reason))
	return d, nil
}

// GateCapability decides a gate that needs any feature of tag.
func (s *Service) GateCapability(ctx context.Context, userID string, tag entitlements.CapabilityTag) (entitlements.GateDecision, error) {
	if strings.TrimSpace(string(tag)) == "" {
		return entitlements.GateDecision{}, fmt.Errorf("capability is required: %w", internalerrors.ErrInvalidInput)
	}

	features := entitlements.FeaturesForCapability(tag)
	if len(features) == 0 {
		return entitlements.GateDecision{}, fmt.Errorf("unknown capability %q: %w", tag, internalerrors.ErrInvalidInput)
	}

	records := make(map[entitlements.FeatureKey]*entitlements.Record, len(features))
	if userID != "" {
		start := time.Now()
		resolved, err := s.Aggregator(userID).ResolveMany(ctx, features)
		s.observe(start)
		if err != nil {
			return entitlements.GateDecision{}, err
		}
		for key, rec := range resolved {
			records[key] = &rec
		}
	} else {
		for _, key := range features {
			records[key] = &entitlements.Record{Feature: key}
		}
	}

	d := entitlements.EvaluateCapability(tag, records, s.gateContext(ctx, userID))
	s.metrics.RecordGateDecision(string(d.State), string(d.Reason))
	return d, nil
}

// gateContext gathers the plan facts used to phrase denials. Lookup failures
// degrade to an unmanaged user with no known tier.
func (s *Service) gateContext(ctx context.Context, userID string) entitlements.GateContext {
	var gc entitlements.GateContext
	plans, err := s.planTiers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load plan tiers for gate")
	}
	gc.Plans = plans
	if userID == "" {
		return gc
	}

	if managed, err := s.store.IsOrgManaged(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to check org management for gate")
	} else {
		gc.OrgManaged = managed
	}
	if subs, err := s.store.Subscriptions(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load subscriptions for gate")
	} else {
		gc.UserTier = providers.UserTier(subs, s.now())
	}
	return gc
}

func (s *Service) planTiers(ctx context.Context) ([]entitlements.PlanTier, error) {
	plans, err := s.store.Plans(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entitlements.PlanTier, len(plans))
	for i, p := range plans {
		purchasable := p.IsPurchasable
		out[i] = entitlements.PlanTier{TierLevel: p.TierLevel, IsPurchasable: &purchasable}
	}
	return out, nil
}

// IsMaxPlan reports whether userID's live subscription is already at the
// highest purchasable tier.
func (s *Service) IsMaxPlan(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	plans, err := s.planTiers(ctx)
	if err != nil {
		return false, fmt.Errorf("load plans: %w", err)
	}
	subs, err := s.store.Subscriptions(ctx, userID)
	if err != nil {
		return false, internalerrors.WrapUnavailable(string(entitlements.SourceSubscription), "list_subscriptions", userID, err)
	}
	return entitlements.IsMaxPlanTier(providers.UserTier(subs, s.now()), plans), nil
}

// PreviewLoss reports which features userID would lose if source went away.
func (s *Service) PreviewLoss(ctx context.Context, userID string, source entitlements.AccessSource) (entitlements.LossPreview, error) {
	if !source.Valid() {
		return entitlements.LossPreview{}, fmt.Errorf("unknown access source %q: %w", source, internalerrors.ErrInvalidInput)
	}
	if userID == "" {
		return entitlements.PartitionFeatureLoss(nil, source), nil
	}
	defer s.observe(time.Now())
	return s.Aggregator(userID).PreviewFeatureLoss(ctx, source)
}
