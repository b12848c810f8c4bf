package entitlements

import "context"

// Provider resolves which features one access source currently enables for a
// user. An empty set with a nil error means "no data"; a non-nil error means
// the backing data could not be fetched.
type Provider interface {
	Source() AccessSource
	EnabledFeatures(ctx context.Context, userID string) (FeatureSet, error)
}

// UsageMeter reports remaining period usage for a feature granted by a source.
// capped is false when no usage limit applies.
type UsageMeter interface {
	Remaining(ctx context.Context, userID string, feature FeatureKey, source AccessSource) (remaining int64, capped bool, err error)
}

// ProviderFunc adapts a function into a Provider.
type ProviderFunc struct {
	From AccessSource
	Fn   func(ctx context.Context, userID string) (FeatureSet, error)
}

// Source implements Provider.
func (p ProviderFunc) Source() AccessSource { return p.From }

// EnabledFeatures implements Provider.
func (p ProviderFunc) EnabledFeatures(ctx context.Context, userID string) (FeatureSet, error) {
	if p.Fn == nil {
		return FeatureSet{}, nil
	}
	return p.Fn(ctx, userID)
}

// StaticProvider returns a provider that always enables the given keys.
func StaticProvider(source AccessSource, keys ...FeatureKey) Provider {
	set := NewFeatureSet(keys...)
	return ProviderFunc{
		From: source,
		Fn: func(context.Context, string) (FeatureSet, error) {
			out := make(FeatureSet, len(set))
			out.Merge(set)
			return out, nil
		},
	}
}
