package entitlements

import (
	"context"
	"sort"
)

// LossPreview is the what-if result of removing one access source.
type LossPreview struct {
	Removed          AccessSource `json:"removed"`
	FeaturesToLose   []FeatureKey `json:"features_to_lose"`
	FeaturesRetained []FeatureKey `json:"features_retained"`

	// ShadowedBy lists, for each feature to lose, the lower-priority sources
	// that nominally also grant it. It is informational only: a feature whose
	// primary source is removed is always reported as lost.
	ShadowedBy map[FeatureKey][]AccessSource `json:"shadowed_by,omitempty"`
}

// PreviewFeatureLoss partitions every enabled feature by whether its
// resolved primary source is removed.
//
// Only the winning source per feature is considered, so the preview
// over-reports loss when a shadowed source would keep the feature alive.
func (a *Aggregator) PreviewFeatureLoss(ctx context.Context, remove AccessSource) (LossPreview, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return LossPreview{}, err
	}

	primary := make(map[FeatureKey]*AccessSource)
	for key := range snap.All() {
		rec, err := a.ResolveFrom(ctx, snap, key)
		if err != nil {
			return LossPreview{}, err
		}
		primary[key] = rec.Source
	}

	preview := PartitionFeatureLoss(primary, remove)
	for _, key := range preview.FeaturesToLose {
		for _, src := range snap.Sources(key) {
			if src == remove {
				continue
			}
			if preview.ShadowedBy == nil {
				preview.ShadowedBy = make(map[FeatureKey][]AccessSource)
			}
			preview.ShadowedBy[key] = append(preview.ShadowedBy[key], src)
		}
	}
	return preview, nil
}

// PartitionFeatureLoss splits features by whether their primary source
// equals remove. Features with no primary source are retained.
func PartitionFeatureLoss(primary map[FeatureKey]*AccessSource, remove AccessSource) LossPreview {
	preview := LossPreview{
		Removed:          remove,
		FeaturesToLose:   []FeatureKey{},
		FeaturesRetained: []FeatureKey{},
	}
	for key, src := range primary {
		if src != nil && *src == remove {
			preview.FeaturesToLose = append(preview.FeaturesToLose, key)
		} else {
			preview.FeaturesRetained = append(preview.FeaturesRetained, key)
		}
	}
	sortKeys(preview.FeaturesToLose)
	sortKeys(preview.FeaturesRetained)
	return preview
}

func sortKeys(keys []FeatureKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
