package entitlements

import "fmt"

// GateState is the render state of a feature gate.
type GateState string

const (
	GateLoading GateState = "loading"
	GateDenied  GateState = "denied"
	GateAllowed GateState = "allowed"
)

// DenialReason distinguishes why a gate denied access.
type DenialReason string

const (
	DenialNone       DenialReason = ""
	DenialNotOnPlan  DenialReason = "not_on_plan"
	DenialUsageLimit DenialReason = "usage_limit_reached"
	DenialOrgManaged DenialReason = "org_managed"
)

// GateContext carries the plan facts needed to phrase a denial.
type GateContext struct {
	// OrgManaged is true when the user's plan is administered by an org admin.
	OrgManaged bool

	UserTier *int
	Plans    []PlanTier
}

// GateDecision is what a presentation layer needs to render a gate.
type GateDecision struct {
	Feature     FeatureKey    `json:"feature,omitempty"`
	Capability  CapabilityTag `json:"capability,omitempty"`
	State       GateState     `json:"state"`
	Reason      DenialReason  `json:"reason,omitempty"`
	Message     string        `json:"message,omitempty"`
	ShowUpgrade bool          `json:"show_upgrade"`
	UpgradeURL  string        `json:"upgrade_url,omitempty"`
	Source      *AccessSource `json:"source,omitempty"`
}

const (
	messageUsageLimit = "You've reached this month's usage limit for %s. It resets at the start of next month."
	messageOrgManaged = "%s is managed by your organization. Contact your organization admin for access."
	messageNoUpgrade  = "%s isn't included in any available plan. Contact support for access."

	messageUnknownCapability = "%q isn't a known capability."
)

// Evaluate decides how a gate for feature renders given its resolved record.
// A nil record means resolution has not finished.
func Evaluate(feature FeatureKey, rec *Record, gc GateContext) GateDecision {
	d := GateDecision{Feature: feature}
	if rec == nil {
		d.State = GateLoading
		return d
	}
	d.Source = rec.Source

	switch {
	case rec.Usable():
		d.State = GateAllowed
	case rec.LimitReached():
		d.State = GateDenied
		d.Reason = DenialUsageLimit
		d.Message = fmt.Sprintf(messageUsageLimit, DisplayName(feature))
	case gc.OrgManaged:
		d.State = GateDenied
		d.Reason = DenialOrgManaged
		d.Message = fmt.Sprintf(messageOrgManaged, DisplayName(feature))
	default:
		d.State = GateDenied
		d.Reason = DenialNotOnPlan
		if IsMaxPlanTier(gc.UserTier, gc.Plans) {
			d.Message = fmt.Sprintf(messageNoUpgrade, DisplayName(feature))
		} else {
			d.Message = UpgradeReason(feature)
			d.ShowUpgrade = true
			d.UpgradeURL = UpgradeURLForFeature(feature)
		}
	}
	return d
}

// EvaluateCapability decides a gate that requires any feature of tag.
// records maps each feature of the tag to its resolved record; a missing
// entry means that feature is still loading.
func EvaluateCapability(tag CapabilityTag, records map[FeatureKey]*Record, gc GateContext) GateDecision {
	features := FeaturesForCapability(tag)
	if len(features) == 0 {
		// No feature can satisfy an unknown tag, so there is nothing to upgrade to.
		return GateDecision{
			Capability: tag,
			State:      GateDenied,
			Reason:     DenialNotOnPlan,
			Message:    fmt.Sprintf(messageUnknownCapability, tag),
		}
	}

	var first *GateDecision
	loading := false
	for _, key := range features {
		rec, ok := records[key]
		if !ok || rec == nil {
			loading = true
			continue
		}
		d := Evaluate(key, rec, gc)
		if d.State == GateAllowed {
			d.Capability = tag
			return d
		}
		if first == nil || denialRank(d.Reason) < denialRank(first.Reason) {
			dd := d
			first = &dd
		}
	}
	if loading || first == nil {
		return GateDecision{Capability: tag, State: GateLoading}
	}
	first.Capability = tag
	return *first
}

// denialRank orders reasons so the most actionable one is reported.
func denialRank(r DenialReason) int {
	switch r {
	case DenialUsageLimit:
		return 0
	case DenialOrgManaged:
		return 1
	default:
		return 2
	}
}
