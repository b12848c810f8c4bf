package entitlements

import "sort"

// Feature keys known to the platform. Sources may grant keys outside this
// list; the catalog only drives capability tags and upgrade prompts.
const (
	FeatureAIInsights        FeatureKey = "ai_insights"        // AI summaries of assessment results
	FeatureAICoachChat       FeatureKey = "ai_coach_chat"      // Conversational AI coach
	FeatureSessionBooking    FeatureKey = "session_booking"    // Book 1:1 coaching sessions
	FeatureGroupCoaching     FeatureKey = "group_coaching"     // Join group coaching cohorts
	FeatureAssessments       FeatureKey = "assessments"        // Take capability assessments
	FeatureAdvancedAnalytics FeatureKey = "advanced_analytics" // Progress and cohort analytics
	FeatureDevelopmentPlans  FeatureKey = "development_plans"  // Personal development plans
	FeatureResourceLibrary   FeatureKey = "resource_library"   // Premium resource library
	FeatureCertificates      FeatureKey = "certificates"       // Completion certificates
	FeatureCalendarSync      FeatureKey = "calendar_sync"      // External calendar sync
)

// CapabilityTag groups related features; a tag is satisfied when any of its
// features is usable.
type CapabilityTag string

const (
	CapabilityAI        CapabilityTag = "ai"
	CapabilityCoaching  CapabilityTag = "coaching"
	CapabilityInsights  CapabilityTag = "insights"
	CapabilityResources CapabilityTag = "resources"
)

var capabilityFeatures = map[CapabilityTag][]FeatureKey{
	CapabilityAI:        {FeatureAIInsights, FeatureAICoachChat},
	CapabilityCoaching:  {FeatureSessionBooking, FeatureGroupCoaching},
	CapabilityInsights:  {FeatureAdvancedAnalytics, FeatureAIInsights},
	CapabilityResources: {FeatureResourceLibrary, FeatureCertificates},
}

// FeaturesForCapability returns the features satisfying tag, or nil if the
// tag is unknown.
func FeaturesForCapability(tag CapabilityTag) []FeatureKey {
	keys, ok := capabilityFeatures[tag]
	if !ok {
		return nil
	}
	out := make([]FeatureKey, len(keys))
	copy(out, keys)
	return out
}

// CatalogFeatures returns every catalog feature in lexical order.
func CatalogFeatures() []FeatureKey {
	out := make([]FeatureKey, 0, len(featureNames))
	for k := range featureNames {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var featureNames = map[FeatureKey]string{
	FeatureAIInsights:        "AI Insights",
	FeatureAICoachChat:       "AI Coach",
	FeatureSessionBooking:    "Session Booking",
	FeatureGroupCoaching:     "Group Coaching",
	FeatureAssessments:       "Assessments",
	FeatureAdvancedAnalytics: "Advanced Analytics",
	FeatureDevelopmentPlans:  "Development Plans",
	FeatureResourceLibrary:   "Resource Library",
	FeatureCertificates:      "Certificates",
	FeatureCalendarSync:      "Calendar Sync",
}

// DisplayName returns a human-readable feature name.
func DisplayName(key FeatureKey) string {
	if name, ok := featureNames[key]; ok {
		return name
	}
	return string(key)
}

// DefaultUpgradeURL is used when no feature-specific URL mapping exists.
const DefaultUpgradeURL = "/plans?utm_source=app&utm_medium=gate&utm_campaign=upgrade"

// UpgradeURLForFeature returns the upgrade URL for a feature key.
func UpgradeURLForFeature(key FeatureKey) string {
	if _, ok := featureNames[key]; !ok {
		return DefaultUpgradeURL
	}
	return DefaultUpgradeURL + "&feature=" + string(key)
}

// upgradeReasons holds feature-specific upgrade copy.
var upgradeReasons = map[FeatureKey]string{
	FeatureAIInsights:        "Upgrade to unlock AI insights on your assessment results.",
	FeatureAICoachChat:       "Upgrade to chat with your AI coach between sessions.",
	FeatureSessionBooking:    "Upgrade to book 1:1 sessions with your coach.",
	FeatureGroupCoaching:     "Upgrade to join live group coaching cohorts.",
	FeatureAdvancedAnalytics: "Upgrade to see detailed progress analytics.",
	FeatureResourceLibrary:   "Upgrade to access the full resource library.",
}

// UpgradeReason returns user-facing copy explaining what upgrading unlocks.
func UpgradeReason(key FeatureKey) string {
	if reason, ok := upgradeReasons[key]; ok {
		return reason
	}
	return "Upgrade your plan to unlock " + DisplayName(key) + "."
}
