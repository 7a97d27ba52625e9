package models

import "time"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// Feature names a trackable, credit-metered capability.
type Feature string

const (
	FeatureImageGeneration  Feature = "image_generation"
	FeatureImageEdit        Feature = "image_edit"
	FeatureImageVariation   Feature = "image_variation"
	FeatureMagicTool        Feature = "magic_tool"
	FeatureExpandCanvas     Feature = "expand_canvas"
	FeatureEraseTool        Feature = "erase_tool"
	Feature4KEnhance        Feature = "4k_enhance"
	FeatureBackgroundCutout Feature = "background_cutout"
	FeatureVideoGeneration  Feature = "video_generation"
	FeatureStyleFilter      Feature = "style_filter"
	FeatureRewardedAdCredit Feature = "rewarded_ad_credit"
	FeatureAdminCreditSet   Feature = "admin_credit_set"
	FeatureAdminPlanChange  Feature = "admin_plan_change"
)

// UsageRecord is an append-only ledger entry. CreditsSpent is positive for
// a debit, negative for a grant and zero for log-only entries.
type UsageRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	FeatureUsed  Feature   `json:"feature_used"`
	CreditsSpent int       `json:"credits_spent"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserState is a user's plan and credit ledger. UsageLog is only filled
// for account and admin reads.
type UserState struct {
	Plan                    Plan          `json:"plan"`
	Credits                 int           `json:"credits"`
	LastCreditReset         time.Time     `json:"last_credit_reset"`
	RewardedAdsWatchedToday int           `json:"rewarded_ads_watched_today"`
	LastAdReset             time.Time     `json:"last_ad_reset"`
	UsageLog                []UsageRecord `json:"usage_log,omitempty"`
	IsAdmin                 bool          `json:"is_admin"`
}

// Clone returns a deep copy of s.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}
	c := *s
	c.UsageLog = append([]UsageRecord(nil), s.UsageLog...)
	return &c
}
