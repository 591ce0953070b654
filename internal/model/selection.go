package model

import "time"

// User tiers recognised by context scoring.
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Preferences are soft caller intents that shift scoring weights.
type Preferences struct {
	PrioritizeSpeed   bool `json:"prioritize_speed"`
	PrioritizeQuality bool `json:"prioritize_quality"`
	PrioritizeCost    bool `json:"prioritize_cost"`
}

// UsageRecord is one provider outcome from the caller's current session.
type UsageRecord struct {
	ProviderID string    `json:"provider_id"`
	Success    bool      `json:"success"`
	At         time.Time `json:"at"`
}

// SelectionContext carries request-scoped signals.
type SelectionContext struct {
	UserTier string `json:"user_tier,omitempty"`
	// SystemLoad is a percentage in [0, 100].
	SystemLoad int `json:"system_load"`
	// Hour is the local hour of day; nil means the engine's current hour.
	Hour             *int          `json:"hour,omitempty"`
	PreviousFailures []string      `json:"previous_failures,omitempty"`
	RecentUsage      []UsageRecord `json:"recent_usage,omitempty"`
	RetryAttempt     int           `json:"retry_attempt,omitempty"`
}

// SelectionCriteria is the immutable input of one selection call.
type SelectionCriteria struct {
	Requirements Requirements     `json:"requirements"`
	Preferences  Preferences      `json:"preferences"`
	Context      SelectionContext `json:"context"`
}

// Excludes reports whether providerID is on the prior-failure list.
func (c *SelectionCriteria) Excludes(providerID string) bool {
	for _, id := range c.Context.PreviousFailures {
		if id == providerID {
			return true
		}
	}
	return false
}

// SpeedRequirement is the hard latency class of a request.
type SpeedRequirement string

const (
	SpeedNormal   SpeedRequirement = "normal"
	SpeedFast     SpeedRequirement = "fast"
	SpeedCritical SpeedRequirement = "critical"
)

// BusinessRules are hard post-scoring constraints plus rule-driven bonuses.
type BusinessRules struct {
	MaxCostThreshold    float64          `json:"max_cost_threshold" mapstructure:"max_cost_threshold"`
	MinQualityThreshold float64          `json:"min_quality_threshold" mapstructure:"min_quality_threshold"`
	SpeedRequirement    SpeedRequirement `json:"speed_requirement" mapstructure:"speed_requirement"`
	CostOptimization    bool             `json:"cost_optimization" mapstructure:"cost_optimization"`
	QualityGuarantee    bool             `json:"quality_guarantee" mapstructure:"quality_guarantee"`
	EnterpriseFeatures  bool             `json:"enterprise_features" mapstructure:"enterprise_features"`
}

// DefaultBusinessRules returns the rules used when nothing is configured.
func DefaultBusinessRules() BusinessRules {
	return BusinessRules{
		MaxCostThreshold:    50,
		MinQualityThreshold: 0,
		SpeedRequirement:    SpeedNormal,
	}
}

// RulesOverride replaces individual business rules for one call. Nil fields keep the default.
type RulesOverride struct {
	MaxCostThreshold    *float64          `json:"max_cost_threshold,omitempty"`
	MinQualityThreshold *float64          `json:"min_quality_threshold,omitempty"`
	SpeedRequirement    *SpeedRequirement `json:"speed_requirement,omitempty"`
	CostOptimization    *bool             `json:"cost_optimization,omitempty"`
	QualityGuarantee    *bool             `json:"quality_guarantee,omitempty"`
	EnterpriseFeatures  *bool             `json:"enterprise_features,omitempty"`
}

// Merge applies the override on top of base and returns the result.
func (o *RulesOverride) Merge(base BusinessRules) BusinessRules {
	if o == nil {
		return base
	}
	if o.MaxCostThreshold != nil {
		base.MaxCostThreshold = *o.MaxCostThreshold
	}
	if o.MinQualityThreshold != nil {
		base.MinQualityThreshold = *o.MinQualityThreshold
	}
	if o.SpeedRequirement != nil {
		base.SpeedRequirement = *o.SpeedRequirement
	}
	if o.CostOptimization != nil {
		base.CostOptimization = *o.CostOptimization
	}
	if o.QualityGuarantee != nil {
		base.QualityGuarantee = *o.QualityGuarantee
	}
	if o.EnterpriseFeatures != nil {
		base.EnterpriseFeatures = *o.EnterpriseFeatures
	}
	return base
}

// Component bands of a ScoreBreakdown.
const (
	MaxBaseScore         = 20.0
	MaxHealthScore       = 30.0
	MaxPerformanceScore  = 25.0
	MaxCostScore         = 15.0
	MaxReliabilityScore  = 10.0
	MaxContextScore      = 10.0
	MaxBusinessRuleScore = 10.0
	MaxTotalScore        = 100.0
)

// ScoreBreakdown explains a provider score as a sum of capped contributions.
type ScoreBreakdown struct {
	Base         float64 `json:"base"`
	Health       float64 `json:"health"`
	Performance  float64 `json:"performance"`
	Cost         float64 `json:"cost"`
	Reliability  float64 `json:"reliability"`
	Context      float64 `json:"context"`
	BusinessRule float64 `json:"business_rule"`
	Total        float64 `json:"total"`
}

// ScoreWeights multiply the breakdown components into the total.
type ScoreWeights struct {
	Base         float64 `json:"base" mapstructure:"base"`
	Health       float64 `json:"health" mapstructure:"health"`
	Performance  float64 `json:"performance" mapstructure:"performance"`
	Cost         float64 `json:"cost" mapstructure:"cost"`
	Reliability  float64 `json:"reliability" mapstructure:"reliability"`
	Context      float64 `json:"context" mapstructure:"context"`
	BusinessRule float64 `json:"business_rule" mapstructure:"business_rule"`
}

// DefaultScoreWeights weighs every component equally.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Base:         1,
		Health:       1,
		Performance:  1,
		Cost:         1,
		Reliability:  1,
		Context:      1,
		BusinessRule: 1,
	}
}

// CandidateScore is one scored candidate as recorded in the decision log.
type CandidateScore struct {
	ProviderID    string         `json:"provider_id"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
	EstimatedCost float64        `json:"estimated_cost"`
	Unscored      bool           `json:"unscored,omitempty"`
	Rejected      string         `json:"rejected,omitempty"`
}

// SelectionDecision is the append-only log record of a selection call.
type SelectionDecision struct {
	ID               string            `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	SelectedProvider string            `json:"selected_provider"`
	Score            float64           `json:"score"`
	EstimatedCost    float64           `json:"estimated_cost"`
	EstimatedTime    time.Duration     `json:"estimated_time"`
	Fallbacks        []string          `json:"fallbacks"`
	Criteria         SelectionCriteria `json:"criteria"`
	Rules            BusinessRules     `json:"rules"`
	Candidates       []CandidateScore  `json:"candidates"`
	Reasoning        []string          `json:"reasoning"`
}
