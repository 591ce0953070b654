package biz

import (
	"math"

	"Switchyard/internal/conf"
	"Switchyard/internal/model"
)

// Scoring constants. Every component is clamped to its model.Max* band.
const (
	priorityStep = 5.0

	healthBaseline       = 20.0
	uptimeBaseline       = 95.0
	uptimeBonusPerPoint  = 2.0
	uptimeBonusCap       = 10.0
	uptimePenaltyPerPt   = 0.5
	errorRatePenalty     = 50.0
	responseTimeBaseMs   = 2000.0
	responseTimePenaltyS = 2.0

	successRateWeight   = 10.0
	speedCap            = 5.0
	speedReferenceSec   = 300.0
	qualityCap          = 5.0
	satisfactionCap     = 5.0
	maxVideoQuality     = 10.0
	maxSatisfaction     = 5.0
	neutralCostScore    = 7.5
	reliabilityBase     = 8.0
	failurePenalty      = 2.0
	sessionSuccessBonus = 2.0

	businessHourStart  = 9
	businessHourEnd    = 17
	highLoadPercent    = 80
	businessHoursBonus = 3.0
	highLoadBonus      = 4.0
	enterpriseBonus    = 3.0

	qualityGuaranteeBonus = 4.0
	criticalSpeedBonus    = 3.0
	enterpriseRuleBonus   = 3.0
)

// ScoreInput is everything the scorer looks at for one candidate.
type ScoreInput struct {
	ProviderID   string
	Priority     int
	Capabilities model.Capabilities
	// Health and Metrics are nil when the candidate is unscored.
	Health   *model.HealthStatus
	Metrics  *model.PerformanceMetrics
	Cost     float64
	Criteria *model.SelectionCriteria
	Rules    model.BusinessRules
	// Hour is the resolved local hour of day used for context scoring.
	Hour int
}

// ProviderScorer turns provider signals into a ScoreBreakdown. It holds no
// mutable state and is safe for concurrent use.
type ProviderScorer struct {
	weights model.ScoreWeights
}

// NewProviderScorer creates a scorer with the configured base weights.
func NewProviderScorer(c *conf.Selector) *ProviderScorer {
	weights := model.DefaultScoreWeights()
	if c != nil && c.Weights != (model.ScoreWeights{}) {
		weights = c.Weights
	}
	return &ProviderScorer{weights: weights}
}

// Weights returns the weight vector used for the given criteria and rules.
func (s *ProviderScorer) Weights(criteria *model.SelectionCriteria, rules model.BusinessRules) model.ScoreWeights {
	w := s.weights
	var prefs model.Preferences
	if criteria != nil {
		prefs = criteria.Preferences
	}

	if prefs.PrioritizeSpeed {
		w.Performance += 0.3
		w.Context += 0.1
		w.Cost -= 0.2
		w.Base -= 0.2
	}
	if prefs.PrioritizeQuality {
		w.Performance += 0.2
		w.Health += 0.2
		w.Cost -= 0.2
		w.Base -= 0.2
	}
	if prefs.PrioritizeCost || rules.CostOptimization {
		w.Cost += 0.5
		w.Performance -= 0.2
		w.BusinessRule -= 0.1
		w.Base -= 0.2
	}

	w.Base = math.Max(0, w.Base)
	w.Health = math.Max(0, w.Health)
	w.Performance = math.Max(0, w.Performance)
	w.Cost = math.Max(0, w.Cost)
	w.Reliability = math.Max(0, w.Reliability)
	w.Context = math.Max(0, w.Context)
	w.BusinessRule = math.Max(0, w.BusinessRule)
	return w
}

// Score computes the breakdown and weighted total for one candidate.
func (s *ProviderScorer) Score(in ScoreInput) model.ScoreBreakdown {
	criteria := in.Criteria
	if criteria == nil {
		criteria = &model.SelectionCriteria{}
	}

	b := model.ScoreBreakdown{
		Base:         baseScore(in.Priority),
		Health:       healthScore(in.Health),
		Performance:  performanceScore(in.Metrics),
		Cost:         costScore(in.Cost, criteria.Preferences, in.Rules),
		Reliability:  reliabilityScore(in.ProviderID, criteria.Context.RecentUsage),
		Context:      contextScore(in.Priority, in.Capabilities, criteria.Context, in.Hour),
		BusinessRule: businessRuleScore(in.Capabilities, in.Rules),
	}

	w := s.Weights(criteria, in.Rules)
	total := b.Base*w.Base +
		b.Health*w.Health +
		b.Performance*w.Performance +
		b.Cost*w.Cost +
		b.Reliability*w.Reliability +
		b.Context*w.Context +
		b.BusinessRule*w.BusinessRule
	b.Total = clamp(total, 0, model.MaxTotalScore)
	return b
}

func baseScore(priority int) float64 {
	return clamp(model.MaxBaseScore-priorityStep*float64(priority-1), 0, model.MaxBaseScore)
}

func healthScore(h *model.HealthStatus) float64 {
	if h == nil || !h.IsHealthy {
		return 0
	}

	var uptimeAdj float64
	if h.Uptime >= uptimeBaseline {
		uptimeAdj = math.Min(uptimeBonusCap, uptimeBonusPerPoint*(h.Uptime-uptimeBaseline))
	} else {
		uptimeAdj = -uptimePenaltyPerPt * (uptimeBaseline - h.Uptime)
	}

	latencyPenalty := responseTimePenaltyS * math.Max(0, (h.ResponseTimeMs-responseTimeBaseMs)/1000)
	score := healthBaseline + uptimeAdj - errorRatePenalty*h.ErrorRate - latencyPenalty
	return clamp(score, 0, model.MaxHealthScore)
}

func performanceScore(m *model.PerformanceMetrics) float64 {
	if m == nil {
		return 0
	}
	success := clamp(successRateWeight*m.SuccessRate, 0, successRateWeight)
	var speed float64
	if m.AverageGenerationTimeSec > 0 {
		speed = clamp(speedReferenceSec/m.AverageGenerationTimeSec, 0, speedCap)
	}
	quality := clamp(qualityCap*m.AverageVideoQuality/maxVideoQuality, 0, qualityCap)
	satisfaction := clamp(satisfactionCap*m.UserSatisfactionScore/maxSatisfaction, 0, satisfactionCap)
	return clamp(success+speed+quality+satisfaction, 0, model.MaxPerformanceScore)
}

func costScore(cost float64, prefs model.Preferences, rules model.BusinessRules) float64 {
	if !prefs.PrioritizeCost && !rules.CostOptimization {
		return neutralCostScore
	}
	if rules.MaxCostThreshold <= 0 {
		return 0
	}
	return clamp(model.MaxCostScore*(rules.MaxCostThreshold-cost)/rules.MaxCostThreshold, 0, model.MaxCostScore)
}

func reliabilityScore(providerID string, usage []model.UsageRecord) float64 {
	var calls, failures int
	for _, u := range usage {
		if u.ProviderID != providerID {
			continue
		}
		calls++
		if !u.Success {
			failures++
		}
	}
	var successRate float64
	if calls > 0 {
		successRate = float64(calls-failures) / float64(calls)
	}
	score := reliabilityBase - failurePenalty*float64(failures) + sessionSuccessBonus*successRate
	return clamp(score, 0, model.MaxReliabilityScore)
}

func contextScore(priority int, caps model.Capabilities, ctx model.SelectionContext, hour int) float64 {
	var score float64
	if hour >= businessHourStart && hour <= businessHourEnd && priority <= 2 {
		score += businessHoursBonus
	}
	if ctx.SystemLoad > highLoadPercent && caps.RealTime {
		score += highLoadBonus
	}
	if ctx.UserTier == model.TierEnterprise && caps.VoiceCloning {
		score += enterpriseBonus
	}
	return clamp(score, 0, model.MaxContextScore)
}

func businessRuleScore(caps model.Capabilities, rules model.BusinessRules) float64 {
	var score float64
	if rules.QualityGuarantee && caps.HighQuality {
		score += qualityGuaranteeBonus
	}
	if rules.SpeedRequirement == model.SpeedCritical && caps.RealTime {
		score += criticalSpeedBonus
	}
	if rules.EnterpriseFeatures && caps.Enterprise {
		score += enterpriseRuleBonus
	}
	return clamp(score, 0, model.MaxBusinessRuleScore)
}

// clamp bounds v to [lo, hi]. NaN maps to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
