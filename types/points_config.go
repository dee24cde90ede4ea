package types

import (
	"math"
	"sort"
)

const (
	RuleActivityParticipation  = "activity_participation"
	RuleActivityCheckin        = "activity_checkin"
	RuleActivityOrganization   = "activity_organization"
	RuleRideshareCompletion    = "rideshare_completion"
	RuleMarketplaceTransaction = "marketplace_transaction"
	RuleDailyLogin             = "daily_login"
	RuleProfileCompletion      = "profile_completion"
	RuleReferral               = "referral"
	RuleFeedbackSubmission     = "feedback_submission"
	RuleConsecutiveCheckin     = "consecutive_checkin"
)

const (
	RIDE_CREATION_POINTS    = 10
	MAX_STREAK_MULTIPLIER   = 3
	STREAK_WEEK_LENGTH      = 7
	DAILY_LOGIN_BASE_POINTS = 2
)

type PointRule struct {
	Name            string `json:"name"`
	Points          int64  `json:"points"`
	Description     string `json:"description"`
	AllowMultiplier bool   `json:"allow_multiplier"`
}

var pointRules = map[string]PointRule{
	RuleActivityParticipation:  {Name: RuleActivityParticipation, Points: 10, Description: "Participated in an activity"},
	RuleActivityCheckin:        {Name: RuleActivityCheckin, Points: 5, Description: "Checked in to an activity"},
	RuleActivityOrganization:   {Name: RuleActivityOrganization, Points: 20, Description: "Organized an activity"},
	RuleRideshareCompletion:    {Name: RuleRideshareCompletion, Points: 15, Description: "Completed a ride"},
	RuleMarketplaceTransaction: {Name: RuleMarketplaceTransaction, Points: 8, Description: "Completed a marketplace sale"},
	RuleDailyLogin:             {Name: RuleDailyLogin, Points: DAILY_LOGIN_BASE_POINTS, Description: "Daily login"},
	RuleProfileCompletion:      {Name: RuleProfileCompletion, Points: 25, Description: "Completed profile"},
	RuleReferral:               {Name: RuleReferral, Points: 30, Description: "Referred a new user"},
	RuleFeedbackSubmission:     {Name: RuleFeedbackSubmission, Points: 12, Description: "Submitted feedback"},
	RuleConsecutiveCheckin:     {Name: RuleConsecutiveCheckin, Points: 5, Description: "Consecutive check-in", AllowMultiplier: true},
}

func GetPointRule(name string) (PointRule, bool) {
	rule, ok := pointRules[name]
	return rule, ok
}

// GetPointRules returns the rule table sorted by name.
func GetPointRules() []PointRule {
	rules := make([]PointRule, 0, len(pointRules))
	for _, r := range pointRules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// ApplyMultiplier scales points when the rule allows it and the multiplier exceeds 1.
func ApplyMultiplier(rule PointRule, points int64, multiplier float64) int64 {
	if !rule.AllowMultiplier || multiplier <= 1 {
		return points
	}
	return int64(math.Floor(float64(points) * multiplier))
}

// CalculateConsecutiveBonus grows the base by a seventh per streak day, capped at 3 extra multiples.
func CalculateConsecutiveBonus(consecutiveDays int, base int64) int64 {
	if consecutiveDays <= 1 {
		return base
	}
	extra := math.Min(float64(consecutiveDays)/STREAK_WEEK_LENGTH, MAX_STREAK_MULTIPLIER)
	return int64(math.Floor(float64(base) * (1 + extra)))
}
