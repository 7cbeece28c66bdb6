package screening

// ActionForRisk maps a vendor risk score to a disposition. The bands are
// fixed policy, not configuration:
//
//	100    block
//	80-99  hold
//	50-79  enhanced_dd
//	20-49  monitor
//	0-19   allow
//
// Scores outside [0, 100] are clamped first.
func ActionForRisk(score int) Action {
	switch {
	case score >= 100:
		return ActionBlock
	case score >= 80:
		return ActionHold
	case score >= 50:
		return ActionEnhancedDD
	case score >= 20:
		return ActionMonitor
	default:
		return ActionAllow
	}
}

// ClampScore bounds a vendor-reported score to [0, 100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RequiresCase reports whether an action opens or updates a compliance case.
func RequiresCase(action Action) bool {
	switch action {
	case ActionHold, ActionEnhancedDD, ActionBlock:
		return true
	default:
		return false
	}
}
