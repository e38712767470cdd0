package models

// RiskProfile is a user-selected tolerance tier gating which strategies are eligible.
type RiskProfile string

const (
	RiskConservative       RiskProfile = "conservative"
	RiskModerate           RiskProfile = "moderate"
	RiskModerateAggressive RiskProfile = "moderate_aggressive"
	RiskAggressive         RiskProfile = "aggressive"
)

// RiskProfiles lists the tiers from tightest to loosest.
var RiskProfiles = []RiskProfile{RiskConservative, RiskModerate, RiskModerateAggressive, RiskAggressive}

// ConfidenceFloor returns the minimum confidence a strategy needs to be eligible
// under p. Floors tighten monotonically from aggressive to conservative.
//
// Unrecognized profiles return (0, false): every strategy stays eligible.
// Callers that want a strict contract should check ok.
func (p RiskProfile) ConfidenceFloor() (float64, bool) {
	switch p {
	case RiskConservative:
		return 65, true
	case RiskModerate:
		return 60, true
	case RiskModerateAggressive:
		return 55, true
	case RiskAggressive:
		return 0, true
	default:
		return 0, false
	}
}
