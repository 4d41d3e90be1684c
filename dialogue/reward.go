package dialogue

import "math"

// TargetBonus is the transition reward for naming the target topic.
const TargetBonus = 3.0

// RewardFunc scores one exchange (a system turn and the user's reply).
type RewardFunc func(exchange []Turn, target Target) float64

// TargetReward pays TargetBonus when the system names the target topic.
func TargetReward(exchange []Turn, target Target) float64 {
	if MentionsTarget(exchange, target.Topic) {
		return TargetBonus
	}
	return 0
}

type OutcomeParams struct {
	Alpha       float64 // scale of the outcome term
	Lambda      float64 // scale of the length term
	Temperature float64
}

func DefaultOutcomeParams() OutcomeParams {
	return OutcomeParams{Alpha: 3, Lambda: 1, Temperature: 0.5}
}

// OutcomeReward maps an outcome (e.g. +1 or -1) and an assessment score to a
// reward, favouring short continuations:
// outcome*alpha*score + lambda*exp(-length/temperature).
func OutcomeReward(outcome, score float64, length int, p OutcomeParams) float64 {
	return outcome*p.Alpha*score + p.Lambda*math.Exp(-float64(length)/p.Temperature)
}
