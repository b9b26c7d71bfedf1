package agent

import "strings"

// Minimal polarity lexicon used by the enhanced quality heuristic. The scale
// mirrors a [-1, 1] polarity: positive and negative hits cancel out.
var (
	positiveWords = map[string]struct{}{
		"good": {}, "great": {}, "excellent": {}, "positive": {}, "success": {},
		"successful": {}, "win": {}, "breakthrough": {}, "improve": {}, "improved": {},
		"growth": {}, "strong": {}, "best": {}, "promising": {}, "benefit": {},
		"advance": {}, "progress": {}, "innovative": {}, "remarkable": {}, "gain": {},
	}
	negativeWords = map[string]struct{}{
		"bad": {}, "poor": {}, "negative": {}, "failure": {}, "fail": {},
		"loss": {}, "crisis": {}, "decline": {}, "weak": {}, "worst": {},
		"risk": {}, "threat": {}, "concern": {}, "problem": {}, "damage": {},
		"collapse": {}, "warning": {}, "danger": {}, "drop": {}, "fear": {},
	}
)

// sentimentPolarity scores text in [-1, 1]. Zero means neutral or no lexicon
// hits at all.
func sentimentPolarity(text string) float64 {
	if text == "" {
		return 0
	}
	var pos, neg int
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if _, ok := positiveWords[word]; ok {
			pos++
		} else if _, ok := negativeWords[word]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
