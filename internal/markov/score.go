package markov

import "math"

// UnseenPenalty is the probability charged for a context or transition never seen in training
const UnseenPenalty = 1e-10

var unseenLogPenalty = math.Log(UnseenPenalty)

// Score returns the log-likelihood of tokens under chain. It returns -Inf
// when there are fewer than order+1 tokens, meaning there is no evidence
// either way.
func Score(tokens []string, chain *Chain) float64 {
	k := chain.Order()
	if len(tokens) < k+1 {
		return math.Inf(-1)
	}

	logProb := 0.0
	for i := 0; i+k < len(tokens); i++ {
		if p := chain.Probability(tokens[i:i+k], tokens[i+k]); p > 0 {
			logProb += math.Log(p)
		} else {
			logProb += unseenLogPenalty
		}
	}

	return logProb
}
