package score

import "github.com/ppiankov/factline/internal/model"

// Recommendation bands, lower bounds inclusive
const (
	PublishThreshold = 90
	ReviewThreshold  = 70
	EditThreshold    = 50
)

// Scorer turns a verification result into a confidence score
type Scorer struct {
	penalties model.ScoringConfig
}

// New creates a scorer with the given per-severity penalties
func New(penalties model.ScoringConfig) *Scorer {
	return &Scorer{penalties: penalties}
}

// Score starts at 100 and subtracts one penalty per issue, clamped to [0,100]
func (s *Scorer) Score(result model.VerificationResult) model.Confidence {
	total := 100
	total -= s.penalties.Critical * result.Count(model.SeverityCritical)
	total -= s.penalties.Warning * result.Count(model.SeverityWarning)
	total -= s.penalties.Info * result.Count(model.SeverityInfo)

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return model.Confidence{
		Score:          total,
		Recommendation: Recommend(total),
	}
}

// Recommend maps a score onto its publish decision
func Recommend(score int) model.Recommendation {
	switch {
	case score >= PublishThreshold:
		return model.RecommendPublish
	case score >= ReviewThreshold:
		return model.RecommendReview
	case score >= EditThreshold:
		return model.RecommendEdit
	default:
		return model.RecommendRegenerate
	}
}
