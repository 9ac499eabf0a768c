package arena

import (
	"math"
	"math/rand"
	"time"

	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/domain"
)

// OutcomePolicy computes the trophy adjustment for a concluded match.
// It is deliberately a narrow boundary: the coordinator never inspects
// how deltas are derived, so server-side outcome validation or a
// different rating model can be slotted in later without protocol
// changes.
type OutcomePolicy interface {
	ComputeOutcome(loserRating int) domain.Outcome
}

// TrophyPolicy is the baseline outcome policy: the winner gains a base
// value plus a bounded random bonus, the loser loses a fraction of the
// rating snapshot capped at a fixed maximum. The randomized bonus keeps
// repeated-pairing grinding less deterministic.
type TrophyPolicy struct {
	baseGain     int
	bonusRange   int
	lossFraction float64
	lossCap      int
	rng          *rand.Rand
}

// NewTrophyPolicy creates a policy from matchmaking config, seeded from
// the wall clock.
func NewTrophyPolicy(cfg *config.MatchmakingConfig) *TrophyPolicy {
	return NewTrophyPolicyWithSource(cfg, rand.NewSource(time.Now().UnixNano()))
}

// NewTrophyPolicyWithSource creates a policy with an explicit random
// source, for deterministic tests.
func NewTrophyPolicyWithSource(cfg *config.MatchmakingConfig, src rand.Source) *TrophyPolicy {
	return &TrophyPolicy{
		baseGain:     cfg.BaseGain,
		bonusRange:   cfg.BonusRange,
		lossFraction: cfg.LossFraction,
		lossCap:      cfg.LossCap,
		rng:          rand.New(src),
	}
}

// ComputeOutcome returns the winner's gain and the loser's loss
// magnitude. With the defaults (base 15, bonus range 10, fraction 0.1,
// cap 10) the gain lies in [15, 24] and a loser at rating 100 loses 10.
func (p *TrophyPolicy) ComputeOutcome(loserRating int) domain.Outcome {
	gain := p.baseGain
	if p.bonusRange > 0 {
		gain += p.rng.Intn(p.bonusRange)
	}

	loss := int(math.Floor(float64(loserRating) * p.lossFraction))
	if loss > p.lossCap {
		loss = p.lossCap
	}
	if loss < 0 {
		loss = 0
	}

	return domain.Outcome{WinnerGain: gain, LoserLoss: loss}
}
