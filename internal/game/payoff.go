package game

import "fmt"

// Payoff is the per-round prisoner's dilemma matrix.
type Payoff struct {
	Temptation float64 `json:"temptation" toml:"temptation" yaml:"temptation"`
	Reward     float64 `json:"reward" toml:"reward" yaml:"reward"`
	Punishment float64 `json:"punishment" toml:"punishment" yaml:"punishment"`
	Sucker     float64 `json:"sucker" toml:"sucker" yaml:"sucker"`
}

func DefaultPayoff() Payoff {
	return Payoff{Temptation: 5, Reward: 3, Punishment: 1, Sucker: 0}
}

// Validate enforces T > R > P > S.
func (p Payoff) Validate() error {
	if !(p.Temptation > p.Reward && p.Reward > p.Punishment && p.Punishment > p.Sucker) {
		return fmt.Errorf("payoff must satisfy T > R > P > S: got T=%g R=%g P=%g S=%g",
			p.Temptation, p.Reward, p.Punishment, p.Sucker)
	}
	return nil
}

// Resolve returns the round payouts of a and b.
func (p Payoff) Resolve(aCooperates, bCooperates bool) (float64, float64) {
	switch {
	case aCooperates && bCooperates:
		return p.Reward, p.Reward
	case aCooperates:
		return p.Sucker, p.Temptation
	case bCooperates:
		return p.Temptation, p.Sucker
	default:
		return p.Punishment, p.Punishment
	}
}
