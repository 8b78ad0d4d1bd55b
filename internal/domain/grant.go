package domain

import (
	"time"
)

// OptionGrant is one award in the grant register.
// Only inputs are stored; valuations are recomputed on every request.
type OptionGrant struct {
	ID              string    `gorm:"primaryKey" json:"id" csv:"grant_id"`
	Holder          string    `gorm:"index" json:"holder" csv:"holder"`
	SharePrice      float64   `json:"share_price" csv:"share_price"`
	StrikePrice     float64   `json:"strike_price" csv:"strike_price"`
	TimeToMaturity  float64   `json:"time_to_maturity" csv:"time_to_maturity"`
	VestingPeriod   float64   `json:"vesting_period" csv:"vesting_period"`
	RiskFree        float64   `json:"risk_free" csv:"risk_free"`
	Sigma           float64   `json:"sigma" csv:"sigma"`
	DivRate         float64   `json:"div_rate" csv:"div_rate"`
	ExitPreVesting  float64   `json:"exit_pre_vesting" csv:"exit_pre_vesting"`
	ExitPostVesting float64   `json:"exit_post_vesting" csv:"exit_post_vesting"`
	Multiple        float64   `json:"multiple" csv:"multiple"`
	Steps           int       `json:"steps" csv:"steps"`
	Policy          string    `json:"policy" csv:"policy"`
	CreatedAt       time.Time `json:"created_at" csv:"-"`
	UpdatedAt       time.Time `json:"updated_at" csv:"-"`
}

// ExercisePolicy parses the stored policy name
func (g *OptionGrant) ExercisePolicy() (ExercisePolicy, error) {
	return ParseExercisePolicy(g.Policy)
}

// Inputs maps the grant to engine inputs with its exercise policy applied
func (g *OptionGrant) Inputs() (Inputs, error) {
	policy, err := g.ExercisePolicy()
	if err != nil {
		return Inputs{}, err
	}
	return policy.Apply(Inputs{
		SharePrice:      g.SharePrice,
		StrikePrice:     g.StrikePrice,
		TimeToMaturity:  g.TimeToMaturity,
		VestingPeriod:   g.VestingPeriod,
		RiskFree:        g.RiskFree,
		Sigma:           g.Sigma,
		DivRate:         g.DivRate,
		ExitPreVesting:  g.ExitPreVesting,
		ExitPostVesting: g.ExitPostVesting,
		Multiple:        g.Multiple,
		Steps:           g.Steps,
	}), nil
}

// GrantValuation is the result of valuing one register entry.
// Err is set when the grant failed validation; Valuation is then zero.
type GrantValuation struct {
	GrantID string
	Holder  string
	Policy  ExercisePolicy
	Valuation
	Err error
}
